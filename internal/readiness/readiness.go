// Package readiness polls the service's health endpoint until it answers or a
// deadline passes.
package readiness

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"
)

// Defaults used for zero Config fields.
const (
	DefaultHealthPath     = "/health"
	DefaultPollInterval   = 500 * time.Millisecond
	DefaultSettleDelay    = time.Second
	DefaultRequestTimeout = 2 * time.Second
	DefaultHost           = "127.0.0.1"
)

// maxDrainBytes caps how much of a health response body is read.
const maxDrainBytes = 4 << 10

// Logger is the subset of the run logger the prober writes to.
type Logger interface {
	LogDebug(message string)
	LogInfo(message string)
	LogWarn(message string)
}

// Config controls the polling loop.
type Config struct {
	Host           string
	HealthPath     string
	PollInterval   time.Duration
	SettleDelay    time.Duration // slept once after the first healthy answer
	RequestTimeout time.Duration // per request
}

// Prober waits for a service to answer its health endpoint.
type Prober struct {
	cfg    Config
	client *http.Client
	alive  func() bool
	logger Logger
}

// New creates a Prober. Zero fields of cfg take the package defaults, except
// SettleDelay where zero means no settle. logger may be nil.
func New(cfg Config, logger Logger) *Prober {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.HealthPath == "" {
		cfg.HealthPath = DefaultHealthPath
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.SettleDelay < 0 {
		cfg.SettleDelay = 0
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}

	return &Prober{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.RequestTimeout},
		logger: logger,
	}
}

// WithAliveCheck makes WaitUntilReady give up as soon as alive reports false.
func (p *Prober) WithAliveCheck(alive func() bool) *Prober {
	p.alive = alive
	return p
}

// URL returns the health URL polled for port.
func (p *Prober) URL(port int) string {
	return "http://" + net.JoinHostPort(p.cfg.Host, strconv.Itoa(port)) + p.cfg.HealthPath
}

// WaitUntilReady polls the health endpoint until it answers 200 or 404, then
// sleeps the settle delay and returns true. Any other status or a transport error
// counts as not ready. It returns false when timeout elapses, ctx is cancelled or
// the alive check reports the service gone. Failure is a return value, not an error.
func (p *Prober) WaitUntilReady(ctx context.Context, port int, timeout time.Duration) bool {
	url := p.URL(port)
	p.logInfo(fmt.Sprintf("Waiting for service at %s to be ready (timeout %s)", url, timeout))

	deadlineCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for attempt := 1; ; attempt++ {
		if p.alive != nil && !p.alive() {
			p.logWarn("Service exited while waiting for readiness")
			return false
		}

		status, err := p.probe(deadlineCtx, url)
		switch {
		case err != nil:
			p.logDebug(fmt.Sprintf("Readiness attempt %d: %v", attempt, err))
		case ready(status):
			p.logInfo(fmt.Sprintf("Service is ready (HTTP %d after %d attempts)", status, attempt))
			return p.settle(ctx)
		default:
			p.logDebug(fmt.Sprintf("Readiness attempt %d: HTTP %d", attempt, status))
		}

		select {
		case <-deadlineCtx.Done():
			if ctx.Err() != nil {
				p.logWarn("Readiness wait cancelled")
			} else {
				p.logWarn(fmt.Sprintf("Timeout: service did not respond within %s", timeout))
			}
			return false
		case <-time.After(p.cfg.PollInterval):
		}
	}
}

// ready treats 404 as healthy: a service without a health route is still
// accepting connections.
func ready(status int) bool {
	return status == http.StatusOK || status == http.StatusNotFound
}

func (p *Prober) probe(ctx context.Context, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))
	return resp.StatusCode, nil
}

func (p *Prober) settle(ctx context.Context) bool {
	if p.cfg.SettleDelay == 0 {
		return true
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(p.cfg.SettleDelay):
		return true
	}
}

func (p *Prober) logDebug(msg string) {
	if p.logger != nil {
		p.logger.LogDebug(msg)
	}
}

func (p *Prober) logInfo(msg string) {
	if p.logger != nil {
		p.logger.LogInfo(msg)
	}
}

func (p *Prober) logWarn(msg string) {
	if p.logger != nil {
		p.logger.LogWarn(msg)
	}
}
