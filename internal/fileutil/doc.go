// Package fileutil expands directory test targets into the individual test
// files beneath them, so each file gets its own outcome.
//
// Files are matched by suffix (".test.ts", ".spec.js", ...) rather than by
// extension because test files share their extension with ordinary sources.
// Hidden directories and the configured exclusions (node_modules, target, ...)
// are never entered. Results are sorted so the run order is stable.
package fileutil
