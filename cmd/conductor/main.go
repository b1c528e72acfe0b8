package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/harrison/testconductor/internal/cmd"
	"github.com/harrison/testconductor/internal/conductor"
)

func main() {
	rootCmd := cmd.NewRootCommand()

	if err := rootCmd.Execute(); err != nil {
		var exitErr *cmd.ExitError
		if errors.As(err, &exitErr) {
			if exitErr.Err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", exitErr.Err)
			}
			os.Exit(exitErr.Code)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(conductor.RuntimeErr)
	}
}
