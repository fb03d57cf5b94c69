// Command capdcis validates CAP DCIS resection cases and assembles report
// prompts from the command line, over HTTP or as an MCP tool server.
package main

import (
	"errors"
	"fmt"
	"os"
)

// Version is set at build time
var Version = "1.0.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var exit *exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		os.Exit(1)
	}
}

// exitError carries a specific process exit status
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }
