// Package main provides the entry point for the wayvibes-ui command.
package main

import (
	"os"
)

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
