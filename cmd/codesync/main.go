// Package main provides the entry point for the codesync CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/codesync/cmd/codesync/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
