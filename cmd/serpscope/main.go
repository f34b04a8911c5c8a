// Package main is the entry point for the serpscope CLI.
package main

import (
	"os"

	"github.com/jmylchreest/serpscope/cmd/serpscope/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
