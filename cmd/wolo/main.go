// Package main provides the entry point for the wolo CLI.
package main

import (
	"os"

	"github.com/wolo-ai/wolo/cmd/wolo/commands"
)

func main() {
	os.Exit(commands.Execute())
}
