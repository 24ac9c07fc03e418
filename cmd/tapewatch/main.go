package main

import (
	"os"

	"github.com/jaekwon-dev/tapewatch/cmd/tapewatch/commands"
)

// main is the entry point for the tapewatch CLI
// ⭐ SSOT: go run ./cmd/tapewatch [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
