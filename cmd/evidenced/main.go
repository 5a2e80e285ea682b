// Command evidenced is the entry point for the evidence indexing and
// retrieval service. It provides a CLI interface (via Cobra) and an HTTP
// server exposing the evidence API.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/deeds-app/evidence-go/cmd/evidenced/commands"
)

func main() {
	// Load .env if present; real environment variables take precedence.
	_ = godotenv.Load()

	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
