// Package main provides the entry point for the rspace2elabftw CLI.
package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/elabftw/rspace2elabftw/internal/cli"
)

func main() {
	// A .env file may carry API_HOST_URL / API_KEY; absence is fine.
	_ = godotenv.Load()

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
