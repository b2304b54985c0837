package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/campushq/placemate/cmd"
)

func main() {
	// Best effort: a missing .env is fine, real env vars win.
	_ = godotenv.Load()

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
