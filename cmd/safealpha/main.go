package main

import (
	"os"

	"github.com/safealpha/engine/cmd/safealpha/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
