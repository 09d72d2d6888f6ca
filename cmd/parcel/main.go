package main

import (
	"os"

	"github.com/motiz88/parcel/internal/cli/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
