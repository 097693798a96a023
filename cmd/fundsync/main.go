package main

import (
	"os"

	"github.com/fundsync-dev/fundsync/internal/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
