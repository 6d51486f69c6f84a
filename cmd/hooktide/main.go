package main

import (
	"os"

	"github.com/hooktide/hooktide/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
