package main

import (
	"os"

	"github.com/nightjar-systems/logship/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
