package main

import (
	"os"

	"github.com/genoscope/seqcompute/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
