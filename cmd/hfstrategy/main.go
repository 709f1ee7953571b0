package main

import (
	"os"

	"github.com/rustyeddy/hfstrategy/cmd/hfstrategy/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
