package main

import (
	"os"

	"github.com/dgnsrekt/narrator/cmd/narratorctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
