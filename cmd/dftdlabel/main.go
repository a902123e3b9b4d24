package main

import (
	"fmt"
	"os"

	"github.com/psantana5/dftd-labeler/cmd/dftdlabel/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cmd.ExitCode(err))
	}
}
