package main

import (
	"fmt"
	"os"

	"risk-console/internal/cli"
)

// Version is set by ldflags at build time.
var Version = "dev"

func main() {
	if err := cli.Execute(Version); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
