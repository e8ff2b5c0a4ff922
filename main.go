package main

import (
	"fmt"
	"os"

	"github.com/quotedeck/logocache/internal/build"
	"github.com/quotedeck/logocache/internal/cmd"
)

// version is set at build time with -ldflags.
var version = "0.0.0"

func init() {
	build.Version = version
}

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
