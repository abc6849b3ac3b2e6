package main

import (
	"fmt"
	"os"

	"github.com/Yerzhan01/assistant24-sub001/cmd/assistant/commands"
)

// version is set via -ldflags at build time.
var version = "dev"

func main() {
	if err := commands.NewRootCmd(version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
