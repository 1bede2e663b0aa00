package main

import (
	"fmt"
	"os"

	"github.com/justin4957/logflow-access-analyzer/internal/commands"
)

func main() {
	app := commands.NewApp(os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "logflow-analyzer: %v\n", err)
		os.Exit(1)
	}
}
