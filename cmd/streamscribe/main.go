package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/guiyumin/streamscribe/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		// the summary table already lists per-item failures
		if !errors.Is(err, cli.ErrSomeFailed) {
			fmt.Fprintln(os.Stderr, color.RedString("Error: %v", err))
		}
		os.Exit(1)
	}
}
