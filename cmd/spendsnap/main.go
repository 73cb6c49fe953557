// Command spendsnap is the terminal client of the expense tracker.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"spendsnap/internal/config"
	apperrors "spendsnap/internal/errors"
	"spendsnap/internal/logger"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.LoadClient()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 2
	}
	level := cfg.LogLevel
	if level == "" {
		level = "warn"
	}
	logger.Init(os.Getenv("ENV"), level)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := newApp(cfg, os.Stdin, os.Stdout, os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	defer a.Close()

	if err := a.Run(ctx, args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", apperrors.Message(err))
		return 1
	}
	return 0
}
