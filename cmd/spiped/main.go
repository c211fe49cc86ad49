package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/relaymesh/spipe"
	"github.com/relaymesh/spipe/config"
)

// newContext returns a cancelable context that is canceled when the process
// receives a SIGTERM or SIGINT.
func newContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case <-ctx.Done():
		case <-sig:
			cancel()
		}
	}()

	return ctx, cancel
}

func main() {
	path := flag.String("config", "/etc/spipe/node.toml", "path of the node configuration file")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	ctx, cancel := newContext()
	defer cancel()

	cfg, err := config.Load(*path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := logging.DefaultLogger
	if *verbose {
		logger = logging.DebugLogger
	}

	e := spipe.New(
		cfg,
		spipe.WithLogger(logger),
	)

	if err := e.Run(ctx); err != context.Canceled {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
