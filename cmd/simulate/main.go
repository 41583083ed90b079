// Package main provides a CLI for running attendance game scenarios.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/louisbranch/elfarol/internal/platform/cmd"
	"github.com/louisbranch/elfarol/internal/platform/config"

	simulatecmd "github.com/louisbranch/elfarol/internal/cmd/simulate"
)

func main() {
	log.SetPrefix("[SIMULATE] ")
	cfg, err := simulatecmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("Error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.RunWithTelemetry(ctx, cmd.ServiceSimulate, func(ctx context.Context) error {
		return simulatecmd.Run(ctx, cfg, os.Stdout, os.Stderr)
	}); err != nil {
		config.Exitf("Error: %s", simulatecmd.Describe(err, cfg.Locale))
	}
}
