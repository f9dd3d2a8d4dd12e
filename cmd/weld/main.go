package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/marcelocantos/weld/internal/audit"
	"github.com/marcelocantos/weld/internal/cli"
	"github.com/marcelocantos/weld/internal/config"
	"github.com/marcelocantos/weld/internal/filter"
	"github.com/marcelocantos/weld/internal/filter/builtin"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	if len(os.Args) < 2 {
		cli.RunHelp(os.Stderr)
		return 1
	}

	// Load config.
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "weld: config: %v\n", err)
		return 1
	}

	// Set up the filter registry.
	reg := filter.NewRegistry()
	builtin.RegisterAll(reg)

	// Diagnostic logger.
	zlog, err := cfg.Log.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "weld: log: %v\n", err)
		return 1
	}
	defer zlog.Sync()

	// Set up audit logger.
	logger, err := audit.NewLogger(cfg.Audit.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "weld: audit: %v\n", err)
		// Continue without audit logging.
		logger = nil
	}

	// Set up context with cancellation on interrupt.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch os.Args[1] {
	case "--list":
		return cli.RunList(reg, os.Stdout)
	case "--help":
		return cli.RunHelp(os.Stdout)
	case "--audit":
		return cli.RunAudit(os.Stdout, cfg.Audit.Path, os.Args[2:])
	case "--version":
		fmt.Printf("weld %s\n", version)
		return 0
	default:
		// Everything else is a pipeline expression, with --filter specs
		// allowed up front.
		args := os.Args[1:]
		var filters []string
		for len(args) >= 2 && args[0] == "--filter" {
			filters = append(filters, args[1])
			args = args[2:]
		}
		return cli.RunPipeline(ctx, cfg, reg, logger, zlog, args, filters, os.Stdin, os.Stdout, os.Stderr)
	}
}
