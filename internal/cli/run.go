package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/marcelocantos/weld/internal/audit"
	"github.com/marcelocantos/weld/internal/config"
	"github.com/marcelocantos/weld/internal/filter"
	"github.com/marcelocantos/weld/internal/pipeline"
)

// RunPipeline executes a pipeline expression: weld <cmd> ¦ <cmd> ...
// The exit code is the last chain member's, shell-style; 2 signals a weld
// error (bad expression, spawn failure, cancellation).
func RunPipeline(ctx context.Context, cfg *config.Config, reg *filter.Registry, logger *audit.Logger, zlog *zap.Logger, args, filterSpecs []string, stdin io.Reader, stdout, stderr io.Writer) int {
	nodes, err := Parse(args)
	if err != nil {
		fmt.Fprintf(stderr, "weld: %v\n", err)
		return 2
	}

	// Config-supplied default filters first, then per-invocation ones.
	for _, raw := range append(defaultFilters(cfg), filterSpecs...) {
		fs, err := ParseFilterSpec(raw)
		if err != nil {
			fmt.Fprintf(stderr, "weld: %v\n", err)
			return 2
		}
		if err := ApplyFilter(nodes, reg, fs); err != nil {
			fmt.Fprintf(stderr, "weld: %v\n", err)
			return 2
		}
	}

	opts := []pipeline.Option{
		pipeline.WithLogger(zlog),
		pipeline.WithPollInterval(cfg.Pump.PollIntervalDuration()),
	}
	if cfg.Pump.ReadBuffer > 0 {
		opts = append(opts, pipeline.WithReadBuffer(cfg.Pump.ReadBuffer))
	}
	sched := pipeline.NewScheduler(opts...)

	start := time.Now()
	err = sched.Run(ctx, nodes[0], stdin, stdout, stderr)
	duration := time.Since(start)

	exitCode := 0
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
		fmt.Fprintf(stderr, "weld: %v\n", err)
		exitCode = 2
	} else if code, ok := nodes[len(nodes)-1].ExitCode(); ok {
		exitCode = code
	}

	logAudit(logger, strings.Join(args, " "), nodes, errMsg, duration)

	return exitCode
}

func defaultFilters(cfg *config.Config) []string {
	if len(cfg.Filters) == 0 {
		return nil
	}
	streams := make([]string, 0, len(cfg.Filters))
	for stream := range cfg.Filters {
		streams = append(streams, stream)
	}
	sort.Strings(streams)

	var specs []string
	for _, stream := range streams {
		for _, name := range cfg.Filters[stream] {
			specs = append(specs, stream+":"+name)
		}
	}
	return specs
}

func logAudit(logger *audit.Logger, pipelineStr string, nodes []*pipeline.Node, errMsg string, duration time.Duration) {
	if logger == nil {
		return
	}
	cwd, _ := os.Getwd()

	programs := make([]string, len(nodes))
	pids := make([]int, len(nodes))
	codes := make([]int, len(nodes))
	for i, n := range nodes {
		programs[i] = n.Program()
		pids[i], _ = n.PID()
		codes[i] = -1
		if code, ok := n.ExitCode(); ok {
			codes[i] = code
		}
	}

	// Best-effort audit logging — don't fail the run if audit fails.
	_ = logger.Log(pipelineStr, programs, pids, codes, errMsg, duration, cwd)
}
