// Package runner sequences a full vecbench run: environment probe, vector-add
// benchmark and report.
package runner

import (
	"context"
	"fmt"
	"io"

	"github.com/common-nighthawk/go-figure"
	"github.com/fxnlabs/vecbench/internal/bench"
	"github.com/fxnlabs/vecbench/internal/config"
	"github.com/fxnlabs/vecbench/internal/gpu"
	"github.com/fxnlabs/vecbench/internal/metrics"
	"github.com/fxnlabs/vecbench/internal/probe"
	"go.uber.org/zap"
)

const (
	StartMessage = "Start comparing CPU and GPU ..."
	EndMessage   = "============== the end ====================="
)

type Runner struct {
	cfg     *config.Config
	manager *gpu.Manager
	log     *zap.Logger
	out     io.Writer
}

func New(cfg *config.Config, manager *gpu.Manager, log *zap.Logger, out io.Writer) *Runner {
	return &Runner{
		cfg:     cfg,
		manager: manager,
		log:     log.Named("runner"),
		out:     out,
	}
}

// Run executes probe, benchmark and report in order. A failed stage stops the
// run; timing lines are written only once both benchmark paths completed.
func (r *Runner) Run(ctx context.Context) error {
	if r.cfg.Report.Banner {
		fmt.Fprintln(r.out, figure.NewFigure("vecbench", "", true).String())
	}

	err := probe.Run(r.out, r.manager, probe.Config{MemoryGrowth: r.cfg.Probe.MemoryGrowth}, r.log.Named("probe"))
	if err != nil {
		return fmt.Errorf("environment probe failed: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	fmt.Fprint(r.out, StartMessage+"\n\n")
	harness := bench.NewHarness(bench.Config{
		NumElements:   r.cfg.Benchmark.NumElements,
		FillValue:     r.cfg.Benchmark.FillValue,
		VerifyOutputs: r.cfg.Benchmark.VerifyOutputs,
	}, r.manager, r.log.Named("bench"))

	timing, err := harness.Run()
	if err != nil {
		return fmt.Errorf("vector add benchmark failed: %w", err)
	}
	if err := bench.Report(r.out, timing); err != nil {
		return err
	}
	fmt.Fprint(r.out, EndMessage+"\n\n")

	if path := r.cfg.Metrics.TextfilePath; path != "" {
		if err := metrics.WriteTextfile(path); err != nil {
			return fmt.Errorf("failed to write metrics textfile %s: %w", path, err)
		}
		r.log.Info("Metrics written", zap.String("path", path))
	}
	return nil
}
