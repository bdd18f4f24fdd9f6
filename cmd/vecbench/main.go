package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fxnlabs/vecbench/internal/config"
	"github.com/fxnlabs/vecbench/internal/logger"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

const defaultConfigPath = "vecbench.yaml"

func main() {
	app := newApp(os.Stdout)
	if err := app.Run(os.Args); err != nil {
		if rootLogger, ok := app.Metadata["logger"].(*zap.Logger); ok {
			rootLogger.Fatal("failed to run app", zap.Error(err))
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
}

func newApp(stdout io.Writer) *cli.App {
	var configPath, verbosity, metricsFile string
	var elements int

	return &cli.App{
		Name:   "vecbench",
		Usage:  "Check the GPU runtime and compare CPU and GPU vector addition",
		Writer: stdout,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Value:       defaultConfigPath,
				Usage:       "Path to the YAML config file; defaults apply when it does not exist",
				EnvVars:     []string{"VECBENCH_CONFIG"},
				Destination: &configPath,
			},
			&cli.StringFlag{
				Name:        "verbosity",
				Usage:       "Log level (debug, info, warn, error)",
				Destination: &verbosity,
			},
			&cli.IntFlag{
				Name:        "elements",
				Usage:       "Number of elements in each benchmark vector",
				Destination: &elements,
			},
			&cli.StringFlag{
				Name:        "metrics-file",
				Usage:       "Write Prometheus metrics to this textfile after the run",
				Destination: &metricsFile,
			},
		},
		Before: func(c *cli.Context) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			if c.IsSet("verbosity") {
				cfg.Logger.Verbosity = verbosity
			}
			if c.IsSet("elements") {
				cfg.Benchmark.NumElements = elements
			}
			if c.IsSet("metrics-file") {
				cfg.Metrics.TextfilePath = metricsFile
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			zapLogger, err := logger.New(cfg.Logger.Verbosity)
			if err != nil {
				return err
			}
			c.App.Metadata["config"] = cfg
			c.App.Metadata["logger"] = zapLogger.Named("cli")
			return nil
		},
		Action: func(c *cli.Context) error {
			return runBenchmark(c)
		},
		Commands: []*cli.Command{
			devicesCommand(),
			initCommand(),
		},
	}
}
