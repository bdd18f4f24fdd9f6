package main

import (
	"context"
	"fmt"
	"io"

	"github.com/fxnlabs/vecbench/internal/config"
	"github.com/fxnlabs/vecbench/internal/gpu"
	"github.com/fxnlabs/vecbench/internal/runner"
	"github.com/urfave/cli/v2"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// appOptions wires config, logger, device manager and runner. The manager's
// devices are released when the fx app stops.
func appOptions(cfg *config.Config, log *zap.Logger, out io.Writer) []fx.Option {
	return []fx.Option{
		fx.Supply(cfg, log),
		fx.Provide(func() io.Writer { return out }),
		runner.Module,
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
	}
}

// withApp builds the fx app, populates targets, runs fn between Start and Stop
// and returns the combined error.
func withApp(ctx context.Context, opts []fx.Option, fn func() error, targets ...interface{}) (err error) {
	app := fx.New(append(opts, fx.Populate(targets...))...)
	if err := app.Err(); err != nil {
		return err
	}
	if err := app.Start(ctx); err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, app.Stop(context.Background()))
	}()
	return fn()
}

func runBenchmark(c *cli.Context) error {
	cfg := c.App.Metadata["config"].(*config.Config)
	log := c.App.Metadata["logger"].(*zap.Logger)

	var r *runner.Runner
	return withApp(c.Context, appOptions(cfg, log, c.App.Writer), func() error {
		return r.Run(c.Context)
	}, &r)
}

func devicesCommand() *cli.Command {
	return &cli.Command{
		Name:  "devices",
		Usage: "List the devices the probe would use",
		Action: func(c *cli.Context) error {
			cfg := c.App.Metadata["config"].(*config.Config)
			log := c.App.Metadata["logger"].(*zap.Logger)

			var manager *gpu.Manager
			return withApp(c.Context, appOptions(cfg, log, c.App.Writer), func() error {
				fmt.Fprintf(c.App.Writer, "host: %s\n", manager.CPU().GetDeviceInfo())
				for _, d := range manager.Devices() {
					fmt.Fprintf(c.App.Writer, "accelerator: %s\n", d)
				}
				fmt.Fprintf(c.App.Writer, "default backend: %s\n", manager.GetBackendType())
				return nil
			}, &manager)
		},
	}
}
