package runner

import (
	"context"

	"github.com/fxnlabs/vecbench/internal/config"
	"github.com/fxnlabs/vecbench/internal/gpu"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module provides the device manager and the runner. It expects a
// *config.Config, a *zap.Logger and an io.Writer for the report.
var Module = fx.Module("runner",
	fx.Provide(
		NewManager,
		New,
	),
)

// NewManager builds the device manager from config and releases its devices
// when the fx app stops.
func NewManager(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (*gpu.Manager, error) {
	manager, err := gpu.NewManager(log.Named("gpu"), ManagerOptions(cfg))
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return manager.Cleanup()
		},
	})
	return manager, nil
}

func ManagerOptions(cfg *config.Config) gpu.Options {
	return gpu.Options{
		EmulatedDevices:    cfg.GPU.EmulatedDevices,
		EmulatedMemory:     int64(cfg.GPU.EmulatedMemoryMB) << 20,
		BlockSize:          cfg.GPU.BlockSize,
		RequireAccelerator: cfg.GPU.RequireAccelerator,
		LogDevicePlacement: cfg.Probe.LogDevicePlacement,
	}
}
