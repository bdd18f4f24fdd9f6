package logger

import (
	"go.uber.org/zap"
)

// New builds a production zap logger at the given level. Logs always go to
// stderr; stdout carries the diagnostic report.
func New(verbosity string) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	level, err := zap.ParseAtomicLevel(verbosity)
	if err != nil {
		return nil, err
	}
	config.Level = level
	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}
	config.Sampling = nil
	return config.Build()
}
