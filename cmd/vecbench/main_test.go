package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fxnlabs/vecbench/fixtures"
	"github.com/fxnlabs/vecbench/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/zap/zaptest"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vecbench.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestAppOptionsValidate(t *testing.T) {
	err := fx.ValidateApp(appOptions(config.Default(), zaptest.NewLogger(t), &bytes.Buffer{})...)
	require.NoError(t, err)
}

func TestMainFunction(t *testing.T) {
	path := writeConfig(t, "logger:\n  verbosity: error\ngpu:\n  emulatedDevices: 1\n  emulatedMemoryMB: 4\n")
	metricsPath := filepath.Join(t.TempDir(), "vecbench.prom")
	var out bytes.Buffer

	err := newApp(&out).Run([]string{"vecbench", "--config", path, "--elements", "2048", "--metrics-file", metricsPath})
	require.NoError(t, err)

	report := out.String()
	assert.Contains(t, report, "GPU runtime installed properly !!")
	assert.Contains(t, report, "Start comparing CPU and GPU ...")
	assert.Contains(t, report, "CPU function took")
	assert.Contains(t, report, "GPU function took")
	assert.True(t, strings.HasSuffix(report, "============== the end =====================\n\n"))

	data, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "vecbench_vector_add_elements 2048")
}

func TestMainFunction_InvalidFlags(t *testing.T) {
	var out bytes.Buffer
	err := newApp(&out).Run([]string{"vecbench", "--config", filepath.Join(t.TempDir(), "missing.yaml"), "--elements", "0"})
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
	assert.Empty(t, out.String())
}

func TestDevicesCommand(t *testing.T) {
	path := writeConfig(t, "logger:\n  verbosity: error\ngpu:\n  emulatedDevices: 2\n  emulatedMemoryMB: 4\n")
	var out bytes.Buffer

	err := newApp(&out).Run([]string{"vecbench", "--config", path, "devices"})
	require.NoError(t, err)

	assert.Contains(t, out.String(), "host: /device:CPU:0")
	assert.GreaterOrEqual(t, strings.Count(out.String(), "accelerator: /device:GPU:"), 2)
	assert.NotContains(t, out.String(), "function took")
}

func TestInitCommand(t *testing.T) {
	target := filepath.Join(t.TempDir(), "vecbench.yaml")
	missing := filepath.Join(t.TempDir(), "missing.yaml")

	err := newApp(&bytes.Buffer{}).Run([]string{"vecbench", "--config", missing, "--verbosity", "error", "init", "--output", target})
	require.NoError(t, err)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, fixtures.ConfigTemplate, data)

	t.Run("refuses to overwrite", func(t *testing.T) {
		err := newApp(&bytes.Buffer{}).Run([]string{"vecbench", "--config", missing, "--verbosity", "error", "init", "--output", target})
		assert.Error(t, err)
	})

	t.Run("force overwrites", func(t *testing.T) {
		require.NoError(t, os.WriteFile(target, []byte("stale"), 0o644))
		err := newApp(&bytes.Buffer{}).Run([]string{"vecbench", "--config", missing, "--verbosity", "error", "init", "--output", target, "--force"})
		require.NoError(t, err)
		data, err := os.ReadFile(target)
		require.NoError(t, err)
		assert.Equal(t, fixtures.ConfigTemplate, data)
	})

	t.Run("reports write errors", func(t *testing.T) {
		if _, err := os.Stat("/dev/full"); err != nil {
			t.Skip("/dev/full not available")
		}
		err := newApp(&bytes.Buffer{}).Run([]string{"vecbench", "--config", missing, "--verbosity", "error", "init", "--output", "/dev/full", "--force"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to write config /dev/full")
	})

	t.Run("written config loads", func(t *testing.T) {
		cfg, err := config.LoadConfig(target)
		require.NoError(t, err)
		assert.Equal(t, config.Default(), cfg)
	})
}
