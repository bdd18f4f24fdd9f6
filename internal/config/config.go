package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultNumElements is large enough that the serial loop takes a measurable
// amount of time on any host.
const DefaultNumElements = 10000000

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Logger struct {
		Verbosity string `yaml:"verbosity"`
	} `yaml:"logger"`
	Benchmark struct {
		NumElements   int     `yaml:"numElements"`
		FillValue     float32 `yaml:"fillValue"`
		VerifyOutputs bool    `yaml:"verifyOutputs"`
	} `yaml:"benchmark"`
	GPU struct {
		EmulatedDevices    int  `yaml:"emulatedDevices"`
		EmulatedMemoryMB   int  `yaml:"emulatedMemoryMB"`
		BlockSize          int  `yaml:"blockSize"`
		RequireAccelerator bool `yaml:"requireAccelerator"`
	} `yaml:"gpu"`
	Probe struct {
		MemoryGrowth       bool `yaml:"memoryGrowth"`
		LogDevicePlacement bool `yaml:"logDevicePlacement"`
	} `yaml:"probe"`
	Metrics struct {
		TextfilePath string `yaml:"textfilePath"`
	} `yaml:"metrics"`
	Report struct {
		Banner bool `yaml:"banner"`
	} `yaml:"report"`
}

// Default returns the configuration used when no config file is present.
func Default() *Config {
	var cfg Config
	cfg.Logger.Verbosity = "info"
	cfg.Benchmark.NumElements = DefaultNumElements
	cfg.Benchmark.FillValue = 1.0
	cfg.Benchmark.VerifyOutputs = true
	cfg.GPU.EmulatedMemoryMB = 1024
	cfg.GPU.BlockSize = 256
	cfg.Probe.MemoryGrowth = true
	cfg.Probe.LogDevicePlacement = true
	return &cfg
}

// LoadConfig reads the YAML file at path on top of Default. A missing file is
// not an error: the tool must run as a bare executable.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}

	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Benchmark.NumElements < 1 {
		return fmt.Errorf("%w: benchmark.numElements must be positive, got %d", ErrInvalidConfig, c.Benchmark.NumElements)
	}
	if c.GPU.BlockSize < 1 {
		return fmt.Errorf("%w: gpu.blockSize must be positive, got %d", ErrInvalidConfig, c.GPU.BlockSize)
	}
	if c.GPU.EmulatedDevices < 0 {
		return fmt.Errorf("%w: gpu.emulatedDevices must not be negative, got %d", ErrInvalidConfig, c.GPU.EmulatedDevices)
	}
	if c.GPU.EmulatedDevices > 0 && c.GPU.EmulatedMemoryMB < 1 {
		return fmt.Errorf("%w: gpu.emulatedMemoryMB must be positive when emulated devices are enabled", ErrInvalidConfig)
	}
	return nil
}
