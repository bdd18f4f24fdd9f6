package main

import (
	"fmt"
	"os"

	"github.com/fxnlabs/vecbench/fixtures"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func initCommand() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Write the default config file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "output",
				Value: defaultConfigPath,
				Usage: "Where to write the config",
			},
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Overwrite an existing file",
			},
		},
		Action: func(c *cli.Context) error {
			log := c.App.Metadata["logger"].(*zap.Logger)
			path := c.String("output")

			flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
			if c.Bool("force") {
				flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
			}
			f, err := os.OpenFile(path, flags, 0o644)
			if err != nil {
				return fmt.Errorf("failed to create config %s: %w", path, err)
			}
			if _, err := f.Write(fixtures.ConfigTemplate); err != nil {
				f.Close()
				return fmt.Errorf("failed to write config %s: %w", path, err)
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("failed to close config %s: %w", path, err)
			}
			log.Info("Config written", zap.String("path", path))
			return nil
		},
	}
}
