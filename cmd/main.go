package main

import (
	"context"
	"os"

	"github.com/desertthunder/malsync/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	config := shared.DefaultConfig()
	configPath := ""
	if _, err := os.Stat("config.toml"); err == nil {
		if loadedConfig, err := shared.LoadConfig("config.toml"); err == nil {
			config = loadedConfig
			configPath = "config.toml"
		} else {
			logger.Warn("failed to load config.toml, using defaults", "error", err)
		}
	}
	shared.SetLogLevel(logger, config.Log.ParsedLevel())

	runner := NewRunner(RunnerOpts{
		Config:     config,
		ConfigPath: configPath,
		Logger:     logger,
	})
	defer runner.Close()

	app := &cli.Command{
		Name:     "malsync",
		Usage:    "Offline cache for anime and manga lists",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		runner.Close()
		switch {
		case shared.IsMigrationFailure(err):
			logger.Fatal("cache could not be upgraded", "error", err)
		default:
			logger.Fatalf("application error: %v", err)
		}
	}
}

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create config.toml if needed, then create or upgrade the cache file",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Setup,
	}
}
