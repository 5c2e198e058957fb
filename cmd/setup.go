package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/malsync/internal/schema"
	"github.com/desertthunder/malsync/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup creates config.toml from the template when it is missing, then opens
// the cache, which creates the file or upgrades it to the current schema.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	var config *shared.Config
	if _, err := os.Stat(configPath); err == nil {
		if config, err = shared.LoadConfig(configPath); err != nil {
			r.logger.Warn("failed to load config, using defaults", "error", err)
			config = shared.DefaultConfig()
		}
	} else {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
			config = shared.DefaultConfig()
		} else {
			r.logger.Info("config file created", "path", configPath)
			if config, err = shared.LoadConfig(configPath); err != nil {
				r.logger.Warn("failed to load created config, using defaults", "error", err)
				config = shared.DefaultConfig()
			}
		}
	}
	r.config = config
	r.configPath = configPath

	r.logger.Info("opening cache", "path", config.Database.Path)
	if _, err := r.store(ctx); err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}

	from := r.lifecycle.OpenedAt()
	r.logger.Infof("setup complete for cache: %v", config.Database.Path)

	if from == schema.CurrentVersion {
		r.writePlain("%s Cache already at version %d\n", styles.OK("✓"), schema.CurrentVersion)
	} else {
		r.writePlain("%s Cache upgraded from version %d to %d\n", styles.OK("✓"), from, schema.CurrentVersion)
	}
	r.writePlain("Cache file: %s\n", config.Database.Path)
	if config.Remote.Username == "" {
		r.writePlainln("Next steps:")
		r.writePlain("1. Set remote.username and remote.password (or remote.access_token) in %s\n", configPath)
		r.writePlain("2. Run 'malsync sync' to pull your lists\n")
	}
	return nil
}
