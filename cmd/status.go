package main

import (
	"context"
	"database/sql"
	"fmt"
	"slices"

	"github.com/desertthunder/malsync/internal/migrations"
	"github.com/desertthunder/malsync/internal/models"
	"github.com/desertthunder/malsync/internal/repositories"
	"github.com/desertthunder/malsync/internal/schema"
	"github.com/desertthunder/malsync/internal/shared"
	"github.com/urfave/cli/v3"
)

type statusReport struct {
	Path    string              `json:"path"`
	Version int64               `json:"version"`
	Current int64               `json:"current"`
	Pending bool                `json:"pending"`
	Tables  map[string]int64    `json:"tables,omitempty"`
	Dirty   map[models.Kind]int `json:"dirty,omitempty"`
}

// openRaw opens the cache file without upgrading it.
func (r *Runner) openRaw() (*sql.DB, *migrations.Engine, error) {
	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, nil, err
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)
	if err := shared.ApplyPragmas(db, r.config.Database.BusyTimeoutMS); err != nil {
		db.Close()
		return nil, nil, err
	}
	engine, err := migrations.NewEngine(db, r.logger)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, engine, nil
}

// Status reports the schema version of the cache file and, when it is
// current, its row and dirty counts. The file is not upgraded.
func (r *Runner) Status(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd); err != nil {
		return err
	}

	db, engine, err := r.openRaw()
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	defer db.Close()

	version, err := engine.Version(ctx)
	if err != nil {
		return err
	}
	report := statusReport{
		Path:    r.config.Database.Path,
		Version: version,
		Current: schema.CurrentVersion,
		Pending: version < schema.CurrentVersion,
	}

	if !report.Pending {
		store := repositories.NewStore(db, r.logger)
		if report.Tables, err = store.Counts(ctx); err != nil {
			return err
		}
		report.Dirty = make(map[models.Kind]int, 2)
		for _, kind := range models.Kinds() {
			dirty, err := store.Lists(kind).ListDirty(ctx)
			if err != nil {
				return err
			}
			report.Dirty[kind] = len(dirty)
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(report, true)
	}

	r.writePlainHeader("Cache Status")
	r.writePlain("File:    %s\n", report.Path)
	if report.Pending {
		r.writePlain("Version: %s\n", styles.Warn(fmt.Sprintf("%d of %d", report.Version, report.Current)))
		r.writePlainln("%s", styles.Help("Run 'malsync migrate' or 'malsync setup' to upgrade."))
		return nil
	}
	r.writePlain("Version: %s\n\n", styles.OK(fmt.Sprintf("%d (current)", report.Version)))

	names := make([]string, 0, len(report.Tables))
	for name := range report.Tables {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		r.writePlain("  %-8s %6d rows\n", name, report.Tables[name])
	}

	r.writePlain("\n")
	for _, kind := range models.Kinds() {
		n := report.Dirty[kind]
		label := styles.OK("all synced")
		if n > 0 {
			label = styles.Warn(fmt.Sprintf("%d unsynced", n))
		}
		r.writePlain("  %-8s %s\n", kind, label)
	}
	return nil
}

// Migrate upgrades the cache file from its stored version to --to.
func (r *Runner) Migrate(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd); err != nil {
		return err
	}
	to := int64(cmd.Int("to"))
	if to < 0 || to > schema.CurrentVersion {
		return fmt.Errorf("%w: --to must be between 0 and %d, got %d", shared.ErrInvalidVersion, schema.CurrentVersion, to)
	}

	db, engine, err := r.openRaw()
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	defer db.Close()

	from, err := engine.Version(ctx)
	if err != nil {
		return err
	}
	if from >= to {
		r.writePlain("%s Cache is at version %d, nothing to do\n", styles.OK("✓"), from)
		return nil
	}

	r.logger.Info("upgrading cache", "path", r.config.Database.Path, "from", from, "to", to)
	if err := engine.Upgrade(ctx, from, to); err != nil {
		r.writePlain("%s Upgrade failed: %v\n", styles.Err("✗"), err)
		return err
	}

	r.writePlain("%s Upgraded cache from version %d to %d\n", styles.OK("✓"), from, to)
	return nil
}
