// Package migrations carries a cache file from its on-disk schema version to
// the catalog's current version.
//
// Each catalog step is registered with goose as a Go migration running in its
// own transaction, and goose's version table is the persisted version marker.
package migrations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/malsync/internal/schema"
	"github.com/desertthunder/malsync/internal/shared"
	"github.com/pressly/goose/v3"
)

// Engine applies catalog steps to one store.
type Engine struct {
	provider *goose.Provider
	logger   *log.Logger
}

// NewEngine builds an engine over db. It does not touch the database until
// [Engine.Version] or [Engine.Upgrade] is called.
func NewEngine(db *sql.DB, logger *log.Logger) (*Engine, error) {
	logger = shared.WithLogger(logger, "component", "migrations")

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, nil,
		goose.WithGoMigrations(gooseMigrations(logger)...),
		goose.WithDisableGlobalRegistry(true),
		goose.WithLogger(gooseLogger{logger}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration provider: %w", err)
	}
	return &Engine{provider: provider, logger: logger}, nil
}

func gooseMigrations(logger *log.Logger) []*goose.Migration {
	steps := schema.Steps()
	out := make([]*goose.Migration, 0, len(steps))
	for _, step := range steps {
		up := &goose.GoFunc{RunTx: func(ctx context.Context, tx *sql.Tx) error {
			logger.Info("applying schema step", "version", step.Version, "description", step.Description)
			return ApplyStep(ctx, tx, step, logger)
		}}
		down := &goose.GoFunc{RunTx: func(context.Context, *sql.Tx) error {
			return fmt.Errorf("%w: schema version %d cannot be downgraded", shared.ErrInvalidVersion, step.Version)
		}}
		out = append(out, goose.NewGoMigration(step.Version, up, down))
	}
	return out
}

// Version returns the persisted schema version. A new, empty file reports 0.
func (e *Engine) Version(ctx context.Context) (int64, error) {
	v, err := e.provider.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return v, nil
}

// Upgrade brings the store from version from to version to, running every
// step in between in increasing order. from == to is a no-op.
//
// The persisted marker decides what actually runs: steps the marker already
// covers are skipped, and a marker that disagrees with from is logged and
// trusted. Any failure is returned as a [*shared.MigrationError]; the step
// that failed is rolled back and the marker stays at the last completed step.
func (e *Engine) Upgrade(ctx context.Context, from, to int64) error {
	if from < 0 || from > to || to > schema.CurrentVersion {
		return fmt.Errorf("%w: cannot upgrade %d -> %d (current is %d)",
			shared.ErrInvalidVersion, from, to, schema.CurrentVersion)
	}
	if from == to {
		return nil
	}

	marker, err := e.Version(ctx)
	if err != nil {
		return &shared.MigrationError{From: from, To: to, Err: err}
	}
	if marker != from {
		e.logger.Warn("stored schema version differs from requested start", "stored", marker, "requested", from)
	}
	if marker > schema.CurrentVersion {
		return &shared.MigrationError{From: marker, To: to,
			Err: fmt.Errorf("%w: store was written by a newer schema (%d)", shared.ErrInvalidVersion, marker)}
	}
	if marker >= to {
		e.logger.Debug("store already at or beyond target", "stored", marker, "target", to)
		return nil
	}

	results, err := e.provider.UpTo(ctx, to)
	if err != nil && !errors.Is(err, goose.ErrNoNextVersion) {
		me := &shared.MigrationError{From: marker, To: to, Err: err}
		var partial *goose.PartialError
		if errors.As(err, &partial) && partial.Failed != nil && partial.Failed.Source != nil {
			me.Version = partial.Failed.Source.Version
			me.Err = partial.Err
		}
		e.logger.Error("schema upgrade failed", "from", marker, "to", to, "step", me.Version, "error", me.Err)
		return me
	}

	for _, r := range results {
		e.logger.Info("schema step applied", "version", r.Source.Version, "duration", r.Duration)
	}
	return nil
}

// UpgradeToCurrent reads the marker and upgrades to [schema.CurrentVersion].
// It returns the version the store was at before the call.
func (e *Engine) UpgradeToCurrent(ctx context.Context) (int64, error) {
	from, err := e.Version(ctx)
	if err != nil {
		return 0, &shared.MigrationError{To: schema.CurrentVersion, Err: err}
	}
	if from > schema.CurrentVersion {
		return from, &shared.MigrationError{From: from, To: schema.CurrentVersion,
			Err: fmt.Errorf("%w: store was written by a newer schema (%d)", shared.ErrInvalidVersion, from)}
	}
	return from, e.Upgrade(ctx, from, schema.CurrentVersion)
}

// Pending reports whether the store is below the current version.
func (e *Engine) Pending(ctx context.Context) (bool, error) {
	v, err := e.Version(ctx)
	if err != nil {
		return false, err
	}
	return v < schema.CurrentVersion, nil
}
