// Package cache owns the lifecycle of the cache file: it opens the database
// once, runs pending schema steps before anything else can touch it, and hands
// out the shared record store.
package cache

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/malsync/internal/migrations"
	"github.com/desertthunder/malsync/internal/repositories"
	"github.com/desertthunder/malsync/internal/shared"
)

// Options configures how the cache file is opened.
type Options struct {
	Path          string
	MaxOpenConns  int
	MaxIdleConns  int
	BusyTimeoutMS int
	Logger        *log.Logger
}

// OptionsFromConfig maps the [database] config section onto Options.
func OptionsFromConfig(cfg *shared.Config, logger *log.Logger) Options {
	return Options{
		Path:          cfg.Database.Path,
		MaxOpenConns:  cfg.Database.MaxOpenConns,
		MaxIdleConns:  cfg.Database.MaxIdleConns,
		BusyTimeoutMS: cfg.Database.BusyTimeoutMS,
		Logger:        logger,
	}
}

// Lifecycle opens the cache exactly once, however many goroutines ask for it.
//
// The first Open runs the migration engine to completion before any caller
// gets a store back. If opening or migrating fails the error is kept and
// returned to every later caller; the store is never served half-migrated.
type Lifecycle struct {
	opts   Options
	logger *log.Logger

	once    sync.Once
	mu      sync.Mutex
	db      *sql.DB
	store   *repositories.Store
	err     error
	closed  bool
	fromVer int64
}

// New creates a Lifecycle. Nothing is opened until [Lifecycle.Open].
func New(opts Options) *Lifecycle {
	return &Lifecycle{
		opts:   opts,
		logger: shared.WithLogger(opts.Logger, "component", "cache"),
	}
}

// Open opens and migrates the cache on first use and returns the shared store.
// Concurrent callers block until the first Open finishes and then share its
// result. Only the first caller's context governs the migration.
func (l *Lifecycle) Open(ctx context.Context) (*repositories.Store, error) {
	l.once.Do(func() {
		l.mu.Lock()
		closed := l.closed
		l.mu.Unlock()
		if closed {
			l.err = shared.ErrStoreClosed
			return
		}
		l.err = l.open(ctx)
	})
	return l.Store()
}

// Store returns the shared store without opening it.
func (l *Lifecycle) Store() (*repositories.Store, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch {
	case l.closed:
		return nil, shared.ErrStoreClosed
	case l.err != nil:
		return nil, l.err
	case l.store == nil:
		return nil, fmt.Errorf("%w: cache has not been opened", shared.ErrStoreClosed)
	}
	return l.store, nil
}

// OpenedAt returns the schema version found on disk when the cache was opened.
func (l *Lifecycle) OpenedAt() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fromVer
}

func (l *Lifecycle) open(ctx context.Context) error {
	db, err := shared.NewDatabase(l.opts.Path)
	if err != nil {
		return err
	}
	shared.ConfigureDatabase(db, l.opts.MaxOpenConns, l.opts.MaxIdleConns)
	if err := shared.ApplyPragmas(db, l.opts.BusyTimeoutMS); err != nil {
		db.Close()
		return err
	}

	engine, err := migrations.NewEngine(db, l.opts.Logger)
	if err != nil {
		db.Close()
		return err
	}
	from, err := engine.UpgradeToCurrent(ctx)
	if err != nil {
		db.Close()
		l.logger.Error("cache unusable: schema upgrade failed", "path", l.opts.Path, "error", err)
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.db = db
	l.fromVer = from
	l.store = repositories.NewStore(db, l.opts.Logger)
	l.logger.Info("cache opened", "path", l.opts.Path, "from_version", from)
	return nil
}

// Close releases the database. The store must not be used afterwards and
// later Opens return [shared.ErrStoreClosed].
func (l *Lifecycle) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	l.store = nil
	if l.db == nil {
		return nil
	}
	err := l.db.Close()
	l.db = nil
	return err
}
