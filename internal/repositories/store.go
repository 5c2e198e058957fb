package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/malsync/internal/dbx"
	"github.com/desertthunder/malsync/internal/models"
	"github.com/desertthunder/malsync/internal/schema"
	"github.com/desertthunder/malsync/internal/shared"
)

// Store groups the repositories of one cache file. A Store returned by
// [Store.InTx] is bound to that transaction; every other Store runs each call
// in its own implicit transaction.
type Store struct {
	Anime   *ListEntryRepository
	Manga   *ListEntryRepository
	Friends *FriendRepository
	Profile *ProfileRepository

	db     *sql.DB
	inTx   bool
	now    func() time.Time
	logger *log.Logger
}

// NewStore creates a Store over an already-migrated database.
func NewStore(db *sql.DB, logger *log.Logger) *Store {
	logger = shared.WithLogger(logger, "component", "store")
	s := bind(db, logger)
	s.db = db
	return s
}

func bind(q dbx.DBTX, logger *log.Logger) *Store {
	return &Store{
		Anime:   NewListEntryRepository(q, models.KindAnime, logger),
		Manga:   NewListEntryRepository(q, models.KindManga, logger),
		Friends: NewFriendRepository(q),
		Profile: NewProfileRepository(q),
		now:     time.Now,
		logger:  logger,
	}
}

// WithClock replaces the clock used for lastUpdate stamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Now returns the store clock's current unix time.
func (s *Store) Now() int64 {
	return s.now().Unix()
}

// DB returns the underlying handle, or nil for a transaction-bound Store.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Lists returns the repository for a list kind.
func (s *Store) Lists(kind models.Kind) *ListEntryRepository {
	if kind == models.KindManga {
		return s.Manga
	}
	return s.Anime
}

// InTx runs fn with a Store whose repositories share one transaction. The
// transaction commits when fn returns nil and rolls back otherwise. Calling
// InTx on a Store that is already transaction-bound just runs fn.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx *Store) error) error {
	if s.inTx {
		return fn(ctx, s)
	}
	if s.db == nil {
		return shared.ErrStoreClosed
	}
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		bound := bind(tx, s.logger)
		bound.inTx = true
		bound.now = s.now
		return fn(ctx, bound)
	})
}

// Edit applies a user change to an existing list entry and marks it dirty at
// the current time, all in one transaction. fn must only touch user fields;
// server-owned fields are restored from the stored row afterwards.
func (s *Store) Edit(ctx context.Context, kind models.Kind, recordID int64, fn func(e *models.ListEntry) error) (*models.ListEntry, error) {
	var edited *models.ListEntry
	err := s.InTx(ctx, func(ctx context.Context, tx *Store) error {
		repo := tx.Lists(kind)
		stored, err := repo.Get(ctx, recordID)
		if err != nil {
			return err
		}
		if stored == nil {
			return fmt.Errorf("%w: %s entry %d", shared.ErrNotFound, kind, recordID)
		}

		e := stored.Clone()
		if err := fn(e); err != nil {
			return err
		}
		e.ID = stored.ID
		e.RecordID = stored.RecordID
		e.Kind = stored.Kind
		e.MergeServerFields(stored)
		e.Dirty = true
		e.LastUpdate = tx.Now()

		if err := repo.Upsert(ctx, e); err != nil {
			return err
		}
		edited = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("edited entry", "kind", kind, "record_id", recordID)
	return edited, nil
}

// Add stores an entry the user created locally. It starts dirty, so the next
// pass pushes it as an addition.
func (s *Store) Add(ctx context.Context, e *models.ListEntry) error {
	e.Dirty = true
	e.LastUpdate = s.Now()
	return s.Lists(e.Kind).Insert(ctx, e)
}

// Counts returns the row count of every table, keyed by table name.
func (s *Store) Counts(ctx context.Context) (map[string]int64, error) {
	out := make(map[string]int64, 4)
	counters := map[string]func(context.Context) (int64, error){
		schema.TableAnime:   s.Anime.Count,
		schema.TableManga:   s.Manga.Count,
		schema.TableFriends: s.Friends.Count,
		schema.TableProfile: s.Profile.Count,
	}
	for name, fn := range counters {
		n, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		out[name] = n
	}
	return out, nil
}
