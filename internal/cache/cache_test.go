package cache

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/desertthunder/malsync/internal/migrations"
	"github.com/desertthunder/malsync/internal/models"
	"github.com/desertthunder/malsync/internal/repositories"
	"github.com/desertthunder/malsync/internal/schema"
	"github.com/desertthunder/malsync/internal/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLifecycle(t *testing.T, path string) *Lifecycle {
	t.Helper()
	l := New(Options{Path: path, Logger: shared.DiscardLogger()})
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestLifecycle_OpenOnce(t *testing.T) {
	l := newLifecycle(t, filepath.Join(t.TempDir(), "cache.db"))

	const callers = 16
	stores := make([]*repositories.Store, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			stores[i], errs[i] = l.Open(context.Background())
		}(i)
	}
	wg.Wait()

	for i := range callers {
		require.NoError(t, errs[i])
		assert.Same(t, stores[0], stores[i])
	}

	ctx := context.Background()
	require.NoError(t, stores[0].Anime.Upsert(ctx, &models.ListEntry{RecordID: 1, Kind: models.KindAnime}))
	assert.Equal(t, int64(0), l.OpenedAt())
}

func TestLifecycle_UpgradesExistingFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")

	db, err := shared.NewDatabase(path)
	require.NoError(t, err)
	engine, err := migrations.NewEngine(db, shared.DiscardLogger())
	require.NoError(t, err)
	require.NoError(t, engine.Upgrade(ctx, 0, 3))
	_, err = db.Exec(`INSERT INTO anime (recordID, recordName, memberScore) VALUES (1, 'legacy', '6.5')`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	l := newLifecycle(t, path)
	store, err := l.Open(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), l.OpenedAt())

	got, err := store.Anime.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "legacy", got.Title)
	assert.Equal(t, schema.HistoricalEpoch, got.LastUpdate)
	assert.InDelta(t, 6.5, got.MemberScore, 0.0001)
}

func TestLifecycle_MigrationFailureIsSticky(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")

	db, err := shared.NewDatabase(path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE anime (unrelated TEXT)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	l := newLifecycle(t, path)
	_, err = l.Open(ctx)
	require.Error(t, err)
	assert.True(t, shared.IsMigrationFailure(err))

	_, again := l.Open(ctx)
	assert.Equal(t, err, again, "later callers see the same failure")

	_, err = l.Store()
	assert.ErrorIs(t, err, shared.ErrMigrationFailed)
}

func TestLifecycle_Close(t *testing.T) {
	ctx := context.Background()
	l := newLifecycle(t, filepath.Join(t.TempDir(), "cache.db"))

	_, err := l.Store()
	assert.ErrorIs(t, err, shared.ErrStoreClosed, "not opened yet")

	_, err = l.Open(ctx)
	require.NoError(t, err)
	require.NoError(t, l.Close())
	require.NoError(t, l.Close(), "closing twice is fine")

	_, err = l.Open(ctx)
	assert.True(t, errors.Is(err, shared.ErrStoreClosed))
	_, err = l.Store()
	assert.ErrorIs(t, err, shared.ErrStoreClosed)
}

func TestLifecycle_CloseBeforeOpen(t *testing.T) {
	l := newLifecycle(t, filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, l.Close())
	_, err := l.Open(context.Background())
	assert.ErrorIs(t, err, shared.ErrStoreClosed)
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := shared.DefaultConfig()
	cfg.Database.Path = "/tmp/x.db"
	opts := OptionsFromConfig(cfg, nil)
	assert.Equal(t, "/tmp/x.db", opts.Path)
	assert.Equal(t, cfg.Database.BusyTimeoutMS, opts.BusyTimeoutMS)
}
