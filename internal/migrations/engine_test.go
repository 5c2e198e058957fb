package migrations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/desertthunder/malsync/internal/dbx"
	"github.com/desertthunder/malsync/internal/schema"
	"github.com/desertthunder/malsync/internal/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T) (*Engine, *sql.DB) {
	t.Helper()
	db, err := shared.NewDatabase(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	shared.ConfigureDatabase(db, 1, 1)
	t.Cleanup(func() { _ = db.Close() })

	engine, err := NewEngine(db, shared.DiscardLogger())
	require.NoError(t, err)
	return engine, db
}

// seedAnimeV1 inserts rows using only the columns the first schema had.
func seedAnimeV1(t *testing.T, db *sql.DB, ids ...int) {
	t.Helper()
	for _, id := range ids {
		_, err := db.Exec(`INSERT INTO anime (recordID, recordName, recordType, myStatus, memberScore, myScore, episodesWatched, episodesTotal)
			VALUES (?, ?, 'TV', 'watching', '7.8', 6, 3, 12)`, id, fmt.Sprintf("show %d", id))
		require.NoError(t, err)
	}
}

func dumpRows(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()
	rows, err := db.Query(fmt.Sprintf("SELECT * FROM %s ORDER BY _id", table))
	require.NoError(t, err)
	defer rows.Close()

	cols, err := rows.Columns()
	require.NoError(t, err)

	var out []string
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		require.NoError(t, rows.Scan(ptrs...))
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		out = append(out, fmt.Sprint(vals...))
	}
	require.NoError(t, rows.Err())
	return out
}

func assertCurrentShapes(t *testing.T, db *sql.DB) {
	t.Helper()
	for _, want := range schema.Tables() {
		got, ok, err := Inspect(context.Background(), db, want.Name)
		require.NoError(t, err)
		require.True(t, ok, "table %s missing", want.Name)
		assert.Equal(t, want, got, "table %s", want.Name)
	}
}

func TestEngine_Version(t *testing.T) {
	engine, _ := newEngine(t)
	ctx := context.Background()

	v, err := engine.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)

	pending, err := engine.Pending(ctx)
	require.NoError(t, err)
	assert.True(t, pending)

	require.NoError(t, engine.Upgrade(ctx, 0, 3))
	v, err = engine.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)
}

func TestEngine_Upgrade(t *testing.T) {
	ctx := context.Background()

	t.Run("fresh store reaches current shapes", func(t *testing.T) {
		engine, db := newEngine(t)
		require.NoError(t, engine.Upgrade(ctx, 0, schema.CurrentVersion))
		assertCurrentShapes(t, db)

		pending, err := engine.Pending(ctx)
		require.NoError(t, err)
		assert.False(t, pending)
	})

	t.Run("equal versions are a no-op", func(t *testing.T) {
		engine, _ := newEngine(t)
		require.NoError(t, engine.Upgrade(ctx, 4, 4))

		v, err := engine.Version(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(0), v)
	})

	t.Run("invalid ranges", func(t *testing.T) {
		engine, _ := newEngine(t)
		tests := []struct {
			name     string
			from, to int64
		}{
			{"downgrade", 5, 3},
			{"beyond current", 0, schema.CurrentVersion + 1},
			{"negative", -1, 2},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				err := engine.Upgrade(ctx, tt.from, tt.to)
				assert.ErrorIs(t, err, shared.ErrInvalidVersion)
			})
		}
	})

	t.Run("marker wins over a stale start version", func(t *testing.T) {
		engine, db := newEngine(t)
		require.NoError(t, engine.Upgrade(ctx, 0, 1))
		seedAnimeV1(t, db, 1, 2)
		require.NoError(t, engine.Upgrade(ctx, 1, schema.CurrentVersion))
		before := dumpRows(t, db, schema.TableAnime)

		require.NoError(t, engine.Upgrade(ctx, 1, schema.CurrentVersion))
		assert.Equal(t, before, dumpRows(t, db, schema.TableAnime))
		assertCurrentShapes(t, db)
	})

	t.Run("upgrade to current from the stored marker", func(t *testing.T) {
		engine, db := newEngine(t)
		require.NoError(t, engine.Upgrade(ctx, 0, 2))

		from, err := engine.UpgradeToCurrent(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), from)
		assertCurrentShapes(t, db)
	})
}

func TestEngine_DirectMatchesStepwise(t *testing.T) {
	ctx := context.Background()

	direct, directDB := newEngine(t)
	stepwise, stepwiseDB := newEngine(t)

	for _, e := range []*Engine{direct, stepwise} {
		require.NoError(t, e.Upgrade(ctx, 0, 1))
	}
	seedAnimeV1(t, directDB, 10, 20, 30)
	seedAnimeV1(t, stepwiseDB, 10, 20, 30)

	require.NoError(t, direct.Upgrade(ctx, 1, schema.CurrentVersion))
	for v := int64(1); v < schema.CurrentVersion; v++ {
		require.NoError(t, stepwise.Upgrade(ctx, v, v+1))
	}

	for _, name := range schema.TableNames() {
		a, _, err := Inspect(ctx, directDB, name)
		require.NoError(t, err)
		b, _, err := Inspect(ctx, stepwiseDB, name)
		require.NoError(t, err)
		assert.Equal(t, a, b, "shape of %s", name)
		assert.Equal(t, dumpRows(t, directDB, name), dumpRows(t, stepwiseDB, name), "rows of %s", name)
	}
}

func TestEngine_RebuildPreservesRows(t *testing.T) {
	ctx := context.Background()
	engine, db := newEngine(t)
	require.NoError(t, engine.Upgrade(ctx, 0, 4))

	seedAnimeV1(t, db, 1, 2, 3, 4)
	for i := 1; i <= 5; i++ {
		_, err := db.Exec(`INSERT INTO manga (recordID, recordName, memberScore, chaptersRead, volumesRead, dirty)
			VALUES (?, 'vol', '8.25', 40, 4, 1)`, i)
		require.NoError(t, err)
	}

	require.NoError(t, engine.Upgrade(ctx, 4, 5))

	n, err := CountRows(ctx, db, schema.TableAnime)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	n, err = CountRows(ctx, db, schema.TableManga)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	var kind string
	var score float64
	require.NoError(t, db.QueryRow(`SELECT typeof(memberScore), memberScore FROM manga WHERE recordID = 1`).Scan(&kind, &score))
	assert.Equal(t, "real", kind)
	assert.InDelta(t, 8.25, score, 0.0001)

	var dirty bool
	require.NoError(t, db.QueryRow(`SELECT dirty FROM manga WHERE recordID = 3`).Scan(&dirty))
	assert.True(t, dirty, "dirty flag carried through rebuild")

	holding, err := TableExists(ctx, db, "temp_anime")
	require.NoError(t, err)
	assert.False(t, holding, "holding table discarded")
}

func TestEngine_DefaultBackfill(t *testing.T) {
	ctx := context.Background()
	engine, db := newEngine(t)
	require.NoError(t, engine.Upgrade(ctx, 0, 1))
	seedAnimeV1(t, db, 7, 8, 9)

	require.NoError(t, engine.Upgrade(ctx, 1, schema.CurrentVersion))

	rows, err := db.Query(`SELECT recordID, lastUpdate, dirty FROM anime ORDER BY _id`)
	require.NoError(t, err)
	defer rows.Close()

	var seen []int64
	for rows.Next() {
		var id, lastUpdate int64
		var dirty bool
		require.NoError(t, rows.Scan(&id, &lastUpdate, &dirty))
		seen = append(seen, id)
		assert.Equal(t, schema.HistoricalEpoch, lastUpdate)
		assert.Less(t, lastUpdate, time.Now().Unix())
		assert.False(t, dirty)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []int64{7, 8, 9}, seen)
}

func TestEngine_DuplicateKeysFailRebuild(t *testing.T) {
	ctx := context.Background()
	engine, db := newEngine(t)
	require.NoError(t, engine.Upgrade(ctx, 0, 6))

	seedAnimeV1(t, db, 42, 42)
	_, err := db.Exec(`INSERT INTO friends (username) VALUES ('kana')`)
	require.NoError(t, err)

	err = engine.Upgrade(ctx, 6, 7)
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrMigrationFailed)
	assert.True(t, shared.IsMigrationFailure(err))

	var me *shared.MigrationError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, int64(7), me.Version)

	v, err := engine.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(6), v, "marker stays at last completed step")

	n, err := CountRows(ctx, db, schema.TableAnime)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n, "rows are never dropped")

	friends, ok, err := Inspect(ctx, db, schema.TableFriends)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, friends.NaturalKey(), "earlier rebuilds in the failed step roll back")
}

func TestEngine_UnexpectedExistingTable(t *testing.T) {
	ctx := context.Background()
	engine, db := newEngine(t)
	_, err := db.Exec(`CREATE TABLE anime (something INTEGER)`)
	require.NoError(t, err)

	err = engine.Upgrade(ctx, 0, 1)
	require.Error(t, err)

	var me *shared.MigrationError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, int64(1), me.Version)
	assert.Contains(t, err.Error(), "without column")
}

func TestApplyStep_ReapplyIsSafe(t *testing.T) {
	ctx := context.Background()
	engine, db := newEngine(t)
	require.NoError(t, engine.Upgrade(ctx, 0, 1))
	seedAnimeV1(t, db, 1, 2, 3)
	require.NoError(t, engine.Upgrade(ctx, 1, schema.CurrentVersion))

	_, err := db.Exec(`INSERT INTO profile (username, anime_time_days) VALUES ('kana', 12.5)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO friends (username, avatar_url) VALUES ('mika', 'a.png')`)
	require.NoError(t, err)

	before := map[string][]string{}
	for _, name := range schema.TableNames() {
		before[name] = dumpRows(t, db, name)
	}

	for _, step := range schema.Steps() {
		err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx *sql.Tx) error {
			return ApplyStep(ctx, tx, step, shared.DiscardLogger())
		})
		require.NoError(t, err, "re-applying step %d", step.Version)
	}

	assertCurrentShapes(t, db)
	for _, name := range schema.TableNames() {
		assert.Equal(t, before[name], dumpRows(t, db, name), "rows of %s", name)
	}
}

func TestApplyStep_ReapplySingleStep(t *testing.T) {
	ctx := context.Background()
	for _, step := range schema.Steps() {
		t.Run(fmt.Sprintf("step %d", step.Version), func(t *testing.T) {
			engine, db := newEngine(t)
			require.NoError(t, engine.Upgrade(ctx, 0, 1))
			seedAnimeV1(t, db, 1, 2)
			require.NoError(t, engine.Upgrade(ctx, 1, schema.CurrentVersion))
			before := dumpRows(t, db, schema.TableAnime)

			err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx *sql.Tx) error {
				return ApplyStep(ctx, tx, step, shared.DiscardLogger())
			})
			require.NoError(t, err)

			assertCurrentShapes(t, db)
			assert.Equal(t, before, dumpRows(t, db, schema.TableAnime))

			_, err = db.Exec(`INSERT INTO anime (recordID, recordName, recordType, myStatus, memberScore, myScore, episodesWatched, episodesTotal)
				VALUES (1, 'again', 'TV', 'watching', 7.8, 6, 3, 12)`)
			assert.ErrorContains(t, err, "UNIQUE", "recordID stays unique")
		})
	}
}

func TestInspect(t *testing.T) {
	ctx := context.Background()
	engine, db := newEngine(t)

	_, ok, err := Inspect(ctx, db, schema.TableProfile)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, engine.Upgrade(ctx, 0, 6))
	profile, ok, err := Inspect(ctx, db, schema.TableProfile)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, profile.Has("anime_time_days_d"))

	shapes, err := schema.ShapeAt(6)
	require.NoError(t, err)
	assert.Equal(t, shapes[schema.TableProfile], profile)
}
