package repositories

import (
	"context"
	"testing"

	"github.com/desertthunder/malsync/internal/models"
	"github.com/desertthunder/malsync/internal/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFriendRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("upsert by username", func(t *testing.T) {
		s := newTestStore(t)
		require.NoError(t, s.Friends.Upsert(ctx, &models.Friend{Username: "kana", AvatarURL: "a.png"}))
		f := &models.Friend{Username: "kana", AvatarURL: "b.png", LastOnline: "Now"}
		require.NoError(t, s.Friends.Upsert(ctx, f))
		assert.NotZero(t, f.ID)

		n, err := s.Friends.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		got, err := s.Friends.Get(ctx, "kana")
		require.NoError(t, err)
		assert.Equal(t, "b.png", got.AvatarURL)
		assert.Equal(t, "Now", got.LastOnline)
	})

	t.Run("validation", func(t *testing.T) {
		s := newTestStore(t)
		assert.ErrorIs(t, s.Friends.Upsert(ctx, &models.Friend{}), shared.ErrInvalidInput)
	})

	t.Run("get absent and delete", func(t *testing.T) {
		s := newTestStore(t)
		got, err := s.Friends.Get(ctx, "nobody")
		require.NoError(t, err)
		assert.Nil(t, got)
		assert.ErrorIs(t, s.Friends.Delete(ctx, "nobody"), shared.ErrNotFound)
	})

	t.Run("replace all prunes missing friends", func(t *testing.T) {
		s := newTestStore(t)
		for _, name := range []string{"a", "b", "c"} {
			require.NoError(t, s.Friends.Upsert(ctx, &models.Friend{Username: name}))
		}

		var upserted, pruned int
		err := s.InTx(ctx, func(ctx context.Context, tx *Store) error {
			var err error
			upserted, pruned, err = tx.Friends.ReplaceAll(ctx, []*models.Friend{
				{Username: "b", FriendSince: "2012"},
				{Username: "d"},
			})
			return err
		})
		require.NoError(t, err)
		assert.Equal(t, 2, upserted)
		assert.Equal(t, 2, pruned)

		list, err := s.Friends.List(ctx)
		require.NoError(t, err)
		var names []string
		for _, f := range list {
			names = append(names, f.Username)
		}
		assert.Equal(t, []string{"b", "d"}, names)
		assert.Equal(t, "2012", list[0].FriendSince)
	})
}

func TestProfileRepository(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	p := &models.Profile{
		Username: "kana", Gender: "Female", JoinDate: "2010-01-01", AccessRank: "Member",
		Comments: 12, AnimeListViews: 300,
		Anime: models.ListStats{TimeDays: 45.7, Watching: 3, Completed: 120, PlanTo: 40, TotalEntries: 170},
		Manga: models.ListStats{TimeDays: 2.5, Watching: 1, Completed: 4, TotalEntries: 5},
	}
	require.NoError(t, s.Profile.Upsert(ctx, p))
	assert.NotZero(t, p.ID)

	got, err := s.Profile.Get(ctx, "kana")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.InDelta(t, 45.7, got.Anime.TimeDays, 0.0001)
	assert.Equal(t, 120, got.Anime.Completed)
	assert.Equal(t, 1, got.Manga.Watching)
	assert.Equal(t, "Member", got.AccessRank)

	p.Anime.Completed = 121
	require.NoError(t, s.Profile.Upsert(ctx, p))
	list, err := s.Profile.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 121, list[0].Anime.Completed)

	missing, err := s.Profile.Get(ctx, "other")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, s.Profile.Delete(ctx, "kana"))
	n, err := s.Profile.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
