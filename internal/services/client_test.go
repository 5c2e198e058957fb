package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/desertthunder/malsync/internal/models"
	"github.com/desertthunder/malsync/internal/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, mutate ...func(*shared.RemoteConfig)) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := shared.RemoteConfig{BaseURL: server.URL, Username: "kana", Password: "secret", TimeoutSeconds: 5}
	for _, m := range mutate {
		m(&cfg)
	}
	c, err := NewClient(cfg, nil, shared.DiscardLogger())
	require.NoError(t, err)
	return c
}

func TestNewClient(t *testing.T) {
	t.Run("requires username", func(t *testing.T) {
		_, err := NewClient(shared.RemoteConfig{Password: "x"}, nil, nil)
		assert.ErrorIs(t, err, shared.ErrMissingConfig)
	})

	t.Run("requires a credential", func(t *testing.T) {
		_, err := NewClient(shared.RemoteConfig{Username: "kana"}, nil, nil)
		assert.ErrorIs(t, err, shared.ErrMissingConfig)
	})

	t.Run("defaults", func(t *testing.T) {
		c, err := NewClient(shared.RemoteConfig{Username: "kana", Password: "x", BaseURL: "http://example.com/"}, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, "http://example.com", c.baseURL)
		assert.False(t, c.bearer)

		c, err = NewClient(shared.RemoteConfig{Username: "kana", Password: "x"}, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, defaultBaseURL, c.baseURL)
		assert.Equal(t, "MyAnimeList", c.Name())
	})
}

func TestClient_PullList(t *testing.T) {
	t.Run("anime", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "/animelist/kana", r.URL.Path)
			user, pass, ok := r.BasicAuth()
			assert.True(t, ok)
			assert.Equal(t, "kana", user)
			assert.Equal(t, "secret", pass)

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"anime":[
				{"id":1,"title":"Mushishi","type":"TV","status":"finished airing","watched_status":"completed",
				 "members_score":8.7,"score":9,"watched_episodes":26,"episodes":26},
				{"id":2,"title":"Old","members_score":"7.25","score":0}
			]}`))
		})

		entries, err := c.PullList(context.Background(), models.KindAnime)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, int64(1), entries[0].RecordID)
		assert.Equal(t, models.KindAnime, entries[0].Kind)
		assert.Equal(t, "completed", entries[0].MyStatus)
		assert.Equal(t, 26, entries[0].EpisodesWatched)
		assert.InDelta(t, 8.7, entries[0].MemberScore, 0.0001)
		assert.InDelta(t, 7.25, entries[1].MemberScore, 0.0001)
	})

	t.Run("manga", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/mangalist/kana", r.URL.Path)
			_ = json.NewEncoder(w).Encode(map[string]any{"manga": []map[string]any{
				{"id": 5, "title": "Berserk", "read_status": "reading", "chapters_read": 100, "chapters": 0, "volumes_read": 10, "volumes": 0},
			}})
		})

		entries, err := c.PullList(context.Background(), models.KindManga)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, models.KindManga, entries[0].Kind)
		assert.Equal(t, 100, entries[0].ChaptersRead)
		assert.Equal(t, 10, entries[0].VolumesRead)
		assert.Equal(t, "reading", entries[0].MyStatus)
	})

	t.Run("unknown kind", func(t *testing.T) {
		c := newTestClient(t, func(http.ResponseWriter, *http.Request) {})
		_, err := c.PullList(context.Background(), "novel")
		assert.ErrorIs(t, err, shared.ErrInvalidArgument)
	})
}

func TestClient_PushEntry(t *testing.T) {
	tests := []struct {
		name       string
		entry      *models.ListEntry
		state      models.SyncState
		wantMethod string
		wantPath   string
		wantForm   map[string]string
	}{
		{
			name:       "local-only anime is added",
			entry:      &models.ListEntry{RecordID: 7, Kind: models.KindAnime, MyStatus: "watching", MyScore: 8, EpisodesWatched: 3},
			state:      models.LocalOnly,
			wantMethod: http.MethodPost,
			wantPath:   "/animelist/anime",
			wantForm:   map[string]string{"anime_id": "7", "status": "watching", "score": "8", "episodes": "3"},
		},
		{
			name:       "pending manga is updated",
			entry:      &models.ListEntry{RecordID: 9, Kind: models.KindManga, MyStatus: "reading", MyScore: 6, ChaptersRead: 40, VolumesRead: 4},
			state:      models.PendingPush,
			wantMethod: http.MethodPut,
			wantPath:   "/mangalist/manga/9",
			wantForm:   map[string]string{"status": "reading", "score": "6", "chapters": "40", "volumes": "4"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, tt.wantMethod, r.Method)
				assert.Equal(t, tt.wantPath, r.URL.Path)
				assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
				require.NoError(t, r.ParseForm())
				for k, v := range tt.wantForm {
					assert.Equal(t, v, r.PostForm.Get(k), "form field %s", k)
				}
				w.WriteHeader(http.StatusOK)
			})
			require.NoError(t, c.PushEntry(context.Background(), tt.entry, tt.state))
		})
	}

	t.Run("clean entry is rejected", func(t *testing.T) {
		c := newTestClient(t, func(http.ResponseWriter, *http.Request) { t.Fatal("no request expected") })
		err := c.PushEntry(context.Background(), &models.ListEntry{RecordID: 1, Kind: models.KindAnime}, models.Clean)
		assert.ErrorIs(t, err, shared.ErrInvalidArgument)
	})
}

func TestClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusTooManyRequests, shared.ErrRemoteUnavailable},
		{http.StatusBadGateway, shared.ErrRemoteUnavailable},
		{http.StatusServiceUnavailable, shared.ErrRemoteUnavailable},
		{http.StatusUnauthorized, shared.ErrNotAuthenticated},
		{http.StatusForbidden, shared.ErrNotAuthenticated},
		{http.StatusNotFound, shared.ErrAPIRequest},
		{http.StatusBadRequest, shared.ErrAPIRequest},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			})
			_, err := c.Friends(context.Background())
			assert.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("transport failure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		url := server.URL
		server.Close()

		c, err := NewClient(shared.RemoteConfig{BaseURL: url, Username: "kana", Password: "x", TimeoutSeconds: 1}, nil, nil)
		require.NoError(t, err)
		_, err = c.Profile(context.Background())
		assert.ErrorIs(t, err, shared.ErrRemoteUnavailable)
	})

	t.Run("bad json", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{not json`))
		})
		_, err := c.Profile(context.Background())
		assert.ErrorIs(t, err, shared.ErrAPIRequest)
	})

	t.Run("cancelled context", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := c.Friends(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestClient_BearerToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[{"name":"mika","friend_since":"2014-03-01","profile":{"avatar_url":"m.png","details":{"last_online":"Now"}}},{"name":""}]`))
	}, func(cfg *shared.RemoteConfig) {
		cfg.Password = ""
		cfg.AccessToken = "tok-123"
	})
	assert.True(t, c.bearer)

	friends, err := c.Friends(context.Background())
	require.NoError(t, err)
	require.Len(t, friends, 1)
	assert.Equal(t, "mika", friends[0].Username)
	assert.Equal(t, "m.png", friends[0].AvatarURL)
	assert.Equal(t, "Now", friends[0].LastOnline)
	assert.Equal(t, "2014-03-01", friends[0].FriendSince)
}

func TestClient_Profile(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/profile/kana", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"avatar_url":"k.png",
			"details":{"gender":"Female","join_date":"2010-01-01","access_rank":"Member","comments":4,"anime_list_views":120},
			"anime_stats":{"time_days":45.7,"watching":3,"completed":120,"plan_to_watch":40,"total_entries":170},
			"manga_stats":{"time_days":"2.5","reading":1,"plan_to_read":2,"total_entries":5}
		}`))
	})

	p, err := c.Profile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "kana", p.Username)
	assert.Equal(t, "Female", p.Gender)
	assert.Equal(t, 120, p.AnimeListViews)
	assert.InDelta(t, 45.7, p.Anime.TimeDays, 0.0001)
	assert.Equal(t, 40, p.Anime.PlanTo)
	assert.InDelta(t, 2.5, p.Manga.TimeDays, 0.0001)
	assert.Equal(t, 1, p.Manga.Watching)
	assert.Equal(t, 2, p.Manga.PlanTo)
}
