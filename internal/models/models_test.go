package models

import (
	"testing"

	"github.com/desertthunder/malsync/internal/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"anime", KindAnime, false},
		{" Manga ", KindManga, false},
		{"novel", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKind(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, shared.ErrInvalidArgument)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStateOf(t *testing.T) {
	assert.Equal(t, Clean, StateOf(false, false))
	assert.Equal(t, Clean, StateOf(false, true))
	assert.Equal(t, LocalOnly, StateOf(true, false))
	assert.Equal(t, PendingPush, StateOf(true, true))
	assert.Equal(t, "pending-push", PendingPush.String())
	assert.Equal(t, "SyncState(9)", SyncState(9).String())
}

func TestListEntry_Validate(t *testing.T) {
	valid := ListEntry{RecordID: 1, Kind: KindAnime, MyScore: 7}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(e *ListEntry)
	}{
		{"zero record id", func(e *ListEntry) { e.RecordID = 0 }},
		{"unknown kind", func(e *ListEntry) { e.Kind = "novel" }},
		{"score too high", func(e *ListEntry) { e.MyScore = 11 }},
		{"negative counter", func(e *ListEntry) { e.EpisodesWatched = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := valid
			tt.mutate(&e)
			assert.ErrorIs(t, e.Validate(), shared.ErrInvalidInput)
		})
	}
}

func TestListEntry_MergeServerFields(t *testing.T) {
	local := &ListEntry{
		RecordID: 5, Kind: KindAnime, Title: "old", MyStatus: "watching",
		MyScore: 8, EpisodesWatched: 4, EpisodesTotal: 0, MemberScore: 6.1,
		Dirty: true, LastUpdate: 100,
	}
	remote := &ListEntry{
		RecordID: 5, Kind: KindAnime, Title: "new", MyStatus: "completed",
		MyScore: 5, EpisodesWatched: 12, EpisodesTotal: 12, MemberScore: 7.8,
		Synopsis: "text",
	}

	local.MergeServerFields(remote)

	assert.Equal(t, "new", local.Title)
	assert.Equal(t, 7.8, local.MemberScore)
	assert.Equal(t, 12, local.EpisodesTotal)
	assert.Equal(t, "text", local.Synopsis)
	assert.Equal(t, 8, local.MyScore)
	assert.Equal(t, "watching", local.MyStatus)
	assert.Equal(t, 4, local.EpisodesWatched)
	assert.True(t, local.Dirty)
	assert.Equal(t, int64(100), local.LastUpdate)
}

func TestListEntry_Progress(t *testing.T) {
	a := &ListEntry{Kind: KindAnime, EpisodesWatched: 3, EpisodesTotal: 12}
	done, total := a.Progress()
	assert.Equal(t, 3, done)
	assert.Equal(t, 12, total)

	m := &ListEntry{Kind: KindManga, ChaptersRead: 40, ChaptersTotal: 100}
	done, total = m.Progress()
	assert.Equal(t, 40, done)
	assert.Equal(t, 100, total)

	c := m.Clone()
	c.ChaptersRead = 1
	assert.Equal(t, 40, m.ChaptersRead)
}

func TestFriendAndProfile_Validate(t *testing.T) {
	assert.ErrorIs(t, (&Friend{}).Validate(), shared.ErrInvalidInput)
	assert.NoError(t, (&Friend{Username: "kana"}).Validate())
	assert.Equal(t, "kana", (&Friend{Username: "kana"}).Key())

	assert.ErrorIs(t, (&Profile{Username: " "}).Validate(), shared.ErrInvalidInput)
	assert.ErrorIs(t, (&Profile{Username: "kana", Anime: ListStats{TimeDays: -1}}).Validate(), shared.ErrInvalidInput)
	assert.NoError(t, (&Profile{Username: "kana", Manga: ListStats{TimeDays: 3.5}}).Validate())
}
