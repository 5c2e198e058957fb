package models

import (
	"fmt"
	"strconv"
	"time"

	"github.com/desertthunder/malsync/internal/shared"
)

// ListEntry is one row of the anime or manga list.
//
// Title, Type, ImageURL, Status, MemberScore, Synopsis and the totals belong
// to the server. MyStatus, MyScore and the watched/read counters belong to the
// user and are what a push sends.
type ListEntry struct {
	ID       int64  `json:"-"`
	RecordID int64  `json:"id"`
	Kind     Kind   `json:"kind"`
	Title    string `json:"title"`
	Type     string `json:"type,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
	Status   string `json:"status,omitempty"`
	MyStatus string `json:"my_status,omitempty"`

	MemberScore float64 `json:"member_score"`
	MyScore     int     `json:"my_score"`
	Synopsis    string  `json:"synopsis,omitempty"`

	EpisodesWatched int `json:"episodes_watched,omitempty"`
	EpisodesTotal   int `json:"episodes_total,omitempty"`
	ChaptersRead    int `json:"chapters_read,omitempty"`
	ChaptersTotal   int `json:"chapters_total,omitempty"`
	VolumesRead     int `json:"volumes_read,omitempty"`
	VolumesTotal    int `json:"volumes_total,omitempty"`

	Dirty      bool  `json:"dirty"`
	LastUpdate int64 `json:"last_update"`
}

// Key returns the record id as text.
func (e *ListEntry) Key() string {
	return strconv.FormatInt(e.RecordID, 10)
}

// Validate checks the fields the store relies on.
func (e *ListEntry) Validate() error {
	if e.RecordID <= 0 {
		return fmt.Errorf("%w: record id must be positive, got %d", shared.ErrInvalidInput, e.RecordID)
	}
	if !e.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", shared.ErrInvalidInput, e.Kind)
	}
	if e.MyScore < 0 || e.MyScore > 10 {
		return fmt.Errorf("%w: score must be between 0 and 10, got %d", shared.ErrInvalidInput, e.MyScore)
	}
	counters := []int{e.EpisodesWatched, e.EpisodesTotal, e.ChaptersRead, e.ChaptersTotal, e.VolumesRead, e.VolumesTotal}
	for _, c := range counters {
		if c < 0 {
			return fmt.Errorf("%w: progress counters cannot be negative", shared.ErrInvalidInput)
		}
	}
	return nil
}

// State derives the sync state; see [StateOf].
func (e *ListEntry) State(knownRemotely bool) SyncState {
	return StateOf(e.Dirty, knownRemotely)
}

// LastUpdated returns LastUpdate as a time.
func (e *ListEntry) LastUpdated() time.Time {
	return time.Unix(e.LastUpdate, 0).UTC()
}

// Progress returns the primary watched/read counter and its total: episodes
// for anime, chapters for manga.
func (e *ListEntry) Progress() (done, total int) {
	if e.Kind == KindManga {
		return e.ChaptersRead, e.ChaptersTotal
	}
	return e.EpisodesWatched, e.EpisodesTotal
}

// MergeServerFields copies the server-owned fields of remote into e and leaves
// user fields, the dirty flag and lastUpdate alone.
func (e *ListEntry) MergeServerFields(remote *ListEntry) {
	e.Title = remote.Title
	e.Type = remote.Type
	e.ImageURL = remote.ImageURL
	e.Status = remote.Status
	e.MemberScore = remote.MemberScore
	e.Synopsis = remote.Synopsis
	e.EpisodesTotal = remote.EpisodesTotal
	e.ChaptersTotal = remote.ChaptersTotal
	e.VolumesTotal = remote.VolumesTotal
}

// Clone returns a copy of e.
func (e *ListEntry) Clone() *ListEntry {
	c := *e
	return &c
}
