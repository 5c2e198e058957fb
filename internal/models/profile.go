package models

import (
	"fmt"
	"strings"

	"github.com/desertthunder/malsync/internal/shared"
)

// ListStats summarizes one list on a profile. For manga, Watching holds the
// "reading" bucket and PlanTo the "plan to read" bucket.
type ListStats struct {
	TimeDays     float64 `json:"time_days"`
	Watching     int     `json:"watching"`
	Completed    int     `json:"completed"`
	OnHold       int     `json:"on_hold"`
	Dropped      int     `json:"dropped"`
	PlanTo       int     `json:"plan_to"`
	TotalEntries int     `json:"total_entries"`
}

// Profile is the signed-in user's profile summary.
type Profile struct {
	ID             int64     `json:"-"`
	Username       string    `json:"username"`
	AvatarURL      string    `json:"avatar_url,omitempty"`
	Birthday       string    `json:"birthday,omitempty"`
	Location       string    `json:"location,omitempty"`
	Website        string    `json:"website,omitempty"`
	Comments       int       `json:"comments"`
	ForumPosts     int       `json:"forum_posts"`
	LastOnline     string    `json:"last_online,omitempty"`
	Gender         string    `json:"gender,omitempty"`
	JoinDate       string    `json:"join_date,omitempty"`
	AccessRank     string    `json:"access_rank,omitempty"`
	AnimeListViews int       `json:"anime_list_views"`
	MangaListViews int       `json:"manga_list_views"`
	Anime          ListStats `json:"anime_stats"`
	Manga          ListStats `json:"manga_stats"`
}

func (p *Profile) Key() string { return p.Username }

func (p *Profile) Validate() error {
	if strings.TrimSpace(p.Username) == "" {
		return fmt.Errorf("%w: profile username is required", shared.ErrInvalidInput)
	}
	if p.Anime.TimeDays < 0 || p.Manga.TimeDays < 0 {
		return fmt.Errorf("%w: time spent cannot be negative", shared.ErrInvalidInput)
	}
	return nil
}
