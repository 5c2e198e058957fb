package services

import (
	"encoding/json"
	"strconv"

	"github.com/desertthunder/malsync/internal/models"
)

// flexFloat accepts a JSON number or a numeric string; older API versions sent
// scores as strings.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = 0
		return nil
	}
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		*f = flexFloat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = flexFloat(n)
	return nil
}

type animeRecord struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	Type            string    `json:"type"`
	ImageURL        string    `json:"image_url"`
	Status          string    `json:"status"`
	WatchedStatus   string    `json:"watched_status"`
	MembersScore    flexFloat `json:"members_score"`
	Score           int       `json:"score"`
	Synopsis        string    `json:"synopsis"`
	WatchedEpisodes int       `json:"watched_episodes"`
	Episodes        int       `json:"episodes"`
}

type mangaRecord struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Type         string    `json:"type"`
	ImageURL     string    `json:"image_url"`
	Status       string    `json:"status"`
	ReadStatus   string    `json:"read_status"`
	MembersScore flexFloat `json:"members_score"`
	Score        int       `json:"score"`
	Synopsis     string    `json:"synopsis"`
	ChaptersRead int       `json:"chapters_read"`
	Chapters     int       `json:"chapters"`
	VolumesRead  int       `json:"volumes_read"`
	Volumes      int       `json:"volumes"`
}

type animeList struct {
	Anime []animeRecord `json:"anime"`
}

type mangaList struct {
	Manga []mangaRecord `json:"manga"`
}

func (a animeRecord) toEntry() *models.ListEntry {
	return &models.ListEntry{
		RecordID:        a.ID,
		Kind:            models.KindAnime,
		Title:           a.Title,
		Type:            a.Type,
		ImageURL:        a.ImageURL,
		Status:          a.Status,
		MyStatus:        a.WatchedStatus,
		MemberScore:     float64(a.MembersScore),
		MyScore:         a.Score,
		Synopsis:        a.Synopsis,
		EpisodesWatched: a.WatchedEpisodes,
		EpisodesTotal:   a.Episodes,
	}
}

func (m mangaRecord) toEntry() *models.ListEntry {
	return &models.ListEntry{
		RecordID:      m.ID,
		Kind:          models.KindManga,
		Title:         m.Title,
		Type:          m.Type,
		ImageURL:      m.ImageURL,
		Status:        m.Status,
		MyStatus:      m.ReadStatus,
		MemberScore:   float64(m.MembersScore),
		MyScore:       m.Score,
		Synopsis:      m.Synopsis,
		ChaptersRead:  m.ChaptersRead,
		ChaptersTotal: m.Chapters,
		VolumesRead:   m.VolumesRead,
		VolumesTotal:  m.Volumes,
	}
}

type friendRecord struct {
	Name        string `json:"name"`
	FriendSince string `json:"friend_since"`
	Profile     struct {
		AvatarURL string `json:"avatar_url"`
		Details   struct {
			LastOnline string `json:"last_online"`
		} `json:"details"`
	} `json:"profile"`
}

func (f friendRecord) toFriend() *models.Friend {
	return &models.Friend{
		Username:    f.Name,
		AvatarURL:   f.Profile.AvatarURL,
		LastOnline:  f.Profile.Details.LastOnline,
		FriendSince: f.FriendSince,
	}
}

type profileRecord struct {
	AvatarURL string `json:"avatar_url"`
	Details   struct {
		LastOnline     string `json:"last_online"`
		Gender         string `json:"gender"`
		Birthday       string `json:"birthday"`
		Location       string `json:"location"`
		Website        string `json:"website"`
		JoinDate       string `json:"join_date"`
		AccessRank     string `json:"access_rank"`
		AnimeListViews int    `json:"anime_list_views"`
		MangaListViews int    `json:"manga_list_views"`
		ForumPosts     int    `json:"forum_posts"`
		Comments       int    `json:"comments"`
	} `json:"details"`
	AnimeStats struct {
		TimeDays     flexFloat `json:"time_days"`
		Watching     int       `json:"watching"`
		Completed    int       `json:"completed"`
		OnHold       int       `json:"on_hold"`
		Dropped      int       `json:"dropped"`
		PlanToWatch  int       `json:"plan_to_watch"`
		TotalEntries int       `json:"total_entries"`
	} `json:"anime_stats"`
	MangaStats struct {
		TimeDays     flexFloat `json:"time_days"`
		Reading      int       `json:"reading"`
		Completed    int       `json:"completed"`
		OnHold       int       `json:"on_hold"`
		Dropped      int       `json:"dropped"`
		PlanToRead   int       `json:"plan_to_read"`
		TotalEntries int       `json:"total_entries"`
	} `json:"manga_stats"`
}

func (p profileRecord) toProfile(username string) *models.Profile {
	return &models.Profile{
		Username:       username,
		AvatarURL:      p.AvatarURL,
		Birthday:       p.Details.Birthday,
		Location:       p.Details.Location,
		Website:        p.Details.Website,
		Comments:       p.Details.Comments,
		ForumPosts:     p.Details.ForumPosts,
		LastOnline:     p.Details.LastOnline,
		Gender:         p.Details.Gender,
		JoinDate:       p.Details.JoinDate,
		AccessRank:     p.Details.AccessRank,
		AnimeListViews: p.Details.AnimeListViews,
		MangaListViews: p.Details.MangaListViews,
		Anime: models.ListStats{
			TimeDays:     float64(p.AnimeStats.TimeDays),
			Watching:     p.AnimeStats.Watching,
			Completed:    p.AnimeStats.Completed,
			OnHold:       p.AnimeStats.OnHold,
			Dropped:      p.AnimeStats.Dropped,
			PlanTo:       p.AnimeStats.PlanToWatch,
			TotalEntries: p.AnimeStats.TotalEntries,
		},
		Manga: models.ListStats{
			TimeDays:     float64(p.MangaStats.TimeDays),
			Watching:     p.MangaStats.Reading,
			Completed:    p.MangaStats.Completed,
			OnHold:       p.MangaStats.OnHold,
			Dropped:      p.MangaStats.Dropped,
			PlanTo:       p.MangaStats.PlanToRead,
			TotalEntries: p.MangaStats.TotalEntries,
		},
	}
}
