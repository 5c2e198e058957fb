package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/desertthunder/malsync/internal/dbx"
	"github.com/desertthunder/malsync/internal/models"
	"github.com/desertthunder/malsync/internal/schema"
)

// ProfileRepository implements models.Repository[*models.Profile, string] for
// the profile table. There is normally one row, for the signed-in user.
type ProfileRepository struct {
	db dbx.DBTX
}

var _ models.Repository[*models.Profile, string] = (*ProfileRepository)(nil)

// NewProfileRepository creates a new ProfileRepository with the given handle
func NewProfileRepository(db dbx.DBTX) *ProfileRepository {
	return &ProfileRepository{db: db}
}

var profileWriteColumns = []string{
	"username", "avatar_url", "birthday", "location", "website", "comments", "forum_posts",
	"last_online", "gender", "join_date", "access_rank", "anime_list_views", "manga_list_views",
	"anime_time_days", "anime_watching", "anime_completed", "anime_on_hold", "anime_dropped",
	"anime_plan_to_watch", "anime_total_entries",
	"manga_time_days", "manga_reading", "manga_completed", "manga_on_hold", "manga_dropped",
	"manga_plan_to_read", "manga_total_entries",
}

func profileArgs(p *models.Profile) []any {
	return []any{
		p.Username, p.AvatarURL, p.Birthday, p.Location, p.Website, p.Comments, p.ForumPosts,
		p.LastOnline, p.Gender, p.JoinDate, p.AccessRank, p.AnimeListViews, p.MangaListViews,
		p.Anime.TimeDays, p.Anime.Watching, p.Anime.Completed, p.Anime.OnHold, p.Anime.Dropped,
		p.Anime.PlanTo, p.Anime.TotalEntries,
		p.Manga.TimeDays, p.Manga.Watching, p.Manga.Completed, p.Manga.OnHold, p.Manga.Dropped,
		p.Manga.PlanTo, p.Manga.TotalEntries,
	}
}

func profileSelect() string {
	cols := []string{"_id", "username"}
	for _, c := range profileWriteColumns[1:] {
		switch c {
		case "avatar_url", "birthday", "location", "website", "last_online", "gender", "join_date", "access_rank":
			cols = append(cols, fmt.Sprintf("COALESCE(%s, '')", c))
		default:
			cols = append(cols, fmt.Sprintf("COALESCE(%s, 0)", c))
		}
	}
	return strings.Join(cols, ", ")
}

func scanProfile(row interface{ Scan(...any) error }) (*models.Profile, error) {
	p := &models.Profile{}
	err := row.Scan(
		&p.ID, &p.Username, &p.AvatarURL, &p.Birthday, &p.Location, &p.Website, &p.Comments, &p.ForumPosts,
		&p.LastOnline, &p.Gender, &p.JoinDate, &p.AccessRank, &p.AnimeListViews, &p.MangaListViews,
		&p.Anime.TimeDays, &p.Anime.Watching, &p.Anime.Completed, &p.Anime.OnHold, &p.Anime.Dropped,
		&p.Anime.PlanTo, &p.Anime.TotalEntries,
		&p.Manga.TimeDays, &p.Manga.Watching, &p.Manga.Completed, &p.Manga.OnHold, &p.Manga.Dropped,
		&p.Manga.PlanTo, &p.Manga.TotalEntries,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Upsert inserts the profile or replaces the row with the same username.
func (r *ProfileRepository) Upsert(ctx context.Context, p *models.Profile) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	updates := make([]string, 0, len(profileWriteColumns)-1)
	for _, c := range profileWriteColumns[1:] {
		updates = append(updates, fmt.Sprintf("%s = excluded.%s", c, c))
	}
	query := fmt.Sprintf(`INSERT INTO profile (%s) VALUES (%s) ON CONFLICT(username) DO UPDATE SET %s`,
		strings.Join(profileWriteColumns, ", "), placeholders(len(profileWriteColumns)), strings.Join(updates, ", "))

	if _, err := r.db.ExecContext(ctx, query, profileArgs(p)...); err != nil {
		return fmt.Errorf("failed to upsert profile %s: %w", p.Username, err)
	}
	if err := r.db.QueryRowContext(ctx, `SELECT _id FROM profile WHERE username = ?`, p.Username).Scan(&p.ID); err != nil {
		return fmt.Errorf("failed to reload profile %s: %w", p.Username, err)
	}
	return nil
}

// Get returns the profile with the given username, or nil when there is none.
func (r *ProfileRepository) Get(ctx context.Context, username string) (*models.Profile, error) {
	query := fmt.Sprintf(`SELECT %s FROM profile WHERE username = ?`, profileSelect())
	p, err := scanProfile(r.db.QueryRowContext(ctx, query, username))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile %s: %w", username, err)
	}
	return p, nil
}

// List returns every stored profile in insertion order.
func (r *ProfileRepository) List(ctx context.Context) ([]*models.Profile, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`SELECT %s FROM profile ORDER BY _id ASC`, profileSelect()))
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*models.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating profiles: %w", err)
	}
	return profiles, nil
}

// Count returns the number of stored profiles.
func (r *ProfileRepository) Count(ctx context.Context) (int64, error) {
	return count(ctx, r.db, schema.TableProfile)
}

// Delete removes the profile with the given username.
func (r *ProfileRepository) Delete(ctx context.Context, username string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM profile WHERE username = ?`, username)
	if err != nil {
		return fmt.Errorf("failed to delete profile %s: %w", username, err)
	}
	return expectOne(result, "profile "+username)
}
