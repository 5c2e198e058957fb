package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/desertthunder/malsync/internal/dbx"
	"github.com/desertthunder/malsync/internal/models"
	"github.com/desertthunder/malsync/internal/schema"
)

// FriendRepository implements models.Repository[*models.Friend, string] for
// the friends table, keyed by username.
type FriendRepository struct {
	db dbx.DBTX
}

var _ models.Repository[*models.Friend, string] = (*FriendRepository)(nil)

// NewFriendRepository creates a new FriendRepository with the given handle
func NewFriendRepository(db dbx.DBTX) *FriendRepository {
	return &FriendRepository{db: db}
}

const friendColumns = `_id, username, COALESCE(avatar_url, ''), COALESCE(last_online, ''), COALESCE(friend_since, '')`

// Upsert inserts the friend or replaces the row with the same username.
func (r *FriendRepository) Upsert(ctx context.Context, f *models.Friend) error {
	if err := f.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO friends (username, avatar_url, last_online, friend_since)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(username) DO UPDATE SET
			avatar_url = excluded.avatar_url,
			last_online = excluded.last_online,
			friend_since = excluded.friend_since
	`
	if _, err := r.db.ExecContext(ctx, query, f.Username, f.AvatarURL, f.LastOnline, f.FriendSince); err != nil {
		return fmt.Errorf("failed to upsert friend %s: %w", f.Username, err)
	}

	if err := r.db.QueryRowContext(ctx, `SELECT _id FROM friends WHERE username = ?`, f.Username).Scan(&f.ID); err != nil {
		return fmt.Errorf("failed to reload friend %s: %w", f.Username, err)
	}
	return nil
}

// Get returns the friend with the given username, or nil when there is none.
func (r *FriendRepository) Get(ctx context.Context, username string) (*models.Friend, error) {
	query := `SELECT ` + friendColumns + ` FROM friends WHERE username = ?`
	f, err := scanFriend(r.db.QueryRowContext(ctx, query, username))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get friend %s: %w", username, err)
	}
	return f, nil
}

// List returns every friend in insertion order.
func (r *FriendRepository) List(ctx context.Context) ([]*models.Friend, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+friendColumns+` FROM friends ORDER BY _id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query friends: %w", err)
	}
	defer rows.Close()

	var friends []*models.Friend
	for rows.Next() {
		f, err := scanFriend(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan friend: %w", err)
		}
		friends = append(friends, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating friends: %w", err)
	}
	return friends, nil
}

// Count returns the number of friends.
func (r *FriendRepository) Count(ctx context.Context) (int64, error) {
	return count(ctx, r.db, schema.TableFriends)
}

// Delete removes the friend with the given username.
func (r *FriendRepository) Delete(ctx context.Context, username string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM friends WHERE username = ?`, username)
	if err != nil {
		return fmt.Errorf("failed to delete friend %s: %w", username, err)
	}
	return expectOne(result, "friend "+username)
}

// ReplaceAll makes the table match a full friend-list snapshot: every friend
// in the snapshot is upserted and every username missing from it is removed.
// Callers run it inside a transaction.
func (r *FriendRepository) ReplaceAll(ctx context.Context, snapshot []*models.Friend) (upserted, pruned int, err error) {
	keep := make(map[string]bool, len(snapshot))
	for _, f := range snapshot {
		if err := r.Upsert(ctx, f); err != nil {
			return upserted, pruned, err
		}
		keep[f.Username] = true
		upserted++
	}

	existing, err := r.List(ctx)
	if err != nil {
		return upserted, pruned, err
	}
	for _, f := range existing {
		if keep[f.Username] {
			continue
		}
		if err := r.Delete(ctx, f.Username); err != nil {
			return upserted, pruned, err
		}
		pruned++
	}
	return upserted, pruned, nil
}

func scanFriend(row interface{ Scan(...any) error }) (*models.Friend, error) {
	f := &models.Friend{}
	if err := row.Scan(&f.ID, &f.Username, &f.AvatarURL, &f.LastOnline, &f.FriendSince); err != nil {
		return nil, err
	}
	return f, nil
}
