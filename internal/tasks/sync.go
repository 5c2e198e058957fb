package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/malsync/internal/models"
	"github.com/desertthunder/malsync/internal/repositories"
	"github.com/desertthunder/malsync/internal/services"
	"github.com/desertthunder/malsync/internal/shared"
)

// ListResult counts what a pass did to one list.
type ListResult struct {
	Pulled           int // Records the remote returned
	Inserted         int // New local rows
	Overwritten      int // Clean rows replaced by the remote value
	ConflictsSkipped int // Dirty rows that only took server-owned fields
	Pushed           int // Dirty rows pushed and cleared
	PushFailures     int // Pushes that failed; the rows stay dirty
	EditedInFlight   int // Pushed rows edited again before the flag could clear
}

// SyncResult summarizes one pass.
type SyncResult struct {
	PassID     string
	StartedAt  time.Time
	FinishedAt time.Time

	// Deferred is set when the remote was unavailable and the pass stopped
	// early. Dirty flags are left for the next pass.
	Deferred bool

	Lists            map[models.Kind]*ListResult
	FriendsUpserted  int
	FriendsPruned    int
	ProfileRefreshed bool
}

func (r *SyncResult) sum(f func(*ListResult) int) int {
	n := 0
	for _, lr := range r.Lists {
		n += f(lr)
	}
	return n
}

// Pulled is the number of records pulled across lists.
func (r *SyncResult) Pulled() int { return r.sum(func(l *ListResult) int { return l.Pulled }) }

// Pushed is the number of records pushed across lists.
func (r *SyncResult) Pushed() int { return r.sum(func(l *ListResult) int { return l.Pushed }) }

// PushFailures is the number of failed pushes across lists.
func (r *SyncResult) PushFailures() int {
	return r.sum(func(l *ListResult) int { return l.PushFailures })
}

// ConflictsSkipped is the number of pulled records that met a dirty row.
func (r *SyncResult) ConflictsSkipped() int {
	return r.sum(func(l *ListResult) int { return l.ConflictsSkipped })
}

// SyncCoordinator reconciles the cache with the remote service.
type SyncCoordinator struct {
	store  *repositories.Store
	remote services.Service
	now    func() time.Time
	logger *log.Logger
}

// NewSyncCoordinator creates a coordinator over an open store.
func NewSyncCoordinator(store *repositories.Store, remote services.Service, logger *log.Logger) *SyncCoordinator {
	return &SyncCoordinator{
		store:  store,
		remote: remote,
		now:    time.Now,
		logger: shared.WithLogger(logger, "component", "sync", "remote", remote.Name()),
	}
}

// WithClock replaces the clock used for sync and push timestamps.
func (c *SyncCoordinator) WithClock(now func() time.Time) *SyncCoordinator {
	c.now = now
	return c
}

// errDeferred stops a pass when the remote is unavailable.
var errDeferred = errors.New("pass deferred")

// Run performs one sync pass. A remote that is unavailable yields a result
// with Deferred set and a nil error. A cancelled context stops the pass
// between records and returns the context's error with the partial result.
func (c *SyncCoordinator) Run(ctx context.Context, progress chan<- ProgressUpdate) (*SyncResult, error) {
	result := &SyncResult{
		PassID:    shared.GenerateID(),
		StartedAt: c.now(),
		Lists:     make(map[models.Kind]*ListResult, 2),
	}
	logger := c.logger.With("pass", result.PassID)
	logger.Info("sync pass started")

	err := c.run(ctx, logger, result, progress)
	result.FinishedAt = c.now()

	switch {
	case errors.Is(err, errDeferred):
		result.Deferred = true
		logger.Warn("sync pass deferred, remote unavailable", "error", err)
		err = nil
	case err != nil:
		logger.Error("sync pass failed", "error", err)
		return result, err
	}

	logger.Info("sync pass finished",
		"pulled", result.Pulled(), "pushed", result.Pushed(),
		"push_failures", result.PushFailures(), "conflicts_skipped", result.ConflictsSkipped(),
		"deferred", result.Deferred)
	sendProgress(progress, finishedUpdate(result))
	return result, nil
}

func (c *SyncCoordinator) run(ctx context.Context, logger *log.Logger, result *SyncResult, progress chan<- ProgressUpdate) error {
	for _, kind := range models.Kinds() {
		lr := &ListResult{}
		result.Lists[kind] = lr
		if err := c.syncList(ctx, logger.With("kind", kind), kind, lr, progress); err != nil {
			return err
		}
	}
	if err := c.syncFriends(ctx, result, progress); err != nil {
		return err
	}
	return c.syncProfile(ctx, result, progress)
}

// remoteErr turns an unavailable remote into errDeferred.
func remoteErr(op string, err error) error {
	if errors.Is(err, shared.ErrRemoteUnavailable) {
		return fmt.Errorf("%w: %w", errDeferred, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (c *SyncCoordinator) syncList(ctx context.Context, logger *log.Logger, kind models.Kind, lr *ListResult, progress chan<- ProgressUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	sendProgress(progress, pullListUpdate(kind))
	pulled, err := c.remote.PullList(ctx, kind)
	if err != nil {
		return remoteErr("pull "+kind.String(), err)
	}
	lr.Pulled = len(pulled)

	known := make(map[int64]bool, len(pulled))
	for _, e := range pulled {
		known[e.RecordID] = true
	}

	at := c.now().Unix()
	var counts ListResult
	err = c.store.InTx(ctx, func(ctx context.Context, tx *repositories.Store) error {
		counts = ListResult{}
		repo := tx.Lists(kind)
		for i, remote := range pulled {
			if err := ctx.Err(); err != nil {
				return err
			}
			remote.Kind = kind
			outcome, err := repo.ApplyRemote(ctx, remote, at)
			if err != nil {
				return err
			}
			switch outcome {
			case repositories.Inserted:
				counts.Inserted++
			case repositories.Overwritten:
				counts.Overwritten++
			case repositories.MergeConflictSkipped:
				counts.ConflictsSkipped++
				logger.Info("remote value skipped for local edit", "record_id", remote.RecordID, "reason", shared.ErrSyncConflictSkipped)
			}
			sendProgress(progress, applyBatchUpdate(kind, i+1, len(pulled)))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("apply %s batch: %w", kind, err)
	}
	lr.Inserted, lr.Overwritten, lr.ConflictsSkipped = counts.Inserted, counts.Overwritten, counts.ConflictsSkipped

	return c.pushDirty(ctx, logger, kind, known, lr, progress)
}

// pushDirty pushes every dirty row of kind. No transaction is held across a
// push; each row's flag is cleared on its own once the remote accepts it.
func (c *SyncCoordinator) pushDirty(ctx context.Context, logger *log.Logger, kind models.Kind, known map[int64]bool, lr *ListResult, progress chan<- ProgressUpdate) error {
	repo := c.store.Lists(kind)
	dirty, err := repo.ListDirty(ctx)
	if err != nil {
		return fmt.Errorf("list dirty %s: %w", kind, err)
	}

	for i, e := range dirty {
		if err := ctx.Err(); err != nil {
			return err
		}
		state := e.State(known[e.RecordID])
		sendProgress(progress, pushEntryUpdate(i+1, len(dirty), e, state))

		if err := c.remote.PushEntry(ctx, e, state); err != nil {
			if errors.Is(err, shared.ErrRemoteUnavailable) {
				return remoteErr("push", err)
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lr.PushFailures++
			logger.Warn("push failed, entry stays dirty", "record_id", e.RecordID, "state", state, "error", err)
			sendProgress(progress, pushFailedUpdate(i+1, len(dirty), e, err))
			continue
		}

		cleared, err := repo.ClearDirtyIfUnchanged(ctx, e, c.now().Unix())
		if err != nil {
			return err
		}
		lr.Pushed++
		if !cleared {
			lr.EditedInFlight++
			logger.Info("entry edited during push, kept dirty", "record_id", e.RecordID)
		}
	}
	return nil
}

func (c *SyncCoordinator) syncFriends(ctx context.Context, result *SyncResult, progress chan<- ProgressUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	friends, err := c.remote.Friends(ctx)
	if err != nil {
		return remoteErr("pull friends", err)
	}
	err = c.store.InTx(ctx, func(ctx context.Context, tx *repositories.Store) error {
		var err error
		result.FriendsUpserted, result.FriendsPruned, err = tx.Friends.ReplaceAll(ctx, friends)
		return err
	})
	if err != nil {
		return fmt.Errorf("apply friends: %w", err)
	}
	sendProgress(progress, friendsUpdate(result.FriendsUpserted, result.FriendsPruned))
	return nil
}

func (c *SyncCoordinator) syncProfile(ctx context.Context, result *SyncResult, progress chan<- ProgressUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	profile, err := c.remote.Profile(ctx)
	if err != nil {
		return remoteErr("pull profile", err)
	}
	if profile == nil {
		return nil
	}
	if err := c.store.Profile.Upsert(ctx, profile); err != nil {
		return fmt.Errorf("apply profile: %w", err)
	}
	result.ProfileRefreshed = true
	sendProgress(progress, profileUpdate(profile.Username))
	return nil
}
