package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/desertthunder/malsync/internal/models"
	"github.com/desertthunder/malsync/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Sync runs one sync pass, or with --watch keeps running passes on the
// configured interval until interrupted.
func (r *Runner) Sync(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd); err != nil {
		return err
	}

	store, err := r.store(ctx)
	if err != nil {
		return err
	}
	remote, err := r.service()
	if err != nil {
		return err
	}
	coordinator := tasks.NewSyncCoordinator(store, remote, r.logger).WithClock(r.now)

	if cmd.Bool("watch") {
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
		defer stop()

		scheduler := tasks.NewScheduler(coordinator, r.config.Sync.Interval(), r.logger)
		scheduler.OnPass = func(result *tasks.SyncResult, err error) {
			if err == nil {
				r.writeSyncSummary(result)
			}
		}
		r.writePlain("Syncing with %s every %s (Ctrl+C to stop)\n", remote.Name(), r.config.Sync.Interval())
		return scheduler.Start(ctx)
	}

	r.logger.Info("starting sync", "remote", remote.Name())
	r.writePlain("Syncing with %s...\n", remote.Name())

	// Create progress channel and goroutine to handle updates
	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			switch update.Phase {
			case tasks.PullList:
				r.writePlain("📥 %s\n", update.Message)
			case tasks.PushEntries:
				r.writePlain("   %s\n", update.Message)
			case tasks.SyncFriends, tasks.SyncProfile:
				r.writePlain("👥 %s\n", update.Message)
			}
		}
	}()

	result, err := coordinator.Run(ctx, progressCh)
	close(progressCh)
	<-done

	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(result, true)
	}
	r.writeSyncSummary(result)
	return nil
}

func (r *Runner) writeSyncSummary(result *tasks.SyncResult) {
	if result.Deferred {
		r.writePlain("\n%s\n", styles.Warn("Remote unavailable, pass deferred. Local edits are kept for the next sync."))
		return
	}

	r.writePlain("\n")
	r.writePlainHeader("Sync Complete!")
	for _, kind := range models.Kinds() {
		lr := result.Lists[kind]
		if lr == nil {
			continue
		}
		r.writePlain("%-6s pulled %d (new %d, updated %d, kept local %d), pushed %d",
			kind, lr.Pulled, lr.Inserted, lr.Overwritten, lr.ConflictsSkipped, lr.Pushed)
		if lr.PushFailures > 0 {
			r.writePlain(", %s", styles.Err(pluralFailures(lr.PushFailures)))
		}
		r.writePlain("\n")
	}
	r.writePlain("Friends: %d (removed %d)\n", result.FriendsUpserted, result.FriendsPruned)
	if result.ProfileRefreshed {
		r.writePlain("Profile: refreshed\n")
	}
	r.writePlain("Duration: %s\n", result.FinishedAt.Sub(result.StartedAt))
}

func pluralFailures(n int) string {
	if n == 1 {
		return "1 push failed"
	}
	return fmt.Sprintf("%d pushes failed", n)
}
