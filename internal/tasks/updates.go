package tasks

import (
	"fmt"

	"github.com/desertthunder/malsync/internal/models"
)

// ProgressUpdate represents a progress event during a sync pass.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Pass phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Sync phase enumeration
type Phase int

const (
	PullList Phase = iota
	ApplyBatch
	PushEntries
	SyncFriends
	SyncProfile
	Finished
)

func (p Phase) String() string {
	switch p {
	case PullList:
		return "pull_list"
	case ApplyBatch:
		return "apply_batch"
	case PushEntries:
		return "push_entries"
	case SyncFriends:
		return "sync_friends"
	case SyncProfile:
		return "sync_profile"
	case Finished:
		return "finished"
	default:
		return ""
	}
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func pullListUpdate(kind models.Kind) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PullList,
		Step:    0,
		Total:   1,
		Message: fmt.Sprintf("Pulling %s list...", kind),
	}
}

func applyBatchUpdate(kind models.Kind, step, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ApplyBatch,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Applying %s entries", step, total, kind),
	}
}

func pushEntryUpdate(step, total int, e *models.ListEntry, state models.SyncState) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PushEntries,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Pushing %s (%s)", step, total, e.Title, state),
		Data:    e,
	}
}

func pushFailedUpdate(step, total int, e *models.ListEntry, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PushEntries,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, e.Title, err),
		Data:    e,
	}
}

func friendsUpdate(upserted, pruned int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SyncFriends,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Friends: %d current, %d removed", upserted, pruned),
	}
}

func profileUpdate(username string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SyncProfile,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Profile refreshed: %s", username),
	}
}

func finishedUpdate(result *SyncResult) ProgressUpdate {
	msg := fmt.Sprintf("Sync finished: %d pulled, %d pushed, %d kept local", result.Pulled(), result.Pushed(), result.ConflictsSkipped())
	if result.Deferred {
		msg = "Sync deferred: remote unavailable"
	}
	return ProgressUpdate{
		Phase:   Finished,
		Step:    1,
		Total:   1,
		Message: msg,
		Data:    result,
	}
}
