// Package tasks runs sync passes between the local cache and the remote list
// service, with progress reporting.
//
// # Sync pass
//
// [SyncCoordinator.Run] works through each list kind (anime, then manga):
//
//  1. Pull the full remote list
//  2. Apply it in one transaction: clean rows take the remote value, dirty
//     rows only take server-owned fields (the user's edits win)
//  3. Push dirty rows one at a time, outside any transaction; a success clears
//     the dirty flag, a failure leaves it for the next pass
//
// then replaces the friend list and refreshes the profile.
//
// A remote that is unavailable defers the rest of the pass without error.
// Cancellation is honoured between records.
//
// # Progress Reporting
//
// Progress goes out over an optional channel as [ProgressUpdate] values.
// Sends never block; updates are dropped when the channel is full.
//
// # Scheduling
//
// [Scheduler] runs a pass immediately and then on a fixed interval until its
// context ends, logging failures and trying again on the next tick.
package tasks
