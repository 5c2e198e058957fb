// Package models defines the records held by the offline list cache.
//
// The package contains two groups of types:
//
// 1. Cached records, one per table:
//   - [ListEntry] : an anime or manga list entry, keyed by the server's record id
//   - [Friend] : a friend of the signed-in user, keyed by username
//   - [Profile] : the signed-in user's profile summary, keyed by username
//
// 2. Sync bookkeeping:
//   - [Kind] : which list (anime or manga) an entry belongs to
//   - [SyncState] : Clean, LocalOnly or PendingPush, derived from the dirty flag
//
// All records implement [Record]. The [Repository] interface is the CRUD
// surface the store exposes for each table.
package models
