// Package repositories implements the record store over the SQLite cache file.
//
// Each cached table has a repository keyed by its natural key:
//   - [ListEntryRepository] : anime or manga list entries, keyed by recordID, with
//     dirty tracking and the pull merge ([ListEntryRepository.ApplyRemote])
//   - [FriendRepository] : friends, keyed by username, with snapshot replacement
//   - [ProfileRepository] : profile summaries, keyed by username
//
// [Store] groups them and binds all of them to a single transaction through
// [Store.InTx], which is how a sync pass applies a pulled batch atomically.
package repositories
