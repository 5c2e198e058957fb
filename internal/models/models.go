// package models defines the cached record types of the list cache
package models

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/malsync/internal/shared"
)

// Record is implemented by every cached row type.
type Record interface {
	Key() string     // Key returns the natural key as text
	Validate() error // Validate checks the record before it is written
}

// Repository defines the per-table operations of the record store.
// K is the natural key type: record id for list entries, username otherwise.
type Repository[T Record, K comparable] interface {
	Upsert(ctx context.Context, record T) error // Upsert inserts or replaces by natural key
	Get(ctx context.Context, key K) (T, error)  // Get returns the record, or nil when absent
	List(ctx context.Context) ([]T, error)      // List returns every record in insertion order
	Delete(ctx context.Context, key K) error    // Delete removes the record by natural key
	Count(ctx context.Context) (int64, error)   // Count returns the number of rows
}

// Kind selects the anime or manga list.
type Kind string

const (
	KindAnime Kind = "anime"
	KindManga Kind = "manga"
)

// Kinds returns both list kinds in sync order.
func Kinds() []Kind {
	return []Kind{KindAnime, KindManga}
}

// ParseKind converts user input into a [Kind].
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindAnime:
		return KindAnime, nil
	case KindManga:
		return KindManga, nil
	default:
		return "", fmt.Errorf("%w: unknown list kind %q (want anime or manga)", shared.ErrInvalidArgument, s)
	}
}

func (k Kind) String() string { return string(k) }

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return k == KindAnime || k == KindManga
}

// SyncState is where a list entry stands relative to the server.
type SyncState int

const (
	// Clean rows match the server as of their lastUpdate.
	Clean SyncState = iota
	// LocalOnly rows are dirty and the server has never seen them.
	LocalOnly
	// PendingPush rows are dirty edits of records the server already has.
	PendingPush
)

func (s SyncState) String() string {
	switch s {
	case Clean:
		return "clean"
	case LocalOnly:
		return "local-only"
	case PendingPush:
		return "pending-push"
	default:
		return fmt.Sprintf("SyncState(%d)", int(s))
	}
}

// StateOf derives a row's sync state from its dirty flag and whether the
// server reported the record in the latest pull.
func StateOf(dirty, knownRemotely bool) SyncState {
	switch {
	case !dirty:
		return Clean
	case knownRemotely:
		return PendingPush
	default:
		return LocalOnly
	}
}
