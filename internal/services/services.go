// package services defines interface Service for the remote list service
package services

import (
	"context"

	"github.com/desertthunder/malsync/internal/models"
)

// Service is the remote side of a sync pass.
type Service interface {
	// PullList returns the user's full anime or manga list.
	PullList(ctx context.Context, kind models.Kind) ([]*models.ListEntry, error)

	// PushEntry sends the user fields of one entry. LocalOnly entries are
	// added, PendingPush entries are updated.
	PushEntry(ctx context.Context, entry *models.ListEntry, state models.SyncState) error

	// Friends returns the user's full friend list.
	Friends(ctx context.Context) ([]*models.Friend, error)

	// Profile returns the user's profile summary.
	Profile(ctx context.Context) (*models.Profile, error)

	// Name returns the name of the service
	Name() string
}
