package models

import (
	"fmt"
	"strings"

	"github.com/desertthunder/malsync/internal/shared"
)

// Friend is one entry of the signed-in user's friend list.
type Friend struct {
	ID          int64  `json:"-"`
	Username    string `json:"username"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	LastOnline  string `json:"last_online,omitempty"`
	FriendSince string `json:"friend_since,omitempty"`
}

func (f *Friend) Key() string { return f.Username }

func (f *Friend) Validate() error {
	if strings.TrimSpace(f.Username) == "" {
		return fmt.Errorf("%w: friend username is required", shared.ErrInvalidInput)
	}
	return nil
}
