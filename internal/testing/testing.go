// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/malsync/internal/models"
	"github.com/desertthunder/malsync/internal/services"
)

var _ services.Service = (*MockRemote)(nil)

// PushCall records one [MockRemote.PushEntry] call.
type PushCall struct {
	Entry models.ListEntry
	State models.SyncState
}

// MockRemote is a test double for [services.Service]. It serves the configured
// lists and records every push. Errors can be injected per operation or per
// record id.
type MockRemote struct {
	mu sync.Mutex

	Lists       map[models.Kind][]*models.ListEntry
	FriendList  []*models.Friend
	UserProfile *models.Profile

	PullErr    error
	FriendsErr error
	ProfileErr error
	PushErr    error           // returned by every push when set
	PushErrFor map[int64]error // returned for specific record ids

	// BeforePush runs ahead of each push; tests use it to cancel a pass or
	// edit a row while the push is "in flight".
	BeforePush func(e *models.ListEntry)

	pushes []PushCall
	pulls  int
}

// NewMockRemote returns an empty MockRemote.
func NewMockRemote() *MockRemote {
	return &MockRemote{Lists: map[models.Kind][]*models.ListEntry{}, PushErrFor: map[int64]error{}}
}

func (m *MockRemote) Name() string { return "mock" }

func (m *MockRemote) PullList(ctx context.Context, kind models.Kind) ([]*models.ListEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pulls++
	if m.PullErr != nil {
		return nil, m.PullErr
	}
	out := make([]*models.ListEntry, 0, len(m.Lists[kind]))
	for _, e := range m.Lists[kind] {
		out = append(out, e.Clone())
	}
	return out, nil
}

func (m *MockRemote) PushEntry(ctx context.Context, e *models.ListEntry, state models.SyncState) error {
	if m.BeforePush != nil {
		m.BeforePush(e)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pushes = append(m.pushes, PushCall{Entry: *e, State: state})
	if m.PushErr != nil {
		return m.PushErr
	}
	return m.PushErrFor[e.RecordID]
}

func (m *MockRemote) Friends(ctx context.Context) ([]*models.Friend, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FriendsErr != nil {
		return nil, m.FriendsErr
	}
	return m.FriendList, nil
}

func (m *MockRemote) Profile(ctx context.Context) (*models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ProfileErr != nil {
		return nil, m.ProfileErr
	}
	return m.UserProfile, nil
}

// Pushes returns a copy of the recorded pushes.
func (m *MockRemote) Pushes() []PushCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PushCall(nil), m.pushes...)
}

// Pulls returns how many list pulls were served.
func (m *MockRemote) Pulls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pulls
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
