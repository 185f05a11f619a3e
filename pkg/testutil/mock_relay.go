package testutil

import (
	"context"
	"sync"

	"github.com/nbd-wtf/go-nostr"
)

// MockRelay is a reusable mock that implements notify.Relay for tests.
type MockRelay struct {
	mu sync.Mutex

	QuerySyncReturn []*nostr.Event
	QuerySyncError  error
	PublishError    error
	CloseError      error

	QuerySyncCalls []nostr.Filter
	PublishCalls   []nostr.Event
	CloseCalled    bool
}

func (m *MockRelay) QuerySync(ctx context.Context, filter nostr.Filter) ([]*nostr.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.QuerySyncCalls = append(m.QuerySyncCalls, filter)
	return m.QuerySyncReturn, m.QuerySyncError
}

func (m *MockRelay) Publish(ctx context.Context, event nostr.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PublishCalls = append(m.PublishCalls, event)
	return m.PublishError
}

func (m *MockRelay) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CloseCalled = true
	return m.CloseError
}

// Published returns a copy of the published events.
func (m *MockRelay) Published() []nostr.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]nostr.Event, len(m.PublishCalls))
	copy(out, m.PublishCalls)
	return out
}
