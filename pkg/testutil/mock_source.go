package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/gagliardetto/solana-go"

	"github.com/1000xsh/voteperfx/pkg/stream"
)

// Step is one scripted item of a MockStream: an update, or an error ending
// the stream.
type Step struct {
	Update stream.Update
	Err    error
}

// Disconnect ends a scripted stream with stream.ErrStreamDisconnected.
var Disconnect = Step{Err: stream.ErrStreamDisconnected}

// MockSource hands out one scripted MockStream per Subscribe call. Once the
// scripts run out, Subscribe blocks until ctx is done.
type MockSource struct {
	mu      sync.Mutex
	scripts [][]Step
	// SubscribeErrors are returned, in order, before each script is used.
	SubscribeErrors []error

	Subscribes int
	Accounts   []solana.PublicKey
	Streams    []*MockStream
}

func NewMockSource(scripts ...[]Step) *MockSource {
	return &MockSource{scripts: scripts}
}

func (m *MockSource) Subscribe(ctx context.Context, account solana.PublicKey) (stream.Stream, error) {
	m.mu.Lock()
	m.Subscribes++
	m.Accounts = append(m.Accounts, account)
	if len(m.SubscribeErrors) > 0 {
		err := m.SubscribeErrors[0]
		m.SubscribeErrors = m.SubscribeErrors[1:]
		m.mu.Unlock()
		return nil, err
	}
	if len(m.scripts) == 0 {
		m.mu.Unlock()
		<-ctx.Done()
		return nil, ctx.Err()
	}
	st := &MockStream{steps: m.scripts[0]}
	m.scripts = m.scripts[1:]
	m.Streams = append(m.Streams, st)
	m.mu.Unlock()
	return st, nil
}

func (m *MockSource) SubscribeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Subscribes
}

// MockStream replays its steps, then blocks until ctx is done.
type MockStream struct {
	mu     sync.Mutex
	steps  []Step
	closed bool
}

func (s *MockStream) Recv(ctx context.Context) (stream.Update, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, errors.New("recv on closed stream")
	}
	if len(s.steps) == 0 {
		s.mu.Unlock()
		<-ctx.Done()
		return nil, ctx.Err()
	}
	step := s.steps[0]
	s.steps = s.steps[1:]
	s.mu.Unlock()

	if step.Err != nil {
		return nil, step.Err
	}
	return step.Update, nil
}

func (s *MockStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *MockStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// AccountStep wraps an account update for the test vote account.
func AccountStep(slot uint64, data []byte) Step {
	return Step{Update: stream.AccountUpdate{Pubkey: TestVoteAccount, Slot: slot, Data: data}}
}

// SlotStep wraps a slot update.
func SlotStep(slot uint64) Step {
	return Step{Update: stream.SlotUpdate{Slot: slot, Parent: slot - 1}}
}
