package testutil

import (
	"context"
	"sync"

	"github.com/1000xsh/voteperfx/pkg/detector"
	"github.com/1000xsh/voteperfx/pkg/epoch"
	"github.com/1000xsh/voteperfx/pkg/stats"
)

// CapturingSink records everything the engine dispatches to it.
type CapturingSink struct {
	mu     sync.Mutex
	events []detector.Event
	epochs []epoch.Window
	votes  []stats.VoteSample

	// Err is returned from every handler when set.
	Err error
}

func NewCapturingSink() *CapturingSink { return &CapturingSink{} }

func (c *CapturingSink) Name() string { return "capture" }

func (c *CapturingSink) HandleEvent(ctx context.Context, ev detector.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return c.Err
}

func (c *CapturingSink) HandleEpochClosed(ctx context.Context, w epoch.Window) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epochs = append(c.epochs, w)
	return c.Err
}

func (c *CapturingSink) HandleVote(ctx context.Context, v stats.VoteSample) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.votes = append(c.votes, v)
	return c.Err
}

func (c *CapturingSink) Events() []detector.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]detector.Event(nil), c.events...)
}

func (c *CapturingSink) Epochs() []epoch.Window {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]epoch.Window(nil), c.epochs...)
}

func (c *CapturingSink) Votes() []stats.VoteSample {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]stats.VoteSample(nil), c.votes...)
}
