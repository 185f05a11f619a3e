// Package stream defines the inbound update sequence consumed by the engine.
package stream

import (
	"context"
	"errors"

	"github.com/gagliardetto/solana-go"
)

// ErrStreamDisconnected is returned by Recv once the transport is gone. The
// caller is expected to subscribe again.
var ErrStreamDisconnected = errors.New("stream disconnected")

// Update is an AccountUpdate or a SlotUpdate.
type Update interface {
	UpdateSlot() uint64
	UpdateType() string
}

// AccountUpdate carries the raw state of the watched account at Slot.
type AccountUpdate struct {
	Pubkey solana.PublicKey
	Slot   uint64
	Data   []byte
}

func (u AccountUpdate) UpdateSlot() uint64 { return u.Slot }
func (u AccountUpdate) UpdateType() string { return "account" }

// SlotUpdate reports chain progress independent of the account.
type SlotUpdate struct {
	Slot   uint64
	Parent uint64
	Root   uint64
}

func (u SlotUpdate) UpdateSlot() uint64 { return u.Slot }
func (u SlotUpdate) UpdateType() string { return "slot" }

// Source opens subscriptions for a vote account. Each call to Subscribe
// starts a fresh Stream; earlier streams must be closed by the caller.
type Source interface {
	Subscribe(ctx context.Context, account solana.PublicKey) (Stream, error)
}

// Stream is a lazy, unbounded sequence of updates. Delivery is at least once
// and may be gapped across reconnects.
type Stream interface {
	// Recv blocks until the next update, ctx cancellation, or disconnect.
	Recv(ctx context.Context) (Update, error)
	Close() error
}
