// Package vote decodes vote account updates into newly landed votes.
package vote

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/1000xsh/voteperfx/pkg/stream"
)

// Record is one vote observed landing on chain.
type Record struct {
	VotedSlot         uint64 `json:"voted_slot"`
	LandingSlot       uint64 `json:"landing_slot"`
	ConfirmationCount uint32 `json:"confirmation_count"`
}

// Result of decoding one account update.
type Result struct {
	// Votes newly observed since the previous decode, oldest first.
	Votes    []Record
	RootSlot *uint64
	State    *State
	// Baseline is set on the first decode, whose tower only seeds the
	// dedup set.
	Baseline bool
	// Untimed counts votes without a recorded latency that were seeded
	// instead of scored because they landed while the stream was down.
	Untimed int
}

// Decoder turns account updates for a single vote account into new votes.
// It is not safe for concurrent use.
type Decoder struct {
	account  solana.PublicKey
	seen     *slotSet
	seeded   bool
	lastSlot uint64

	// resuming is set between Resume and the first slot seen afterwards.
	resuming      bool
	untimedBefore uint64
}

func NewDecoder(account solana.PublicKey, capacity int) (*Decoder, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("dedup capacity must be positive, got %d", capacity)
	}
	return &Decoder{
		account: account,
		seen:    newSlotSet(capacity),
	}, nil
}

// ObserveSlot records the latest chain slot. It stands in for the landing slot
// of account updates that carry none.
func (d *Decoder) ObserveSlot(slot uint64) {
	d.markResumed(slot)
	if slot > d.lastSlot {
		d.lastSlot = slot
	}
}

// Resume marks a stream restart. Votes without a recorded latency on slots
// before the first slot observed afterwards have no known landing slot; they
// are seeded and reported in Result.Untimed rather than scored.
func (d *Decoder) Resume() {
	d.resuming = true
}

func (d *Decoder) markResumed(slot uint64) {
	if d.resuming && slot > 0 {
		d.untimedBefore = slot
		d.resuming = false
	}
}

// Decode parses update and returns the votes not seen before.
func (d *Decoder) Decode(update stream.AccountUpdate) (Result, error) {
	if !update.Pubkey.Equals(d.account) {
		return Result{}, decodeErr(fmt.Sprintf("account %s does not match %s", update.Pubkey, d.account), nil)
	}

	st, err := ParseState(update.Data)
	if err != nil {
		return Result{}, err
	}
	res := Result{RootSlot: st.RootSlot, State: st}

	if !d.seeded {
		for _, lo := range st.Votes {
			d.seen.Add(lo.Slot)
		}
		d.seeded = true
		res.Baseline = true
		return res, nil
	}

	d.markResumed(update.Slot)
	base := update.Slot
	if base == 0 {
		base = d.lastSlot
	}

	var fresh []Record
	for _, lo := range st.Votes {
		if d.seen.Contains(lo.Slot) {
			continue
		}
		timed := lo.Latency > 0 && lo.Latency < 255
		if !timed && (d.resuming || lo.Slot < d.untimedBefore) {
			d.seen.Add(lo.Slot)
			res.Untimed++
			continue
		}
		landing := base
		if timed {
			landing = lo.Slot + uint64(lo.Latency)
		}
		if landing == 0 {
			return Result{}, decodeErr(fmt.Sprintf("no landing slot known for vote on slot %d", lo.Slot), nil)
		}
		fresh = append(fresh, Record{
			VotedSlot:         lo.Slot,
			LandingSlot:       landing,
			ConfirmationCount: lo.ConfirmationCount,
		})
	}
	for _, r := range fresh {
		d.seen.Add(r.VotedSlot)
	}
	res.Votes = fresh
	return res, nil
}

// slotSet remembers the most recent capacity slots, evicting the oldest.
type slotSet struct {
	keys  map[uint64]struct{}
	order []uint64
	next  int
}

func newSlotSet(capacity int) *slotSet {
	return &slotSet{
		keys:  make(map[uint64]struct{}, capacity),
		order: make([]uint64, 0, capacity),
	}
}

func (s *slotSet) Contains(slot uint64) bool {
	_, ok := s.keys[slot]
	return ok
}

func (s *slotSet) Add(slot uint64) {
	if s.Contains(slot) {
		return
	}
	if len(s.order) < cap(s.order) {
		s.order = append(s.order, slot)
	} else {
		delete(s.keys, s.order[s.next])
		s.order[s.next] = slot
		s.next = (s.next + 1) % len(s.order)
	}
	s.keys[slot] = struct{}{}
}

