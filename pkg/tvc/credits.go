// Package tvc implements the timely vote credit curve.
package tvc

import (
	"errors"
	"fmt"
)

const (
	// MaxCredit is the credit earned by a vote that lands within GraceSlots.
	MaxCredit = 16
	// MinCredit is earned by any landed vote, however late.
	MinCredit = 1
	// GraceSlots is the largest latency that still earns MaxCredit.
	GraceSlots = 1
)

// ErrInvalidLatency is returned when a vote lands before the slot it votes for.
var ErrInvalidLatency = errors.New("invalid latency")

// CreditResult is the latency and credit of a single vote.
type CreditResult struct {
	Latency   uint64 `json:"latency"`
	Credit    uint8  `json:"credit"`
	MaxCredit uint8  `json:"max_credit"`
}

// Missed returns the credits lost to latency.
func (r CreditResult) Missed() uint8 {
	return r.MaxCredit - r.Credit
}

// Compute maps a (voted, landing) slot pair to its latency and credit.
func Compute(votedSlot, landingSlot uint64) (CreditResult, error) {
	if landingSlot < votedSlot {
		return CreditResult{}, fmt.Errorf("%w: landing slot %d precedes voted slot %d", ErrInvalidLatency, landingSlot, votedSlot)
	}
	latency := landingSlot - votedSlot
	return CreditResult{
		Latency:   latency,
		Credit:    CreditFor(latency),
		MaxCredit: MaxCredit,
	}, nil
}

// CreditFor is the credit curve: full credit up to GraceSlots, then one credit
// less per extra slot, never below MinCredit.
func CreditFor(latency uint64) uint8 {
	if latency <= GraceSlots {
		return MaxCredit
	}
	if latency > MaxCredit {
		return MinCredit
	}
	return uint8(MaxCredit - (latency - GraceSlots))
}
