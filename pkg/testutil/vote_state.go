package testutil

import (
	"bytes"
	"encoding/binary"

	"github.com/gagliardetto/solana-go"
)

// Vote account layout tags.
const (
	VoteStateV1_14_11 uint32 = 1
	VoteStateCurrent  uint32 = 2
)

// Test identities shared across packages.
var (
	TestVoteAccount  = fixedKey(0x11)
	TestNodeIdentity = fixedKey(0x22)
	TestWithdrawer   = fixedKey(0x33)
	TestOtherAccount = fixedKey(0x44)
)

func fixedKey(b byte) solana.PublicKey {
	return solana.PublicKeyFromBytes(bytes.Repeat([]byte{b}, solana.PublicKeyLength))
}

// TowerVote is one entry of an encoded vote tower.
type TowerVote struct {
	Slot         uint64
	Confirmation uint32
	Latency      uint8
}

// VoteStateBuilder encodes vote account data the way the vote program
// serializes VoteStateVersions.
type VoteStateBuilder struct {
	Version      uint32
	Node         solana.PublicKey
	Withdrawer   solana.PublicKey
	Commission   uint8
	Votes        []TowerVote
	Root         *uint64
	Voters       map[uint64]solana.PublicKey
	EpochCredits [][3]uint64
	LastSlot     uint64
	LastUnixTime int64
	// Padding appends zero bytes, as real accounts are allocated larger
	// than their content.
	Padding int
}

func NewVoteState() *VoteStateBuilder {
	return &VoteStateBuilder{
		Version:    VoteStateCurrent,
		Node:       TestNodeIdentity,
		Withdrawer: TestWithdrawer,
		Commission: 5,
		Voters:     map[uint64]solana.PublicKey{0: TestNodeIdentity},
	}
}

// WithVotes replaces the tower with slots, oldest first, without on-chain
// latency.
func (b *VoteStateBuilder) WithVotes(slots ...uint64) *VoteStateBuilder {
	b.Votes = b.Votes[:0]
	for i, s := range slots {
		b.Votes = append(b.Votes, TowerVote{Slot: s, Confirmation: uint32(len(slots) - i)})
	}
	return b
}

// WithLandedVote appends a vote carrying its on-chain latency.
func (b *VoteStateBuilder) WithLandedVote(slot uint64, latency uint8) *VoteStateBuilder {
	b.Votes = append(b.Votes, TowerVote{Slot: slot, Confirmation: 1, Latency: latency})
	return b
}

func (b *VoteStateBuilder) WithRoot(slot uint64) *VoteStateBuilder {
	b.Root = &slot
	return b
}

func (b *VoteStateBuilder) WithEpochCredits(epoch, credits, prev uint64) *VoteStateBuilder {
	b.EpochCredits = append(b.EpochCredits, [3]uint64{epoch, credits, prev})
	return b
}

func (b *VoteStateBuilder) Build() []byte {
	le := binary.LittleEndian
	out := le.AppendUint32(nil, b.Version)
	out = append(out, b.Node[:]...)
	out = append(out, b.Withdrawer[:]...)
	out = append(out, b.Commission)

	out = le.AppendUint64(out, uint64(len(b.Votes)))
	for _, v := range b.Votes {
		if b.Version == VoteStateCurrent {
			out = append(out, v.Latency)
		}
		out = le.AppendUint64(out, v.Slot)
		out = le.AppendUint32(out, v.Confirmation)
	}

	if b.Root != nil {
		out = append(out, 1)
		out = le.AppendUint64(out, *b.Root)
	} else {
		out = append(out, 0)
	}

	out = le.AppendUint64(out, uint64(len(b.Voters)))
	for epoch := uint64(0); len(b.Voters) > 0 && epoch <= maxKey(b.Voters); epoch++ {
		if pk, ok := b.Voters[epoch]; ok {
			out = le.AppendUint64(out, epoch)
			out = append(out, pk[:]...)
		}
	}

	// prior voters: 32 entries of (pubkey, epoch, epoch), index, is_empty
	out = append(out, make([]byte, 32*48+8)...)
	out = append(out, 1)

	out = le.AppendUint64(out, uint64(len(b.EpochCredits)))
	for _, ec := range b.EpochCredits {
		out = le.AppendUint64(out, ec[0])
		out = le.AppendUint64(out, ec[1])
		out = le.AppendUint64(out, ec[2])
	}

	out = le.AppendUint64(out, b.LastSlot)
	out = le.AppendUint64(out, uint64(b.LastUnixTime))

	return append(out, make([]byte, b.Padding)...)
}

func maxKey(m map[uint64]solana.PublicKey) uint64 {
	var top uint64
	for k := range m {
		if k > top {
			top = k
		}
	}
	return top
}
