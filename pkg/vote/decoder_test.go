package vote_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1000xsh/voteperfx/pkg/stream"
	"github.com/1000xsh/voteperfx/pkg/testutil"
	"github.com/1000xsh/voteperfx/pkg/vote"
)

func newDecoder(t *testing.T) *vote.Decoder {
	t.Helper()
	d, err := vote.NewDecoder(testutil.TestVoteAccount, 64)
	require.NoError(t, err)
	return d
}

func update(slot uint64, b *testutil.VoteStateBuilder) stream.AccountUpdate {
	return stream.AccountUpdate{Pubkey: testutil.TestVoteAccount, Slot: slot, Data: b.Build()}
}

func votedSlots(recs []vote.Record) []uint64 {
	out := make([]uint64, len(recs))
	for i, r := range recs {
		out[i] = r.VotedSlot
	}
	return out
}

func TestNewDecoder_RejectsZeroCapacity(t *testing.T) {
	_, err := vote.NewDecoder(testutil.TestVoteAccount, 0)
	require.Error(t, err)
}

func TestDecode_FirstUpdateIsBaseline(t *testing.T) {
	d := newDecoder(t)

	res, err := d.Decode(update(100, testutil.NewVoteState().WithVotes(95, 96, 97).WithRoot(80)))
	require.NoError(t, err)
	assert.True(t, res.Baseline)
	assert.Empty(t, res.Votes)
	require.NotNil(t, res.RootSlot)
	assert.Equal(t, uint64(80), *res.RootSlot)

	res, err = d.Decode(update(101, testutil.NewVoteState().WithVotes(95, 96, 97)))
	require.NoError(t, err)
	assert.False(t, res.Baseline)
	assert.Empty(t, res.Votes)
}

func TestDecode_Idempotent(t *testing.T) {
	d := newDecoder(t)
	_, err := d.Decode(update(100, testutil.NewVoteState().WithVotes(90)))
	require.NoError(t, err)

	payload := testutil.NewVoteState().WithVotes(90).WithLandedVote(98, 2).WithLandedVote(99, 1)
	res, err := d.Decode(update(100, payload))
	require.NoError(t, err)
	assert.Equal(t, []uint64{98, 99}, votedSlots(res.Votes))

	res, err = d.Decode(update(100, payload))
	require.NoError(t, err)
	assert.Empty(t, res.Votes)
}

func TestDecode_OverlapYieldsOnlyNewVotes(t *testing.T) {
	d := newDecoder(t)
	_, err := d.Decode(update(100, testutil.NewVoteState().WithVotes(90, 91)))
	require.NoError(t, err)

	// tower pops 90 and adds 92, 93
	res, err := d.Decode(update(105, testutil.NewVoteState().WithVotes(91, 92, 93)))
	require.NoError(t, err)
	assert.Equal(t, []uint64{92, 93}, votedSlots(res.Votes))
	for _, r := range res.Votes {
		assert.Equal(t, uint64(105), r.LandingSlot)
	}
}

func TestDecode_LandingSlot(t *testing.T) {
	testCases := []struct {
		name       string
		updateSlot uint64
		observed   uint64
		vote       testutil.TowerVote
		want       uint64
	}{
		{"on-chain latency", 500, 0, testutil.TowerVote{Slot: 200, Latency: 3}, 203},
		{"latency unset uses update slot", 500, 0, testutil.TowerVote{Slot: 200}, 500},
		{"saturated latency uses update slot", 500, 0, testutil.TowerVote{Slot: 200, Latency: 255}, 500},
		{"slotless update uses observed slot", 0, 480, testutil.TowerVote{Slot: 200}, 480},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d := newDecoder(t)
			_, err := d.Decode(update(10, testutil.NewVoteState()))
			require.NoError(t, err)
			d.ObserveSlot(tc.observed)

			b := testutil.NewVoteState()
			b.Votes = []testutil.TowerVote{tc.vote}
			res, err := d.Decode(update(tc.updateSlot, b))
			require.NoError(t, err)
			require.Len(t, res.Votes, 1)
			assert.Equal(t, tc.want, res.Votes[0].LandingSlot)
		})
	}
}

func TestDecode_NoLandingSlotKnown(t *testing.T) {
	d := newDecoder(t)
	_, err := d.Decode(update(0, testutil.NewVoteState()))
	require.NoError(t, err)

	_, err = d.Decode(update(0, testutil.NewVoteState().WithVotes(7)))
	require.ErrorIs(t, err, vote.ErrDecode)

	// the failed update must not have marked slot 7 as seen
	d.ObserveSlot(9)
	res, err := d.Decode(update(0, testutil.NewVoteState().WithVotes(7)))
	require.NoError(t, err)
	assert.Equal(t, []uint64{7}, votedSlots(res.Votes))
}

func legacyTower(slots ...uint64) *testutil.VoteStateBuilder {
	b := testutil.NewVoteState().WithVotes(slots...)
	b.Version = testutil.VoteStateV1_14_11
	return b
}

func TestDecode_ResumeSeedsUntimedGapVotes(t *testing.T) {
	d := newDecoder(t)
	_, err := d.Decode(update(100, legacyTower(98, 99, 100)))
	require.NoError(t, err)

	d.Resume()
	d.ObserveSlot(600)
	res, err := d.Decode(update(600, legacyTower(98, 99, 100, 101, 102, 599)))
	require.NoError(t, err)
	assert.Empty(t, res.Votes, "gap votes have no known landing slot")
	assert.Equal(t, 3, res.Untimed)

	res, err = d.Decode(update(602, legacyTower(98, 99, 100, 101, 102, 599, 601)))
	require.NoError(t, err)
	require.Len(t, res.Votes, 1)
	assert.Equal(t, uint64(601), res.Votes[0].VotedSlot)
	assert.Equal(t, uint64(602), res.Votes[0].LandingSlot)
	assert.Zero(t, res.Untimed)
}

func TestDecode_ResumeBeforeAnySlot(t *testing.T) {
	d := newDecoder(t)
	_, err := d.Decode(update(100, testutil.NewVoteState().WithVotes(100)))
	require.NoError(t, err)
	d.Resume()

	// slotless update while no slot has been seen since the restart
	res, err := d.Decode(update(0, testutil.NewVoteState().WithVotes(100, 250)))
	require.NoError(t, err)
	assert.Empty(t, res.Votes)
	assert.Equal(t, 1, res.Untimed)

	// votes with recorded latency are always scored
	payload := testutil.NewVoteState().WithVotes(100, 250).WithLandedVote(300, 2).WithLandedVote(599, 1)
	res, err = d.Decode(update(600, payload))
	require.NoError(t, err)
	assert.Equal(t, []uint64{300, 599}, votedSlots(res.Votes))
	assert.Equal(t, uint64(302), res.Votes[0].LandingSlot)
	assert.Equal(t, uint64(600), res.Votes[1].LandingSlot)
	assert.Zero(t, res.Untimed)
}

func TestDecode_Errors(t *testing.T) {
	valid := testutil.NewVoteState().WithVotes(1, 2).Build()

	testCases := []struct {
		name   string
		update stream.AccountUpdate
	}{
		{"pubkey mismatch", stream.AccountUpdate{Pubkey: testutil.TestOtherAccount, Slot: 5, Data: valid}},
		{"empty payload", stream.AccountUpdate{Pubkey: testutil.TestVoteAccount, Slot: 5}},
		{"truncated payload", stream.AccountUpdate{Pubkey: testutil.TestVoteAccount, Slot: 5, Data: valid[:len(valid)-4]}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d := newDecoder(t)
			_, err := d.Decode(tc.update)
			require.ErrorIs(t, err, vote.ErrDecode)

			var de *vote.DecodeError
			require.ErrorAs(t, err, &de)
			assert.NotEmpty(t, de.Reason)
		})
	}
}

func TestDecode_DedupEvictsOldest(t *testing.T) {
	d, err := vote.NewDecoder(testutil.TestVoteAccount, 2)
	require.NoError(t, err)
	_, err = d.Decode(update(10, testutil.NewVoteState().WithVotes(1, 2)))
	require.NoError(t, err)

	res, err := d.Decode(update(10, testutil.NewVoteState().WithVotes(3)))
	require.NoError(t, err)
	assert.Equal(t, []uint64{3}, votedSlots(res.Votes))

	// slot 1 was evicted to make room for 3
	res, err = d.Decode(update(10, testutil.NewVoteState().WithVotes(1, 2, 3)))
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, votedSlots(res.Votes))
}
