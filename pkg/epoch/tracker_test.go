package epoch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1000xsh/voteperfx/pkg/tvc"
)

func mustCompute(t *testing.T, voted, landing uint64) tvc.CreditResult {
	t.Helper()
	cr, err := tvc.Compute(voted, landing)
	require.NoError(t, err)
	return cr
}

func TestNewTracker_Validation(t *testing.T) {
	_, err := NewTracker(0, 3)
	assert.Error(t, err)
	_, err = NewTracker(10, 0)
	assert.Error(t, err)
}

func TestTracker_FirstObservationOpensWindow(t *testing.T) {
	tr, err := NewTracker(10, 3)
	require.NoError(t, err)

	_, ok := tr.Current()
	assert.False(t, ok)

	assert.Nil(t, tr.Observe(43))
	w, ok := tr.Current()
	require.True(t, ok)
	assert.Equal(t, Window{Epoch: 4, StartSlot: 40, EndSlot: 49}, w)
}

func TestTracker_BoundaryTransition(t *testing.T) {
	tr, err := NewTracker(10, 3)
	require.NoError(t, err)

	for _, landing := range []uint64{45, 47, 49} {
		attr, trans := tr.Record(landing, mustCompute(t, landing-3, landing))
		assert.Nil(t, trans)
		assert.Equal(t, AttributedCurrent, attr)
	}

	attr, trans := tr.Record(50, mustCompute(t, 49, 50))
	require.NotNil(t, trans)
	assert.Equal(t, AttributedCurrent, attr)

	closed := trans.Closed
	assert.Equal(t, uint64(4), closed.Epoch)
	assert.Equal(t, uint64(3), closed.VotesSeen)
	assert.Equal(t, closed.VotesSeen*tvc.MaxCredit, closed.CreditsPossible)
	assert.Equal(t, uint64(3*14), closed.CreditsEarned)
	assert.Equal(t, uint64(5), trans.Opened)
	assert.Zero(t, trans.Skipped)

	w, _ := tr.Current()
	assert.Equal(t, uint64(5), w.Epoch)
	assert.Equal(t, uint64(50), w.StartSlot)
	assert.Equal(t, uint64(59), w.EndSlot)
	assert.Equal(t, uint64(1), w.VotesSeen)
	assert.Equal(t, uint64(16), w.CreditsEarned)
}

func TestTracker_FreshWindowIsZeroed(t *testing.T) {
	tr, _ := NewTracker(10, 3)
	tr.Record(41, mustCompute(t, 40, 41))

	trans := tr.Observe(50)
	require.NotNil(t, trans)

	w, _ := tr.Current()
	assert.Zero(t, w.CreditsEarned)
	assert.Zero(t, w.CreditsPossible)
	assert.Zero(t, w.VotesSeen)
}

func TestTracker_SkippedEpochsStayMonotonic(t *testing.T) {
	tr, _ := NewTracker(10, 3)
	tr.Observe(5)

	trans := tr.Observe(37)
	require.NotNil(t, trans)
	assert.Equal(t, uint64(0), trans.Closed.Epoch)
	assert.Equal(t, uint64(3), trans.Opened)
	assert.Equal(t, uint64(2), trans.Skipped)

	// later slots inside the live window never transition
	assert.Nil(t, tr.Observe(39))
	assert.Nil(t, tr.Observe(12))
}

func TestTracker_LateVoteGoesToArchive(t *testing.T) {
	tr, _ := NewTracker(10, 3)
	tr.Record(45, mustCompute(t, 44, 45))
	tr.Record(52, mustCompute(t, 51, 52))

	attr, trans := tr.Record(48, mustCompute(t, 46, 48))
	assert.Nil(t, trans)
	assert.Equal(t, AttributedArchived, attr)

	history := tr.History()
	require.Len(t, history, 1)
	assert.Equal(t, uint64(2), history[0].VotesSeen)
	assert.Equal(t, uint64(16+15), history[0].CreditsEarned)

	archived, ok := tr.Archived(4)
	require.True(t, ok)
	assert.Equal(t, history[0], archived)
	_, ok = tr.Archived(5)
	assert.False(t, ok, "live window is not archived")

	w, _ := tr.Current()
	assert.Equal(t, uint64(1), w.VotesSeen, "late vote must not be counted in the live window")
}

func TestTracker_LateVoteDroppedBeyondRetention(t *testing.T) {
	tr, _ := NewTracker(10, 2)
	for _, landing := range []uint64{5, 15, 25, 35} {
		tr.Record(landing, mustCompute(t, landing, landing))
	}

	history := tr.History()
	require.Len(t, history, 2)
	assert.Equal(t, uint64(1), history[0].Epoch)
	assert.Equal(t, uint64(2), history[1].Epoch)

	attr, _ := tr.Record(7, mustCompute(t, 6, 7))
	assert.Equal(t, AttributionDropped, attr)

	for _, w := range tr.History() {
		assert.LessOrEqual(t, w.CreditsEarned, w.CreditsPossible)
	}
}

func TestWindow_Efficiency(t *testing.T) {
	assert.Equal(t, 1.0, Window{}.Efficiency())
	w := Window{CreditsEarned: 24, CreditsPossible: 32}
	assert.Equal(t, 0.75, w.Efficiency())
	assert.Equal(t, uint64(8), w.Missed())
}
