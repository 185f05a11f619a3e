package detector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1000xsh/voteperfx/pkg/tvc"
	"github.com/1000xsh/voteperfx/pkg/vote"
)

type MockClock struct{ current time.Time }

func (m *MockClock) Now() time.Time          { return m.current }
func (m *MockClock) Advance(d time.Duration) { m.current = m.current.Add(d) }

type fixedEfficiency float64

func (f fixedEfficiency) Efficiency() float64 { return float64(f) }

var testPolicy = Policy{HardLatency: 8, SoftEfficiency: 0.9, Cooldown: time.Minute}

func newTestDetector(t *testing.T, clock *MockClock) *Detector {
	t.Helper()
	d, err := New(testPolicy, "Vote111111111111111111111111111111111111111", clock.Now)
	require.NoError(t, err)
	return d
}

func record(voted, latency uint64) (vote.Record, tvc.CreditResult) {
	cr, _ := tvc.Compute(voted, voted+latency)
	return vote.Record{VotedSlot: voted, LandingSlot: voted + latency}, cr
}

func TestPolicy_Validate(t *testing.T) {
	testCases := []struct {
		name   string
		policy Policy
	}{
		{"zero hard latency", Policy{HardLatency: 0, SoftEfficiency: 0.9}},
		{"zero efficiency", Policy{HardLatency: 4, SoftEfficiency: 0}},
		{"efficiency above one", Policy{HardLatency: 4, SoftEfficiency: 1.5}},
		{"negative cooldown", Policy{HardLatency: 4, SoftEfficiency: 0.9, Cooldown: -time.Second}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.policy, "", nil)
			assert.Error(t, err)
		})
	}
}

func TestDetector_HealthyVoteIsQuiet(t *testing.T) {
	d := newTestDetector(t, &MockClock{current: time.Unix(1000, 0)})
	v, cr := record(100, 1)
	assert.Nil(t, d.Evaluate(v, 1, cr, fixedEfficiency(1)))
}

func TestDetector_HardThresholdAlwaysEmits(t *testing.T) {
	clock := &MockClock{current: time.Unix(1000, 0)}
	d := newTestDetector(t, clock)

	for i := 0; i < 5; i++ {
		v, cr := record(uint64(100+i), 12)
		ev := d.Evaluate(v, 3, cr, fixedEfficiency(0.95))
		require.NotNil(t, ev, "vote %d", i)
		assert.Equal(t, ReasonLatencyExceeded, ev.Reason)
		assert.Equal(t, uint64(12), ev.Latency)
		assert.Equal(t, uint8(5), ev.Credit)
		assert.Equal(t, uint8(tvc.MaxCredit), ev.MaxCredit)
		assert.Equal(t, uint64(3), ev.Epoch)
		assert.Equal(t, clock.current, ev.Timestamp)
		assert.NotEmpty(t, ev.ID)
	}
}

func TestDetector_LatencyAtThresholdIsNotLate(t *testing.T) {
	d := newTestDetector(t, &MockClock{current: time.Unix(1000, 0)})
	v, cr := record(100, 8)
	assert.Nil(t, d.Evaluate(v, 1, cr, fixedEfficiency(1)))
}

func TestDetector_EfficiencyCooldown(t *testing.T) {
	clock := &MockClock{current: time.Unix(1000, 0)}
	d := newTestDetector(t, clock)
	v, cr := record(100, 3)

	ev := d.Evaluate(v, 1, cr, fixedEfficiency(0.5))
	require.NotNil(t, ev)
	assert.Equal(t, ReasonEfficiencyBelow, ev.Reason)
	assert.Equal(t, 0.5, ev.Efficiency)

	clock.Advance(30 * time.Second)
	assert.Nil(t, d.Evaluate(v, 1, cr, fixedEfficiency(0.4)))
	assert.Equal(t, uint64(1), d.Suppressed())

	clock.Advance(30 * time.Second)
	ev = d.Evaluate(v, 1, cr, fixedEfficiency(0.4))
	require.NotNil(t, ev)
	assert.Equal(t, ReasonEfficiencyBelow, ev.Reason)
}

func TestDetector_LateVoteDuringCooldown(t *testing.T) {
	clock := &MockClock{current: time.Unix(1000, 0)}
	d := newTestDetector(t, clock)

	v, cr := record(100, 20)
	ev := d.Evaluate(v, 1, cr, fixedEfficiency(0.5))
	require.NotNil(t, ev)
	assert.Equal(t, ReasonLatencyAndEfficiency, ev.Reason)

	clock.Advance(time.Second)
	ev = d.Evaluate(v, 1, cr, fixedEfficiency(0.5))
	require.NotNil(t, ev, "late votes are reported even while efficiency is cooling down")
	assert.Equal(t, ReasonLatencyExceeded, ev.Reason)
}
