package broker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOffsetTrackerCommitsContiguousPrefix(t *testing.T) {
	tr := newOffsetTracker()
	tr.Track(0, 10)
	tr.Track(0, 11)
	tr.Track(0, 12)

	commit, ok := tr.Settle(0, 10)
	require.True(t, ok)
	assert.Equal(t, int64(10), commit)

	commit, ok = tr.Settle(0, 11)
	require.True(t, ok)
	assert.Equal(t, int64(11), commit)

	commit, ok = tr.Settle(0, 12)
	require.True(t, ok)
	assert.Equal(t, int64(12), commit)
}

func TestOffsetTrackerHoldsCommitBelowUnsettledDelivery(t *testing.T) {
	tr := newOffsetTracker()
	tr.Track(0, 1)
	tr.Track(0, 2)
	tr.Track(0, 3)

	// Offsets 1 and 2 stay unsettled, as deferred deliveries do. Settling
	// offset 3 must not produce a commit marker, or the deferred messages
	// would be acknowledged and never redelivered.
	_, ok := tr.Settle(0, 3)
	assert.False(t, ok)

	_, ok = tr.Settle(0, 2)
	assert.False(t, ok)

	// Once the oldest delivery settles, one commit covers all three.
	commit, ok := tr.Settle(0, 1)
	require.True(t, ok)
	assert.Equal(t, int64(3), commit)
}

func TestOffsetTrackerHandlesOffsetGaps(t *testing.T) {
	tr := newOffsetTracker()
	tr.Track(0, 5)
	tr.Track(0, 7)

	commit, ok := tr.Settle(0, 5)
	require.True(t, ok)
	assert.Equal(t, int64(5), commit)

	commit, ok = tr.Settle(0, 7)
	require.True(t, ok)
	assert.Equal(t, int64(7), commit)
}

func TestOffsetTrackerPartitionsAreIndependent(t *testing.T) {
	tr := newOffsetTracker()
	tr.Track(0, 4)
	tr.Track(1, 9)

	commit, ok := tr.Settle(1, 9)
	require.True(t, ok)
	assert.Equal(t, int64(9), commit)

	_, ok = tr.Settle(1, 9)
	assert.False(t, ok, "an offset settles once")

	commit, ok = tr.Settle(0, 4)
	require.True(t, ok)
	assert.Equal(t, int64(4), commit)
}

func TestOffsetTrackerIgnoresRefetchedInFlightOffset(t *testing.T) {
	tr := newOffsetTracker()
	tr.Track(0, 8)
	tr.Track(0, 9)
	tr.Track(0, 8)

	_, ok := tr.Settle(0, 9)
	require.False(t, ok)

	commit, ok := tr.Settle(0, 8)
	require.True(t, ok)
	assert.Equal(t, int64(9), commit)
}
