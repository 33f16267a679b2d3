package broker

import "sync"

// offsetTracker records which fetched offsets have been settled, per
// partition. Kafka offset commits are cumulative: committing offset N
// acknowledges every earlier offset on that partition too. A commit may
// therefore only advance over a contiguous prefix of settled deliveries,
// otherwise an unsettled message below N would be acknowledged without
// ever being handled or dead-lettered.
type offsetTracker struct {
	mu         sync.Mutex
	partitions map[int]*partitionWindow
}

// partitionWindow keeps in-flight offsets in fetch order. settled holds
// every tracked offset; the value flips to true once the delivery
// settles.
type partitionWindow struct {
	order   []int64
	settled map[int64]bool
}

func newOffsetTracker() *offsetTracker {
	return &offsetTracker{partitions: make(map[int]*partitionWindow)}
}

// Track registers a fetched offset before its delivery is dispatched.
// Re-fetching an offset that is still in flight, which happens when a
// rebalance redelivers uncommitted messages, is a no-op.
func (t *offsetTracker) Track(partition int, offset int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	w := t.partitions[partition]
	if w == nil {
		w = &partitionWindow{settled: make(map[int64]bool)}
		t.partitions[partition] = w
	}
	if _, ok := w.settled[offset]; ok {
		return
	}
	w.order = append(w.order, offset)
	w.settled[offset] = false
}

// Settle marks offset as settled. When that completes a contiguous
// prefix of settled deliveries it returns the highest offset of the
// prefix and true. It returns false while an earlier offset on the
// partition is still unsettled; the eventual commit for that offset
// covers this one.
func (t *offsetTracker) Settle(partition int, offset int64) (int64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	w := t.partitions[partition]
	if w == nil {
		return 0, false
	}
	if _, ok := w.settled[offset]; !ok {
		return 0, false
	}
	w.settled[offset] = true

	var commit int64
	advanced := false
	for len(w.order) > 0 {
		head := w.order[0]
		if !w.settled[head] {
			break
		}
		delete(w.settled, head)
		w.order = w.order[1:]
		commit = head
		advanced = true
	}
	return commit, advanced
}
