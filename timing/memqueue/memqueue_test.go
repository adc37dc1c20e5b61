package memqueue_test

import (
	"testing"

	"github.com/sarchlab/rsim/config"
	"github.com/sarchlab/rsim/insts"
	"github.com/sarchlab/rsim/rsimerr"
	"github.com/sarchlab/rsim/timing/memqueue"
)

func TestSCQueueFillsAndDrains(t *testing.T) {
	q := memqueue.New(config.SC, 2, true)
	in1 := &insts.Instance{}
	in2 := &insts.Instance{}
	in3 := &insts.Instance{}

	h1 := q.IssueLoad(in1, 0x100)
	if h1 == nil {
		t.Fatal("expected room for first load")
	}
	h2 := q.IssueStore(in2, 0x200)
	if h2 == nil {
		t.Fatal("expected room for second entry")
	}
	if q.IssueLoad(in3, 0x300) != nil {
		t.Fatal("expected queue full at capacity 2")
	}
	if q.Drained() {
		t.Fatal("queue should not be drained with outstanding entries")
	}

	q.MarkComplete(h1)
	q.MarkComplete(h2)
	if !q.Drained() {
		t.Fatal("queue should be drained once both entries complete")
	}
	if q.IssueLoad(in3, 0x300) == nil {
		t.Fatal("expected room after compaction")
	}
}

func TestRMWRequiresDrainedQueue(t *testing.T) {
	q := memqueue.New(config.PC, 4, true)
	in1 := &insts.Instance{}
	h1 := q.IssueLoad(in1, 0x100)

	rmwIn := &insts.Instance{}
	if q.IssueRMW(rmwIn, 0x100) != nil {
		t.Fatal("RMW must not issue while an earlier entry is outstanding")
	}
	q.MarkComplete(h1)
	if q.IssueRMW(rmwIn, 0x100) == nil {
		t.Fatal("RMW should issue once the queue drains")
	}
}

func TestSpecLoadBufCoheSquashesOnlySpeculativeLoadsToMatchingLine(t *testing.T) {
	q := memqueue.New(config.RC, 4, true)
	in := &insts.Instance{}
	h := q.IssueLoad(in, 0xABC)
	h.MarkSpeculativeHit()

	q.SpecLoadBufCohe(0xDEF, rsimerr.SoftSpecLoadCohe)
	if h.Squashed() != rsimerr.OK {
		t.Fatal("coherence on an unrelated line must not squash")
	}

	q.SpecLoadBufCohe(0xABC, rsimerr.SoftSpecLoadCohe)
	if h.Squashed() != rsimerr.SoftSpecLoadCohe {
		t.Fatal("coherence on the matching line must soft-squash the speculative load")
	}
}

func TestMarkCompleteAutoDetectsSpeculativeLoad(t *testing.T) {
	q := memqueue.New(config.SC, 4, true)
	olderStore := &insts.Instance{}
	youngerLoad := &insts.Instance{}

	hStore := q.IssueStore(olderStore, 0x100)
	hLoad := q.IssueLoad(youngerLoad, 0x200)

	// The younger load completes first, ahead of the older still-
	// outstanding store: MarkComplete must flag it speculative on its own,
	// with no explicit MarkSpeculativeHit call from the caller.
	q.MarkComplete(hLoad)
	q.SpecLoadBufCohe(0x200, rsimerr.SoftSpecLoadCohe)
	if hLoad.Squashed() != rsimerr.SoftSpecLoadCohe {
		t.Fatal("a load completing out of order must be auto-flagged speculative and squashed on a matching invalidation")
	}

	q.MarkComplete(hStore)
}

func TestMarkCompleteDoesNotFlagInOrderCompletion(t *testing.T) {
	q := memqueue.New(config.SC, 4, true)
	older := &insts.Instance{}
	younger := &insts.Instance{}

	hOlder := q.IssueLoad(older, 0x100)
	hYounger := q.IssueLoad(younger, 0x200)

	// Completing strictly in program order is never speculative.
	q.MarkComplete(hOlder)
	q.MarkComplete(hYounger)

	q.SpecLoadBufCohe(0x200, rsimerr.SoftSpecLoadCohe)
	if hYounger.Squashed() != rsimerr.OK {
		t.Fatal("an in-order completion must not be squashed by a later invalidation")
	}
}

func TestMarkCompleteIgnoresSpeculationWhenDisabled(t *testing.T) {
	q := memqueue.New(config.SC, 4, false)
	olderStore := &insts.Instance{}
	youngerLoad := &insts.Instance{}

	hStore := q.IssueStore(olderStore, 0x100)
	hLoad := q.IssueLoad(youngerLoad, 0x200)

	q.MarkComplete(hLoad)
	q.SpecLoadBufCohe(0x200, rsimerr.SoftSpecLoadCohe)
	if hLoad.Squashed() != rsimerr.OK {
		t.Fatal("speculative_loads=false must never flag or squash a load")
	}

	q.MarkComplete(hStore)
}

func TestRCStoreBufferIndependentOfLoadQueue(t *testing.T) {
	q := memqueue.New(config.RC, 1, true)
	in1 := &insts.Instance{}
	in2 := &insts.Instance{}

	if q.IssueLoad(in1, 0x10) == nil {
		t.Fatal("expected room in load queue")
	}
	if q.IssueStore(in2, 0x20) == nil {
		t.Fatal("store buffer should be independent of load queue capacity")
	}
}
