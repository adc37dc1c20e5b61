package core

import "testing"

func appendN(al *ActiveList, n int) []int {
	idxs := make([]int, 0, n)
	for i := 0; i < n; i++ {
		idxs = append(idxs, al.Append(alEntry{logicalRd: uint8(i)}))
	}
	return idxs
}

func TestSquashKeepsHeadThroughKeepIdx(t *testing.T) {
	al := NewActiveList(8)
	idxs := appendN(al, 4)

	removed := al.Squash(idxs[1])

	if len(removed) != 2 {
		t.Fatalf("expected 2 entries removed, got %d", len(removed))
	}
	if al.Len() != 2 {
		t.Fatalf("expected 2 entries to remain, got %d", al.Len())
	}
	if got := al.PeekHead().logicalRd; got != 0 {
		t.Fatalf("expected head entry 0 to survive, got logicalRd=%d", got)
	}
}

func TestSquashAllRemovesEveryEntryIncludingHead(t *testing.T) {
	al := NewActiveList(8)
	appendN(al, 4)

	removed := al.SquashAll()

	if len(removed) != 4 {
		t.Fatalf("expected all 4 entries removed, got %d", len(removed))
	}
	if al.Len() != 0 {
		t.Fatalf("expected ActiveList to be empty after SquashAll, got len=%d", al.Len())
	}
	if al.PeekHead() != nil {
		t.Fatalf("expected no head entry after SquashAll")
	}
}

func TestSquashAllReturnsYoungestFirst(t *testing.T) {
	al := NewActiveList(8)
	appendN(al, 3)

	removed := al.SquashAll()

	for i, e := range removed {
		want := uint8(2 - i)
		if e.logicalRd != want {
			t.Fatalf("removed[%d]: expected logicalRd=%d (youngest-first), got %d", i, want, e.logicalRd)
		}
	}
}

func TestActiveListReusesSlotsAfterSquashAll(t *testing.T) {
	al := NewActiveList(4)
	appendN(al, 4)
	al.SquashAll()

	// A full ring buffer emptied by SquashAll must accept new entries at
	// the same head/tail position rather than reporting itself full.
	if al.Full() {
		t.Fatalf("expected room after SquashAll, but ActiveList reports full")
	}
	idx := al.Append(alEntry{logicalRd: 9})
	if al.Len() != 1 {
		t.Fatalf("expected 1 entry after re-append, got %d", al.Len())
	}
	if got := al.At(idx).logicalRd; got != 9 {
		t.Fatalf("expected re-appended entry to read back, got %d", got)
	}
}
