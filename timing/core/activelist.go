package core

import (
	"github.com/sarchlab/rsim/insts"
	"github.com/sarchlab/rsim/rsimerr"
	"github.com/sarchlab/rsim/timing/memqueue"
)

// alEntry is one ActiveList slot (spec.md §4.2 "ActiveList"): enough to
// retire an instruction in program order and to roll back its rename
// effects if it is squashed first.
type alEntry struct {
	inst *insts.Instance

	logicalRd   uint8
	physRd      int
	oldPhysRd   int
	hasDest     bool

	logicalRdHi int // for RegPair (LDD/STD); -1 if unused
	physRdHi    int
	oldPhysRdHi int

	memHandle *memqueue.EntryHandle // set for load/store/RMW instructions once issued

	done      bool
	exception *rsimerr.Exception
}

// ActiveList is the reorder buffer: a fixed-capacity ring buffer of
// in-flight instructions, retired strictly from the head.
type ActiveList struct {
	entries []alEntry
	head    int
	tail    int
	count   int
}

// NewActiveList creates an ActiveList with the given capacity.
func NewActiveList(capacity int) *ActiveList {
	return &ActiveList{entries: make([]alEntry, capacity)}
}

// Capacity returns the maximum number of in-flight instructions.
func (al *ActiveList) Capacity() int { return len(al.entries) }

// Len returns the number of instructions currently in flight.
func (al *ActiveList) Len() int { return al.count }

// Full reports whether the ActiveList has no room for another
// instruction (a fetch/rename stall condition, spec.md §4.2).
func (al *ActiveList) Full() bool { return al.count == len(al.entries) }

// Empty reports whether no instructions are in flight (the condition
// rename holds a serializing opcode for, spec.md §4.2).
func (al *ActiveList) Empty() bool { return al.count == 0 }

// Append adds a newly renamed instruction at the tail, returning its
// slot index for later lookups by Issue/Execute/Retire.
func (al *ActiveList) Append(e alEntry) int {
	idx := al.tail
	al.entries[idx] = e
	al.tail = (al.tail + 1) % len(al.entries)
	al.count++
	return idx
}

// At returns a pointer to the entry at slot idx for in-place updates
// (marking done, attaching an exception).
func (al *ActiveList) At(idx int) *alEntry { return &al.entries[idx] }

// HeadIndex returns the slot index of the oldest in-flight instruction.
func (al *ActiveList) HeadIndex() int { return al.head }

// PeekHead returns the oldest in-flight entry without removing it, or
// nil if empty.
func (al *ActiveList) PeekHead() *alEntry {
	if al.count == 0 {
		return nil
	}
	return &al.entries[al.head]
}

// RetireHead removes the oldest entry. The caller must have already
// applied its architectural commit.
func (al *ActiveList) RetireHead() {
	if al.count == 0 {
		return
	}
	al.entries[al.head] = alEntry{}
	al.head = (al.head + 1) % len(al.entries)
	al.count--
}

// SquashAll removes every in-flight entry, youngest-first, for a
// retire-time squash whose offending instruction is the ActiveList head
// itself rather than some later branch (spec.md §4.4: a soft-squashed
// speculative load "is squashed at retire; fetch restarts at the load").
func (al *ActiveList) SquashAll() []alEntry {
	removed := make([]alEntry, 0, al.count)
	for al.count > 0 {
		al.tail = (al.tail - 1 + len(al.entries)) % len(al.entries)
		removed = append(removed, al.entries[al.tail])
		al.entries[al.tail] = alEntry{}
		al.count--
	}
	return removed
}

// Squash removes every entry after keepIdx (the slot of the last
// instruction to survive), for the processor's squash-from-here rollback
// (spec.md §4.3 "squash protocol"). It returns the removed entries
// youngest-first so the caller can unwind rename-map and physical-
// register state in reverse program order.
func (al *ActiveList) Squash(keepIdx int) []alEntry {
	cap := len(al.entries)
	numToKeep := countBetween(al.head, keepIdx, cap) + 1
	if al.count == 0 {
		numToKeep = 0
	}
	numToRemove := al.count - numToKeep
	if numToRemove <= 0 {
		return nil
	}

	removed := make([]alEntry, 0, numToRemove)
	for i := 0; i < numToRemove; i++ {
		al.tail = (al.tail - 1 + cap) % cap
		removed = append(removed, al.entries[al.tail])
		al.entries[al.tail] = alEntry{}
		al.count--
	}
	return removed
}

// StillLive reports whether slot is currently occupied (between head and
// tail), used after Squash to drop stale queue references.
func (al *ActiveList) StillLive(slot int) bool {
	if al.count == 0 {
		return false
	}
	return countBetween(al.head, slot, len(al.entries)) < al.count
}

// countBetween returns the number of ring-buffer steps from index from
// to index to, wrapping modulo mod.
func countBetween(from, to, mod int) int {
	d := to - from
	if d < 0 {
		d += mod
	}
	return d
}
