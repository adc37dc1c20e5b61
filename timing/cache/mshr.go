package cache

// mshrEntry tracks one outstanding miss's line and the secondary misses
// that coalesced onto it while it was in flight (spec.md §4.5 "MSHR
// coalescing").
type mshrEntry struct {
	inUse   bool
	lineTag uint64
	isWrite bool
	waiters int // count of secondary misses riding this entry, excluding the primary
}

// MSHRTable is a fixed-size set of miss-status holding registers.
type MSHRTable struct {
	entries  []mshrEntry
	maxWaiters int
}

// NewMSHRTable creates a table with n entries, each able to coalesce up
// to 4 secondary misses before reporting full.
func NewMSHRTable(n int) *MSHRTable {
	return &MSHRTable{entries: make([]mshrEntry, n), maxWaiters: 4}
}

// FindByLine reports the index of an in-use entry already tracking
// lineTag, if any.
func (t *MSHRTable) FindByLine(lineTag uint64) (int, bool) {
	for i := range t.entries {
		if t.entries[i].inUse && t.entries[i].lineTag == lineTag {
			return i, true
		}
	}
	return 0, false
}

// Allocate opens a new primary-miss entry for lineTag, returning false if
// every entry is already in use.
func (t *MSHRTable) Allocate(lineTag uint64, isWrite bool) (int, bool) {
	for i := range t.entries {
		if !t.entries[i].inUse {
			t.entries[i] = mshrEntry{inUse: true, lineTag: lineTag, isWrite: isWrite}
			return i, true
		}
	}
	return 0, false
}

// AddWaiter coalesces a secondary miss onto idx, returning false if the
// entry has already reached its waiter limit.
func (t *MSHRTable) AddWaiter(idx int) bool {
	if t.entries[idx].waiters >= t.maxWaiters {
		return false
	}
	t.entries[idx].waiters++
	return true
}

// Release frees entry idx once its fill completes, returning the number
// of secondary waiters that need to be replayed (as a slice of that many
// copies of idx, for a uniform call signature with callers that expect a
// waiter list).
func (t *MSHRTable) Release(idx int) []int {
	n := t.entries[idx].waiters
	t.entries[idx] = mshrEntry{}
	waiters := make([]int, n)
	for i := range waiters {
		waiters[i] = idx
	}
	return waiters
}

// InUse reports whether idx currently holds an outstanding miss.
func (t *MSHRTable) InUse(idx int) bool { return t.entries[idx].inUse }

// Full reports whether every entry is occupied.
func (t *MSHRTable) Full() bool {
	for i := range t.entries {
		if !t.entries[i].inUse {
			return false
		}
	}
	return true
}
