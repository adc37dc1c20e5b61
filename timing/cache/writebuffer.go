package cache

// wbEntry is one coalesced pending store (spec.md §4.5 "write buffer with
// coalescing").
type wbEntry struct {
	addr uint64
	data uint64
	size int
}

// WriteBuffer holds retired stores not yet visible in the cache array,
// coalescing same-address writes and forwarding to later loads that read
// an address a pending store covers (read-bypass forwarding).
type WriteBuffer struct {
	entries []wbEntry
	cap     int
}

// NewWriteBuffer creates a buffer holding up to cap entries.
func NewWriteBuffer(cap int) *WriteBuffer {
	return &WriteBuffer{cap: cap}
}

// Full reports whether the buffer has no room for a new, non-coalescing
// store.
func (wb *WriteBuffer) Full() bool { return len(wb.entries) >= wb.cap }

// Push admits a retired store, coalescing it into an existing entry for
// the same address if one exists. It returns false if the buffer is full
// and the store does not coalesce.
func (wb *WriteBuffer) Push(addr uint64, size int, data uint64) bool {
	for i := range wb.entries {
		if wb.entries[i].addr == addr {
			wb.entries[i].data = data
			wb.entries[i].size = size
			return true
		}
	}
	if wb.Full() {
		return false
	}
	wb.entries = append(wb.entries, wbEntry{addr: addr, data: data, size: size})
	return true
}

// Forward reports whether a pending entry exactly covers a load of size
// bytes at addr, returning its value if so.
func (wb *WriteBuffer) Forward(addr uint64, size int) (uint64, bool) {
	for i := range wb.entries {
		if wb.entries[i].addr == addr && wb.entries[i].size == size {
			return wb.entries[i].data, true
		}
	}
	return 0, false
}

// Drain removes and returns the oldest pending store, for the cache to
// apply against the array. It reports false if the buffer is empty.
func (wb *WriteBuffer) Drain() (addr uint64, size int, data uint64, ok bool) {
	if len(wb.entries) == 0 {
		return 0, 0, 0, false
	}
	e := wb.entries[0]
	wb.entries = wb.entries[1:]
	return e.addr, e.size, e.data, true
}

// Len reports the number of pending stores.
func (wb *WriteBuffer) Len() int { return len(wb.entries) }
