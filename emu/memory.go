package emu

import "github.com/sarchlab/rsim/rsimerr"

// AllocSize is the page size (spec.md §6 "ALLOC_SIZE is a power of two").
const AllocSize = 4096

// StackRegionSize bounds how far below the initial stack pointer a SegV is
// treated as a growable-stack fault rather than a genuine segmentation
// violation (spec.md §4.7 "unless inside the growable stack region").
const StackRegionSize = 8 * 1024 * 1024

// Memory is the host's image of simulated application memory: a hash-based
// virtual-to-host page table, split at LowShared into a per-process region
// and a shared region (spec.md §3 "Instance"/§4.7 FunctionalExecutor,
// §6 "Application address space").
type Memory struct {
	pages     map[uint64][]byte // keyed by page-aligned virtual address
	lowShared uint64
	stackTop  uint64 // initial SP; stack grows down from here
	stackBase uint64 // lowest address the stack has been grown to cover
}

// NewMemory creates an empty Memory with the given shared/per-process
// boundary and initial stack pointer.
func NewMemory(lowShared, initialSP uint64) *Memory {
	return &Memory{
		pages:     make(map[uint64][]byte),
		lowShared: lowShared,
		stackTop:  initialSP,
		stackBase: pageAlign(initialSP),
	}
}

func pageAlign(addr uint64) uint64 { return addr &^ (AllocSize - 1) }

// IsShared reports whether addr falls in the shared region (spec.md §6
// "Boundary address lowshared separates per-process and shared ranges").
func (m *Memory) IsShared(addr uint64) bool { return addr >= m.lowShared }

func (m *Memory) page(addr uint64, alloc bool) ([]byte, bool) {
	base := pageAlign(addr)
	p, ok := m.pages[base]
	if !ok && alloc {
		p = make([]byte, AllocSize)
		m.pages[base] = p
		return p, true
	}
	return p, ok
}

// MapSegment installs data at virtAddr, allocating pages as needed —
// used by the loader to install the application's initial image.
func (m *Memory) MapSegment(virtAddr uint64, data []byte) {
	for i := 0; i < len(data); {
		base := pageAlign(virtAddr + uint64(i))
		page, _ := m.page(base, true)
		off := int(virtAddr+uint64(i)) - int(base)
		n := copy(page[off:], data[i:])
		i += n
	}
}

// inStackRegion reports whether addr lies between the current stack base
// and the initial stack top — the region a SegV may grow into rather than
// fault permanently (spec.md §4.7).
func (m *Memory) inStackRegion(addr uint64) bool {
	return addr <= m.stackTop && addr >= m.stackTop-StackRegionSize
}

// GrowStack extends the mapped stack region down to cover addr, if addr
// falls within the growable stack region; otherwise it does nothing and
// returns false. Called by the retire-time SegV handler before retrying
// the faulting load/store (spec.md §4.3 Retire: "stack-growth retry for
// SegV inside the stack region").
func (m *Memory) GrowStack(addr uint64) bool {
	if !m.inStackRegion(addr) {
		return false
	}
	base := pageAlign(addr)
	for a := base; a < m.stackBase; a += AllocSize {
		m.page(a, true)
	}
	if base < m.stackBase {
		m.stackBase = base
	}
	return true
}

// Read reads size bytes (1, 2, 4, or 8) at addr. An access to an unmapped
// page outside the stack region yields SegV; inside the stack region it
// is the caller's responsibility to GrowStack and retry, per spec.md's
// retire-time SegV handler contract.
func (m *Memory) Read(addr uint64, size int) (uint64, error) {
	base := pageAlign(addr)
	page, ok := m.pages[base]
	if !ok {
		if m.inStackRegion(addr) {
			return 0, rsimerr.NewException(rsimerr.SegV, addr, "unmapped stack access, growable")
		}
		return 0, rsimerr.NewException(rsimerr.SegV, addr, "unmapped address")
	}
	off := int(addr - base)
	if off+size > AllocSize {
		return 0, rsimerr.NewException(rsimerr.SegV, addr, "access crosses page boundary")
	}
	var v uint64
	for i := 0; i < size; i++ {
		v = (v << 8) | uint64(page[off+i])
	}
	return v, nil
}

// Write writes size bytes (1, 2, 4, or 8) of v at addr, most-significant
// byte first (SPARC is big-endian).
func (m *Memory) Write(addr uint64, size int, v uint64) error {
	base := pageAlign(addr)
	page, ok := m.pages[base]
	if !ok {
		if m.inStackRegion(addr) {
			return rsimerr.NewException(rsimerr.SegV, addr, "unmapped stack access, growable")
		}
		return rsimerr.NewException(rsimerr.SegV, addr, "unmapped address")
	}
	off := int(addr - base)
	if off+size > AllocSize {
		return rsimerr.NewException(rsimerr.SegV, addr, "access crosses page boundary")
	}
	for i := 0; i < size; i++ {
		shift := uint((size - 1 - i) * 8)
		page[off+i] = byte(v >> shift)
	}
	return nil
}

// IsMapped reports whether addr's page has been allocated — used by
// prefetch handling, which silently drops prefetches to unmapped
// addresses rather than raising SegV (spec.md §4.5 Prefetch, §4.7).
func (m *Memory) IsMapped(addr uint64) bool {
	_, ok := m.pages[pageAlign(addr)]
	return ok
}
