package core

// PhysRegFile is the renamed physical register file backing rename
// (spec.md §4.2): a fixed pool of physical registers plus a free list,
// generalizing the teacher's architectural-only emu.RegFile the way the
// teacher's own hazard/forwarding units generalize a single architectural
// write into pipeline-register bookkeeping.
type PhysRegFile struct {
	values []uint64
	ready  []bool
	free   []int
}

// NewPhysRegFile creates a physical register file with n registers, all
// initially free and ready (holding architectural reset values of zero).
func NewPhysRegFile(n int) *PhysRegFile {
	p := &PhysRegFile{
		values: make([]uint64, n),
		ready:  make([]bool, n),
		free:   make([]int, n),
	}
	for i := 0; i < n; i++ {
		p.ready[i] = true
		p.free[i] = n - 1 - i
	}
	return p
}

// Alloc removes and returns a free physical register, or -1 if none
// remain (a rename stall, spec.md §4.2 "no free physical register").
func (p *PhysRegFile) Alloc() int {
	n := len(p.free)
	if n == 0 {
		return -1
	}
	r := p.free[n-1]
	p.free = p.free[:n-1]
	p.ready[r] = false
	return r
}

// Release returns a physical register to the free list once no live
// mapping references it (retire commit of the prior mapping, or squash
// rollback of a newer one).
func (p *PhysRegFile) Release(r int) {
	if r < 0 {
		return
	}
	p.free = append(p.free, r)
}

// NumFree reports how many physical registers remain unallocated.
func (p *PhysRegFile) NumFree() int { return len(p.free) }

// Read returns a physical register's value.
func (p *PhysRegFile) Read(r int) uint64 {
	if r < 0 {
		return 0
	}
	return p.values[r]
}

// Write sets a physical register's value and marks it ready, which
// wakes any instruction in the issue queue waiting on it.
func (p *PhysRegFile) Write(r int, v uint64) {
	if r < 0 {
		return
	}
	p.values[r] = v
	p.ready[r] = true
}

// Ready reports whether a physical register's producer has completed.
func (p *PhysRegFile) Ready(r int) bool {
	if r < 0 {
		return true
	}
	return p.ready[r]
}

// RenameMap is the logical-to-physical register map, one entry per
// SPARC integer register visible in the current window (spec.md §4.2).
// A misprediction rolls back its mapping by replaying each squashed
// entry's prior Set return value (unwindRename), not by checkpointing
// the whole table.
type RenameMap struct {
	table [64]int // logical register -> physical register; -1 means not yet renamed
}

// NewRenameMap creates a rename map with every logical register pointing
// at no physical register (the architectural state lives in emu.RegFile
// until the first rename of each register).
func NewRenameMap() *RenameMap {
	m := &RenameMap{}
	for i := range m.table {
		m.table[i] = -1
	}
	return m
}

// Lookup returns the physical register logical register lr currently
// maps to, or -1 if it has not been renamed yet this run.
func (m *RenameMap) Lookup(lr uint8) int { return m.table[lr] }

// Set installs a new mapping for lr, returning the previous one (for the
// ActiveList entry to restore on squash).
func (m *RenameMap) Set(lr uint8, pr int) (old int) {
	old = m.table[lr]
	m.table[lr] = pr
	return old
}

