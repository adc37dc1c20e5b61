// Package respool implements the ResourcePool component: a fixed-size
// descriptor recycler used by every other component (REQ, Instance,
// Activity, Packet descriptors). Grounded on original_source's
// src/MemSys/pool.c: a pool grows by a configured block size when the
// free list is exhausted rather than by one descriptor at a time, and
// reset() walks every descriptor and re-links them all into the free
// list.
package respool

import "fmt"

// Resettable descriptors implement Reset to clear their body before being
// returned to the free list; the pool never zeroes memory it doesn't own.
type Resettable interface {
	Reset()
}

// descriptor is the constraint on a Pool's element type: a Resettable
// that can also key the pool's set of checked-out descriptors.
type descriptor interface {
	comparable
	Resettable
}

// Pool is a generic fixed-block-growth free-list allocator for descriptor
// type T. T must be a pointer type implementing Resettable.
type Pool[T descriptor] struct {
	name      string
	blockSize int
	newFn     func() T

	free []T
	live map[T]bool // descriptors currently checked out; used for P2-style
	// in-use auditing through InUse and LiveCount.
}

// New creates a pool that allocates in blocks of blockSize, invoking newFn
// to construct a fresh descriptor whenever the free list is exhausted.
func New[T descriptor](name string, blockSize int, newFn func() T) *Pool[T] {
	if blockSize <= 0 {
		blockSize = 1
	}
	p := &Pool[T]{
		name:      name,
		blockSize: blockSize,
		newFn:     newFn,
		live:      make(map[T]bool),
	}
	p.grow()
	return p
}

func (p *Pool[T]) grow() {
	for i := 0; i < p.blockSize; i++ {
		p.free = append(p.free, p.newFn())
	}
}

// Get removes a descriptor from the free list, growing the pool first if
// it is empty.
func (p *Pool[T]) Get() T {
	if len(p.free) == 0 {
		p.grow()
	}
	n := len(p.free)
	d := p.free[n-1]
	p.free = p.free[:n-1]
	p.live[d] = true
	return d
}

// Put resets and returns a descriptor to the free list. Putting a
// descriptor twice without an intervening Get is a pool double-free and is
// reported as a simulator-internal fatal condition by the caller (the pool
// itself only panics, since this always indicates a bug rather than
// application-level state spec.md asks us to model).
func (p *Pool[T]) Put(d T) {
	if !p.live[d] {
		panic(fmt.Sprintf("respool %s: double-free of descriptor %v", p.name, d))
	}
	delete(p.live, d)
	d.Reset()
	p.free = append(p.free, d)
}

// InUse reports whether d is currently checked out of the pool.
func (p *Pool[T]) InUse(d T) bool {
	return p.live[d]
}

// Reset walks every outstanding descriptor back into the free list. It does
// not reconstruct descriptors that were never allocated; it only reclaims
// the ones the pool has handed out.
func (p *Pool[T]) Reset() {
	for d := range p.live {
		d.Reset()
		p.free = append(p.free, d)
		delete(p.live, d)
	}
}

// Len reports the number of descriptors currently on the free list.
func (p *Pool[T]) Len() int { return len(p.free) }

// LiveCount reports the number of descriptors currently checked out.
func (p *Pool[T]) LiveCount() int { return len(p.live) }
