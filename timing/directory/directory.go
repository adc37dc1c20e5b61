// Package directory implements the home-node coherence directory (spec.md
// §4.6): one entry per memory line, tracking which processors share it or
// hold it modified, servicing requests against a line strictly in the
// order they arrive, and issuing the forwarding messages MSI-with-upgrade
// coherence needs (invalidate sharers on a write request, forward-and-
// downgrade on a read request to a modified line).
//
// There is no teacher file for a standalone directory component — the
// teacher's cache.go folds tag/LRU bookkeeping into one Akita-backed type
// with no multi-node coherence concept at all. This package is grounded on
// that file's Statistics/Config idiom and on the plain-struct, no-Akita
// style of the teacher's timing/latency package, generalized from
// "single cache's tag state" to "one directory entry's sharer set".
package directory

import (
	"fmt"

	"github.com/sarchlab/rsim/rsimerr"
)

// LineState is a directory entry's coherence state (spec.md §4.6).
type LineState uint8

const (
	Uncached LineState = iota
	SharedState
	ModifiedState
)

// entry is one directory line's state.
type entry struct {
	state   LineState
	sharers map[int]bool
	owner   int // valid only when state == ModifiedState
}

// Request is one coherence request a processor's cache miss generates.
type Request struct {
	Proc    int
	LineTag uint64
	IsWrite bool
}

// Action tells the caller what message(s) to send in response to a
// serviced request: which processors to invalidate, whether to forward
// the line from its current owner (the "three-hop" path, spec.md §4.6),
// and the new owner/sharer set.
type Action struct {
	Invalidate  []int
	ForwardFrom int // -1 if the data is already at the directory/memory
	GrantTo     int
	NewState    LineState
}

// Directory is the home-node coherence directory for a range of lines.
// Entries are created lazily on first reference, starting Uncached.
type Directory struct {
	lines map[uint64]*entry
	stats Statistics
}

// Statistics counts directory-level events for reporting (spec.md §6
// Outputs).
type Statistics struct {
	Requests    uint64
	Invalidations uint64
	Forwards    uint64
	Upgrades    uint64
}

// New creates an empty directory, pre-sizing its line table for
// capacityHint entries (spec.md §6 "directory_entries" — a sizing hint
// for the backing table, not a hard cap: a line not yet seen is still
// created lazily on first reference).
func New(capacityHint int) *Directory {
	return &Directory{lines: make(map[uint64]*entry, capacityHint)}
}

func (d *Directory) lineFor(tag uint64) *entry {
	e, ok := d.lines[tag]
	if !ok {
		e = &entry{state: Uncached, sharers: make(map[int]bool), owner: -1}
		d.lines[tag] = e
	}
	return e
}

// Service processes req against its line's current state, in the order
// requests are submitted for a given line (the caller must not call
// Service for a second request on the same line until the first's Action
// has been fully applied — spec.md §4.6 "serviced ... in program order
// per line"). It returns the coherence action to take.
func (d *Directory) Service(req Request) (Action, error) {
	e := d.lineFor(req.LineTag)
	d.stats.Requests++

	act := Action{ForwardFrom: -1, GrantTo: req.Proc}

	switch e.state {
	case Uncached:
		e.state = SharedState
		if req.IsWrite {
			e.state = ModifiedState
			e.owner = req.Proc
		} else {
			e.sharers[req.Proc] = true
		}
		act.NewState = e.state
		return act, nil

	case SharedState:
		if !req.IsWrite {
			e.sharers[req.Proc] = true
			act.NewState = SharedState
			return act, nil
		}
		for p := range e.sharers {
			if p != req.Proc {
				act.Invalidate = append(act.Invalidate, p)
			}
		}
		d.stats.Invalidations += uint64(len(act.Invalidate))
		e.sharers = map[int]bool{}
		e.state = ModifiedState
		e.owner = req.Proc
		act.NewState = ModifiedState
		return act, nil

	case ModifiedState:
		if e.owner == req.Proc {
			// The requester already owns the line; nothing to do beyond
			// acknowledging (a duplicate or re-issued request).
			act.NewState = ModifiedState
			return act, nil
		}
		act.ForwardFrom = e.owner
		d.stats.Forwards++
		if req.IsWrite {
			act.Invalidate = []int{e.owner}
			e.owner = req.Proc
			e.state = ModifiedState
			act.NewState = ModifiedState
		} else {
			e.sharers = map[int]bool{e.owner: true, req.Proc: true}
			e.owner = -1
			e.state = SharedState
			act.NewState = SharedState
			d.stats.Upgrades++
		}
		return act, nil
	}

	return Action{}, rsimerr.NewFatal("Directory", 0,
		fmt.Sprintf("line 0x%x in unknown state %d", req.LineTag, e.state), nil)
}

// Evict removes proc's copy of a line (an L2 replacement at a remote
// node, spec.md §4.6), returning the resulting state.
func (d *Directory) Evict(proc int, lineTag uint64) LineState {
	e := d.lineFor(lineTag)
	switch e.state {
	case SharedState:
		delete(e.sharers, proc)
		if len(e.sharers) == 0 {
			e.state = Uncached
		}
	case ModifiedState:
		if e.owner == proc {
			e.owner = -1
			e.state = Uncached
		}
	}
	return e.state
}

// StateOf reports a line's current state, for tests and diagnostics.
func (d *Directory) StateOf(lineTag uint64) LineState { return d.lineFor(lineTag).state }

// Stats returns the directory's event counters.
func (d *Directory) Stats() Statistics { return d.stats }
