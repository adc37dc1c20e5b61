// Package memqueue implements the MemoryQueue and Consistency component
// (spec.md §4.4): per-processor tracking of in-flight memory instructions
// against the active consistency model (SC, PC, or RC), exposing
// issueLoad/issueStore/issueRMW/barrier to the processor pipeline and
// SpecLoadBufCohe to the cache hierarchy for speculative-load
// invalidation.
//
// Grounded on the teacher's timing/pipeline/hazard.go age-ordered-queue
// idiom (a slice walked oldest-first with an explicit head index), reused
// here for the per-model queues instead of load/store hazard tracking.
package memqueue

import (
	"github.com/sarchlab/rsim/config"
	"github.com/sarchlab/rsim/insts"
	"github.com/sarchlab/rsim/rsimerr"
)

// entry is one in-flight memory instruction tracked by the queue.
type entry struct {
	inst     *insts.Instance
	lineTag  uint64
	isWrite  bool
	isRMW    bool
	issued   bool // has left the queue to the cache hierarchy
	complete bool // the cache hierarchy has returned data/ack
	// specHit records whether this load already returned speculative data
	// to the pipeline; a later coherence/replacement hit against lineTag
	// must soft-squash it.
	specHit bool
	squash  rsimerr.Code // nonzero once SpecLoadBufCohe marks this entry
}

// Queue is the per-processor MemoryQueue. Under SC/PC it behaves as one
// FIFO of in-flight accesses that must complete in program order with
// respect to other processors' view of memory (PC additionally allows a
// processor's own later loads to bypass its earlier stores to different
// addresses, which this model treats identically to SC at the queue level
// since reordering past that point is the pipeline's issue-stage
// decision, not the queue's). Under RC the queue splits into a LoadQueue
// and a StoreBuffer that barrier() drains against each other.
type Queue struct {
	model config.ConsistencyModel

	// SC/PC: single combined queue, oldest at index 0.
	combined []*entry

	// RC: independent load and store queues.
	loads  []*entry
	stores []*entry

	capacity int

	// specLoads gates whether a load that completes ahead of an older,
	// still-outstanding entry is tracked as speculative (spec.md §4.4
	// "A load may issue speculatively past earlier unresolved
	// loads/stores"). Disabled, an out-of-order completion is not flagged,
	// so SpecLoadBufCohe never squashes a load; the queue does not hold
	// loads back to program order in either setting.
	specLoads bool
}

// New creates a Queue enforcing model, with room for capacity in-flight
// entries per queue, tracking speculatively-completed loads when
// specLoads is set (spec.md §6 "speculative_loads").
func New(model config.ConsistencyModel, capacity int, specLoads bool) *Queue {
	return &Queue{model: model, capacity: capacity, specLoads: specLoads}
}

// full reports whether the relevant queue(s) have no room for another
// entry, or an admitted RMW has not yet completed (no later load or store
// is admitted past it).
func (q *Queue) full(isWrite bool) bool {
	for _, e := range q.combined {
		if e.isRMW && !e.complete {
			return true
		}
	}
	switch q.model {
	case config.RC:
		if isWrite {
			return len(q.stores) >= q.capacity
		}
		return len(q.loads) >= q.capacity
	default:
		return len(q.combined) >= q.capacity
	}
}

// IssueLoad admits a load instruction to the queue, returning the entry
// the pipeline must keep to later call MarkComplete/Squashed against. It
// returns nil if the queue has no room; the pipeline must stall issue.
func (q *Queue) IssueLoad(in *insts.Instance, lineTag uint64) *EntryHandle {
	if q.full(false) {
		return nil
	}
	e := &entry{inst: in, lineTag: lineTag}
	if q.model == config.RC {
		q.loads = append(q.loads, e)
	} else {
		q.combined = append(q.combined, e)
	}
	return &EntryHandle{e: e}
}

// IssueStore admits a store instruction. Under RC it enters the
// StoreBuffer; under SC/PC it enters the combined queue and is gated like
// a load. Either way it stays outstanding, and keeps Drained false, until
// MarkComplete.
func (q *Queue) IssueStore(in *insts.Instance, lineTag uint64) *EntryHandle {
	if q.full(true) {
		return nil
	}
	e := &entry{inst: in, lineTag: lineTag, isWrite: true}
	if q.model == config.RC {
		q.stores = append(q.stores, e)
	} else {
		q.combined = append(q.combined, e)
	}
	return &EntryHandle{e: e}
}

// IssueRMW admits an atomic read-modify-write. Under every model an RMW
// drains the queue(s) ahead of it and blocks later issues until it
// completes, since it must appear atomic to the rest of the system.
func (q *Queue) IssueRMW(in *insts.Instance, lineTag uint64) *EntryHandle {
	if !q.Drained() {
		return nil
	}
	e := &entry{inst: in, lineTag: lineTag, isWrite: true, isRMW: true}
	q.combined = append(q.combined, e)
	return &EntryHandle{e: e}
}

// Barrier reports whether every queue has drained, the condition a MEMBAR
// waits for under every model. The pipeline does not call it: MEMBAR is a
// serializing opcode, so rename holds it until the ActiveList is empty,
// which already implies every earlier memory instruction has retired.
func (q *Queue) Barrier() bool { return q.Drained() }

// Drained reports whether every admitted entry has completed.
func (q *Queue) Drained() bool {
	for _, e := range q.combined {
		if !e.complete {
			return false
		}
	}
	for _, e := range q.loads {
		if !e.complete {
			return false
		}
	}
	for _, e := range q.stores {
		if !e.complete {
			return false
		}
	}
	return true
}

// EntryHandle is the opaque token IssueLoad/IssueStore/IssueRMW return to
// the pipeline.
type EntryHandle struct{ e *entry }

// MarkComplete records that the cache hierarchy satisfied this entry's
// request and removes it from its queue. A load that completes while an
// older entry in its queue is still outstanding returned data
// speculatively (spec.md §4.4): with specLoads enabled it is flagged so
// a later SpecLoadBufCohe hit against its line soft-squashes it at
// retire.
func (q *Queue) MarkComplete(h *EntryHandle) {
	if q.specLoads && !h.e.isWrite && q.hasOlderIncomplete(h.e) {
		h.e.specHit = true
	}
	h.e.complete = true
	q.compact()
}

// hasOlderIncomplete reports whether an entry preceding e in its own
// queue (combined, or loads under RC) has not yet completed.
func (q *Queue) hasOlderIncomplete(e *entry) bool {
	s := q.combined
	if q.model == config.RC {
		s = q.loads
	}
	for _, other := range s {
		if other == e {
			return false
		}
		if !other.complete {
			return true
		}
	}
	return false
}

// Completed reports whether the cache hierarchy has already satisfied
// this entry.
func (h *EntryHandle) Completed() bool { return h.e.complete }

// MarkSpeculativeHit records that a load returned data to the pipeline
// before reaching the head of the queue (spec.md §4.4's speculative-load
// tracking), making it subject to SpecLoadBufCohe.
func (h *EntryHandle) MarkSpeculativeHit() { h.e.specHit = true }

// Squashed reports the soft-squash code SpecLoadBufCohe recorded against
// this entry, if any.
func (h *EntryHandle) Squashed() rsimerr.Code { return h.e.squash }

func (q *Queue) compact() {
	q.combined = compactSlice(q.combined)
	q.loads = compactSlice(q.loads)
	q.stores = compactSlice(q.stores)
}

func compactSlice(s []*entry) []*entry {
	out := s[:0]
	for _, e := range s {
		if e.complete && !e.specHit {
			continue
		}
		if e.complete && e.specHit {
			// A completed speculative load stays visible to
			// SpecLoadBufCohe only until retire acknowledges it by
			// calling Queue.Retire; keep it until then.
		}
		out = append(out, e)
	}
	return out
}

// Retire removes a completed, speculatively-hit entry once the pipeline
// has committed it, after which no further coherence race against it is
// possible.
func (q *Queue) Retire(h *EntryHandle) {
	h.e.specHit = false
	q.compact()
}

// SpecLoadBufCohe is called by the cache hierarchy (spec.md §4.5) when an
// incoming coherence invalidation or an L2 replacement touches lineTag:
// any speculatively-hit, not-yet-retired load in proc's queue against that
// line must be soft-squashed with the given exception code.
func (q *Queue) SpecLoadBufCohe(lineTag uint64, kind rsimerr.Code) {
	check := func(s []*entry) {
		for _, e := range s {
			if e.specHit && !e.isWrite && e.lineTag == lineTag && e.squash == rsimerr.OK {
				e.squash = kind
			}
		}
	}
	check(q.combined)
	check(q.loads)
}
