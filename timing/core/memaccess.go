package core

import (
	"github.com/sarchlab/rsim/insts"
	"github.com/sarchlab/rsim/timing/cache"
	"github.com/sarchlab/rsim/timing/directory"
	"github.com/sarchlab/rsim/timing/memqueue"
)

// pendingAccess is a memory instruction that has issued to the
// MemoryQueue but has not yet been attempted against L1, either because
// it issued this cycle or because an earlier attempt found the cache
// port or MSHR table full and must retry. req is the REQ descriptor
// drawn from the pool at issue (spec.md §3 "REQ"); it carries the
// issuing instance and its tag snapshot so a result returning after a
// squash recycled that instance is detectable as stale.
type pendingAccess struct {
	req     *insts.REQ
	handle  *memqueue.EntryHandle
	addr    uint64
	size    int
	isWrite bool
	data    uint64
}

// fillWaiter is one REQ coalesced onto an outstanding L1 fill, paired
// with the MemoryQueue handle it must release once the fill completes.
type fillWaiter struct {
	handle *memqueue.EntryHandle
	req    *insts.REQ
}

// pendingFill is an outstanding miss at one level of the hierarchy,
// tracked from the cycle its MSHR was allocated until the modeled
// latency elapses (spec.md §4.5 "non-blocking ... until the lower level
// responds"). The same type serves both L1 and L2 fills: an L1 fill
// tracks the REQs coalesced onto it, an L2 fill tracks the L1 MSHR
// indices waiting on it (spec.md §4.5 "L2 ... On miss-primary: allocate
// MSHR, forward to L2").
type pendingFill struct {
	lineTag  uint64
	isWrite  bool
	deadline uint64
	waiters  []fillWaiter // L1 fill: REQs/handles to complete and release

	// isPrefetch marks a fill whose miss-primary was a prefetch REQ
	// (inst == nil). A demand request that later coalesces onto it is the
	// "prefetched-late" case spec.md §4.5 reports in statistics.
	isPrefetch bool

	// viaL2 marks an L1 fill whose coherence state was already resolved
	// by the L2 fill it waited on, so serviceFills does not consult the
	// directory a second time for the same request.
	viaL2         bool
	resolvedState cache.CohState
}

// memOpSize returns a load/store/RMW opcode's access width in bytes,
// mirroring emu's unexported loadStoreSize table (spec.md §6 predecoded
// record: the core needs this to drive Lookup, not full opcode
// semantics).
func memOpSize(op insts.Op) int {
	switch op {
	case insts.OpLDSB, insts.OpLDUB, insts.OpSTB, insts.OpLDSTUB:
		return 1
	case insts.OpLDSH, insts.OpLDUH, insts.OpSTH:
		return 2
	case insts.OpLDD, insts.OpSTD:
		return 8
	default:
		return 4
	}
}

// reqTypeFor returns the prcr_req_type a demand memory instruction issues
// under (spec.md §3 REQ).
func reqTypeFor(static *insts.StaticInstr) insts.ReqType {
	if static.IsRMW() {
		return insts.ReqRMW
	}
	if static.IsStore() {
		return insts.ReqWrite
	}
	return insts.ReqRead
}

// queueCacheAccess hands a freshly issued memory instruction to the L1
// pipeline, to be attempted against the cache starting this same cycle's
// memStep. It draws a REQ from the pool and stamps it with in's current
// tag (spec.md §2 "Data flow between the processor and memory is carried
// by REQ descriptors drawn from the pool"); the REQ is returned to the
// pool once the access completes or is squashed away.
func (p *Processor) queueCacheAccess(h *memqueue.EntryHandle, in *insts.Instance, static *insts.StaticInstr) {
	data := uint64(0)
	if static.IsStore() {
		data = in.SrcVal2
	}

	req := p.reqPool.Get()
	req.MarkInUse()
	req.Type = reqTypeFor(static)
	req.PhysAddr = in.EffectiveAddr
	req.Proc = p.ID
	req.Inst = in
	req.InstTag = in.Tag
	req.IssueTime = float64(p.stats.CyclesElapsed)

	p.pendingAccess = append(p.pendingAccess, pendingAccess{
		req:     req,
		handle:  h,
		addr:    in.EffectiveAddr,
		size:    memOpSize(static.Op),
		isWrite: static.IsStore() || static.IsRMW(),
		data:    data,
	})
}

// completeReq reports a finished access back to the MemoryQueue and
// returns its REQ to the pool, unless the issuing instance has since been
// recycled by a squash (spec.md §5 "Cancellation": a tag mismatch against
// the reused instance causes the result to be dropped, P7).
func (p *Processor) completeReq(req *insts.REQ, h *memqueue.EntryHandle) {
	if !req.Inst.StaleAgainst(req.InstTag) {
		p.MemQ.MarkComplete(h)
	}
	req.MarkFree()
	p.reqPool.Put(req)
}

// releaseMemHandle drops any in-flight request for h, releasing its REQ
// descriptor back to the pool without reporting completion (spec.md §4.3
// squash protocol step 2: "truncate MemoryQueue/LoadQueue/WriteBuffer
// speculative entries ... release their REQ descriptors"). h belongs to an
// instruction a squash just removed from the ActiveList, so nothing will
// ever retire it.
func (p *Processor) releaseMemHandle(h *memqueue.EntryHandle) {
	remaining := p.pendingAccess[:0]
	for _, pa := range p.pendingAccess {
		if pa.handle == h {
			pa.req.MarkFree()
			p.reqPool.Put(pa.req)
			continue
		}
		remaining = append(remaining, pa)
	}
	p.pendingAccess = remaining

	for _, f := range p.fills {
		kept := f.waiters[:0]
		for _, w := range f.waiters {
			if w.handle == h {
				w.req.MarkFree()
				p.reqPool.Put(w.req)
				continue
			}
			kept = append(kept, w)
		}
		f.waiters = kept
	}
}

// memStep advances the cache hierarchy by one cycle (spec.md §4.5/§4.6):
// outstanding L2 misses whose modeled latency has elapsed are serviced
// first, so a waiting L1 fill with the same deadline resolves its
// coherence state from L2's directory round trip rather than its own;
// outstanding L1 misses are then filled and their waiters released back
// to the MemoryQueue; newly issued and previously port/MSHR-stalled
// accesses are attempted against L1, one read and one write per cycle.
func (p *Processor) memStep() {
	p.L1.BeginCycle()
	if p.L2 != nil {
		p.L2.BeginCycle()
	}
	p.serviceL2Fills()
	p.serviceFills()

	remaining := p.pendingAccess[:0]
	for _, pa := range p.pendingAccess {
		if !p.attemptAccess(pa) {
			remaining = append(remaining, pa)
		}
	}
	p.pendingAccess = remaining
}

// attemptAccess issues one Lookup against L1 for pa, returning false if
// the cache had no port or MSHR resource available this cycle (the
// caller retries next cycle). An L1 miss-primary forwards to L2 before
// ever reaching the bus or directory (spec.md §4.5 "On miss-primary:
// allocate MSHR, forward to L2"); only an L2 miss, or a single-node
// configuration with no L2 at all, pays a directory round trip.
func (p *Processor) attemptAccess(pa pendingAccess) bool {
	res := p.L1.Lookup(pa.addr, pa.size, pa.isWrite, pa.data)
	switch res.Status {
	case cache.StatusHit:
		pa.req.Handled = insts.HandledL1Hit
		p.completeReq(pa.req, pa.handle)
		return true

	case cache.StatusMissPrimary:
		pa.req.MemStartTime = float64(p.stats.CyclesElapsed)
		lineTag := blockTag(pa.addr, p.L1)
		l1Fill := &pendingFill{
			lineTag: lineTag,
			isWrite: pa.isWrite,
			waiters: []fillWaiter{{handle: pa.handle, req: pa.req}},
		}
		p.fills[res.MSHRIdx] = l1Fill
		p.attemptL2(lineTag, pa, l1Fill, res.Latency)
		return true

	case cache.StatusMissSecondary:
		f := p.fills[res.MSHRIdx]
		if f != nil {
			if f.isPrefetch {
				f.isPrefetch = false
				p.L1.MarkPrefetchedLate()
				pa.req.Inst.LatePrefetch = true
			}
			f.waiters = append(f.waiters, fillWaiter{handle: pa.handle, req: pa.req})
		}
		return true

	default: // StatusMSHRFull, StatusPortFull
		return false
	}
}

// attemptL2 resolves how long l1Fill must wait: a hit or a full L2
// settles the deadline directly (a full L2 falls back to paying l1Miss's
// own modeled latency rather than blocking the L1 MSHR indefinitely,
// since there is no way to roll back the L1 allocation attemptAccess
// already made); a miss-primary or miss-secondary instead defers to
// serviceL2Fills, which resolves the line's coherence state once and
// shares it with every L1 waiter.
func (p *Processor) attemptL2(lineTag uint64, pa pendingAccess, l1Fill *pendingFill, l1MissLatency uint64) {
	if p.L2 == nil {
		l1Fill.deadline = p.busDeadline(pa.req, l1MissLatency)
		return
	}

	res := p.L2.Lookup(pa.addr, pa.size, pa.isWrite, pa.data)
	switch res.Status {
	case cache.StatusHit:
		l1Fill.deadline = p.stats.CyclesElapsed + res.Latency

	case cache.StatusMissPrimary:
		deadline := p.busDeadline(pa.req, res.Latency)
		l1Fill.deadline = deadline
		p.l2Fills[res.MSHRIdx] = &pendingFill{
			lineTag:  lineTag,
			isWrite:  pa.isWrite,
			deadline: deadline,
		}
		p.l2Waiters[res.MSHRIdx] = append(p.l2Waiters[res.MSHRIdx], l1Fill)

	case cache.StatusMissSecondary:
		if existing, ok := p.l2Fills[res.MSHRIdx]; ok {
			if existing.isPrefetch {
				existing.isPrefetch = false
				p.L2.MarkPrefetchedLate()
				if pa.req != nil && pa.req.Inst != nil {
					pa.req.Inst.LatePrefetch = true
				}
			}
			l1Fill.deadline = existing.deadline
			p.l2Waiters[res.MSHRIdx] = append(p.l2Waiters[res.MSHRIdx], l1Fill)
		} else {
			l1Fill.deadline = p.busDeadline(pa.req, l1MissLatency)
		}

	default: // StatusMSHRFull, StatusPortFull: L2 has no room this cycle
		l1Fill.deadline = p.busDeadline(pa.req, l1MissLatency)
	}
}

// busDeadline reserves a bus lane (if one is modeled) and returns the
// later of the reservation's completion and latency cycles from now. It
// also stamps req's ActiveStartTime the first time it goes active on the
// bus (spec.md §3 REQ "ActiveStartTime"); req is nil for a prefetch whose
// REQ has already been returned to the pool at issue.
func (p *Processor) busDeadline(req *insts.REQ, latency uint64) uint64 {
	deadline := p.stats.CyclesElapsed + latency
	if req != nil && req.ActiveStartTime == 0 {
		req.ActiveStartTime = float64(p.stats.CyclesElapsed)
	}
	if p.MemBus != nil {
		if busDone := p.MemBus.Reserve(p.stats.CyclesElapsed); busDone > deadline {
			deadline = busDone
		}
	}
	return deadline
}

// serviceL2Fills completes every outstanding L2 miss whose deadline has
// arrived: it consults the home-node directory once for the line and
// shares the resolved coherence state with every L1 fill that was
// waiting on this L2 line (spec.md §4.5 "For a local miss the L2 sends
// a request to the home directory").
func (p *Processor) serviceL2Fills() {
	if p.L2 == nil {
		return
	}
	for idx, f := range p.l2Fills {
		if p.stats.CyclesElapsed < f.deadline {
			continue
		}

		state := p.resolveCoherence(f.lineTag, f.isWrite)
		line := make([]byte, p.L2.Config().BlockSize)
		p.L2.FillMSHR(idx, line, state)

		for _, l1Fill := range p.l2Waiters[idx] {
			l1Fill.viaL2 = true
			l1Fill.resolvedState = state
		}
		delete(p.l2Waiters, idx)
		delete(p.l2Fills, idx)
	}
}

// serviceFills completes every outstanding L1 miss whose deadline has
// arrived, installs the line, and marks every coalesced waiter complete.
// A fill that went through L2 reuses the coherence state L2's directory
// round trip already resolved; one that bypassed L2 (no L2 modeled, or
// L2 had no room) resolves it directly here.
func (p *Processor) serviceFills() {
	for idx, f := range p.fills {
		if p.stats.CyclesElapsed < f.deadline {
			continue
		}

		state := f.resolvedState
		if !f.viaL2 {
			state = p.resolveCoherence(f.lineTag, f.isWrite)
		}

		line := make([]byte, p.L1.Config().BlockSize)
		p.L1.FillMSHR(idx, line, state)

		handled := insts.HandledMemHit
		if f.viaL2 {
			handled = insts.HandledL2Hit
		}
		for _, w := range f.waiters {
			w.req.Handled = handled
			p.completeReq(w.req, w.handle)
		}
		delete(p.fills, idx)
	}
}

// resolveCoherence asks the home-node directory for lineTag's coherence
// action, applies any resulting remote invalidations, and reports the
// state this node should install the line in. With no directory modeled
// (a single-node configuration) it grants Modified to a write and Shared
// to a read unconditionally.
func (p *Processor) resolveCoherence(lineTag uint64, isWrite bool) cache.CohState {
	state := cache.Shared
	if isWrite {
		state = cache.Modified
	}
	if p.Directory == nil {
		return state
	}

	act, err := p.Directory.Service(directory.Request{
		Proc:    p.ID,
		LineTag: lineTag,
		IsWrite: isWrite,
	})
	if err != nil {
		return state
	}
	if p.RemoteInvalidate != nil {
		for _, other := range act.Invalidate {
			p.RemoteInvalidate(other, lineTag)
		}
	}
	return coherenceStateFrom(act.NewState)
}

func coherenceStateFrom(s directory.LineState) cache.CohState {
	if s == directory.ModifiedState {
		return cache.Modified
	}
	return cache.Shared
}

func blockTag(addr uint64, c *cache.Cache) uint64 {
	bs := uint64(c.Config().BlockSize)
	return (addr / bs) * bs
}
