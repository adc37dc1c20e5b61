package core

import (
	"github.com/sarchlab/rsim/insts"
	"github.com/sarchlab/rsim/timing/cache"
)

// prefetchVariant decodes the SPARC-V9 PREFETCH fcn field carried in
// Aux1 into the level/excl pair issuePrefetch wants: bit 0 selects
// prefetch-for-write over prefetch-for-read, bit 1 selects the L2 rather
// than the L1 variant.
func prefetchVariant(fcn uint32) (level int, excl bool) {
	level = 1
	if fcn&0x2 != 0 {
		level = 2
	}
	excl = fcn&0x1 != 0
	return level, excl
}

// issuePrefetch inserts a REQ with prcr_req_type = Lk{Read,Write}Prefetch
// and inst = nil at the given level of the hierarchy (spec.md §4.5
// "Prefetch"). A hit, a full cache port, or a full MSHR table drops the
// prefetch silently rather than retrying or stalling anything — a
// prefetch is best-effort only, matching the original PREFETCH opcode's
// functional no-op at retire. A prefetch to an unmapped address is
// dropped the same way, before ever reaching the cache.
func (p *Processor) issuePrefetch(addr uint64, level int, excl bool) {
	if !p.Mem.IsMapped(addr) {
		return
	}

	var c *cache.Cache
	var reqType insts.ReqType
	switch level {
	case 1:
		c = p.L1
		reqType = insts.ReqL1ReadPrefetch
		if excl {
			reqType = insts.ReqL1WritePrefetch
		}
	case 2:
		c = p.L2
		reqType = insts.ReqL2ReadPrefetch
		if excl {
			reqType = insts.ReqL2WritePrefetch
		}
	default:
		return
	}
	if c == nil {
		return
	}

	req := p.reqPool.Get()
	req.MarkInUse()
	req.Type = reqType
	req.PhysAddr = addr
	req.Proc = p.ID
	req.IssueTime = float64(p.stats.CyclesElapsed)

	res := c.Lookup(addr, 1, excl, 0)
	if res.Status == cache.StatusMissPrimary {
		lineTag := blockTag(addr, c)
		f := &pendingFill{lineTag: lineTag, isWrite: excl, isPrefetch: true}
		if level == 1 {
			p.fills[res.MSHRIdx] = f
			p.attemptL2(lineTag, pendingAccess{addr: addr, size: 1, isWrite: excl}, f, res.Latency)
		} else {
			f.deadline = p.busDeadline(nil, res.Latency)
			p.l2Fills[res.MSHRIdx] = f
		}
	}
	// Hit, miss-secondary, or a full port/MSHR table: dropped silently,
	// per spec.md §4.5 ("dropped silently if they conflict with capacity
	// limits or with a live MSHR").

	req.MarkFree()
	p.reqPool.Put(req)
}
