package core

// unwindRename restores the rename map and releases physical registers
// for every squashed entry, in the youngest-first order Squash/SquashAll
// already return them in (spec.md §4.3 "unwind ... in reverse program
// order"). It also releases each entry's in-flight REQ, if any, and
// returns its Instance to the pool (spec.md §3 "in-use" discipline): a
// squashed instruction never retires, so retireStep never gets the
// chance to do either for it.
func (p *Processor) unwindRename(removed []alEntry) {
	for _, e := range removed {
		if e.hasDest {
			p.rename.Set(e.logicalRd, e.oldPhysRd)
			p.phys.Release(e.physRd)
		}
		if e.logicalRdHi >= 0 {
			p.rename.Set(uint8(e.logicalRdHi), e.oldPhysRdHi)
			p.phys.Release(e.physRdHi)
		}
		if e.memHandle != nil {
			p.releaseMemHandle(e.memHandle)
		}
		p.instPool.Put(e.inst)
	}
}

// squashFrom rolls back every instruction younger than the one at slot
// idx (a resolved branch whose outcome disagreed with its prediction),
// implementing spec.md §4.3's squash protocol: drop speculative fetch
// output, unwind rename-map and physical-register allocations in reverse
// program order, and redirect the PC to the correct successor.
func (p *Processor) squashFrom(idx int) {
	branch := p.al.At(idx)
	removed := p.al.Squash(idx)
	p.unwindRename(removed)

	p.issueQueue = filterLive(p.issueQueue, p.al)
	p.executeQueue = filterLive(p.executeQueue, p.al)
	p.renameQueue = nil

	if branch.inst.ActualTaken {
		p.pc = branch.inst.ResolvedTarget
	} else {
		p.pc = branch.inst.Static.PC + 8
	}
	p.stats.Squashes++
}

// squashLoadAtRetire discards the ActiveList head (a speculative load
// SpecLoadBufCohe flagged before it could retire) and every younger
// instruction, then refetches starting at the load itself (spec.md §4.4
// "squashed at retire; fetch restarts at the load"). Unlike squashFrom,
// the offending instruction is not kept — it never committed and must
// re-execute.
func (p *Processor) squashLoadAtRetire(pc uint64) {
	removed := p.al.SquashAll()
	p.unwindRename(removed)

	p.issueQueue = nil
	p.executeQueue = nil
	p.renameQueue = nil

	p.pc = pc
	p.stats.Squashes++
	p.stats.Exceptions++
}

// filterLive keeps only the ActiveList slots a squash did not remove.
func filterLive(queue []int, al *ActiveList) []int {
	out := queue[:0]
	for _, slot := range queue {
		if al.StillLive(slot) {
			out = append(out, slot)
		}
	}
	return out
}
