package core

import "github.com/sarchlab/rsim/insts"

// issueStep scans the issue queue oldest-first and issues up to
// issueRate instructions whose source operands are ready and whose
// functional unit (memory queue, for loads/stores/RMWs) has room
// (spec.md §4.2 "Issue"). Issued memory instructions hand off to the
// MemoryQueue; every issued instruction also joins the execute queue,
// which executeStep resolves on the following cycle (execute runs before
// issue within a cycle).
func (p *Processor) issueStep() {
	issued := 0
	remaining := p.issueQueue[:0]
	for _, idx := range p.issueQueue {
		if issued >= p.issueRate {
			remaining = append(remaining, idx)
			continue
		}

		e := p.al.At(idx)
		in := e.inst
		static := in.Static

		if !p.phys.Ready(in.PhysRs1) || !p.phys.Ready(in.PhysRs2) || !p.phys.Ready(in.PhysRscc) {
			remaining = append(remaining, idx)
			continue
		}

		in.SrcVal1 = p.readSrc(static.Rs1, in.PhysRs1, static)
		in.SrcVal2 = p.readSrc(static.Rs2, in.PhysRs2, static)
		if static.RegFlags&insts.RegRs2 == 0 {
			in.SrcVal2 = uint64(static.Imm)
		}

		if static.IsPrefetchOp() {
			in.EffectiveAddr = uint64(int64(in.SrcVal1) + static.Imm)
			level, excl := prefetchVariant(static.Aux1)
			p.issuePrefetch(in.EffectiveAddr, level, excl)
		} else if static.IsMemOp() {
			in.EffectiveAddr = uint64(int64(in.SrcVal1) + static.Imm)
			line := (in.EffectiveAddr / uint64(p.L1.Config().BlockSize)) * uint64(p.L1.Config().BlockSize)

			switch {
			case static.IsRMW():
				e.memHandle = p.MemQ.IssueRMW(in, line)
			case static.IsStore():
				e.memHandle = p.MemQ.IssueStore(in, line)
			default:
				e.memHandle = p.MemQ.IssueLoad(in, line)
			}
			if e.memHandle == nil {
				remaining = append(remaining, idx)
				continue
			}
			in.MemProgress = insts.MemIssuedToL1
			p.queueCacheAccess(e.memHandle, in, static)
		}

		issued++
		p.executeQueue = append(p.executeQueue, idx)
	}
	p.issueQueue = remaining
}

// readSrc returns a source operand's value: zero for %g0, the physical
// register's value otherwise.
func (p *Processor) readSrc(logical uint8, phys int, static *insts.StaticInstr) uint64 {
	if phys < 0 {
		if logical == 0 {
			return 0
		}
		return p.Reg.ReadInt(logical)
	}
	return p.phys.Read(phys)
}
