package core

import (
	"github.com/sarchlab/rsim/insts"
	"github.com/sarchlab/rsim/rsimerr"
)

// isPredictedBranch reports whether op is trained by the 2-bit
// saturating-counter table (the RAS-predicted CALL/JMPL return idiom is
// trained separately via Push/PredictReturn).
func isPredictedBranch(op insts.Op) bool {
	return op == insts.OpBcc || op == insts.OpFBcc
}

// retireStep commits up to retireRate instructions from the ActiveList
// head, strictly in program order (spec.md §4.3 "Retire"). An
// instruction not yet marked done by execute stalls retire entirely,
// since nothing younger may commit ahead of it.
func (p *Processor) retireStep() {
	for i := 0; i < p.retireRate; i++ {
		e := p.al.PeekHead()
		if e == nil || !e.done {
			return
		}

		in := e.inst
		static := in.Static

		if e.memHandle != nil && e.memHandle.Squashed() != rsimerr.OK {
			p.squashLoadAtRetire(static.PC)
			return
		}

		var err error
		if in.ExceptionCode != rsimerr.OK {
			err = rsimerr.NewException(in.ExceptionCode, in.FaultAddr, "")
		} else {
			err = p.FE.Retire(in)
		}
		if err != nil {
			if !p.tryRecover(err) {
				p.handleFault(err)
				return
			}
			err = p.FE.Retire(in)
			if err != nil {
				p.handleFault(err)
				return
			}
		}

		if e.hasDest {
			p.phys.Write(e.physRd, in.IntResult)
			p.phys.Release(e.oldPhysRd)
		}
		if e.logicalRdHi >= 0 {
			p.phys.Write(e.physRdHi, in.IntPairResult)
			p.phys.Release(e.oldPhysRdHi)
		}
		if isPredictedBranch(static.Op) {
			p.bp.Update(static.PC, in.ActualTaken)
		}
		if e.memHandle != nil {
			p.MemQ.Retire(e.memHandle)
		}

		p.al.RetireHead()
		p.instPool.Put(in)
		p.stats.InstructionsRetired++
	}
}

// tryRecover attempts to resolve a recoverable fault in place so retire
// can re-attempt the instruction this same step: a stack-region SegV
// grows the stack (spec.md §4.6's stack-growth convention), after which
// the faulting access is retried exactly once.
func (p *Processor) tryRecover(err error) bool {
	exc, ok := err.(*rsimerr.Exception)
	if !ok || exc.Code != rsimerr.SegV {
		return false
	}
	return p.Mem.GrowStack(exc.Addr)
}

// handleFault records an unrecoverable exception and halts the
// processor; spec.md names no further forward-progress behavior for an
// unhandled trap at this level of detail.
func (p *Processor) handleFault(err error) {
	p.stats.Exceptions++
	p.halted = true
	p.exitCode = -1
	if exc, ok := err.(*rsimerr.Exception); ok {
		p.lastException = exc
		if exc.Code == rsimerr.WindowOverflow {
			p.stats.WindowOverflows++
		}
	}
}
