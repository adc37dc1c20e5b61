package core

import (
	"github.com/sarchlab/rsim/insts"
	"github.com/sarchlab/rsim/rsimerr"
)

// fetchStep fetches up to fetchRate predecoded instructions per cycle
// (spec.md §4.2 "Fetch"), stopping early only when the ActiveList is
// full. A predicted-taken branch redirects the next slot's PC to its
// predicted target within the same cycle, and an out-of-program PC does
// not stop fetch either. A misaligned or
// out-of-segment PC yields an instance carrying exception_code BadPC
// (spec.md §4.3 "Fetch"), reported at retire since fetch itself does not
// raise exceptions. Every fetched instance is drawn from the instance
// pool and stamped with the next per-processor tag (spec.md §3 "its tag
// is a monotonically increasing per-processor counter"), so a REQ issued
// against a slot that gets squashed and recycled before the REQ returns
// carries a now-stale tag and is dropped rather than mistaken for the new
// occupant.
func (p *Processor) fetchStep() {
	for i := 0; i < p.fetchRate; i++ {
		if p.al.Full() {
			return
		}

		static, ok := p.Program.Lookup(p.pc)
		badPC := !ok
		if !ok {
			static = &insts.StaticInstr{PC: p.pc, Op: insts.OpNOP}
		}

		in := p.instPool.Get()
		p.nextTag++
		in.Tag = p.nextTag
		in.Static = static
		if badPC {
			in.ExceptionCode = rsimerr.BadPC
			in.FaultAddr = p.pc
		}

		if static.IsBranch() && !insts.IsAnnulAlways(static.Op) {
			in.PredictedTaken = p.bp.Predict(p.pc)
			if static.Op == insts.OpJMPL && static.Rs1 == 15 { // %o7-based RET idiom
				if target, ok := p.bp.PredictReturn(); ok {
					in.ResolvedTarget = target
					in.PredictedTaken = true
				}
			}
		}

		p.renameQueue = append(p.renameQueue, in)
		p.advancePC(static, in)
	}
}

// advancePC computes the PC for the next fetch slot, following the
// predictor's prediction for branches and falling through by one
// instruction (4 bytes) otherwise. Execute corrects this if the
// prediction is later found wrong (spec.md §4.3 squash protocol).
func (p *Processor) advancePC(static *insts.StaticInstr, in *insts.Instance) {
	if static.IsBranch() {
		if insts.IsAnnulAlways(static.Op) {
			p.pc = p.pc + 4
			return
		}
		if in.PredictedTaken {
			if in.ResolvedTarget != 0 {
				p.pc = in.ResolvedTarget
				return
			}
			p.pc = uint64(int64(p.pc) + static.Imm)
			return
		}
	}
	p.pc = p.pc + 4
}
