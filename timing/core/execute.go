package core

import (
	"github.com/sarchlab/rsim/emu"
	"github.com/sarchlab/rsim/insts"
)

// executeStep resolves every instruction issued last cycle: ALU results
// are computed combinationally, branches are resolved against the
// architectural condition codes and trigger an immediate squash on
// misprediction (spec.md §4.3 "squash protocol" step 1, entered from
// execute rather than waiting for retire), and memory instructions are
// polled against the MemoryQueue for completion.
func (p *Processor) executeStep() {
	remaining := p.executeQueue[:0]
	for _, idx := range p.executeQueue {
		e := p.al.At(idx)
		in := e.inst
		static := in.Static

		if static.IsMemOp() {
			if e.memHandle == nil || !e.memHandle.Completed() {
				remaining = append(remaining, idx)
				continue
			}
			in.MemProgress = insts.MemCompleted
			e.done = true
			continue
		}

		if static.IsBranch() {
			p.resolveBranch(in, static)
			if in.ActualTaken != in.PredictedTaken {
				p.squashFrom(idx)
				p.stats.BranchMispredicts++
				e.done = true
				continue
			}
			e.done = true
			continue
		}

		// Ordinary ALU/serializing op: functional result is computed for
		// real only at retire (so ICC/Y commit happens exactly once, in
		// program order); execute only needs to mark it ready to retire.
		e.done = true
	}
	p.executeQueue = remaining
}

// resolveBranch evaluates static's condition against the current
// integer condition codes, SPARC's Bicc encoding: static.Aux1 carries the
// 4-bit condition field.
func (p *Processor) resolveBranch(in *insts.Instance, static *insts.StaticInstr) {
	switch static.Op {
	case insts.OpBA:
		in.ActualTaken = true
	case insts.OpBN:
		in.ActualTaken = false
	case insts.OpCALL, insts.OpJMPL:
		in.ActualTaken = true
		in.ResolvedTarget = uint64(int64(in.SrcVal1) + static.Imm)
		p.bp.Push(static.PC + 8)
	default:
		in.ActualTaken = evalCondition(static.Aux1, p.Reg.ICC)
	}
	if in.ActualTaken && in.ResolvedTarget == 0 && static.Op != insts.OpCALL && static.Op != insts.OpJMPL {
		in.ResolvedTarget = uint64(int64(static.PC) + static.Imm)
	}
}

// evalCondition implements the SPARC-V9 Bicc condition codes against the
// integer condition-code register.
func evalCondition(cond uint32, icc emu.ICC) bool {
	switch cond & 0xF {
	case 0x0: // BN
		return false
	case 0x1: // BE
		return icc.Z
	case 0x2: // BLE
		return icc.Z || (icc.N != icc.V)
	case 0x3: // BL
		return icc.N != icc.V
	case 0x4: // BLEU
		return icc.C || icc.Z
	case 0x5: // BCS
		return icc.C
	case 0x6: // BNEG
		return icc.N
	case 0x7: // BVS
		return icc.V
	case 0x8: // BA
		return true
	case 0x9: // BNE
		return !icc.Z
	case 0xA: // BG
		return !icc.Z && (icc.N == icc.V)
	case 0xB: // BGE
		return icc.N == icc.V
	case 0xC: // BGU
		return !icc.C && !icc.Z
	case 0xD: // BCC
		return !icc.C
	case 0xE: // BPOS
		return !icc.N
	case 0xF: // BVC
		return !icc.V
	}
	return false
}
