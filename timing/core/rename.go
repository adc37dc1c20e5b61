package core

import "github.com/sarchlab/rsim/insts"

// renameStep allocates physical registers and appends instructions to
// the ActiveList for every fetched instruction still waiting (spec.md
// §4.2 "Decode/Rename"). A serializing opcode (SAVE/RESTORE/FLUSHW/
// WRY/MEMBAR/UMULcc family) stalls rename until the ActiveList is empty,
// so it retires with no younger instruction able to have read stale
// state (spec.md §4.2 "serializing-opcode stall").
func (p *Processor) renameStep() {
	for len(p.renameQueue) > 0 {
		in := p.renameQueue[0]
		static := in.Static

		if static.IsSerializing() && !p.al.Empty() {
			return
		}

		if p.al.Full() {
			return
		}

		e := alEntry{
			inst:      in,
			oldPhysRd: -1, oldPhysRdHi: -1,
			physRd: -1, physRdHi: -1,
			logicalRdHi: -1,
		}

		if static.RegFlags&insts.RegRs1 != 0 {
			in.PhysRs1 = p.rename.Lookup(static.Rs1)
		} else {
			in.PhysRs1 = -1
		}
		if static.RegFlags&insts.RegRs2 != 0 {
			in.PhysRs2 = p.rename.Lookup(static.Rs2)
		} else {
			in.PhysRs2 = -1
		}
		if static.RegFlags&insts.RegRscc != 0 {
			in.PhysRscc = p.rename.Lookup(static.Rscc)
		} else {
			in.PhysRscc = -1
		}

		if static.RegFlags&insts.RegRd != 0 && static.Rd != 0 {
			pr := p.phys.Alloc()
			if pr < 0 {
				return // rename stall: no free physical register
			}
			e.hasDest = true
			e.logicalRd = static.Rd
			e.physRd = pr
			e.oldPhysRd = p.rename.Set(static.Rd, pr)
			in.PhysRd = pr

			if static.RegFlags&insts.RegPair != 0 {
				prHi := p.phys.Alloc()
				if prHi < 0 {
					// Roll back the first allocation; try again next cycle.
					p.rename.Set(static.Rd, e.oldPhysRd)
					p.phys.Release(pr)
					return
				}
				e.logicalRdHi = int(static.Rd) + 1
				e.physRdHi = prHi
				e.oldPhysRdHi = p.rename.Set(static.Rd+1, prHi)
				in.PhysRdHi = prHi
			}
		}

		idx := p.al.Append(e)
		p.issueQueue = append(p.issueQueue, idx)
		p.renameQueue = p.renameQueue[1:]
	}
}
