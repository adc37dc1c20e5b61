// Package emu provides functional SPARC-V9 state: the architectural
// register file (integer windows, floating point, Y/ICC), the hash-based
// virtual-to-host memory map, and the FunctionalExecutor that performs an
// opcode's side effect at retire (spec.md §4.7). Adapted from the
// teacher's emu package (originally ARM64 functional emulation) to the
// SPARC-V9 architectural state spec.md names explicitly: register windows
// (CWP), the Y register and ICC flags used by UMULcc/SMULcc/MULScc/SDIVcc,
// and the stack-growth-on-SegV retry path.
package emu

import "github.com/sarchlab/rsim/rsimerr"

const (
	// NumGlobalRegs is %g0-%g7, shared by every register window.
	NumGlobalRegs = 8
	// WindowRegs is the number of registers (ins+locals+outs) visible per
	// window: 8 ins + 8 locals + 8 outs = 24.
	WindowRegs = 24
	// DefaultNumWindows is a typical SPARC-V9 implementation's register
	// window count.
	DefaultNumWindows = 8
)

// ICC holds the integer condition codes spec.md's boundary scenario S4
// names explicitly (N negative, Z zero, V overflow, C carry).
type ICC struct {
	N, Z, V, C bool
}

// RegFile is the architectural integer/floating register file: global
// registers, a ring of register windows, the Y register (multiply/divide
// extension), and ICC. It is logical-register-addressed; the rename layer
// in timing/core maps logical numbers to physical registers before any
// value flows through here — RegFile only holds the committed
// architectural state written at retire.
type RegFile struct {
	Globals [NumGlobalRegs]uint64
	Windows []Window // ring of DefaultNumWindows windows
	CWP     int      // current window pointer, indexes Windows
	CANSAVE int      // windows available for SAVE before overflow
	CANRESTORE int  // windows available for RESTORE before underflow

	Y   uint64
	ICC ICC

	FP [32]uint32 // single-precision view; double view pairs adjacent regs

	PC, NPC uint64
}

// Window holds one register window's locals and outs (ins are shared with
// the previous window's outs in real SPARC-V9; RSIM keeps a flat per-
// window copy for simplicity of the rename/commit contract — the
// simulated architectural effect is identical since only one window is
// live at a time).
type Window struct {
	Locals [8]uint64
	Outs   [8]uint64
	Ins    [8]uint64
}

// NewRegFile creates a RegFile with numWindows windows, all registers
// zeroed, CWP at window 0.
func NewRegFile(numWindows int) *RegFile {
	if numWindows <= 0 {
		numWindows = DefaultNumWindows
	}
	return &RegFile{
		Windows:    make([]Window, numWindows),
		CANSAVE:    numWindows - 1,
		CANRESTORE: 0,
	}
}

// ReadInt reads logical integer register r (0 = always-zero register,
// spec.md §3 RegisterFile invariant; 1-7 = globals; 8-31 = current
// window's outs/locals/ins).
func (rf *RegFile) ReadInt(r uint8) uint64 {
	if r == 0 {
		return 0
	}
	if r < NumGlobalRegs {
		return rf.Globals[r]
	}
	w := &rf.Windows[rf.CWP]
	idx := int(r) - NumGlobalRegs
	switch {
	case idx < 8:
		return w.Outs[idx]
	case idx < 16:
		return w.Locals[idx-8]
	default:
		return w.Ins[idx-16]
	}
}

// WriteInt writes logical integer register r, discarding writes to the
// zero register (spec.md §3 RegisterFile invariant).
func (rf *RegFile) WriteInt(r uint8, v uint64) {
	if r == 0 {
		return
	}
	if r < NumGlobalRegs {
		rf.Globals[r] = v
		return
	}
	w := &rf.Windows[rf.CWP]
	idx := int(r) - NumGlobalRegs
	switch {
	case idx < 8:
		w.Outs[idx] = v
	case idx < 16:
		w.Locals[idx-8] = v
	default:
		w.Ins[idx-16] = v
	}
}

// Save rotates CWP forward (grows the window stack) as SAVE would. It
// checks CANSAVE itself and returns a WindowOverflow exception, leaving
// the window state unchanged, when no free window remains.
// Save is only ever invoked by the retire-time window-op handler once the
// active list has drained (spec.md §3 RenameWindow: "serializing").
func (rf *RegFile) Save() error {
	if rf.CANSAVE == 0 {
		return rsimerr.NewException(rsimerr.WindowOverflow, rf.PC, "no free register window for SAVE")
	}
	rf.CWP = (rf.CWP + 1) % len(rf.Windows)
	rf.CANSAVE--
	rf.CANRESTORE++
	return nil
}

// Restore rotates CWP backward as RESTORE would.
func (rf *RegFile) Restore() error {
	if rf.CANRESTORE == 0 {
		return rsimerr.NewException(rsimerr.WindowUnderflow, rf.PC, "no saved register window for RESTORE")
	}
	rf.CWP = (rf.CWP - 1 + len(rf.Windows)) % len(rf.Windows)
	rf.CANRESTORE--
	rf.CANSAVE++
	return nil
}

// Flushw discards every window except the current one, making all windows
// available for SAVE again (spec.md §3 RenameWindow names FLUSHW as
// serializing alongside SAVE/RESTORE).
func (rf *RegFile) Flushw() {
	rf.CANSAVE += rf.CANRESTORE
	rf.CANRESTORE = 0
}
