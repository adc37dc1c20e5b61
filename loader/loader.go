// Package loader reads the two inputs external to the core (spec.md §6):
// the predecoded instruction file (one fixed-size StaticInstr record per
// instruction, in program order, read into memory and treated as
// read-only) and the
// application address space image loaded into a hash-based virtual-to-
// host page table split at lowshared into per-process and shared ranges.
//
// The predecoder and the ELF loader that would normally produce these two
// inputs are external collaborators, out of scope (spec.md §1); this
// package only consumes their already-produced, fixed-layout output, the
// way the teacher's loader package consumed an already-built ELF file.
package loader

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/sarchlab/rsim/insts"
)

// recordSize is the fixed on-disk size of one predecoded instruction
// record: PC(8) Op(2) Rd/Rcc/Rs1/Rs2/Rscc(5) pad(1) Aux1(4) Aux2(4) Imm(8)
// RegFlags(1) flags-byte(1) WinDelta(1, signed) pad(5) = 40 bytes.
const recordSize = 40

// flagBit positions packed into the predecoded record's single flags byte.
const (
	flagTakenHint = 1 << iota
	flagAnnul
	flagCondBranch
	flagUncondBranch
)

// Program is the result of loading a predecoded binary: its instruction
// stream in program order and its entry PC.
type Program struct {
	Instrs   []insts.StaticInstr
	EntryPC  uint64
	ByPC     map[uint64]*insts.StaticInstr
}

// LoadInstructions reads a predecoded instruction file into a Program.
// The core treats the result as read-only (spec.md §6).
func LoadInstructions(path string) (*Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loader: open instruction file: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	prog := &Program{ByPC: make(map[uint64]*insts.StaticInstr)}

	buf := make([]byte, recordSize)
	for {
		_, err := io.ReadFull(r, buf)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("loader: reading instruction record %d: %w", len(prog.Instrs), err)
		}
		rec := decodeRecord(buf)
		prog.Instrs = append(prog.Instrs, rec)
	}
	if len(prog.Instrs) == 0 {
		return nil, fmt.Errorf("loader: instruction file %s contains no records", path)
	}
	prog.EntryPC = prog.Instrs[0].PC
	for i := range prog.Instrs {
		prog.ByPC[prog.Instrs[i].PC] = &prog.Instrs[i]
	}
	return prog, nil
}

func decodeRecord(buf []byte) insts.StaticInstr {
	le := binary.LittleEndian
	var s insts.StaticInstr
	s.PC = le.Uint64(buf[0:8])
	s.Op = insts.Op(le.Uint16(buf[8:10]))
	s.Rd = buf[10]
	s.Rcc = buf[11]
	s.Rs1 = buf[12]
	s.Rs2 = buf[13]
	s.Rscc = buf[14]
	s.Aux1 = le.Uint32(buf[16:20])
	s.Aux2 = le.Uint32(buf[20:24])
	s.Imm = int64(le.Uint64(buf[24:32]))
	s.RegFlags = insts.RegType(buf[32])
	flags := buf[33]
	s.TakenHint = flags&flagTakenHint != 0
	s.Annul = flags&flagAnnul != 0
	s.CondBranch = flags&flagCondBranch != 0
	s.UncondBranch = flags&flagUncondBranch != 0
	s.WinDelta = insts.WindowDelta(int8(buf[34]))
	return s
}

// Lookup returns the static instruction at pc, or nil and false if pc is
// not a valid instruction address — the fetch unit reports this as BadPC
// (spec.md §4.3 Fetch).
func (p *Program) Lookup(pc uint64) (*insts.StaticInstr, bool) {
	s, ok := p.ByPC[pc]
	return s, ok
}
