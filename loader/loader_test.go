package loader_test

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/sarchlab/rsim/insts"
	"github.com/sarchlab/rsim/loader"
)

func writeRecord(buf *bytes.Buffer, s insts.StaticInstr) {
	le := binary.LittleEndian
	var rec [40]byte
	le.PutUint64(rec[0:8], s.PC)
	le.PutUint16(rec[8:10], uint16(s.Op))
	rec[10] = s.Rd
	rec[11] = s.Rcc
	rec[12] = s.Rs1
	rec[13] = s.Rs2
	rec[14] = s.Rscc
	le.PutUint32(rec[16:20], s.Aux1)
	le.PutUint32(rec[20:24], s.Aux2)
	le.PutUint64(rec[24:32], uint64(s.Imm))
	rec[32] = byte(s.RegFlags)
	buf.Write(rec[:])
}

func TestLoadInstructions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prog.rbin")

	var buf bytes.Buffer
	writeRecord(&buf, insts.StaticInstr{PC: 0x1000, Op: insts.OpADD, Rd: 1, Rs1: 2, Imm: 4})
	writeRecord(&buf, insts.StaticInstr{PC: 0x1004, Op: insts.OpLD, Rd: 3, Rs1: 1})

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write test file: %v", err)
	}

	prog, err := loader.LoadInstructions(path)
	if err != nil {
		t.Fatalf("LoadInstructions: %v", err)
	}
	if len(prog.Instrs) != 2 {
		t.Fatalf("expected 2 instructions, got %d", len(prog.Instrs))
	}
	if prog.EntryPC != 0x1000 {
		t.Fatalf("expected entry 0x1000, got 0x%x", prog.EntryPC)
	}
	got, ok := prog.Lookup(0x1004)
	if !ok || got.Op != insts.OpLD || got.Rd != 3 {
		t.Fatalf("lookup at 0x1004 returned %+v, ok=%v", got, ok)
	}
	if _, ok := prog.Lookup(0xDEAD); ok {
		t.Fatal("expected lookup of unmapped PC to fail")
	}
}

func TestLoadInstructionsRejectsEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.rbin")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("write test file: %v", err)
	}
	if _, err := loader.LoadInstructions(path); err == nil {
		t.Fatal("expected error loading an empty instruction file")
	}
}

func TestLoadImage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "image.bin")

	var buf bytes.Buffer
	le := binary.LittleEndian
	var header [24]byte
	le.PutUint64(header[0:8], 0x7FFF0000)  // InitialSP
	le.PutUint64(header[8:16], 0x40000000) // LowShared
	le.PutUint64(header[16:24], 1)         // NumSegments
	buf.Write(header[:])

	var segHeader [16]byte
	le.PutUint64(segHeader[0:8], 0x10000)
	le.PutUint64(segHeader[8:16], 4)
	buf.Write(segHeader[:])
	buf.Write([]byte{1, 2, 3, 4})

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write test file: %v", err)
	}

	img, err := loader.LoadImage(path)
	if err != nil {
		t.Fatalf("LoadImage: %v", err)
	}
	if img.InitialSP != 0x7FFF0000 || img.LowShared != 0x40000000 {
		t.Fatalf("unexpected header fields: %+v", img)
	}
	if len(img.Segments) != 1 || img.Segments[0].VirtAddr != 0x10000 {
		t.Fatalf("unexpected segments: %+v", img.Segments)
	}
	if !bytes.Equal(img.Segments[0].Data, []byte{1, 2, 3, 4}) {
		t.Fatalf("unexpected segment data: %v", img.Segments[0].Data)
	}
}
