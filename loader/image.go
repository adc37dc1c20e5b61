package loader

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// Segment is one contiguous range of the application's initial address
// space image, to be copied into the host-backed memory map at load time.
type Segment struct {
	VirtAddr uint64
	Data     []byte
}

// Image is the application address space loaded from a separate region
// (spec.md §6 "Application address space"): referenced by loads/stores,
// split at LowShared into per-process and shared ranges (each mapped to
// host storage by a hash-based page table — see emu.Memory).
type Image struct {
	Segments  []Segment
	InitialSP uint64
	LowShared uint64
}

// imageHeader mirrors the fixed 24-byte header preceding the segment list
// in an application image file: InitialSP(8) LowShared(8) NumSegments(8).
const imageHeaderSize = 24

// LoadImage reads an application address-space image file produced
// upstream of the core (the ELF loader that builds this file is out of
// scope, spec.md §1).
func LoadImage(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loader: open image file: %w", err)
	}
	defer f.Close()
	r := bufio.NewReader(f)

	header := make([]byte, imageHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("loader: reading image header: %w", err)
	}
	le := binary.LittleEndian
	img := &Image{
		InitialSP: le.Uint64(header[0:8]),
		LowShared: le.Uint64(header[8:16]),
	}
	numSegments := le.Uint64(header[16:24])

	for i := uint64(0); i < numSegments; i++ {
		segHeader := make([]byte, 16)
		if _, err := io.ReadFull(r, segHeader); err != nil {
			return nil, fmt.Errorf("loader: reading segment %d header: %w", i, err)
		}
		addr := le.Uint64(segHeader[0:8])
		size := le.Uint64(segHeader[8:16])
		data := make([]byte, size)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, fmt.Errorf("loader: reading segment %d body: %w", i, err)
		}
		img.Segments = append(img.Segments, Segment{VirtAddr: addr, Data: data})
	}
	return img, nil
}
