// Package loader reads an ELF32 little-endian executable into the
// instruction and data images a rv32.Machine is constructed with. It is
// built directly on the standard library's debug/elf rather than a
// third-party dependency: no example repository in the reference corpus
// ships an ELF parser, and debug/elf is the idiomatic,
// exhaustively-tested choice for this exact job.
package loader

import (
	"debug/elf"
	"fmt"
)

// Image is the result of loading an executable: the entry point and
// the two memory images ready to hand to rv32.Machine.IMem/DMem.
type Image struct {
	Entry     uint32
	IMemBase  uint32
	DMemBase  uint32
	IMem      []byte
	DMem      []byte
}

// Load reads the ELF32 executable at path and copies its PT_LOAD
// segments into an instruction image (segments flagged PF_X) and a
// data image (everything else), sized to imemSize/dmemSize and based
// at imemBase/dmemBase. A segment that doesn't fit entirely within one
// region is a loader error.
func Load(path string, imemBase, imemSize, dmemBase, dmemSize uint32) (*Image, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loader: open %s: %w", path, err)
	}
	defer f.Close()

	if f.Class != elf.ELFCLASS32 {
		return nil, fmt.Errorf("loader: %s is not a 32-bit ELF", path)
	}
	if f.Data != elf.ELFDATA2LSB {
		return nil, fmt.Errorf("loader: %s is not little-endian", path)
	}
	if f.Machine != elf.EM_RISCV {
		return nil, fmt.Errorf("loader: %s is not an EM_RISCV executable", path)
	}

	img := &Image{
		Entry:    uint32(f.Entry),
		IMemBase: imemBase,
		DMemBase: dmemBase,
		IMem:     make([]byte, imemSize),
		DMem:     make([]byte, dmemSize),
	}

	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD || prog.Filesz == 0 {
			continue
		}
		data := make([]byte, prog.Filesz)
		if _, err := prog.ReadAt(data, 0); err != nil {
			return nil, fmt.Errorf("loader: reading segment at vaddr 0x%x: %w", prog.Vaddr, err)
		}
		if err := img.placeSegment(uint32(prog.Vaddr), data, prog.Flags&elf.PF_X != 0); err != nil {
			return nil, err
		}
	}
	return img, nil
}

func (img *Image) placeSegment(vaddr uint32, data []byte, executable bool) error {
	region, base := img.DMem, img.DMemBase
	if executable {
		region, base = img.IMem, img.IMemBase
	}
	if vaddr < base || int(vaddr-base)+len(data) > len(region) {
		kind := "data"
		if executable {
			kind = "instruction"
		}
		return fmt.Errorf("loader: segment at vaddr 0x%x (%d bytes) does not fit in the %s image", vaddr, len(data), kind)
	}
	copy(region[vaddr-base:], data)
	return nil
}
