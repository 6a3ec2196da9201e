package hostio

import (
	"encoding/binary"
	"os"
)

// Newlib/pk-style syscall numbers, shared with the direct-ECALL bridge
// in pkg/rv32's execute_system.go. HTIF uses the same numbering so a
// guest can be built against either bridge unmodified.
const (
	sysExit  = 93
	sysWrite = 64
	sysRead  = 63
)

// consoleIO is the byte-level surface HTIF needs from its underlying
// console, satisfied by both Console and NetConsole.
type consoleIO interface {
	PutChar(b byte)
	GetChar() int32
}

// stopper is implemented by consoles that hold host terminal state
// needing to be restored before the process exits.
type stopper interface {
	Stop()
}

// HTIF implements the rv32.Host interface on top of a consoleIO,
// adding the tohost/fromhost syscall-frame convention: a tohost value
// of 1 means "exit 0"; an odd value means "exit value>>1"; zero is
// ignored; any other value is the address, within the guest's data
// image, of a 4-word syscall frame (syscall number followed by three
// arguments; the result is written back over the syscall number)
// that HTIF services in place and acknowledges through fromhost. This
// mirrors, in simplified form, the classic riscv-pk HTIF device
// protocol referenced by original_source/tools/rvsim.c's
// tohost/fromhost handling.
type HTIF struct {
	console    consoleIO
	dmemBase   uint32
	fromHost   uint32
	beforeExit func(code int32)
}

// NewHTIF wraps console with the HTIF syscall-frame bridge. dmemBase is
// the guest-visible base address of the data image the frame addresses
// are relative to.
func NewHTIF(console consoleIO, dmemBase uint32) *HTIF {
	return &HTIF{console: console, dmemBase: dmemBase}
}

// SetBeforeExit installs a hook run on every exit path (guest ECALL
// exit, tohost exit-code write, or the forever-loop detector's
// Host.Exit(1)) before the console is restored and the process quits.
// cmd/rv32sim uses this to print the simulation-statistics block of
// spec.md §7, mirroring prog_exit's ordering in
// original_source/tools/rvsim.c: stats are printed, then the terminal
// is restored, then the process exits.
func (h *HTIF) SetBeforeExit(fn func(code int32)) {
	h.beforeExit = fn
}

// PutChar and GetChar pass straight through to the underlying console,
// so an *HTIF can itself be used wherever an rv32.Host's console
// methods are needed.
func (h *HTIF) PutChar(b byte) { h.console.PutChar(b) }
func (h *HTIF) GetChar() int32 { return h.console.GetChar() }

// Exit terminates the host process with the guest-supplied exit code,
// restoring the console's terminal state first when it has any to
// restore. Like os.Exit, it never returns.
func (h *HTIF) Exit(code int32) {
	if h.beforeExit != nil {
		h.beforeExit(code)
	}
	if s, ok := h.console.(stopper); ok {
		s.Stop()
	}
	os.Exit(int(code))
}

// ToHost services a tohost write.
func (h *HTIF) ToHost(value uint32, dmem []byte) {
	if value == 0 {
		return
	}
	if value&1 == 1 {
		h.Exit(int32(value >> 1))
		return
	}
	h.serviceSyscallFrame(value, dmem)
}

// FromHost returns the most recent syscall-frame acknowledgement.
func (h *HTIF) FromHost() uint32 {
	return h.fromHost
}

const syscallFrameWords = 4

func (h *HTIF) serviceSyscallFrame(addr uint32, dmem []byte) {
	off := addr - h.dmemBase
	if addr < h.dmemBase || int(off)+4*syscallFrameWords > len(dmem) {
		return
	}
	num := binary.LittleEndian.Uint32(dmem[off : off+4])
	a0 := binary.LittleEndian.Uint32(dmem[off+4 : off+8])
	a1 := binary.LittleEndian.Uint32(dmem[off+8 : off+12])
	a2 := binary.LittleEndian.Uint32(dmem[off+12 : off+16])

	var ret uint32
	switch num {
	case sysExit:
		h.Exit(int32(a0))
		return
	case sysWrite:
		ret = h.writeGuestBuffer(a1, a2, dmem)
	case sysRead:
		ret = h.readGuestBuffer(a1, a2, dmem)
	default:
		ret = 0xffff_ffff
	}

	binary.LittleEndian.PutUint32(dmem[off:off+4], ret)
	h.fromHost = addr | 1
}

func (h *HTIF) writeGuestBuffer(addr, length uint32, dmem []byte) uint32 {
	var n uint32
	for ; n < length; n++ {
		off := addr + n - h.dmemBase
		if addr+n < h.dmemBase || int(off) >= len(dmem) {
			break
		}
		h.console.PutChar(dmem[off])
	}
	return n
}

func (h *HTIF) readGuestBuffer(addr, length uint32, dmem []byte) uint32 {
	var n uint32
	for ; n < length; n++ {
		c := h.console.GetChar()
		if c < 0 {
			break
		}
		off := addr + n - h.dmemBase
		if addr+n < h.dmemBase || int(off) >= len(dmem) {
			break
		}
		dmem[off] = byte(c)
	}
	return n
}
