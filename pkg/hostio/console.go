// Package hostio implements the rv32.Host bridge: a raw-terminal
// console for MMIO_PUTC/MMIO_GETC, and an HTIF-style syscall frame
// bridge for MMIO_TOHOST/MMIO_FROMHOST. Neither touches the simulator
// core directly; both are wired in by cmd/rv32sim through rv32.Host.
package hostio

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"syscall"
	"time"

	"golang.org/x/term"
)

// Console bridges the guest's single-byte console MMIO registers to the
// host process's stdin/stdout. When stdin is a terminal it is switched
// to raw mode so MMIO_GETC can return one keystroke at a time without
// line buffering or local echo getting in the way, mirroring
// TerminalHost in the IntuitionEngine example. When stdin is not a
// terminal (a pipe, a redirect, or a test harness) Console falls back
// to buffered byte-at-a-time reads.
type Console struct {
	in  *os.File
	out io.Writer

	fd          int
	raw         bool
	oldState    *term.State
	nonblockSet bool
	reader      *bufio.Reader
}

// NewConsole wraps in/out. Call Start before the first GetChar.
func NewConsole(in *os.File, out io.Writer) *Console {
	return &Console{in: in, out: out, reader: bufio.NewReader(in)}
}

// Start puts stdin into raw, non-blocking mode when it is a terminal.
// It is a no-op (and never an error) when stdin is not a terminal.
func (c *Console) Start() error {
	c.fd = int(c.in.Fd())
	if !term.IsTerminal(c.fd) {
		return nil
	}
	oldState, err := term.MakeRaw(c.fd)
	if err != nil {
		return fmt.Errorf("hostio: failed to set raw mode: %w", err)
	}
	c.oldState = oldState
	c.raw = true
	if err := syscall.SetNonblock(c.fd, true); err != nil {
		_ = term.Restore(c.fd, c.oldState)
		c.raw = false
		return fmt.Errorf("hostio: failed to set nonblocking stdin: %w", err)
	}
	c.nonblockSet = true
	return nil
}

// Stop restores stdin to its original terminal state, if Start changed
// it.
func (c *Console) Stop() {
	if c.nonblockSet {
		_ = syscall.SetNonblock(c.fd, false)
		c.nonblockSet = false
	}
	if c.oldState != nil {
		_ = term.Restore(c.fd, c.oldState)
		c.oldState = nil
	}
	c.raw = false
}

// PutChar writes a single byte to the console, triggered by a store to
// MMIO_PUTC.
func (c *Console) PutChar(b byte) {
	_, _ = c.out.Write([]byte{b})
}

// GetChar blocks for a single byte, triggered by a load from
// MMIO_GETC. It returns -1 on EOF. In raw mode it polls the
// non-blocking fd directly; otherwise it reads through the buffered
// reader, which blocks normally.
func (c *Console) GetChar() int32 {
	if !c.raw {
		b, err := c.reader.ReadByte()
		if err != nil {
			return -1
		}
		return int32(b)
	}
	buf := make([]byte, 1)
	for {
		n, err := syscall.Read(c.fd, buf)
		if n > 0 {
			return int32(buf[0])
		}
		if err == syscall.EAGAIN || err == syscall.EWOULDBLOCK {
			time.Sleep(5 * time.Millisecond)
			continue
		}
		if err != nil {
			return -1
		}
		time.Sleep(5 * time.Millisecond)
	}
}
