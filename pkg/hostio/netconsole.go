package hostio

import (
	"fmt"
	"log"
	"net"
	"strings"
	"time"
)

// NetConsole implements rv32.Host's PutChar/GetChar over a TCP control
// connection instead of the host terminal, for headless runs where no
// real tty is attached (CI, remote debugging). The accept-then-poll
// pattern is adapted from SerialTTY in the RiSC-32 reference VM: a
// short read/write deadline lets InterruptPending-style polling return
// promptly with "no data yet" instead of blocking the whole simulation
// loop on a quiet connection.
type NetConsole struct {
	conn net.Conn
}

// ListenNetConsole blocks until a single TCP client attaches to the
// console on an OS-assigned port of loopback, then returns the
// resulting NetConsole.
func ListenNetConsole() (*NetConsole, error) {
	nl, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("hostio: listen for console: %w", err)
	}
	log.Printf("hostio: waiting for a console to attach on %s/tcp...", nl.Addr())
	conn, err := nl.Accept()
	if err != nil {
		return nil, fmt.Errorf("hostio: accept console connection: %w", err)
	}
	return &NetConsole{conn: conn}, nil
}

// Close closes the underlying connection.
func (c *NetConsole) Close() error { return c.conn.Close() }

// Stop closes the underlying connection, satisfying the stopper
// interface HTIF.Exit checks for before terminating the process.
func (c *NetConsole) Stop() { _ = c.conn.Close() }

// PutChar writes a single byte to the console connection.
func (c *NetConsole) PutChar(b byte) {
	_ = c.conn.SetWriteDeadline(time.Now().Add(time.Second))
	_, _ = c.conn.Write([]byte{b})
}

// GetChar polls the console connection for a single byte with a short
// deadline, returning -1 if nothing has arrived yet or the connection
// is gone. Unlike Console.GetChar this never blocks indefinitely,
// matching SerialTTY.InterruptPending's non-blocking poll discipline.
func (c *NetConsole) GetChar() int32 {
	_ = c.conn.SetReadDeadline(time.Now().Add(time.Millisecond))
	var b [1]byte
	n, err := c.conn.Read(b[:])
	if n > 0 {
		return int32(b[0])
	}
	if err != nil && strings.HasSuffix(err.Error(), "i/o timeout") {
		return -1
	}
	return -1
}
