package rv32

// Host is the narrow interface through which the core reaches the
// outside world. The core never touches a terminal, socket, or file
// directly; pkg/hostio supplies the concrete implementation used by
// cmd/rv32sim, and tests supply fakes.
type Host interface {
	// PutChar writes a single byte to the console, triggered by a store
	// to MMIOPutc.
	PutChar(b byte)

	// GetChar blocks for a single byte from the console, triggered by a
	// load from MMIOGetc. It returns -1 on EOF.
	GetChar() int32

	// Exit terminates the simulation with the given guest-supplied exit
	// code, triggered by a store to MMIOExit or an HTIF SYS_EXIT. Like
	// os.Exit, it never returns control to the caller.
	Exit(code int32)

	// ToHost services an HTIF syscall frame pointed to by guestPtr,
	// reading and writing through dmem (the machine's data image).
	ToHost(guestPtr uint32, dmem []byte)

	// FromHost returns the most recent value posted back to the guest
	// through the HTIF fromhost slot, triggered by a load from
	// MMIOFromHost.
	FromHost() uint32
}
