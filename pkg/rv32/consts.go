// Package rv32 implements the instruction interpreter and trap/interrupt
// pipeline of a 32-bit RISC-V-like instruction set simulator.
//
// The architecture is the RV32I base integer ISA plus the M (multiply/
// divide), B (bit-manipulation), A (atomic) and C (compressed) extension
// surfaces. The package owns no process-wide mutable state: every
// operation takes a *Machine by exclusive reference, per the design
// notes in SPEC_FULL.md.
package rv32

// Opcode is the 7-bit opcode field of a 32-bit instruction word.
type Opcode uint32

const (
	OpLoad     Opcode = 0b0000011
	OpMiscMem  Opcode = 0b0001111 // FENCE
	OpOpImm    Opcode = 0b0010011 // ARITH-I
	OpAUIPC    Opcode = 0b0010111
	OpStore    Opcode = 0b0100011
	OpAMO      Opcode = 0b0101111
	OpOp       Opcode = 0b0110011 // ARITH-R
	OpLUI      Opcode = 0b0110111
	OpBranch   Opcode = 0b1100011
	OpJALR     Opcode = 0b1100111
	OpJAL      Opcode = 0b1101111
	OpSystem   Opcode = 0b1110011
)

// REGNUM is the number of architectural general-purpose registers in
// the full (non-reduced) register file.
const REGNUM = 32

// RegNumReduced is the register count used by the RV32E variant.
const RegNumReduced = 16

// Memory map defaults. Build-time/flag-configurable in cmd/rv32sim;
// these are the values used when a Machine is constructed without
// overriding them.
const (
	DefaultIMemBase uint32 = 0x0000_0000
	DefaultDMemBase uint32 = 0x1000_0000
	DefaultIMemSize uint32 = 256 * 1024
	DefaultDMemSize uint32 = 256 * 1024
)

// MMIO addresses, outside both the instruction and data regions.
const (
	MMIOPutc      uint32 = 0xffff_fff0
	MMIOGetc      uint32 = 0xffff_fff4
	MMIOExit      uint32 = 0xffff_fff8
	MMIOToHost    uint32 = 0xffff_fffc
	MMIOFromHost  uint32 = 0xffff_ffe8
	MMIOMtime     uint32 = 0xffff_ffd0 // 8 bytes, lo then hi word
	MMIOMtimeCmp  uint32 = 0xffff_ffd8 // 8 bytes, lo then hi word
	MMIOMsip      uint32 = 0xffff_ffe0
)

// BranchPenaltyDefault is the number of cycles charged when control
// flow leaves the sequential path.
const BranchPenaltyDefault = 2

// Width identifies the access width of a LOAD/STORE/AMO operation.
type Width int

const (
	WidthB Width = iota
	WidthH
	WidthW
	WidthBU
	WidthHU
)

// AccessKind distinguishes a load from a store in the memory router.
type AccessKind int

const (
	AccessLoad AccessKind = iota
	AccessStore
)

// Fault is the result of a memory access or CSR access, surfaced by
// the memory router and turned into a trap by the caller.
type Fault int

const (
	FaultOK Fault = iota
	FaultLoadFail
	FaultLoadAlign
	FaultStoreFail
	FaultStoreAlign
	FaultInstIll
)

// PrivilegeMode models the current privilege level. Only MachineMode is
// ever actually reached; the others exist so that the deleg-register
// surface has somewhere to point without implying mode transitions are
// implemented (spec.md §3 — "non-goals: no supervisor/user privilege
// transitions").
type PrivilegeMode int

const (
	MachineMode PrivilegeMode = iota
	SupervisorMode
	UserMode
)

// Trap causes (synchronous exceptions). Values match the standard
// RISC-V mcause encoding used by original_source/tools/rvsim.c.
const (
	TrapInstAlign  uint32 = 0
	TrapInstFail   uint32 = 1
	TrapInstIll    uint32 = 2
	TrapBreak      uint32 = 3
	TrapLoadAlign  uint32 = 4
	TrapLoadFail   uint32 = 5
	TrapStoreAlign uint32 = 6
	TrapStoreFail  uint32 = 7
	TrapECall      uint32 = 11
)

// Interrupt causes. The top bit of mcause is set for interrupts; these
// constants are the low bits (the source index within mie/mip).
const (
	IntMachineSoftware uint32 = 3
	IntMachineTimer    uint32 = 7
	IntMachineExternal uint32 = 11
)

// interruptBit is the top bit of a 32-bit mcause that marks it as an
// interrupt rather than a synchronous exception.
const interruptBit uint32 = 1 << 31

// mstatus bit positions used by this core.
const (
	mstatusMIEBit  = 3
	mstatusMPIEBit = 7
)

// mie/mip bit positions, matching the interrupt cause indices above.
const (
	mieMSIE = IntMachineSoftware
	mieMTIE = IntMachineTimer
	mieMEIE = IntMachineExternal
)
