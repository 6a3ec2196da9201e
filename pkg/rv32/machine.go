package rv32

import "log"

// Machine is the entire simulated hart: registers, CSRs, memory images,
// and the handful of micro-architectural latches the timing model and
// trap controller need. Every operation in this package takes *Machine
// by exclusive reference; there is no package-level mutable state.
type Machine struct {
	PC, PrevPC uint32
	Regs       [REGNUM]uint32
	RegNum     int // 32 (RV32I) or 16 (RV32E)

	CSR  CSRFile
	Mode PrivilegeMode

	ReserveValid bool
	ReserveSet   uint32

	IMemBase, DMemBase uint32
	IMem, DMem         []byte

	Host Host

	// Timing model configuration (spec.md §4.8 / SPEC_FULL.md §6.5).
	BranchPenalty uint64
	SingleRAM     bool
	StaticPredict bool

	// Interrupt two-stage latch (trap.go).
	timerArmed, swArmed, extArmed bool

	// mtimeUpdate suppresses the free-running mtime auto-advance for the
	// cycle in which the guest itself wrote mtime, matching the
	// "software-set mtime isn't immediately clobbered" behaviour of
	// original_source/tools/rvsim.c.
	mtimeUpdate bool

	// lastWasCompressed drives the instruction-size-transition surcharge
	// of C8 (spec.md §4.8): switching between 16-bit and 32-bit fetch
	// widths costs one extra cycle, which is also counted in Overhead.
	lastWasCompressed bool
	sizeKnown         bool
	Overhead          uint64

	// traceRd/traceVal/traceWrote record the register writeback (if any)
	// of the instruction currently executing, so Trace can report real
	// data instead of placeholders. Set by writeReg, reset each Step.
	traceRd    uint32
	traceVal   uint32
	traceWrote bool

	// Trace, when set, is called once per retiring instruction after
	// execute, with the register writeback it produced (wrote is false
	// for instructions that did not write back, e.g. stores and taken
	// branches). cmd/rv32sim wires this to pkg/tracelog when --log names
	// a file; it is nil (and never called) otherwise.
	Trace func(pc, word, rd, val uint32, wrote bool)
}

// Config collects the construction-time parameters exposed as CLI
// flags by cmd/rv32sim.
type Config struct {
	IMemBase, DMemBase uint32
	IMemSize, DMemSize uint32
	RegNum             int
	XV6Shadow          bool
	BranchPenalty      uint64
	SingleRAM          bool
	StaticPredict      bool
	Host               Host
}

// New constructs a Machine with zeroed registers and memory images
// sized per cfg, ready for a loader to populate IMem/DMem before the
// first Step.
func New(cfg Config) *Machine {
	regNum := cfg.RegNum
	if regNum == 0 {
		regNum = REGNUM
	}
	branchPenalty := cfg.BranchPenalty
	if branchPenalty == 0 {
		branchPenalty = BranchPenaltyDefault
	}
	m := &Machine{
		PC:            cfg.IMemBase,
		RegNum:        regNum,
		IMemBase:      cfg.IMemBase,
		DMemBase:      cfg.DMemBase,
		IMem:          make([]byte, cfg.IMemSize),
		DMem:          make([]byte, cfg.DMemSize),
		Host:          cfg.Host,
		BranchPenalty: branchPenalty,
		SingleRAM:     cfg.SingleRAM,
		StaticPredict: cfg.StaticPredict,
	}
	m.CSR.XV6Shadow = cfg.XV6Shadow
	m.CSR.Misa = rv32Misa()
	return m
}

// rv32Misa computes the misa value advertising the implemented
// extension surface (I, M, A, C, B), base=1 (32-bit).
func rv32Misa() uint32 {
	const base32 = 1 << 30
	exts := uint32(0)
	for _, c := range "IMACB" {
		exts |= 1 << uint(c-'A')
	}
	return base32 | exts
}

// readReg reads architectural register i, honouring the x0-hardwired-
// zero invariant and the RV32E reduced-register-file diagnostic (not
// trapping) behaviour of spec.md §4.3.
func (m *Machine) readReg(i uint32) uint32 {
	if i == 0 {
		return 0
	}
	if int(i) >= m.RegNum {
		log.Printf("rv32: read of x%d ignored: register file has %d registers", i, m.RegNum)
		return 0
	}
	return m.Regs[i]
}

// writeReg writes architectural register i, discarding writes to x0 and
// (with a logged diagnostic) to out-of-range registers under the RV32E
// variant.
func (m *Machine) writeReg(i, v uint32) {
	if i == 0 {
		return
	}
	if int(i) >= m.RegNum {
		log.Printf("rv32: write to x%d ignored: register file has %d registers", i, m.RegNum)
		return
	}
	m.Regs[i] = v
	m.traceRd, m.traceVal, m.traceWrote = i, v, true
}

// fetchInstruction returns the 16- or 32-bit instruction word starting
// at pc and whether it was a compressed (16-bit) encoding, per the RVC
// quadrant-tag rule: a halfword whose low two bits are both set starts
// a 32-bit instruction, otherwise it's a standalone compressed one.
func (m *Machine) fetchInstruction(pc uint32) (word uint32, compressed bool, fault Fault) {
	lane, fault := m.fetchWord(pc &^ 3)
	if fault != FaultOK {
		return 0, false, fault
	}
	var low uint16
	if pc&2 == 0 {
		low = uint16(lane)
	} else {
		low = uint16(lane >> 16)
	}
	if low&0x3 != 0x3 {
		return uint32(low), true, FaultOK
	}
	if pc&2 == 0 {
		return lane, false, FaultOK
	}
	nextLane, fault2 := m.fetchWord(pc + 2)
	if fault2 != FaultOK {
		return 0, false, fault2
	}
	high := uint16(nextLane)
	return uint32(low) | uint32(high)<<16, false, FaultOK
}

// Step executes exactly one instruction-retirement cycle: interrupt
// check, fetch, optional compressed expansion, execute, and C8 timing
// update. Every path returns nil: guest-visible faults become traps,
// and a nil Host turns the host-facing operations into no-ops.
func (m *Machine) Step() error {
	if m.takeInterrupt() {
		m.retireCycle(false)
		m.applyBranchPenalty()
		return nil
	}

	pc := m.PC
	m.PrevPC = pc

	word, compressed, fault := m.fetchInstruction(pc)
	if fault != FaultOK {
		m.raiseTrap(TrapInstFail, pc)
		m.retireCycle(false)
		return nil
	}

	size := uint32(4)
	raw := word
	if compressed {
		size = 2
		var illegal bool
		word, illegal = ExpandCompressed(uint16(raw))
		if illegal {
			m.raiseTrap(TrapInstIll, raw)
			m.retireCycle(false)
			return nil
		}
	}
	m.trackSizeTransition(size)

	m.traceWrote = false
	trapped, redirected := m.execute(pc, size, word)
	if m.Trace != nil {
		m.Trace(pc, word, m.traceRd, m.traceVal, m.traceWrote)
	}
	m.retireCycle(!trapped)
	if trapped || redirected {
		m.applyBranchPenalty()
	}
	return nil
}

// Stats is the subset of CSRFile/Overhead cmd/rv32sim prints on exit
// (spec.md §7, §1 Lifecycle), named to avoid exposing the whole CSR
// file just for that.
type Stats struct {
	Instret  uint64
	Cycle    uint64
	Overhead uint64
}

// Stats snapshots the counters cmd/rv32sim reports when the simulation
// exits, mirroring prog_exit's "Simulation statistics" block in
// original_source/tools/rvsim.c.
func (m *Machine) Stats() Stats {
	return Stats{Instret: m.CSR.Instret, Cycle: m.CSR.Cycle, Overhead: m.Overhead}
}

// trackSizeTransition charges one extra cycle, and counts it in
// Overhead, when consecutive fetches switch between 16-bit and 32-bit
// instruction widths.
func (m *Machine) trackSizeTransition(size uint32) {
	compressed := size == 2
	if m.sizeKnown && compressed != m.lastWasCompressed {
		m.Overhead++
		m.CSR.Cycle++
		m.CSR.Time++
	}
	m.lastWasCompressed = compressed
	m.sizeKnown = true
}
