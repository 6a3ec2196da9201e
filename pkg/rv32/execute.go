package rv32

import "log"

// The C7 execute engine: opcode dispatch plus the handlers for control
// flow and memory-access instructions. ALU (register/immediate), AMO,
// and SYSTEM instructions live in their own files to keep this one
// readable.
//
// Every handler returns (trapped, redirected): trapped is true if a
// trap was raised (PC has already been redirected to mtvec by
// raiseTrap); redirected is true if control flow left the sequential
// path for any other reason (branch taken, jump, MRET) so the C8 timing
// model can charge the branch-penalty surcharge. Under static
// prediction a taken backward branch reports redirected=false, since it
// costs no penalty.
func (m *Machine) execute(pc, size, word uint32) (trapped, redirected bool) {
	switch instOpcode(word) {
	case OpLUI:
		m.writeReg(instRd(word), immU(word))
		m.PC = pc + size
		return false, false
	case OpAUIPC:
		m.writeReg(instRd(word), pc+immU(word))
		m.PC = pc + size
		return false, false
	case OpJAL:
		return m.execJAL(pc, size, word)
	case OpJALR:
		return m.execJALR(pc, size, word)
	case OpBranch:
		return m.execBranch(pc, size, word)
	case OpLoad:
		return m.execLoad(pc, size, word)
	case OpStore:
		return m.execStore(pc, size, word)
	case OpOpImm:
		return m.execOpImm(pc, size, word)
	case OpOp:
		return m.execOp(pc, size, word)
	case OpMiscMem:
		m.PC = pc + size
		return false, false
	case OpSystem:
		return m.execSystem(pc, size, word)
	case OpAMO:
		return m.execAMO(pc, size, word)
	default:
		m.raiseTrap(TrapInstIll, word)
		return true, true
	}
}

// execJAL implements JAL. The redesign fix of spec.md §9 applies here:
// a misaligned target traps instead of silently skipping retirement.
// Odd-address alignment (not 4-byte) is correct because the C
// extension is implemented, so IALIGN is 16 bits. A zero offset is a
// self-jump that can never make forward progress, so the interpreter
// reports it and terminates (spec.md §4.7, §8).
func (m *Machine) execJAL(pc, size, word uint32) (bool, bool) {
	offset := immJ(word)
	if offset == 0 {
		m.reportForeverLoop(pc)
		m.PC = pc + size
		return false, false
	}
	target := pc + offset
	if target&1 != 0 {
		m.raiseTrap(TrapInstAlign, target)
		return true, true
	}
	m.writeReg(instRd(word), pc+size)
	m.PC = target
	return false, true
}

// execJALR implements JALR. The target's bit 0 is always cleared per
// the ISA, so a misaligned JALR target is impossible on a
// C-extension-capable core and no alignment trap is needed here. A
// target equal to the instruction's own PC is a self-jump, reported
// and terminated the same way as a zero-offset JAL (spec.md §4.7).
func (m *Machine) execJALR(pc, size, word uint32) (bool, bool) {
	raw := m.readReg(instRs1(word)) + immI(word)
	if raw == pc {
		m.reportForeverLoop(pc)
		m.PC = pc + size
		return false, false
	}
	target := raw &^ 1
	m.writeReg(instRd(word), pc+size)
	m.PC = target
	return false, true
}

// reportForeverLoop logs the self-jump condition and terminates the
// host process via Host.Exit, mirroring prog_exit(1) in
// original_source/tools/rvsim.c. If no Host is attached (unit tests
// exercising the decode path in isolation) this is a no-op and the
// caller advances PC normally instead of looping forever itself.
func (m *Machine) reportForeverLoop(pc uint32) {
	log.Printf("rv32: forever loop detected at pc 0x%08x", pc)
	if m.Host != nil {
		m.Host.Exit(1)
	}
}

func (m *Machine) execBranch(pc, size, word uint32) (bool, bool) {
	a, b := m.readReg(instRs1(word)), m.readReg(instRs2(word))
	var taken bool
	switch instFunct3(word) {
	case 0x0:
		taken = a == b // BEQ
	case 0x1:
		taken = a != b // BNE
	case 0x4:
		taken = int32(a) < int32(b) // BLT
	case 0x5:
		taken = int32(a) >= int32(b) // BGE
	case 0x6:
		taken = a < b // BLTU
	case 0x7:
		taken = a >= b // BGEU
	default:
		m.raiseTrap(TrapInstIll, word)
		return true, true
	}
	if !taken {
		m.PC = pc + size
		return false, false
	}
	offset := immB(word)
	target := pc + offset
	if target&1 != 0 {
		m.raiseTrap(TrapInstAlign, target)
		return true, true
	}
	m.PC = target
	// Under static prediction, backward branches are predicted taken:
	// a taken backward branch was predicted correctly and charges no
	// penalty, matching the branch_predict check in
	// original_source/tools/rvsim.c's OP_BRANCH handling.
	chargePenalty := !m.StaticPredict || int32(offset) > 0
	return false, chargePenalty
}

func loadWidth(funct3 uint32) (Width, bool) {
	switch funct3 {
	case 0x0:
		return WidthB, true
	case 0x1:
		return WidthH, true
	case 0x2:
		return WidthW, true
	case 0x4:
		return WidthBU, true
	case 0x5:
		return WidthHU, true
	default:
		return 0, false
	}
}

func storeWidth(funct3 uint32) (Width, bool) {
	switch funct3 {
	case 0x0:
		return WidthB, true
	case 0x1:
		return WidthH, true
	case 0x2:
		return WidthW, true
	default:
		return 0, false
	}
}

func (m *Machine) execLoad(pc, size, word uint32) (bool, bool) {
	width, ok := loadWidth(instFunct3(word))
	if !ok {
		m.raiseTrap(TrapInstIll, word)
		return true, true
	}
	addr := m.readReg(instRs1(word)) + immI(word)
	val, fault := m.memAccess(AccessLoad, width, addr, 0)
	if fault != FaultOK {
		m.raiseTrap(loadFaultCause(fault), addr)
		return true, true
	}
	m.writeReg(instRd(word), val)
	m.chargeSingleRAM()
	m.PC = pc + size
	return false, false
}

func (m *Machine) execStore(pc, size, word uint32) (bool, bool) {
	width, ok := storeWidth(instFunct3(word))
	if !ok {
		m.raiseTrap(TrapInstIll, word)
		return true, true
	}
	addr := m.readReg(instRs1(word)) + immS(word)
	val := m.readReg(instRs2(word))
	_, fault := m.memAccess(AccessStore, width, addr, val)
	if fault != FaultOK {
		m.raiseTrap(storeFaultCause(fault), addr)
		return true, true
	}
	m.chargeSingleRAM()
	m.PC = pc + size
	return false, false
}

func loadFaultCause(f Fault) uint32 {
	if f == FaultLoadAlign {
		return TrapLoadAlign
	}
	return TrapLoadFail
}

func storeFaultCause(f Fault) uint32 {
	if f == FaultStoreAlign {
		return TrapStoreAlign
	}
	return TrapStoreFail
}
