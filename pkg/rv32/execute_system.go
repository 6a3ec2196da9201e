package rv32

// SYSTEM opcode handlers: ECALL/EBREAK/MRET and the six CSR
// instructions. Syscall numbers follow the common newlib/pk convention
// also used by original_source/tools/rvsim.c's srv32_syscall bridge.
const (
	sysExit  = 93
	sysWrite = 64
	sysRead  = 63
)

const (
	systemImmECALL  = 0x000
	systemImmEBREAK = 0x001
	systemImmMRET   = 0x302
)

func (m *Machine) execSystem(pc, size, word uint32) (bool, bool) {
	switch instFunct3(word) {
	case 0x0:
		return m.execSystemPriv(pc, size, word)
	case 0x1:
		return m.execCSR(pc, size, word, CSROpRW, m.readReg(instRs1(word)), true)
	case 0x2:
		return m.execCSR(pc, size, word, CSROpRS, m.readReg(instRs1(word)), instRs1(word) != 0)
	case 0x3:
		return m.execCSR(pc, size, word, CSROpRC, m.readReg(instRs1(word)), instRs1(word) != 0)
	case 0x5:
		return m.execCSR(pc, size, word, CSROpRW, instRs1(word), true)
	case 0x6:
		return m.execCSR(pc, size, word, CSROpRS, instRs1(word), instRs1(word) != 0)
	case 0x7:
		return m.execCSR(pc, size, word, CSROpRC, instRs1(word), instRs1(word) != 0)
	default:
		m.raiseTrap(TrapInstIll, word)
		return true, true
	}
}

func (m *Machine) execSystemPriv(pc, size, word uint32) (bool, bool) {
	switch word >> 20 {
	case systemImmECALL:
		m.hostSyscall()
		m.raiseTrap(TrapECall, 0)
		return true, true
	case systemImmEBREAK:
		m.raiseTrap(TrapBreak, pc)
		return true, true
	case systemImmMRET:
		m.execMRET()
		return false, true
	default:
		m.raiseTrap(TrapInstIll, word)
		return true, true
	}
}

// execCSR implements the shared body of CSRRW/CSRRS/CSRRC and their
// immediate-form siblings. update controls the RS/RC zero-source (or
// zero-zimm) suppression rule; CSRRWI is never suppressed even when its
// zimm field is zero (testable property #10, SPEC_FULL.md §8).
func (m *Machine) execCSR(pc, size, word uint32, op CSROp, val uint32, update bool) (bool, bool) {
	addr := word >> 20
	old, legal := m.CSRReadModify(addr, op, val, update)
	if !legal {
		m.raiseTrap(TrapInstIll, word)
		return true, true
	}
	m.writeReg(instRd(word), old)
	m.PC = pc + size
	return false, false
}

// hostSyscall services an ECALL's a7-numbered syscall request through
// the Host bridge and writes its return value into a0, which the
// guest's trap handler reads after the always-taken ECall trap below
// (the (b) resolution of spec.md §9's open question).
func (m *Machine) hostSyscall() {
	if m.Host == nil {
		m.writeReg(10, 0xffff_ffff)
		return
	}
	switch m.readReg(17) {
	case sysExit:
		m.Host.Exit(int32(m.readReg(10)))
	case sysWrite:
		m.writeReg(10, m.consoleWrite(m.readReg(11), m.readReg(12)))
	case sysRead:
		m.writeReg(10, m.consoleRead(m.readReg(11), m.readReg(12)))
	default:
		m.writeReg(10, 0xffff_ffff)
	}
}

func (m *Machine) consoleWrite(addr, length uint32) uint32 {
	var n uint32
	for ; n < length; n++ {
		off := addr + n - m.DMemBase
		if addr+n < m.DMemBase || int(off) >= len(m.DMem) {
			break
		}
		m.Host.PutChar(m.DMem[off])
	}
	return n
}

func (m *Machine) consoleRead(addr, length uint32) uint32 {
	var n uint32
	for ; n < length; n++ {
		c := m.Host.GetChar()
		if c < 0 {
			break
		}
		off := addr + n - m.DMemBase
		if addr+n < m.DMemBase || int(off) >= len(m.DMem) {
			break
		}
		m.DMem[off] = byte(c)
	}
	return n
}
