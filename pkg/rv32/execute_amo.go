package rv32

// execAMO implements the RV32A atomic-memory-operation opcode: LR.W,
// SC.W, and the nine AMOxxx.W read-modify-write operations. Two fixes
// from spec.md §9's REDESIGN FLAGS apply here: the outer funct3 switch
// traps on any value other than 0b010 (word) instead of silently
// falling through to word-sized behaviour regardless, and AMOMAXU
// computes the unsigned maximum rather than reusing AMOMINU's compare.
func (m *Machine) execAMO(pc, size, word uint32) (bool, bool) {
	if instFunct3(word) != 0b010 {
		m.raiseTrap(TrapInstIll, word)
		return true, true
	}
	addr := m.readReg(instRs1(word))
	rd := instRd(word)
	funct5 := instFunct7(word) >> 2

	switch funct5 {
	case 0b00010: // LR.W
		val, fault := m.memAccess(AccessLoad, WidthW, addr, 0)
		if fault != FaultOK {
			m.raiseTrap(loadFaultCause(fault), addr)
			return true, true
		}
		m.writeReg(rd, val)
		m.ReserveValid = true
		m.ReserveSet = addr
		m.chargeSingleRAM()
		m.PC = pc + size
		return false, false
	case 0b00011: // SC.W
		return m.execSC(pc, size, word, addr, rd)
	default:
		return m.execAMORMW(pc, size, word, funct5, addr, rd)
	}
}

func (m *Machine) execSC(pc, size, word, addr, rd uint32) (bool, bool) {
	rs2 := m.readReg(instRs2(word))
	if m.ReserveValid && (m.ReserveSet&^3) == (addr&^3) {
		_, fault := m.memAccess(AccessStore, WidthW, addr, rs2)
		if fault != FaultOK {
			m.raiseTrap(storeFaultCause(fault), addr)
			return true, true
		}
		m.writeReg(rd, 0)
	} else {
		m.writeReg(rd, 1)
	}
	m.ReserveValid = false
	m.chargeSingleRAM()
	m.PC = pc + size
	return false, false
}

func (m *Machine) execAMORMW(pc, size, word, funct5, addr, rd uint32) (bool, bool) {
	old, fault := m.memAccess(AccessLoad, WidthW, addr, 0)
	if fault != FaultOK {
		m.raiseTrap(loadFaultCause(fault), addr)
		return true, true
	}
	rs2 := m.readReg(instRs2(word))
	newv, ok := amoCombine(funct5, old, rs2)
	if !ok {
		m.raiseTrap(TrapInstIll, word)
		return true, true
	}
	if _, fault := m.memAccess(AccessStore, WidthW, addr, newv); fault != FaultOK {
		m.raiseTrap(storeFaultCause(fault), addr)
		return true, true
	}
	m.writeReg(rd, old)
	m.chargeSingleRAM()
	m.PC = pc + size
	return false, false
}

func amoCombine(funct5, old, rs2 uint32) (uint32, bool) {
	switch funct5 {
	case 0b00001: // AMOSWAP.W
		return rs2, true
	case 0b00000: // AMOADD.W
		return old + rs2, true
	case 0b00100: // AMOXOR.W
		return old ^ rs2, true
	case 0b01100: // AMOAND.W
		return old & rs2, true
	case 0b01000: // AMOOR.W
		return old | rs2, true
	case 0b10000: // AMOMIN.W
		if int32(old) < int32(rs2) {
			return old, true
		}
		return rs2, true
	case 0b10100: // AMOMAX.W
		if int32(old) > int32(rs2) {
			return old, true
		}
		return rs2, true
	case 0b11000: // AMOMINU.W
		if old < rs2 {
			return old, true
		}
		return rs2, true
	case 0b11100: // AMOMAXU.W
		if old > rs2 {
			return old, true
		}
		return rs2, true
	default:
		return 0, false
	}
}
