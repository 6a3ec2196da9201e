package rv32

// execOpImm dispatches the register-immediate ALU opcode, including the
// RV32B (Zbb) immediate forms that share its funct3 encodings with the
// base shift instructions.
func (m *Machine) execOpImm(pc, size, word uint32) (bool, bool) {
	rd, rs1 := instRd(word), instRs1(word)
	a := m.readReg(rs1)
	funct3 := instFunct3(word)
	funct7 := instFunct7(word)
	shamt := (word >> 20) & 0x1f

	var result uint32
	switch funct3 {
	case 0x0: // ADDI
		result = a + immI(word)
	case 0x2: // SLTI
		result = boolToWord(int32(a) < int32(immI(word)))
	case 0x3: // SLTIU
		result = boolToWord(a < immI(word))
	case 0x4: // XORI
		result = a ^ immI(word)
	case 0x6: // ORI
		result = a | immI(word)
	case 0x7: // ANDI
		result = a & immI(word)
	case 0x1:
		switch funct7 {
		case 0b0000000:
			result = a << shamt
		case 0b0110000:
			r, ok := execBitCountImm(instRs2(word), a)
			if !ok {
				m.raiseTrap(TrapInstIll, word)
				return true, true
			}
			result = r
		case 0b0100100: // BCLRI
			result = bitClr(a, shamt)
		case 0b0010100: // BSETI
			result = bitSet(a, shamt)
		case 0b0110100: // BINVI
			result = bitInv(a, shamt)
		default:
			m.raiseTrap(TrapInstIll, word)
			return true, true
		}
	case 0x5:
		switch funct7 {
		case 0b0000000: // SRLI
			result = a >> shamt
		case 0b0100000: // SRAI
			result = uint32(int32(a) >> shamt)
		case 0b0110000: // RORI
			result = rotr(a, shamt)
		case 0b0100100: // BEXTI
			result = bitExt(a, shamt)
		case 0b0010100: // ORC.B: the shamt field is fixed at 0b00111
			if shamt != 0b00111 {
				m.raiseTrap(TrapInstIll, word)
				return true, true
			}
			result = orcB(a)
		case 0b0110100: // REV8: the shamt field is fixed at 0b11000
			if shamt != 0b11000 {
				m.raiseTrap(TrapInstIll, word)
				return true, true
			}
			result = rev8(a)
		default:
			m.raiseTrap(TrapInstIll, word)
			return true, true
		}
	default:
		m.raiseTrap(TrapInstIll, word)
		return true, true
	}

	m.writeReg(rd, result)
	m.PC = pc + size
	return false, false
}

// execBitCountImm implements the Zbb CLZ/CTZ/CPOP/SEXT.B/SEXT.H
// immediate-form instructions, selected by the rs2 field (which in
// these encodings is not a register number but an operation selector).
func execBitCountImm(sel, a uint32) (uint32, bool) {
	switch sel {
	case 0b00000: // CLZ
		return uint32(clz32(a)), true
	case 0b00001: // CTZ
		return uint32(ctz32(a)), true
	case 0b00010: // CPOP
		return uint32(popcount32(a)), true
	case 0b00100: // SEXT.B
		return signExtend(a&0xff, 8), true
	case 0b00101: // SEXT.H
		return signExtend(a&0xffff, 16), true
	default:
		return 0, false
	}
}

func clz32(v uint32) int {
	if v == 0 {
		return 32
	}
	n := 0
	for v&0x8000_0000 == 0 {
		v <<= 1
		n++
	}
	return n
}

func ctz32(v uint32) int {
	if v == 0 {
		return 32
	}
	n := 0
	for v&1 == 0 {
		v >>= 1
		n++
	}
	return n
}

func popcount32(v uint32) int {
	n := 0
	for v != 0 {
		n += int(v & 1)
		v >>= 1
	}
	return n
}

func rotr(v, amt uint32) uint32 {
	amt &= 31
	if amt == 0 {
		return v
	}
	return (v >> amt) | (v << (32 - amt))
}

func rotl(v, amt uint32) uint32 {
	amt &= 31
	if amt == 0 {
		return v
	}
	return (v << amt) | (v >> (32 - amt))
}

// bitClr/bitSet/bitInv/bitExt implement the Zbs single-bit instructions
// (BCLR/BSET/BINV/BEXT and their *I immediate forms); shamt is masked
// to 5 bits whether it came from a register value or an immediate
// field.
func bitClr(a, shamt uint32) uint32 { return a &^ (1 << (shamt & 31)) }
func bitSet(a, shamt uint32) uint32 { return a | (1 << (shamt & 31)) }
func bitInv(a, shamt uint32) uint32 { return a ^ (1 << (shamt & 31)) }
func bitExt(a, shamt uint32) uint32 { return (a >> (shamt & 31)) & 1 }

// orcB implements Zbb's OR-combine.byte: each output byte is all-ones
// if the corresponding input byte is non-zero, all-zero otherwise.
func orcB(v uint32) uint32 {
	var r uint32
	for i := uint(0); i < 4; i++ {
		shift := 8 * i
		if (v>>shift)&0xff != 0 {
			r |= 0xff << shift
		}
	}
	return r
}

// rev8 implements Zbb's byte-reverse.
func rev8(v uint32) uint32 {
	return (v>>24)&0x0000_00ff | (v>>8)&0x0000_ff00 | (v<<8)&0x00ff_0000 | (v<<24)&0xff00_0000
}

// clmul/clmulh/clmulr implement the Zbc carry-less multiply family:
// clmul is the low half of the carry-less product, clmulh the high
// half, and clmulr the "reversed" product used to build CRCs.
func clmul(a, b uint32) uint32 {
	var r uint32
	for i := uint(0); i < 32; i++ {
		if (b>>i)&1 != 0 {
			r ^= a << i
		}
	}
	return r
}

func clmulh(a, b uint32) uint32 {
	var r uint32
	for i := uint(1); i < 32; i++ {
		if (b>>i)&1 != 0 {
			r ^= a >> (32 - i)
		}
	}
	return r
}

func clmulr(a, b uint32) uint32 {
	var r uint32
	for i := uint(0); i < 32; i++ {
		if (b>>i)&1 != 0 {
			r ^= a >> (31 - i)
		}
	}
	return r
}

func boolToWord(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// execOp dispatches the register-register ALU opcode, covering RV32I,
// the M extension (funct7 0000001), and the full RV32B surface: Zbb
// (funct7 0100000/0110000/0000101, ZEXT.H at funct7 0000100 with rs2
// fixed at zero, plus ANDN/ORN/XNOR sharing the base
// funct3 values with a distinguishing funct7), Zba's shift-add family
// (funct7 0010000), Zbs's single-bit family (funct7
// 0100100/0010100/0110100), and Zbc's carry-less multiply (sharing
// funct7 0000101 with Zbb's MIN/MAX family).
func (m *Machine) execOp(pc, size, word uint32) (bool, bool) {
	rd, rs1, rs2 := instRd(word), instRs1(word), instRs2(word)
	a, b := m.readReg(rs1), m.readReg(rs2)
	funct3 := instFunct3(word)
	funct7 := instFunct7(word)

	if funct7 == 0b0000100 && funct3 == 0x4 && rs2 == 0 { // ZEXT.H
		m.writeReg(rd, a&0xffff)
		m.PC = pc + size
		return false, false
	}
	result, ok := execOpALU(funct3, funct7, a, b)
	if !ok {
		m.raiseTrap(TrapInstIll, word)
		return true, true
	}
	m.writeReg(rd, result)
	m.PC = pc + size
	return false, false
}

func execOpALU(funct3, funct7, a, b uint32) (uint32, bool) {
	switch funct7 {
	case 0b0000000:
		return execOpBase(funct3, a, b)
	case 0b0100000:
		return execOpBase1(funct3, a, b)
	case 0b0000001:
		return execOpMulDiv(funct3, a, b)
	case 0b0000101:
		return execOpClmulMinMax(funct3, a, b)
	case 0b0110000:
		return execOpRotate(funct3, a, b)
	case 0b0010000:
		return execOpShAdd(funct3, a, b)
	case 0b0100100:
		return execOpBclrBext(funct3, a, b)
	case 0b0010100:
		return execOpBset(funct3, a, b)
	case 0b0110100:
		return execOpBinv(funct3, a, b)
	default:
		return 0, false
	}
}

func execOpBase(funct3, a, b uint32) (uint32, bool) {
	switch funct3 {
	case 0x0:
		return a + b, true // ADD
	case 0x1:
		return a << (b & 31), true // SLL
	case 0x2:
		return boolToWord(int32(a) < int32(b)), true // SLT
	case 0x3:
		return boolToWord(a < b), true // SLTU
	case 0x4:
		return a ^ b, true // XOR
	case 0x5:
		return a >> (b & 31), true // SRL
	case 0x6:
		return a | b, true // OR
	case 0x7:
		return a & b, true // AND
	default:
		return 0, false
	}
}

func execOpBase1(funct3, a, b uint32) (uint32, bool) {
	switch funct3 {
	case 0x0:
		return a - b, true // SUB
	case 0x5:
		return uint32(int32(a) >> (b & 31)), true // SRA
	case 0x4:
		return ^(a ^ b), true // XNOR
	case 0x6:
		return a | ^b, true // ORN
	case 0x7:
		return a &^ b, true // ANDN
	default:
		return 0, false
	}
}

func execOpMulDiv(funct3, a, b uint32) (uint32, bool) {
	switch funct3 {
	case 0x0: // MUL
		return a * b, true
	case 0x1: // MULH
		return uint32((int64(int32(a)) * int64(int32(b))) >> 32), true
	case 0x2: // MULHSU
		return uint32((int64(int32(a)) * int64(uint64(b))) >> 32), true
	case 0x3: // MULHU
		return uint32((uint64(a) * uint64(b)) >> 32), true
	case 0x4: // DIV
		if b == 0 {
			return 0xffff_ffff, true
		}
		if a == 0x8000_0000 && b == 0xffff_ffff {
			return a, true // overflow: result is dividend
		}
		return uint32(int32(a) / int32(b)), true
	case 0x5: // DIVU
		if b == 0 {
			return 0xffff_ffff, true
		}
		return a / b, true
	case 0x6: // REM
		if b == 0 {
			return a, true
		}
		if a == 0x8000_0000 && b == 0xffff_ffff {
			return 0, true
		}
		return uint32(int32(a) % int32(b)), true
	case 0x7: // REMU
		if b == 0 {
			return a, true
		}
		return a % b, true
	default:
		return 0, false
	}
}

// execOpClmulMinMax dispatches funct7 0000101, shared by Zbc's
// carry-less multiply family (funct3 1-3) and Zbb's MIN/MAX family
// (funct3 4-7).
func execOpClmulMinMax(funct3, a, b uint32) (uint32, bool) {
	switch funct3 {
	case 0x1: // CLMUL
		return clmul(a, b), true
	case 0x2: // CLMULR
		return clmulr(a, b), true
	case 0x3: // CLMULH
		return clmulh(a, b), true
	case 0x4: // MIN
		if int32(a) < int32(b) {
			return a, true
		}
		return b, true
	case 0x5: // MINU
		if a < b {
			return a, true
		}
		return b, true
	case 0x6: // MAX
		if int32(a) > int32(b) {
			return a, true
		}
		return b, true
	case 0x7: // MAXU
		if a > b {
			return a, true
		}
		return b, true
	default:
		return 0, false
	}
}

// execOpShAdd implements Zba's shift-and-add family: SH1ADD/SH2ADD/
// SH3ADD compute (a<<n)+b, accelerating the address arithmetic of
// scaled array indexing.
func execOpShAdd(funct3, a, b uint32) (uint32, bool) {
	switch funct3 {
	case 0x2: // SH1ADD
		return (a << 1) + b, true
	case 0x4: // SH2ADD
		return (a << 2) + b, true
	case 0x6: // SH3ADD
		return (a << 3) + b, true
	default:
		return 0, false
	}
}

// execOpBclrBext dispatches funct7 0100100's two Zbs register-register
// forms: BCLR (clear the bit numbered by b) and BEXT (extract it).
func execOpBclrBext(funct3, a, b uint32) (uint32, bool) {
	switch funct3 {
	case 0x1: // BCLR
		return bitClr(a, b), true
	case 0x5: // BEXT
		return bitExt(a, b), true
	default:
		return 0, false
	}
}

// execOpBset implements Zbs's BSET: set the bit numbered by b.
func execOpBset(funct3, a, b uint32) (uint32, bool) {
	if funct3 != 0x1 {
		return 0, false
	}
	return bitSet(a, b), true
}

// execOpBinv implements Zbs's BINV: invert the bit numbered by b.
func execOpBinv(funct3, a, b uint32) (uint32, bool) {
	if funct3 != 0x1 {
		return 0, false
	}
	return bitInv(a, b), true
}

func execOpRotate(funct3, a, b uint32) (uint32, bool) {
	switch funct3 {
	case 0x1:
		return rotl(a, b), true // ROL
	case 0x5:
		return rotr(a, b), true // ROR
	default:
		return 0, false
	}
}
