package rv32

// The C2 compressed-instruction expander. ExpandCompressed takes a
// 16-bit RVC instruction and produces the equivalent 32-bit RV32I/M
// word the execute engine (C7) already knows how to dispatch, so C7
// never needs to know an instruction arrived compressed. Register
// fields in quadrants 0 and 1 use the "compressed" 3-bit encoding that
// maps x8-x15 onto 0-7; rcReg undoes that mapping.

func rcReg(bits uint16) uint32 { return uint32(bits&0x7) + 8 }

func rTypeWord(funct7, rs2, rs1, funct3, rd uint32, opcode Opcode) uint32 {
	return (funct7 << 25) | (rs2 << 20) | (rs1 << 15) | (funct3 << 12) | (rd << 7) | uint32(opcode)
}

func iTypeWord(imm uint32, rs1, funct3, rd uint32, opcode Opcode) uint32 {
	return (imm&0xfff)<<20 | rs1<<15 | funct3<<12 | rd<<7 | uint32(opcode)
}

func sTypeWord(imm uint32, rs2, rs1, funct3 uint32, opcode Opcode) uint32 {
	hi := (imm >> 5) & 0x7f
	lo := imm & 0x1f
	return hi<<25 | rs2<<20 | rs1<<15 | funct3<<12 | lo<<7 | uint32(opcode)
}

func bTypeWord(imm uint32, rs2, rs1, funct3 uint32) uint32 {
	b12 := (imm >> 12) & 1
	b11 := (imm >> 11) & 1
	b105 := (imm >> 5) & 0x3f
	b41 := (imm >> 1) & 0xf
	return b12<<31 | b105<<25 | rs2<<20 | rs1<<15 | funct3<<12 | b41<<8 | b11<<7 | uint32(OpBranch)
}

func uTypeWord(imm uint32, rd uint32, opcode Opcode) uint32 {
	return (imm & 0xffff_f000) | rd<<7 | uint32(opcode)
}

func jTypeWord(imm uint32, rd uint32) uint32 {
	b20 := (imm >> 20) & 1
	b1912 := (imm >> 12) & 0xff
	b11 := (imm >> 11) & 1
	b101 := (imm >> 1) & 0x3ff
	return b20<<31 | b101<<21 | b11<<20 | b1912<<12 | rd<<7 | uint32(OpJAL)
}

// ExpandCompressed decodes a 16-bit instruction and returns its 32-bit
// equivalent. illegal is true for reserved encodings, including the
// all-zero halfword (spec.md §4.2).
func ExpandCompressed(half uint16) (word uint32, illegal bool) {
	if half == 0 {
		return 0, true
	}
	op := half & 0x3
	funct3 := (half >> 13) & 0x7

	switch op {
	case 0x0:
		return expandQuadrant0(half, funct3)
	case 0x1:
		return expandQuadrant1(half, funct3)
	case 0x2:
		return expandQuadrant2(half, funct3)
	default:
		return 0, true
	}
}

func expandQuadrant0(half uint16, funct3 uint16) (uint32, bool) {
	rdp := rcReg(half >> 2)
	rs1p := rcReg(half >> 7)

	switch funct3 {
	case 0x0: // C.ADDI4SPN
		imm := uint32((half>>7)&0x30) | uint32((half>>1)&0x3c0) | uint32((half>>4)&0x4) | uint32((half>>2)&0x8)
		if imm == 0 {
			return 0, true
		}
		return iTypeWord(imm, 2, 0, rdp, OpOpImm), false
	case 0x2: // C.LW
		imm := compressedLoadStoreImmW(half)
		return iTypeWord(imm, rs1p, 2, rdp, OpLoad), false
	case 0x6: // C.SW
		imm := compressedLoadStoreImmW(half)
		return sTypeWord(imm, rdp, rs1p, 2, OpStore), false
	default:
		return 0, true
	}
}

func compressedLoadStoreImmW(half uint16) uint32 {
	b53 := uint32((half >> 7) & 0x7)
	b2 := uint32((half >> 6) & 0x1)
	b6 := uint32((half >> 5) & 0x1)
	return (b53 << 3) | (b2 << 2) | (b6 << 6)
}

func expandQuadrant1(half uint16, funct3 uint16) (uint32, bool) {
	rd := uint32((half >> 7) & 0x1f)

	switch funct3 {
	case 0x0: // C.NOP / C.ADDI
		imm := signExtend(ciImm(half), 6)
		return iTypeWord(imm, rd, 0, rd, OpOpImm), false
	case 0x1: // C.JAL, rd=x1
		imm := signExtend(cjImm(half), 12)
		return jTypeWord(imm, 1), false
	case 0x2: // C.LI
		imm := signExtend(ciImm(half), 6)
		return iTypeWord(imm, 0, 0, rd, OpOpImm), false
	case 0x3:
		if rd == 2 { // C.ADDI16SP
			imm := ci16spImm(half)
			return iTypeWord(imm, 2, 0, 2, OpOpImm), false
		}
		// C.LUI
		imm := signExtend(ciImm(half), 6) << 12
		if imm == 0 {
			return 0, true
		}
		return uTypeWord(imm, rd, OpLUI), false
	case 0x4:
		return expandQuadrant1Alu(half)
	case 0x5: // C.J
		imm := signExtend(cjImm(half), 12)
		return jTypeWord(imm, 0), false
	case 0x6: // C.BEQZ
		rs1p := rcReg(half >> 7)
		imm := signExtend(cbImm(half), 9)
		return bTypeWord(imm, 0, rs1p, 0), false
	case 0x7: // C.BNEZ
		rs1p := rcReg(half >> 7)
		imm := signExtend(cbImm(half), 9)
		return bTypeWord(imm, 0, rs1p, 1), false
	default:
		return 0, true
	}
}

func expandQuadrant1Alu(half uint16) (uint32, bool) {
	rdp := rcReg(half >> 7)
	sub := (half >> 10) & 0x3

	switch sub {
	case 0x0: // C.SRLI
		shamt := ciShamt(half)
		return iTypeWord(shamt, rdp, 5, rdp, OpOpImm), false
	case 0x1: // C.SRAI
		shamt := ciShamt(half)
		return iTypeWord(shamt|(0x20<<5), rdp, 5, rdp, OpOpImm), false
	case 0x2: // C.ANDI
		imm := signExtend(ciImm(half), 6)
		return iTypeWord(imm, rdp, 7, rdp, OpOpImm), false
	case 0x3:
		rs2p := rcReg(half >> 2)
		variant := (half >> 5) & 0x3
		wide := (half >> 12) & 0x1
		if wide == 0 {
			switch variant {
			case 0x0: // C.SUB
				return rTypeWord(0x20, rs2p, rdp, 0, rdp, OpOp), false
			case 0x1: // C.XOR
				return rTypeWord(0, rs2p, rdp, 4, rdp, OpOp), false
			case 0x2: // C.OR
				return rTypeWord(0, rs2p, rdp, 6, rdp, OpOp), false
			case 0x3: // C.AND
				return rTypeWord(0, rs2p, rdp, 7, rdp, OpOp), false
			}
		}
		// wide==1 variants (C.SUBW/ADDW/reserved) are RV64-only; not
		// reachable on this RV32 core.
		return 0, true
	}
	return 0, true
}

func expandQuadrant2(half uint16, funct3 uint16) (uint32, bool) {
	rd := uint32((half >> 7) & 0x1f)
	rs2 := uint32((half >> 2) & 0x1f)

	switch funct3 {
	case 0x0: // C.SLLI
		shamt := ciShamt(half)
		return iTypeWord(shamt, rd, 1, rd, OpOpImm), false
	case 0x2: // C.LWSP
		if rd == 0 {
			return 0, true
		}
		imm := clwspImm(half)
		return iTypeWord(imm, 2, 2, rd, OpLoad), false
	case 0x4:
		hi := (half >> 12) & 0x1
		switch {
		case hi == 0 && rs2 == 0: // C.JR
			if rd == 0 {
				return 0, true
			}
			return iTypeWord(0, rd, 0, 0, OpJALR), false
		case hi == 0: // C.MV
			return rTypeWord(0, rs2, 0, 0, rd, OpOp), false
		case hi == 1 && rd == 0 && rs2 == 0: // C.EBREAK
			return uint32(OpSystem) | (1 << 20), false
		case hi == 1 && rs2 == 0: // C.JALR
			return iTypeWord(0, rd, 0, 1, OpJALR), false
		default: // C.ADD
			return rTypeWord(0, rs2, rd, 0, rd, OpOp), false
		}
	case 0x6: // C.SWSP
		imm := cswspImm(half)
		return sTypeWord(imm, rs2, 2, 2, OpStore), false
	default:
		return 0, true
	}
}

func ciImm(half uint16) uint32 {
	hi := uint32((half >> 12) & 0x1)
	lo := uint32((half >> 2) & 0x1f)
	return (hi << 5) | lo
}

func ciShamt(half uint16) uint32 {
	return ciImm(half) & 0x1f
}

func ci16spImm(half uint16) uint32 {
	b9 := uint32((half >> 12) & 0x1)
	b4 := uint32((half >> 6) & 0x1)
	b6 := uint32((half >> 5) & 0x1)
	b87 := uint32((half >> 3) & 0x3)
	b5 := uint32((half >> 2) & 0x1)
	raw := (b9 << 9) | (b87 << 7) | (b6 << 6) | (b5 << 5) | (b4 << 4)
	return signExtend(raw, 10)
}

func cjImm(half uint16) uint32 {
	b11 := uint32((half >> 12) & 0x1)
	b4 := uint32((half >> 11) & 0x1)
	b98 := uint32((half >> 9) & 0x3)
	b10 := uint32((half >> 8) & 0x1)
	b6 := uint32((half >> 7) & 0x1)
	b7 := uint32((half >> 6) & 0x1)
	b31 := uint32((half >> 3) & 0x7)
	b5 := uint32((half >> 2) & 0x1)
	raw := (b11 << 11) | (b10 << 10) | (b98 << 8) | (b7 << 7) | (b6 << 6) | (b5 << 5) | (b4 << 4) | (b31 << 1)
	return raw
}

func cbImm(half uint16) uint32 {
	b8 := uint32((half >> 12) & 0x1)
	b43 := uint32((half >> 10) & 0x3)
	b76 := uint32((half >> 5) & 0x3)
	b21 := uint32((half >> 3) & 0x3)
	b5 := uint32((half >> 2) & 0x1)
	raw := (b8 << 8) | (b76 << 6) | (b5 << 5) | (b43 << 3) | (b21 << 1)
	return raw
}

func clwspImm(half uint16) uint32 {
	b5 := uint32((half >> 12) & 0x1)
	b42 := uint32((half >> 4) & 0x7)
	b76 := uint32((half >> 2) & 0x3)
	return (b76 << 6) | (b5 << 5) | (b42 << 2)
}

func cswspImm(half uint16) uint32 {
	b52 := uint32((half >> 9) & 0xf)
	b76 := uint32((half >> 7) & 0x3)
	return (b76 << 6) | (b52 << 2)
}
