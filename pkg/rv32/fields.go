package rv32

// Fields are the overlapping bit-field lenses a fetched 32-bit word is
// viewed through, keyed by opcode format (spec.md §4.1). Extracting a
// field a format doesn't use is harmless; the execute engine only reads
// the fields relevant to the opcode it dispatched on.

func instOpcode(word uint32) Opcode { return Opcode(word & 0x7f) }
func instRd(word uint32) uint32     { return (word >> 7) & 0x1f }
func instFunct3(word uint32) uint32 { return (word >> 12) & 0x7 }
func instRs1(word uint32) uint32    { return (word >> 15) & 0x1f }
func instRs2(word uint32) uint32    { return (word >> 20) & 0x1f }
func instFunct7(word uint32) uint32 { return (word >> 25) & 0x7f }

// immI extracts and sign-extends the I-type 12-bit immediate.
func immI(word uint32) uint32 {
	return signExtend(word>>20, 12)
}

// immS extracts and sign-extends the S-type immediate.
func immS(word uint32) uint32 {
	hi := (word >> 25) & 0x7f
	lo := (word >> 7) & 0x1f
	return signExtend((hi<<5)|lo, 12)
}

// immB extracts and sign-extends the B-type immediate, reassembled as
// {imm[12], imm[10:5], imm[4:1], imm[11], 0}.
func immB(word uint32) uint32 {
	b12 := (word >> 31) & 0x1
	b105 := (word >> 25) & 0x3f
	b41 := (word >> 8) & 0xf
	b11 := (word >> 7) & 0x1
	raw := (b12 << 12) | (b11 << 11) | (b105 << 5) | (b41 << 1)
	return signExtend(raw, 13)
}

// immU extracts the U-type immediate, already placed into bits 31..12
// (no sign extension needed: the low 12 bits are always zero and the
// value is used as-is, or shifted, by the caller).
func immU(word uint32) uint32 {
	return word & 0xffff_f000
}

// immJ extracts and sign-extends the J-type immediate, reassembled as
// {imm[20], imm[10:1], imm[11], imm[19:12], 0}.
func immJ(word uint32) uint32 {
	b20 := (word >> 31) & 0x1
	b101 := (word >> 21) & 0x3ff
	b11 := (word >> 20) & 0x1
	b1912 := (word >> 12) & 0xff
	raw := (b20 << 20) | (b1912 << 12) | (b11 << 11) | (b101 << 1)
	return signExtend(raw, 21)
}

// signExtend sign-extends the low `bits` bits of v to a full 32-bit
// two's-complement value.
func signExtend(v uint32, bits uint) uint32 {
	shift := 32 - bits
	return uint32(int32(v<<shift) >> shift)
}
