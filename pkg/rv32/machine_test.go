package rv32

import "testing"

// fakeHost records console and HTIF traffic for assertions instead of
// touching a real terminal.
type fakeHost struct {
	out       []byte
	in        []byte
	inPos     int
	exited    bool
	exitCode  int32
	toHostLog []uint32
	fromHost  uint32
}

func (h *fakeHost) PutChar(b byte) { h.out = append(h.out, b) }

func (h *fakeHost) GetChar() int32 {
	if h.inPos >= len(h.in) {
		return -1
	}
	c := h.in[h.inPos]
	h.inPos++
	return int32(c)
}

func (h *fakeHost) Exit(code int32) {
	h.exited = true
	h.exitCode = code
	panic(exitSignal{code})
}

func (h *fakeHost) ToHost(guestPtr uint32, dmem []byte) { h.toHostLog = append(h.toHostLog, guestPtr) }
func (h *fakeHost) FromHost() uint32                    { return h.fromHost }

// exitSignal unwinds the stack on Host.Exit, mirroring os.Exit's
// "never returns" contract without killing the test binary.
type exitSignal struct{ code int32 }

func newTestMachine() (*Machine, *fakeHost) {
	host := &fakeHost{}
	m := New(Config{
		IMemBase: DefaultIMemBase,
		DMemBase: DefaultDMemBase,
		IMemSize: 4096,
		DMemSize: 4096,
		Host:     host,
	})
	return m, host
}

func storeWord(m *Machine, pc uint32, word uint32) {
	off := pc - m.IMemBase
	m.IMem[off] = byte(word)
	m.IMem[off+1] = byte(word >> 8)
	m.IMem[off+2] = byte(word >> 16)
	m.IMem[off+3] = byte(word >> 24)
}

func encodeI(opcode Opcode, rd, funct3, rs1, imm uint32) uint32 {
	return (imm&0xfff)<<20 | rs1<<15 | funct3<<12 | rd<<7 | uint32(opcode)
}

func encodeR(opcode Opcode, rd, funct3, rs1, rs2, funct7 uint32) uint32 {
	return funct7<<25 | rs2<<20 | rs1<<15 | funct3<<12 | rd<<7 | uint32(opcode)
}

func encodeU(opcode Opcode, rd, imm uint32) uint32 {
	return (imm & 0xffff_f000) | rd<<7 | uint32(opcode)
}

func TestLuiAddiRetiresWithoutExit(t *testing.T) {
	m, host := newTestMachine()
	// lui  a0, 0x1      -> a0 = 0x1000
	// addi a0, a0, 0x23 -> a0 = 0x1023
	// neither instruction may reach the host's exit path.
	storeWord(m, m.IMemBase, encodeU(OpLUI, 10, 0x1000))
	storeWord(m, m.IMemBase+4, encodeI(OpOpImm, 10, 0, 10, 0x23))

	if err := m.Step(); err != nil {
		t.Fatalf("step 1: %v", err)
	}
	if got := m.readReg(10); got != 0x1000 {
		t.Fatalf("after lui, a0 = 0x%x, want 0x1000", got)
	}
	if err := m.Step(); err != nil {
		t.Fatalf("step 2: %v", err)
	}
	if got := m.readReg(10); got != 0x1023 {
		t.Fatalf("after addi, a0 = 0x%x, want 0x1023", got)
	}
	if host.exited {
		t.Fatalf("host exited unexpectedly")
	}
}

func TestBranchLoop(t *testing.T) {
	m, _ := newTestMachine()
	// addi a0, x0, 3     ; a0 = 3
	// loop:
	// addi a0, a0, -1    ; a0--
	// bne  a0, x0, loop
	storeWord(m, m.IMemBase, encodeI(OpOpImm, 10, 0, 0, 3))
	storeWord(m, m.IMemBase+4, encodeI(OpOpImm, 10, 0, 10, 0xfff)) // -1
	// BNE a0, x0, -4: imm = -4 encoded as B-type
	storeWord(m, m.IMemBase+8, encodeBranch(1, 10, 0, 0xffff_fffc)) // -4

	if err := m.Step(); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := m.Step(); err != nil {
			t.Fatalf("addi step: %v", err)
		}
		if err := m.Step(); err != nil {
			t.Fatalf("bne step: %v", err)
		}
	}
	if got := m.readReg(10); got != 0 {
		t.Fatalf("a0 = %d, want 0", got)
	}
	if m.PC != m.IMemBase+12 {
		t.Fatalf("pc = 0x%x, want loop to have exited to 0x%x", m.PC, m.IMemBase+12)
	}
}

func encodeBranch(funct3, rs1, rs2, imm uint32) uint32 {
	b12 := (imm >> 12) & 1
	b11 := (imm >> 11) & 1
	b105 := (imm >> 5) & 0x3f
	b41 := (imm >> 1) & 0xf
	return b12<<31 | b105<<25 | rs2<<20 | rs1<<15 | funct3<<12 | b41<<8 | b11<<7 | uint32(OpBranch)
}

func TestDivByZero(t *testing.T) {
	m, _ := newTestMachine()
	m.writeReg(11, 5)
	m.writeReg(12, 0)
	storeWord(m, m.IMemBase, encodeR(OpOp, 10, 4, 11, 12, 1)) // div a0, a1, a2
	if err := m.Step(); err != nil {
		t.Fatal(err)
	}
	if got := m.readReg(10); got != 0xffff_ffff {
		t.Fatalf("div by zero = 0x%x, want 0xffffffff", got)
	}
}

func TestLrScRoundTrip(t *testing.T) {
	m, _ := newTestMachine()
	addr := m.DMemBase
	m.writeReg(11, addr)
	m.writeReg(12, 0x42)
	// lr.w a0, (a1)
	storeWord(m, m.IMemBase, encodeR(OpAMO, 10, 2, 11, 0, 0b00010<<2))
	// sc.w a3, a2, (a1)
	storeWord(m, m.IMemBase+4, encodeR(OpAMO, 13, 2, 11, 12, 0b00011<<2))

	if err := m.Step(); err != nil {
		t.Fatal(err)
	}
	if !m.ReserveValid {
		t.Fatalf("lr.w did not set a reservation")
	}
	if err := m.Step(); err != nil {
		t.Fatal(err)
	}
	if got := m.readReg(13); got != 0 {
		t.Fatalf("sc.w result = %d, want 0 (success)", got)
	}
	val, fault := m.memAccess(AccessLoad, WidthW, addr, 0)
	if fault != FaultOK || val != 0x42 {
		t.Fatalf("memory at addr = 0x%x (fault %v), want 0x42", val, fault)
	}
}

func TestScFailsWithoutReservation(t *testing.T) {
	m, _ := newTestMachine()
	addr := m.DMemBase
	m.writeReg(11, addr)
	storeWord(m, m.IMemBase, encodeR(OpAMO, 13, 2, 11, 12, 0b00011<<2))
	if err := m.Step(); err != nil {
		t.Fatal(err)
	}
	if got := m.readReg(13); got != 1 {
		t.Fatalf("sc.w without reservation = %d, want 1 (failure)", got)
	}
}

func TestInterveningStoreInvalidatesReservation(t *testing.T) {
	m, _ := newTestMachine()
	addr := m.DMemBase
	m.writeReg(11, addr)
	m.ReserveValid = true
	m.ReserveSet = addr

	_, fault := m.memAccess(AccessStore, WidthW, addr, 0xdead_beef)
	if fault != FaultOK {
		t.Fatalf("store faulted: %v", fault)
	}
	if m.ReserveValid {
		t.Fatalf("overlapping store did not invalidate the reservation")
	}
}

func TestAmoMaxuIsUnsignedMax(t *testing.T) {
	m, _ := newTestMachine()
	addr := m.DMemBase
	_, fault := m.memAccess(AccessStore, WidthW, addr, 0xffff_ffff) // -1 signed, max unsigned
	if fault != FaultOK {
		t.Fatal(fault)
	}
	m.writeReg(11, addr)
	m.writeReg(12, 1)
	storeWord(m, m.IMemBase, encodeR(OpAMO, 10, 2, 11, 12, 0b11100<<2)) // amomaxu.w
	if err := m.Step(); err != nil {
		t.Fatal(err)
	}
	val, _ := m.memAccess(AccessLoad, WidthW, addr, 0)
	if val != 0xffff_ffff {
		t.Fatalf("amomaxu.w result = 0x%x, want 0xffffffff (unsigned max, not MIN)", val)
	}
}

func TestJalMisalignedTraps(t *testing.T) {
	m, _ := newTestMachine()
	m.CSR.Mtvec = m.IMemBase + 0x100
	// jal x0, 4 -- a J-type immediate is always even, so an odd target
	// needs an odd base pc. Fetching at pc 1 reads the word stored at 0,
	// and the jump lands on pc 5. (A zero offset would instead take the
	// forever-loop exit.)
	storeWord(m, m.IMemBase, encodeJ(0, 4))
	m.PC = m.IMemBase + 1
	if err := m.Step(); err != nil {
		t.Fatal(err)
	}
	if m.CSR.Mcause != TrapInstAlign {
		t.Fatalf("mcause = %d, want TrapInstAlign", m.CSR.Mcause)
	}
	if m.PC != m.CSR.Mtvec {
		t.Fatalf("pc = 0x%x, want redirected to mtvec 0x%x", m.PC, m.CSR.Mtvec)
	}
}

func TestCsrrwiNeverSuppressesOnZeroImmediate(t *testing.T) {
	m, _ := newTestMachine()
	m.CSR.Mscratch = 0xdead_beef
	// csrrwi x5, mscratch, 0
	storeWord(m, m.IMemBase, encodeI(OpSystem, 5, 5, 0, csrMscratch))
	if err := m.Step(); err != nil {
		t.Fatal(err)
	}
	if m.CSR.Mscratch != 0 {
		t.Fatalf("mscratch = 0x%x, want 0 (CSRRWI always writes)", m.CSR.Mscratch)
	}
	if got := m.readReg(5); got != 0xdead_beef {
		t.Fatalf("rd = 0x%x, want the CSR's prior value", got)
	}
}

func TestCsrrsSuppressesOnZeroSource(t *testing.T) {
	m, _ := newTestMachine()
	m.CSR.Mscratch = 0x1234
	// csrrs x0, mscratch, x0 (rs1 = x0 => no write)
	storeWord(m, m.IMemBase, encodeI(OpSystem, 0, 2, 0, csrMscratch))
	if err := m.Step(); err != nil {
		t.Fatal(err)
	}
	if m.CSR.Mscratch != 0x1234 {
		t.Fatalf("mscratch = 0x%x, want unchanged 0x1234", m.CSR.Mscratch)
	}
}

func TestCompressedAddiExpandsAndRetires(t *testing.T) {
	m, _ := newTestMachine()
	// c.li a0, 5 -> quadrant 1, funct3 0x2, rd=a0(10), imm=5
	half := uint16(0x2<<13) | uint16(10<<7) | uint16(5<<2) | 0x1
	m.IMem[0] = byte(half)
	m.IMem[1] = byte(half >> 8)
	before := m.CSR.Instret
	if err := m.Step(); err != nil {
		t.Fatal(err)
	}
	if got := m.readReg(10); got != 5 {
		t.Fatalf("a0 = %d, want 5", got)
	}
	if m.PC != m.IMemBase+2 {
		t.Fatalf("pc = 0x%x, want advanced by 2 (compressed)", m.PC)
	}
	if m.CSR.Instret != before+1 {
		t.Fatalf("instret did not advance for a retiring compressed instruction")
	}
}

func TestTimerInterruptFiresWhenArmedAndEnabled(t *testing.T) {
	m, _ := newTestMachine()
	m.CSR.Mtvec = m.IMemBase + 0x200
	m.CSR.Mstatus |= 1 << mstatusMIEBit
	m.CSR.Mie |= 1 << mieMTIE
	m.CSR.MtimeCmp = 1
	m.CSR.Mtime = 1

	storeWord(m, m.IMemBase, encodeI(OpOpImm, 0, 0, 0, 0)) // nop

	// First Step latches the armed condition; the second one takes it.
	if err := m.Step(); err != nil {
		t.Fatal(err)
	}
	pcBeforeSecond := m.PC
	if err := m.Step(); err != nil {
		t.Fatal(err)
	}
	if m.PC != m.CSR.Mtvec {
		t.Fatalf("pc = 0x%x (was 0x%x before), want redirected to mtvec", m.PC, pcBeforeSecond)
	}
	if m.CSR.Mcause != IntMachineTimer|interruptBit {
		t.Fatalf("mcause = 0x%x, want timer interrupt", m.CSR.Mcause)
	}
}

func TestMretRestoresInterruptEnable(t *testing.T) {
	m, _ := newTestMachine()
	m.CSR.Mstatus = 1 << mstatusMPIEBit
	m.CSR.Mepc = m.IMemBase + 0x40
	storeWord(m, m.IMemBase, uint32(OpSystem)|uint32(systemImmMRET)<<20)
	if err := m.Step(); err != nil {
		t.Fatal(err)
	}
	if m.CSR.Mstatus&(1<<mstatusMIEBit) == 0 {
		t.Fatalf("mstatus.MIE not restored after mret")
	}
	if m.PC != m.IMemBase+0x40 {
		t.Fatalf("pc = 0x%x, want mepc 0x%x", m.PC, m.IMemBase+0x40)
	}
}

func TestJalZeroOffsetReportsForeverLoopAndExits(t *testing.T) {
	m, host := newTestMachine()
	// jal x0, 0 -- a self-jump that never makes forward progress.
	storeWord(m, m.IMemBase, encodeJ(0, 0))

	defer func() {
		r := recover()
		sig, ok := r.(exitSignal)
		if !ok {
			t.Fatalf("expected exitSignal panic, got %v", r)
		}
		if sig.code != 1 {
			t.Fatalf("exit code = %d, want 1", sig.code)
		}
		if !host.exited || host.exitCode != 1 {
			t.Fatalf("host.Exit not called with code 1")
		}
	}()
	if err := m.Step(); err != nil {
		t.Fatal(err)
	}
	t.Fatalf("Step returned without the forever-loop exit firing")
}

func encodeJ(rd, imm uint32) uint32 {
	b20 := (imm >> 20) & 1
	b101 := (imm >> 1) & 0x3ff
	b11 := (imm >> 11) & 1
	b1912 := (imm >> 12) & 0xff
	return b20<<31 | b101<<21 | b11<<20 | b1912<<12 | rd<<7 | uint32(OpJAL)
}

func TestJalrSelfTargetReportsForeverLoop(t *testing.T) {
	m, host := newTestMachine()
	m.PC = m.IMemBase
	m.writeReg(11, m.IMemBase) // jalr x0, x11, 0 -> target == pc
	storeWord(m, m.IMemBase, encodeI(OpJALR, 0, 0, 11, 0))

	defer func() {
		r := recover()
		if _, ok := r.(exitSignal); !ok {
			t.Fatalf("expected exitSignal panic, got %v", r)
		}
		if !host.exited || host.exitCode != 1 {
			t.Fatalf("host.Exit not called with code 1")
		}
	}()
	if err := m.Step(); err != nil {
		t.Fatal(err)
	}
	t.Fatalf("Step returned without the forever-loop exit firing")
}

func TestAmoChargesSingleRAMSurcharge(t *testing.T) {
	m, _ := newTestMachine()
	m.SingleRAM = true
	addr := m.DMemBase
	m.writeReg(11, addr)
	m.writeReg(12, 1)
	storeWord(m, m.IMemBase, encodeR(OpAMO, 10, 2, 11, 12, 0b00000<<2)) // amoadd.w
	before := m.CSR.Cycle
	if err := m.Step(); err != nil {
		t.Fatal(err)
	}
	// One cycle for retirement plus one for the single-RAM surcharge.
	if m.CSR.Cycle != before+2 {
		t.Fatalf("cycle advanced by %d, want 2 (retire + single-RAM surcharge)", m.CSR.Cycle-before)
	}
}

func TestStaticPredictExemptsBackwardTakenBranch(t *testing.T) {
	m, _ := newTestMachine()
	m.StaticPredict = true
	m.writeReg(10, 0)
	m.writeReg(11, 0)
	m.PC = m.IMemBase + 4
	storeWord(m, m.IMemBase+4, encodeBranch(0, 10, 11, 0xffff_fffc)) // beq, backward (-4)
	beforeCycle := m.CSR.Cycle
	if err := m.Step(); err != nil {
		t.Fatal(err)
	}
	afterNoPenalty := m.CSR.Cycle - beforeCycle

	m2, _ := newTestMachine()
	m2.StaticPredict = true
	m2.writeReg(10, 0)
	m2.writeReg(11, 0)
	storeWord(m2, m2.IMemBase, encodeBranch(0, 10, 11, 8)) // beq, forward
	beforeCycle2 := m2.CSR.Cycle
	if err := m2.Step(); err != nil {
		t.Fatal(err)
	}
	afterWithPenalty := m2.CSR.Cycle - beforeCycle2

	if afterWithPenalty <= afterNoPenalty {
		t.Fatalf("forward taken branch (%d cycles) should cost more than backward taken branch under static prediction (%d cycles)", afterWithPenalty, afterNoPenalty)
	}
}

func TestBextExtractsBit(t *testing.T) {
	m, _ := newTestMachine()
	m.writeReg(11, 1<<5)
	m.writeReg(12, 5)
	// bext a0, a1, a2: funct7 0100100, funct3 5
	storeWord(m, m.IMemBase, encodeR(OpOp, 10, 5, 11, 12, 0b0100100))
	if err := m.Step(); err != nil {
		t.Fatal(err)
	}
	if got := m.readReg(10); got != 1 {
		t.Fatalf("bext result = %d, want 1", got)
	}
}

func TestSh2addScalesByFour(t *testing.T) {
	m, _ := newTestMachine()
	m.writeReg(11, 3)
	m.writeReg(12, 100)
	// sh2add a0, a1, a2: funct7 0010000, funct3 4
	storeWord(m, m.IMemBase, encodeR(OpOp, 10, 4, 11, 12, 0b0010000))
	if err := m.Step(); err != nil {
		t.Fatal(err)
	}
	if got := m.readReg(10); got != 112 {
		t.Fatalf("sh2add result = %d, want 112 (3<<2 + 100)", got)
	}
}

func TestClmulMatchesXorShiftSum(t *testing.T) {
	m, _ := newTestMachine()
	m.writeReg(11, 0b101)
	m.writeReg(12, 0b011)
	// clmul a0, a1, a2: funct7 0000101, funct3 1
	storeWord(m, m.IMemBase, encodeR(OpOp, 10, 1, 11, 12, 0b0000101))
	if err := m.Step(); err != nil {
		t.Fatal(err)
	}
	// 0b101 * 0b011 carry-less: (0b101<<0) ^ (0b101<<1) = 0b101 ^ 0b1010 = 0b1111
	if got := m.readReg(10); got != 0b1111 {
		t.Fatalf("clmul result = 0b%b, want 0b1111", got)
	}
}

func TestOrcBSpreadsNonZeroBytes(t *testing.T) {
	m, _ := newTestMachine()
	m.writeReg(11, 0x00_01_00_ff)
	// orc.b a0, a1: op-imm, funct3 5, funct7 0010100, shamt fixed 0b00111
	storeWord(m, m.IMemBase, encodeI(OpOpImm, 10, 5, 11, 0b0010100<<5|0b00111))
	if err := m.Step(); err != nil {
		t.Fatal(err)
	}
	if got := m.readReg(10); got != 0x00_ff_00_ff {
		t.Fatalf("orc.b result = 0x%08x, want 0x00ff00ff", got)
	}
}

func TestTraceReportsRealWriteback(t *testing.T) {
	m, _ := newTestMachine()
	storeWord(m, m.IMemBase, encodeU(OpLUI, 10, 0x1000))
	var gotRd, gotVal uint32
	var gotWrote bool
	m.Trace = func(pc, word, rd, val uint32, wrote bool) {
		gotRd, gotVal, gotWrote = rd, val, wrote
	}
	if err := m.Step(); err != nil {
		t.Fatal(err)
	}
	if !gotWrote || gotRd != 10 || gotVal != 0x1000 {
		t.Fatalf("trace = (rd=%d, val=0x%x, wrote=%v), want (10, 0x1000, true)", gotRd, gotVal, gotWrote)
	}
}

func TestTraceReportsNoWritebackForStore(t *testing.T) {
	m, _ := newTestMachine()
	m.writeReg(11, m.DMemBase)
	m.writeReg(12, 0x42)
	storeWord(m, m.IMemBase, encodeI(OpStore, 0, 2, 11, 0)|12<<20) // sw a2, 0(a1)
	var gotWrote bool
	m.Trace = func(pc, word, rd, val uint32, wrote bool) {
		gotWrote = wrote
	}
	if err := m.Step(); err != nil {
		t.Fatal(err)
	}
	if gotWrote {
		t.Fatalf("trace reported a writeback for a store")
	}
}

func TestRV32EHighRegistersReadAsZero(t *testing.T) {
	host := &fakeHost{}
	m := New(Config{
		IMemBase: DefaultIMemBase,
		DMemBase: DefaultDMemBase,
		IMemSize: 4096,
		DMemSize: 4096,
		RegNum:   RegNumReduced,
		Host:     host,
	})
	m.Regs[20] = 0xdead_beef // poke directly, bypassing writeReg
	if got := m.readReg(20); got != 0 {
		t.Fatalf("RV32E x20 read = 0x%x, want 0 (read-as-zero, no trap)", got)
	}
	m.writeReg(20, 0x1111)
	if m.Regs[20] != 0xdead_beef {
		t.Fatalf("RV32E write to x20 was not discarded")
	}
}
