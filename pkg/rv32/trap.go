package rv32

// The C6 trap/interrupt controller. Interrupts are armed one cycle
// before they are allowed to fire: pollInterrupts latches the pending
// condition into the "next" shadow, and takeInterrupt consumes the
// shadow latched on the *previous* call. This two-stage arrangement
// mirrors the irq_pending/irq_armed pair in
// original_source/tools/rvsim.c's interrupt poll loop, which exists so
// that an interrupt asserted and cleared within the same cycle (e.g. a
// level-triggered msip write immediately followed by a clear) cannot
// both arm and fire in that same cycle.

// pollInterrupts latches the current interrupt sources into the
// "armed" shadow for next cycle's takeInterrupt, and returns the
// sources that are now armed (latched on the previous call).
func (m *Machine) pollInterrupts() (timer, software, external bool) {
	timer = m.timerArmed
	software = m.swArmed
	external = m.extArmed

	c := &m.CSR
	m.timerArmed = c.Mie&(1<<mieMTIE) != 0 && c.Mtime >= c.MtimeCmp && c.MtimeCmp != 0
	m.swArmed = c.Mie&(1<<mieMSIE) != 0 && c.Msip&1 != 0
	m.extArmed = c.Mie&(1<<mieMEIE) != 0 && c.Mip&(1<<mieMEIE) != 0
	return
}

// takeInterrupt checks whether any interrupt source is both armed and
// globally enabled (mstatus.MIE) and, if so, redirects control flow to
// the trap vector exactly as raiseTrap does for synchronous exceptions,
// with the interrupt bit set in mcause. It returns true if an interrupt
// was taken.
func (m *Machine) takeInterrupt() bool {
	timer, software, external := m.pollInterrupts()
	if m.CSR.Mstatus&(1<<mstatusMIEBit) == 0 {
		return false
	}
	var cause uint32
	switch {
	case software:
		cause = IntMachineSoftware
	case timer:
		cause = IntMachineTimer
	case external:
		cause = IntMachineExternal
	default:
		return false
	}
	m.enterTrap(cause|interruptBit, 0)
	return true
}

// raiseTrap redirects control flow for a synchronous exception with the
// given cause and trap value (faulting address, illegal instruction
// word, or 0).
func (m *Machine) raiseTrap(cause, tval uint32) {
	m.enterTrap(cause, tval)
}

// enterTrap performs the save/redirect common to both interrupts and
// synchronous exceptions: mepc <- pc of the trapping instruction,
// mcause/mtval populated, mstatus.MPIE <- MIE, mstatus.MIE cleared, and
// pc redirected to mtvec (vectored if mtvec's low two bits are 01 and
// this is an interrupt, direct otherwise — spec.md §4.6).
func (m *Machine) enterTrap(cause, tval uint32) {
	c := &m.CSR
	c.Mepc = m.PC
	c.Mcause = cause
	c.Mtval = tval

	mpie := (c.Mstatus >> mstatusMIEBit) & 1
	c.Mstatus = (c.Mstatus &^ (1 << mstatusMPIEBit)) | (mpie << mstatusMPIEBit)
	c.Mstatus &^= 1 << mstatusMIEBit

	base := c.Mtvec &^ 0x3
	mode := c.Mtvec & 0x3
	if mode == 1 && cause&interruptBit != 0 {
		m.PC = base + 4*(cause&^interruptBit)
	} else {
		m.PC = base
	}
}

// execMRET restores mstatus.MIE from MPIE and returns control to mepc,
// per spec.md §4.7. MPIE is set to 1 afterwards, matching the
// unconditional-reenable behaviour of original_source/tools/rvsim.c
// (this core implements only machine mode, so MPP is not modelled).
func (m *Machine) execMRET() {
	c := &m.CSR
	mpie := (c.Mstatus >> mstatusMPIEBit) & 1
	c.Mstatus = (c.Mstatus &^ (1 << mstatusMIEBit)) | (mpie << mstatusMIEBit)
	c.Mstatus |= 1 << mstatusMPIEBit
	m.PC = c.Mepc
}
