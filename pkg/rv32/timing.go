package rv32

// The C8 cycle/time accounting model. Every Step call retires exactly
// one cycle; instret only advances when the instruction actually
// completed (it did not trap), matching the architectural definition
// of "retired". mtime free-runs in lockstep with cycle unless the guest
// itself just wrote it, mirroring the mtimeUpdate suppression in
// original_source/tools/rvsim.c's timer tick.

// retireCycle advances cycle/time/mtime by one and, when retired is
// true, advances instret as well.
func (m *Machine) retireCycle(retired bool) {
	m.CSR.Cycle++
	m.CSR.Time++
	if retired {
		m.CSR.Instret++
	}
	if m.mtimeUpdate {
		m.mtimeUpdate = false
	} else {
		m.CSR.Mtime++
	}
}

// applyBranchPenalty charges the configured surcharge for any cycle in
// which control flow left the sequential path: a taken branch, a jump,
// a trap entry, or an MRET.
func (m *Machine) applyBranchPenalty() {
	m.CSR.Cycle += m.BranchPenalty
	m.CSR.Time += m.BranchPenalty
}

// chargeSingleRAM adds the single-port-RAM contention surcharge used
// when SingleRAM is enabled: a data access in the same cycle as an
// instruction fetch costs one extra cycle, because both lanes share one
// physical memory port.
func (m *Machine) chargeSingleRAM() {
	if m.SingleRAM {
		m.CSR.Cycle++
		m.CSR.Time++
	}
}
