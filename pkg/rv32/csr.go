package rv32

// CSR addresses recognised by this core (spec.md §4.4).
const (
	csrCycle      uint32 = 0xc00
	csrCycleH     uint32 = 0xc80
	csrInstret    uint32 = 0xc02
	csrInstretH   uint32 = 0xc82
	csrMvendorID  uint32 = 0xf11
	csrMarchID    uint32 = 0xf12
	csrMimpID     uint32 = 0xf13
	csrMhartID    uint32 = 0xf14
	csrMscratch   uint32 = 0x340
	csrMstatus    uint32 = 0x300
	csrMstatusH   uint32 = 0x310
	csrMisa       uint32 = 0x301
	csrMie        uint32 = 0x304
	csrMip        uint32 = 0x344
	csrMtvec      uint32 = 0x305
	csrMepc       uint32 = 0x341
	csrMcause     uint32 = 0x342
	csrMtval      uint32 = 0x343

	// Supervisor shadow / delegation registers, enabled by CSRFile.XV6Shadow.
	csrSstatus    uint32 = 0x100
	csrSie        uint32 = 0x104
	csrStvec      uint32 = 0x105
	csrSscratch   uint32 = 0x140
	csrSepc       uint32 = 0x141
	csrScause     uint32 = 0x142
	csrStval      uint32 = 0x143
	csrSip        uint32 = 0x144
	csrSatp       uint32 = 0x180
	csrMedeleg    uint32 = 0x302
	csrMideleg    uint32 = 0x303
	csrMcounteren uint32 = 0x306
)

// CSROp selects the read/modify operation performed by CSRReadModify.
type CSROp int

const (
	CSROpRW CSROp = iota
	CSROpRS
	CSROpRC
)

// CSRFile holds the machine-mode control & status registers. The
// free-running 64-bit counters are addressable both as a single 64-bit
// value and as two 32-bit halves (spec.md §3); Go represents that as a
// uint64 field plus Lo32/Hi32 helpers rather than a union, per the
// "compute shifts explicitly" design note (spec.md §9).
type CSRFile struct {
	Cycle    uint64
	Instret  uint64
	Time     uint64
	Mtime    uint64
	MtimeCmp uint64
	Msip     uint32

	Mvendorid uint32
	Marchid   uint32
	Mimpid    uint32
	Mhartid   uint32
	Misa      uint32

	Mscratch uint32
	Mstatus  uint32
	Mstatush uint32
	Mie      uint32
	Mip      uint32
	Mtvec    uint32
	Mepc     uint32
	Mcause   uint32
	Mtval    uint32

	// XV6Shadow gates the supervisor-shadow/delegation group below: it
	// is stored and round-trips through RW/RS/RC, but no part of the
	// trap controller ever consults it (spec.md §3 non-goal: no S/U
	// privilege transitions).
	XV6Shadow bool

	Sstatus    uint32
	Sie        uint32
	Stvec      uint32
	Sscratch   uint32
	Sepc       uint32
	Scause     uint32
	Stval      uint32
	Sip        uint32
	Satp       uint32
	Medeleg    uint32
	Mideleg    uint32
	Mcounteren uint32
}

// Lo32 returns the low half of a 64-bit counter view.
func Lo32(v uint64) uint32 { return uint32(v) }

// Hi32 returns the high half of a 64-bit counter view.
func Hi32(v uint64) uint32 { return uint32(v >> 32) }

// applyOp computes the post-update value of a read/modify/write CSR op.
func applyOp(op CSROp, cur, val uint32) uint32 {
	switch op {
	case CSROpRW:
		return val
	case CSROpRS:
		return cur | val
	case CSROpRC:
		return cur &^ val
	default:
		return cur
	}
}

// CSRReadModify implements the C4 accessor: it returns the pre-update
// value of the named CSR and, when update is true, applies op to it.
// Counters are returned as "value - 1" because the free-running counter
// has already been incremented for the instruction currently retiring
// (spec.md §4.4); read-only identification CSRs silently ignore writes;
// an unrecognised address reports legal=false and the caller must raise
// TrapInstIll.
func (m *Machine) CSRReadModify(addr uint32, op CSROp, val uint32, update bool) (result uint32, legal bool) {
	c := &m.CSR
	legal = true
	switch addr {
	case csrCycle:
		result = Lo32(c.Cycle - 1)
	case csrCycleH:
		result = Hi32(c.Cycle - 1)
	case csrInstret:
		result = Lo32(c.Instret - 1)
	case csrInstretH:
		result = Hi32(c.Instret - 1)
	case csrMvendorID:
		result = c.Mvendorid
	case csrMarchID:
		result = c.Marchid
	case csrMimpID:
		result = c.Mimpid
	case csrMhartID:
		result = c.Mhartid
	case csrMisa:
		result = c.Misa
	case csrMscratch:
		result = c.Mscratch
		if update {
			c.Mscratch = applyOp(op, result, val)
		}
	case csrMstatus:
		result = c.Mstatus
		if update {
			c.Mstatus = applyOp(op, result, val)
		}
	case csrMstatusH:
		result = c.Mstatush
		if update {
			c.Mstatush = applyOp(op, result, val)
		}
	case csrMie:
		result = c.Mie
		if update {
			c.Mie = applyOp(op, result, val)
		}
	case csrMip:
		result = c.Mip
		if update {
			c.Mip = applyOp(op, result, val)
		}
	case csrMtvec:
		result = c.Mtvec
		if update {
			c.Mtvec = applyOp(op, result, val)
		}
	case csrMepc:
		result = c.Mepc
		if update {
			c.Mepc = applyOp(op, result, val)
		}
	case csrMcause:
		result = c.Mcause
		if update {
			c.Mcause = applyOp(op, result, val)
		}
	case csrMtval:
		result = c.Mtval
		if update {
			c.Mtval = applyOp(op, result, val)
		}
	default:
		if c.XV6Shadow {
			if r, ok := m.csrReadModifyShadow(addr, op, val, update); ok {
				return r, true
			}
		}
		legal = false
	}
	return result, legal
}

// csrReadModifyShadow handles the supervisor-shadow/delegation group,
// split out to keep CSRReadModify's primary dispatch short.
func (m *Machine) csrReadModifyShadow(addr uint32, op CSROp, val uint32, update bool) (uint32, bool) {
	c := &m.CSR
	var slot *uint32
	switch addr {
	case csrSstatus:
		slot = &c.Sstatus
	case csrSie:
		slot = &c.Sie
	case csrStvec:
		slot = &c.Stvec
	case csrSscratch:
		slot = &c.Sscratch
	case csrSepc:
		slot = &c.Sepc
	case csrScause:
		slot = &c.Scause
	case csrStval:
		slot = &c.Stval
	case csrSip:
		slot = &c.Sip
	case csrSatp:
		slot = &c.Satp
	case csrMedeleg:
		slot = &c.Medeleg
	case csrMideleg:
		slot = &c.Mideleg
	case csrMcounteren:
		slot = &c.Mcounteren
	default:
		return 0, false
	}
	result := *slot
	if update {
		*slot = applyOp(op, result, val)
	}
	return result, true
}
