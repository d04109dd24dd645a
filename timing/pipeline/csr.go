package pipeline

import "github.com/sarchlab/rvsim/insts"

// Machine-mode CSR addresses.
const (
	csrMStatus  = 0x300
	csrMIE      = 0x304
	csrMTVec    = 0x305
	csrMScratch = 0x340
	csrMEPC     = 0x341
	csrMCause   = 0x342
	csrMTVal    = 0x343
	csrMIP      = 0x344
	csrMCycle   = 0xB00
	csrMInstret = 0xB02
	csrCycle    = 0xC00
	csrTime     = 0xC01
	csrInstret  = 0xC02
)

const mstatusMIE = 1 << 3
const mstatusMPIE = 1 << 7

// CSRFile is the privileged-state collaborator. The pipeline consults it
// for decode legality and pending interrupts at register read, and hands
// it traps and returns at writeback.
type CSRFile interface {
	// IllegalAccess reports whether a CSR instruction touches an
	// unknown register or writes a read-only one.
	IllegalAccess(in *insts.Instruction) bool
	// InterruptPending returns the cause of an enabled pending
	// interrupt, if any.
	InterruptPending() (uint64, bool)
	Read(addr uint16) uint64
	Write(addr uint16, v uint64)
	// TakeTrap records an exception and returns the trap vector.
	TakeTrap(pc, cause, tval uint64) uint64
	// Ret unwinds a trap and returns the saved exception PC.
	Ret() uint64
	// Retire advances the retired-instruction counters.
	Retire(count uint64)
	Tick()
}

// DefaultCSR is a machine-mode-only CSR file.
type DefaultCSR struct {
	mstatus  uint64
	mie      uint64
	mtvec    uint64
	mscratch uint64
	mepc     uint64
	mcause   uint64
	mtval    uint64
	mip      uint64
	cycle    uint64
	instret  uint64
}

// NewDefaultCSR creates a CSR file with interrupts disabled and an empty
// trap vector.
func NewDefaultCSR() *DefaultCSR {
	return &DefaultCSR{}
}

func (c *DefaultCSR) IllegalAccess(in *insts.Instruction) bool {
	switch in.CSR {
	case csrMStatus, csrMIE, csrMTVec, csrMScratch,
		csrMEPC, csrMCause, csrMTVal, csrMIP,
		csrMCycle, csrMInstret:
		return false
	case csrCycle, csrTime, csrInstret:
		// Read-only counters: any write form is illegal.
		return csrWrites(in)
	default:
		return true
	}
}

// csrWrites reports whether the CSR instruction performs a write. Set and
// clear forms with a zero source are pure reads.
func csrWrites(in *insts.Instruction) bool {
	switch in.Op {
	case insts.OpCSRRW, insts.OpCSRRWI:
		return true
	case insts.OpCSRRS, insts.OpCSRRC:
		return in.Rs1 != 0
	case insts.OpCSRRSI, insts.OpCSRRCI:
		return in.Imm != 0
	default:
		return false
	}
}

func (c *DefaultCSR) InterruptPending() (uint64, bool) {
	if c.mstatus&mstatusMIE == 0 {
		return 0, false
	}
	pending := c.mip & c.mie
	if pending == 0 {
		return 0, false
	}
	// Lowest set bit wins; the bit index is the interrupt cause.
	for bit := uint64(0); bit < 64; bit++ {
		if pending&(1<<bit) != 0 {
			return CauseInterruptBit | bit, true
		}
	}
	return 0, false
}

func (c *DefaultCSR) Read(addr uint16) uint64 {
	switch addr {
	case csrMStatus:
		return c.mstatus
	case csrMIE:
		return c.mie
	case csrMTVec:
		return c.mtvec
	case csrMScratch:
		return c.mscratch
	case csrMEPC:
		return c.mepc
	case csrMCause:
		return c.mcause
	case csrMTVal:
		return c.mtval
	case csrMIP:
		return c.mip
	case csrMCycle, csrCycle:
		return c.cycle
	case csrMInstret, csrInstret:
		return c.instret
	case csrTime:
		return c.cycle
	}
	return 0
}

func (c *DefaultCSR) Write(addr uint16, v uint64) {
	switch addr {
	case csrMStatus:
		c.mstatus = v
	case csrMIE:
		c.mie = v
	case csrMTVec:
		c.mtvec = v &^ 3 // direct mode only
	case csrMScratch:
		c.mscratch = v
	case csrMEPC:
		c.mepc = v &^ 1
	case csrMCause:
		c.mcause = v
	case csrMTVal:
		c.mtval = v
	case csrMIP:
		c.mip = v
	case csrMCycle:
		c.cycle = v
	case csrMInstret:
		c.instret = v
	}
}

func (c *DefaultCSR) TakeTrap(pc, cause, tval uint64) uint64 {
	c.mepc = pc
	c.mcause = cause
	c.mtval = tval
	if c.mstatus&mstatusMIE != 0 {
		c.mstatus |= mstatusMPIE
	} else {
		c.mstatus &^= mstatusMPIE
	}
	c.mstatus &^= mstatusMIE
	return c.mtvec
}

func (c *DefaultCSR) Ret() uint64 {
	if c.mstatus&mstatusMPIE != 0 {
		c.mstatus |= mstatusMIE
	} else {
		c.mstatus &^= mstatusMIE
	}
	c.mstatus |= mstatusMPIE
	return c.mepc
}

func (c *DefaultCSR) Retire(count uint64) { c.instret += count }

func (c *DefaultCSR) Tick() { c.cycle++ }

// RaiseInterrupt sets a pending interrupt bit, for external devices and
// tests.
func (c *DefaultCSR) RaiseInterrupt(bit uint64) { c.mip |= 1 << bit }

// ClearInterrupt clears a pending interrupt bit.
func (c *DefaultCSR) ClearInterrupt(bit uint64) { c.mip &^= 1 << bit }
