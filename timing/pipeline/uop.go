// Package pipeline implements the issue and retirement control core of a
// multi-wide in-order RV64 pipeline: register-read/hazard resolution (RRD),
// execute (EX), memory (MEM), and writeback (WB), with per-register
// scoreboards, a priority-ordered bypass network, branch resolution, replay
// and exception handling, and a long-latency writeback arbiter.
package pipeline

import "github.com/sarchlab/rvsim/insts"

// Exception cause codes, matching the RISC-V mcause encoding.
const (
	CauseMisalignedFetch  = 0
	CauseFetchAccessFault = 1
	CauseIllegalInstr     = 2
	CauseBreakpoint       = 3
	CauseMisalignedLoad   = 4
	CauseLoadAccessFault  = 5
	CauseMisalignedStore  = 6
	CauseStoreAccessFault = 7
	CauseEcallM           = 11
	CauseFetchPageFault   = 12
	CauseLoadPageFault    = 13
	CauseStorePageFault   = 15
)

// CauseInterruptBit marks a cause value as an asynchronous interrupt.
const CauseInterruptBit = uint64(1) << 63

// UOP is the unit of work flowing through every pipeline stage. Each stage
// owns one array of N lane slots, valid-masked independently per lane.
type UOP struct {
	// Valid indicates this lane slot carries an instruction.
	Valid bool

	// PC is the program counter of the instruction.
	PC uint64

	// Inst is the decoded instruction.
	Inst *insts.Instruction

	// Resolved source operand values (integer).
	Rs1Data uint64
	Rs2Data uint64

	// Wdata is the integer result. WdataReady marks it as computed and
	// forwardable; long-latency results never set it, they arrive through
	// the writeback arbiter instead.
	Wdata      uint64
	WdataReady bool

	// MemAddr is the effective virtual address for memory operations,
	// compressed to the implementation's virtual-address width.
	MemAddr uint64

	// Tag identifies this op's outstanding data-memory request.
	Tag string

	// UsesMemALU marks a lane >0 op whose ALU re-evaluates in the memory
	// stage consuming lane 0's architectural result (the fast path).
	// MemALUSrc1/MemALUSrc2 select which operand is replaced.
	UsesMemALU bool
	MemALUSrc1 bool
	MemALUSrc2 bool

	// Branch prediction state carried from fetch. PredictionValid means
	// the front end recorded a predicted-taken redirect for this PC.
	PredictionValid bool
	PredictedPC     uint64

	// Branch outcome, computed in execute and compared against the
	// prediction in the memory stage.
	BranchTaken  bool
	BranchTarget uint64

	// Exception flag and cause, set at decode and re-validated at
	// writeback against memory-stage faults.
	Exception bool
	Cause     uint64
	Tval      uint64

	// NeedsReplay marks a transient resource-not-ready condition. The op
	// must not commit and re-issues from fetch at its own PC.
	NeedsReplay bool

	// ScoreboardClaimed records that this op set its destination busy in
	// a scoreboard, so a squash can release the claim when no write event
	// will arrive.
	ScoreboardClaimed bool

	// RequestInFlight is set once an external collaborator accepted this
	// op's request; the scoreboard bit is then cleared only by the
	// arriving write event.
	RequestInFlight bool
}

// Clear resets the lane slot to an empty bubble.
func (u *UOP) Clear() {
	*u = UOP{}
}

// HasIntRd reports whether the op writes an integer destination register.
func (u *UOP) HasIntRd() bool {
	return u.Valid && u.Inst != nil && u.Inst.HasRd && !u.Inst.FpRd && u.Inst.Rd != 0
}

// HasFpRd reports whether the op writes a floating-point destination.
func (u *UOP) HasFpRd() bool {
	return u.Valid && u.Inst != nil && u.Inst.FpRd
}

// IsCFI reports whether the op may redirect the instruction stream.
func (u *UOP) IsCFI() bool {
	return u.Valid && u.Inst != nil && u.Inst.IsCFI()
}

// newLanes allocates a stage's lane array.
func newLanes(width int) []UOP {
	return make([]UOP, width)
}

// clearLanes invalidates every lane of a stage. Flushes always apply to
// whole stages, never to a subset of lanes.
func clearLanes(lanes []UOP) {
	for i := range lanes {
		lanes[i].Clear()
	}
}

// anyValid reports whether any lane of a stage holds an instruction.
func anyValid(lanes []UOP) bool {
	for i := range lanes {
		if lanes[i].Valid {
			return true
		}
	}
	return false
}
