package pipeline

import (
	"math"

	"github.com/sarchlab/rvsim/emu"
	"github.com/sarchlab/rvsim/insts"
	"github.com/sarchlab/rvsim/timing/latency"
)

// Multiplier models the pipelined integer multiply unit. It always accepts
// a new op per lane per cycle; the product is computed when the op enters
// execute and becomes forwardable one stage later.
type Multiplier struct {
	lat uint64
}

// NewMultiplier creates a multiplier with the table's multiply latency.
func NewMultiplier(table *latency.Table) *Multiplier {
	return &Multiplier{lat: table.Config().MulLatency}
}

// Latency returns the multiply latency in cycles.
func (m *Multiplier) Latency() uint64 { return m.lat }

// Eval computes the product for the given multiply form.
func (m *Multiplier) Eval(in *insts.Instruction, rs1, rs2 uint64) uint64 {
	return emu.EvalALU(in, rs1, rs2)
}

// BitManipUnit evaluates bit-manipulation ops in a single execute cycle.
type BitManipUnit struct {
	enabled bool
}

func NewBitManipUnit(enabled bool) *BitManipUnit {
	return &BitManipUnit{enabled: enabled}
}

func (b *BitManipUnit) Enabled() bool { return b.enabled }

func (b *BitManipUnit) Eval(in *insts.Instruction, rs1, rs2 uint64) uint64 {
	return emu.EvalALU(in, rs1, rs2)
}

// Divider is the iterative integer divide unit. It accepts one op at a
// time; the pipeline replays any divide issued while it is busy. The
// result is held until the writeback arbiter takes it.
type Divider interface {
	Busy() bool
	Submit(rd uint8, in *insts.Instruction, rs1, rs2 uint64) bool
	Tick()
	ResultReady() bool
	PeekResult() (rd uint8, val uint64)
	TakeResult()
	// Kill aborts the in-flight op so its write event never fires.
	Kill()
}

// DefaultDivider computes divides with an operand-dependent latency.
type DefaultDivider struct {
	table *latency.Table

	busy      bool
	remaining uint64
	rd        uint8
	val       uint64
	done      bool
}

func NewDefaultDivider(table *latency.Table) *DefaultDivider {
	return &DefaultDivider{table: table}
}

func (d *DefaultDivider) Busy() bool { return d.busy || d.done }

func (d *DefaultDivider) Submit(rd uint8, in *insts.Instruction, rs1, rs2 uint64) bool {
	if d.Busy() {
		return false
	}
	d.busy = true
	d.remaining = d.table.DivLatency(rs1)
	d.rd = rd
	d.val = emu.EvalALU(in, rs1, rs2)
	return true
}

func (d *DefaultDivider) Tick() {
	if !d.busy {
		return
	}
	d.remaining--
	if d.remaining == 0 {
		d.busy = false
		d.done = true
	}
}

func (d *DefaultDivider) ResultReady() bool { return d.done }

func (d *DefaultDivider) PeekResult() (uint8, uint64) { return d.rd, d.val }

func (d *DefaultDivider) TakeResult() { d.done = false }

func (d *DefaultDivider) Kill() {
	d.busy = false
	d.done = false
}

// FPU is the floating-point collaborator. Pipe ops (add, sub, mul, moves)
// are fully pipelined; divide and square root occupy a single iterative
// unit and cause a replay when it is busy. Results with a floating-point
// destination return on the FP writeback path, fmv.x.d returns on the
// integer one.
type FPU interface {
	FDivBusy() bool
	Submit(in *insts.Instruction, a, b uint64) bool
	Tick()
	ResultReady() bool
	PeekResult() (rd uint8, val uint64)
	TakeResult()
	IntResultReady() bool
	PeekIntResult() (rd uint8, val uint64)
	TakeIntResult()
	// Kill aborts the in-flight op writing the given destination.
	Kill(rd uint8, intDest bool)
	Idle() bool
}

type fpuOp struct {
	rd        uint8
	intDest   bool
	val       uint64
	remaining uint64
	fdiv      bool
}

// DefaultFPU models double-precision arithmetic with table latencies.
type DefaultFPU struct {
	table *latency.Table

	ops        []*fpuOp
	fdivBusy   bool
	results    []fpuOp
	intResults []fpuOp
}

func NewDefaultFPU(table *latency.Table) *DefaultFPU {
	return &DefaultFPU{table: table}
}

func (f *DefaultFPU) FDivBusy() bool { return f.fdivBusy }

func (f *DefaultFPU) Submit(in *insts.Instruction, a, b uint64) bool {
	op := &fpuOp{rd: in.Rd}

	fa := math.Float64frombits(a)
	fb := math.Float64frombits(b)

	switch in.Op {
	case insts.OpFADDD:
		op.val = math.Float64bits(fa + fb)
		op.remaining = f.table.Config().FPLatency
	case insts.OpFSUBD:
		op.val = math.Float64bits(fa - fb)
		op.remaining = f.table.Config().FPLatency
	case insts.OpFMULD:
		op.val = math.Float64bits(fa * fb)
		op.remaining = f.table.Config().FPLatency
	case insts.OpFDIVD:
		if f.fdivBusy {
			return false
		}
		op.val = math.Float64bits(fa / fb)
		op.remaining = f.fdivLatency(a)
		op.fdiv = true
		f.fdivBusy = true
	case insts.OpFSQRTD:
		if f.fdivBusy {
			return false
		}
		op.val = math.Float64bits(math.Sqrt(fa))
		op.remaining = f.fdivLatency(a)
		op.fdiv = true
		f.fdivBusy = true
	case insts.OpFMVDX:
		op.val = a
		op.remaining = 1
	case insts.OpFMVXD:
		op.val = a
		op.intDest = true
		op.remaining = 1
	default:
		return false
	}

	f.ops = append(f.ops, op)
	return true
}

// fdivLatency scales the divide latency with the magnitude of the
// dividend's significand, bounded by the configured range.
func (f *DefaultFPU) fdivLatency(bits uint64) uint64 {
	min := f.table.Config().FDivLatencyMin
	max := f.table.Config().FDivLatencyMax
	lat := min + (bits>>52)&0x1F
	if lat > max {
		lat = max
	}
	return lat
}

func (f *DefaultFPU) Tick() {
	remaining := f.ops[:0]
	for _, op := range f.ops {
		op.remaining--
		if op.remaining > 0 {
			remaining = append(remaining, op)
			continue
		}
		if op.fdiv {
			f.fdivBusy = false
		}
		if op.intDest {
			f.intResults = append(f.intResults, *op)
		} else {
			f.results = append(f.results, *op)
		}
	}
	f.ops = remaining
}

func (f *DefaultFPU) ResultReady() bool { return len(f.results) > 0 }

func (f *DefaultFPU) PeekResult() (uint8, uint64) {
	r := f.results[0]
	return r.rd, r.val
}

func (f *DefaultFPU) TakeResult() { f.results = f.results[1:] }

func (f *DefaultFPU) IntResultReady() bool { return len(f.intResults) > 0 }

func (f *DefaultFPU) PeekIntResult() (uint8, uint64) {
	r := f.intResults[0]
	return r.rd, r.val
}

func (f *DefaultFPU) TakeIntResult() { f.intResults = f.intResults[1:] }

func (f *DefaultFPU) Kill(rd uint8, intDest bool) {
	remaining := f.ops[:0]
	for _, op := range f.ops {
		if op.rd == rd && op.intDest == intDest {
			if op.fdiv {
				f.fdivBusy = false
			}
			continue
		}
		remaining = append(remaining, op)
	}
	f.ops = remaining
}

func (f *DefaultFPU) Idle() bool {
	return len(f.ops) == 0 && len(f.results) == 0 && len(f.intResults) == 0
}

// RoCC is the coprocessor collaborator. It accepts one op at a time; ops
// issued while it is busy replay.
type RoCC interface {
	Busy() bool
	Submit(in *insts.Instruction, rs1, rs2 uint64) bool
	Tick()
	ResultReady() bool
	PeekResult() (rd uint8, val uint64)
	TakeResult()
	// Kill aborts the in-flight op so its write event never fires.
	Kill()
	Idle() bool
}

// DefaultRoCC is a fixed-latency coprocessor whose operation is supplied
// as a function, mainly for tests and experiments.
type DefaultRoCC struct {
	lat uint64
	fn  func(rs1, rs2 uint64) uint64

	busy      bool
	remaining uint64
	rd        uint8
	val       uint64
	done      bool
}

func NewDefaultRoCC(table *latency.Table, fn func(rs1, rs2 uint64) uint64) *DefaultRoCC {
	if fn == nil {
		fn = func(rs1, rs2 uint64) uint64 { return 0 }
	}
	return &DefaultRoCC{lat: table.Config().RoCCLatency, fn: fn}
}

func (r *DefaultRoCC) Busy() bool { return r.busy || r.done }

func (r *DefaultRoCC) Submit(in *insts.Instruction, rs1, rs2 uint64) bool {
	if r.Busy() {
		return false
	}
	r.busy = true
	r.remaining = r.lat
	r.rd = in.Rd
	r.val = r.fn(rs1, rs2)
	return true
}

func (r *DefaultRoCC) Tick() {
	if !r.busy {
		return
	}
	r.remaining--
	if r.remaining == 0 {
		r.busy = false
		r.done = true
	}
}

func (r *DefaultRoCC) ResultReady() bool { return r.done }

func (r *DefaultRoCC) PeekResult() (uint8, uint64) { return r.rd, r.val }

func (r *DefaultRoCC) TakeResult() { r.done = false }

func (r *DefaultRoCC) Kill() {
	r.busy = false
	r.done = false
}

func (r *DefaultRoCC) Idle() bool { return !r.busy && !r.done }
