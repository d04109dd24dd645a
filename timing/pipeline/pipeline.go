package pipeline

import (
	"github.com/sarchlab/rvsim/emu"
	"github.com/sarchlab/rvsim/insts"
	"github.com/sarchlab/rvsim/timing/cache"
	"github.com/sarchlab/rvsim/timing/latency"
)

// Statistics holds pipeline performance statistics.
type Statistics struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64
	// Retired is the number of instructions committed.
	Retired uint64

	// Stall cycles by cause.
	DataHazardStalls uint64 // operand pending and not forwardable
	StructuralStalls uint64 // memory port or FP pipe not ready at execute
	MemPortStalls    uint64 // second memory op in the same issue group
	Pipe0Stalls      uint64 // pipe-0-only instruction found in lane >0
	OrderedStalls    uint64 // fence/atomic/system waiting for a quiet pipeline
	InOrderStalls    uint64 // lanes stalled behind an older stalled lane

	// Flushes by cause.
	FlushesMispredict uint64
	FlushesReplay     uint64
	FlushesException  uint64
	FlushesCSR        uint64 // CSR write, fence.i, mret

	Mispredictions uint64
	Replays        uint64
	Exceptions     uint64
}

// CPI returns the cycles per retired instruction.
func (s Statistics) CPI() float64 {
	if s.Retired == 0 {
		return 0
	}
	return float64(s.Cycles) / float64(s.Retired)
}

// CommitEvent describes one committed instruction, delivered to the trace
// hook at retirement.
type CommitEvent struct {
	Cycle uint64
	PC    uint64
	Inst  *insts.Instruction
	Wrote bool
	Rd    uint8
	Value uint64
}

// Option is a functional option for configuring the Pipeline.
type Option func(*Pipeline)

// WithIssueWidth sets the number of lanes per stage. Default is 2.
func WithIssueWidth(width int) Option {
	return func(p *Pipeline) {
		if width >= 1 {
			p.width = width
		}
	}
}

// WithMemALUForward enables or disables the memory-stage ALU fast path for
// same-group dependent integer chains. Default on for width > 1.
func WithMemALUForward(enabled bool) Option {
	return func(p *Pipeline) {
		p.memALUForward = enabled
		p.memALUForwardSet = true
	}
}

// WithDecoder replaces the default decoder, typically to restrict or
// extend the enabled ISA extensions.
func WithDecoder(d *insts.Decoder) Option {
	return func(p *Pipeline) { p.decoder = d }
}

// WithFrontEnd sets the fetch collaborator.
func WithFrontEnd(fe FrontEnd) Option {
	return func(p *Pipeline) { p.front = fe }
}

// WithDMem sets the data-memory collaborator.
func WithDMem(d DMem) Option {
	return func(p *Pipeline) { p.dmem = d }
}

// WithCSR sets the privileged-state collaborator.
func WithCSR(c CSRFile) Option {
	return func(p *Pipeline) { p.csr = c }
}

// WithDivider sets the integer divide collaborator.
func WithDivider(d Divider) Option {
	return func(p *Pipeline) { p.div = d }
}

// WithFPU sets the floating-point collaborator.
func WithFPU(f FPU) Option {
	return func(p *Pipeline) { p.fpu = f }
}

// WithRoCC attaches a coprocessor.
func WithRoCC(r RoCC) Option {
	return func(p *Pipeline) { p.rocc = r }
}

// WithDataCache attaches an L1 data cache model to the default data
// memory. Ignored when WithDMem replaces the default.
func WithDataCache(cfg cache.Config) Option {
	return func(p *Pipeline) { p.dcacheCfg = &cfg }
}

// WithLatencyTable sets the timing model used by the default collaborator
// units.
func WithLatencyTable(t *latency.Table) Option {
	return func(p *Pipeline) { p.latTable = t }
}

// WithCommitTrace installs a hook called once per committed instruction.
func WithCommitTrace(fn func(CommitEvent)) Option {
	return func(p *Pipeline) { p.traceFn = fn }
}

// Pipeline is the issue and retirement control core. Lanes advance through
// RRD -> EX -> MEM -> WB; loads, divides, coprocessor and floating-point
// results return through the long-latency writeback arbiter instead of the
// in-pipeline writeback lanes.
type Pipeline struct {
	width            int
	memALUForward    bool
	memALUForwardSet bool

	decoder *insts.Decoder
	regFile *emu.RegFile

	// External collaborators.
	front FrontEnd
	dmem  DMem
	csr   CSRFile
	mul   *Multiplier
	div   Divider
	bmu   *BitManipUnit
	fpu   FPU
	rocc  RoCC

	intSB *Scoreboard
	fpSB  *Scoreboard

	// Pipeline stage lane arrays. ex holds ops latched into execute,
	// mem into memory, wb into writeback.
	ex  []UOP
	mem []UOP
	wb  []UOP

	bypass    *BypassNetwork
	latTable  *latency.Table
	dcacheCfg *cache.Config

	stats   Statistics
	traceFn func(CommitEvent)

	halted   bool
	exitCode int64

	cycle uint64
}

// New creates a pipeline around an architectural register file. The fetch,
// memory, CSR, and arithmetic collaborators default to the in-package
// models when not overridden by options.
func New(regFile *emu.RegFile, mem *emu.Memory, opts ...Option) *Pipeline {
	p := &Pipeline{
		width:   2,
		decoder: insts.NewDecoder(),
		regFile: regFile,
	}

	for _, opt := range opts {
		opt(p)
	}

	if !p.memALUForwardSet {
		p.memALUForward = p.width > 1
	}
	if p.latTable == nil {
		p.latTable = latency.NewTable()
	}
	if p.front == nil {
		p.front = NewDefaultFrontEnd(mem, regFile.PC, DefaultFrontEndConfigDefaults())
	}
	if p.dmem == nil {
		dm := NewDefaultDMem(mem, p.latTable)
		if p.dcacheCfg != nil {
			dm.AttachCache(cache.New(*p.dcacheCfg, cache.NewMemoryBacking(mem)))
		}
		p.dmem = dm
	}
	if p.csr == nil {
		p.csr = NewDefaultCSR()
	}
	if p.div == nil {
		p.div = NewDefaultDivider(p.latTable)
	}
	if p.fpu == nil {
		p.fpu = NewDefaultFPU(p.latTable)
	}
	if p.bmu == nil {
		p.bmu = NewBitManipUnit(true)
	}
	p.mul = NewMultiplier(p.latTable)

	p.intSB = NewIntScoreboard()
	p.fpSB = NewFpScoreboard()
	p.ex = newLanes(p.width)
	p.mem = newLanes(p.width)
	p.wb = newLanes(p.width)
	p.bypass = NewBypassNetwork(p.width)

	return p
}

// Width returns the issue width.
func (p *Pipeline) Width() int { return p.width }

// Stats returns pipeline statistics.
func (p *Pipeline) Stats() Statistics { return p.stats }

// Halted reports whether the pipeline has stopped at an unhandled trap.
func (p *Pipeline) Halted() bool { return p.halted }

// ExitCode returns the value of a0 at the halting trap.
func (p *Pipeline) ExitCode() int64 { return p.exitCode }

// RegFile exposes the architectural register file.
func (p *Pipeline) RegFile() *emu.RegFile { return p.regFile }

// FrontEnd exposes the fetch collaborator.
func (p *Pipeline) FrontEnd() FrontEnd { return p.front }

// DMem exposes the data-memory collaborator.
func (p *Pipeline) DMem() DMem { return p.dmem }

// IntScoreboard exposes the integer scoreboard.
func (p *Pipeline) IntScoreboard() *Scoreboard { return p.intSB }

// PC returns the next fetch address.
func (p *Pipeline) PC() uint64 {
	if fe, ok := p.front.(*DefaultFrontEnd); ok {
		return fe.PC()
	}
	return p.regFile.PC
}

// SetPC redirects fetch to the given address.
func (p *Pipeline) SetPC(pc uint64) {
	p.regFile.PC = pc
	p.front.Redirect(pc, 0)
}

// Reset clears all in-flight state and statistics. Collaborators keep
// their architectural contents; only pipeline-owned state is cleared.
func (p *Pipeline) Reset() {
	clearLanes(p.ex)
	clearLanes(p.mem)
	clearLanes(p.wb)
	p.intSB.Reset()
	p.fpSB.Reset()
	p.bypass.Reset()
	p.stats = Statistics{}
	p.halted = false
	p.exitCode = 0
	p.cycle = 0
	p.front.Redirect(p.regFile.PC, 0)
}

// Run executes until the pipeline halts. Returns the exit code.
func (p *Pipeline) Run() int64 {
	for !p.halted {
		p.Tick()
	}
	return p.exitCode
}

// RunCycles executes at most the given number of cycles. Returns true if
// still running.
func (p *Pipeline) RunCycles(cycles uint64) bool {
	for i := uint64(0); i < cycles && !p.halted; i++ {
		p.Tick()
	}
	return !p.halted
}

// Tick advances the pipeline by one clock cycle.
//
// Stages are evaluated oldest-first (arbiter, WB, MEM, EX, RRD) so that
// every flush or kill raised by an older stage is combinationally visible
// to younger stages within the same cycle: a misprediction resolved in MEM
// invalidates the RRD and EX lanes before anything latches, and a
// writeback flush suppresses the memory request EX would have issued.
// Register updates are latched at the end, after all stage outputs are
// known. Flush priority when several fire at once: writeback (replay,
// exception, CSR) over misprediction over an execute-stage stall.
func (p *Pipeline) Tick() {
	if p.halted {
		return
	}
	p.cycle++
	p.stats.Cycles++

	p.dmem.Tick()
	p.div.Tick()
	p.fpu.Tick()
	if p.rocc != nil {
		p.rocc.Tick()
	}
	p.csr.Tick()

	// Long-latency writeback: at most one integer write per cycle, plus
	// the independent floating-point path.
	llWrite := p.longLatencyWriteback()

	// Writeback: exception finalization, replay, commit, retire.
	wbRes := p.writeback()

	// Memory stage: fast-path ALU re-evaluation, then branch resolution.
	p.memALUStage()
	memRes := p.resolveBranch(wbRes.flush)

	cancelled := wbRes.flush || memRes.flush

	// Execute: compute results and issue external requests unless an
	// older stage cancelled this cycle.
	nextMem, exStall := p.execute(cancelled)

	// Assemble this cycle's bypass network for register read.
	p.assembleBypass(llWrite)

	// Register read: only when nothing older disturbed the pipe.
	var nextEx []UOP
	if !cancelled && !exStall {
		nextEx = p.registerRead()
	}

	p.latch(wbRes, memRes, nextMem, nextEx, exStall)
}

// assembleBypass rebuilds the forwarding source list in priority order:
// the long-latency write, then WB, MEM, and EX lanes, lane 0 first within
// each stage.
func (p *Pipeline) assembleBypass(llWrite *llWriteRecord) {
	p.bypass.Reset()
	if llWrite != nil {
		p.bypass.AddLongLatency(llWrite.rd, llWrite.data)
	}
	for i := range p.wb {
		p.bypass.AddLane(&p.wb[i])
	}
	for i := range p.mem {
		p.bypass.AddLane(&p.mem[i])
	}
	for i := range p.ex {
		p.bypass.AddLane(&p.ex[i])
	}
}

// latch commits the cycle's stage outputs into the pipeline registers,
// applying flushes. Flushes clear whole stages, never a subset of lanes.
func (p *Pipeline) latch(wbRes wbResult, memRes branchResult, nextMem, nextEx []UOP, exStall bool) {
	switch {
	case wbRes.flush:
		// Replay, exception, CSR write, fence.i, or mret: kill the
		// memory stage and flush execute and register read.
		p.killStage(p.mem, false)
		p.killStage(p.ex, false)
		clearLanes(p.mem)
		clearLanes(p.ex)
		p.wb = newLanes(p.width)
		p.front.Redirect(wbRes.redirectPC, p.front.RASTop())

	case memRes.flush:
		// Misprediction: the resolving group advances to writeback
		// normally, everything younger (EX and RRD) dies.
		p.wb = p.mem
		p.mem = newLanes(p.width)
		p.killStage(p.ex, false)
		clearLanes(p.ex)
		p.front.Redirect(memRes.redirectPC, memRes.rasTop)

	case exStall:
		// Execute could not advance; it retains its lanes and the
		// memory stage receives a bubble. Register read did not fire.
		p.wb = p.mem
		p.mem = newLanes(p.width)
		p.stats.StructuralStalls++

	default:
		p.wb = p.mem
		p.mem = nextMem
		p.ex = nextEx
	}
}

// killStage squashes every valid lane of a stage: in-flight collaborator
// requests are aborted so their write event never fires, and scoreboard
// claims are released. lateKill selects the writeback-stage kill port of
// the data memory.
func (p *Pipeline) killStage(lanes []UOP, lateKill bool) {
	for i := range lanes {
		p.killLane(&lanes[i], lateKill)
	}
}

// killLane squashes a single op.
func (p *Pipeline) killLane(u *UOP, lateKill bool) {
	if !u.Valid {
		return
	}
	if u.RequestInFlight {
		switch u.Inst.Class {
		case insts.ClassLoad, insts.ClassStore, insts.ClassAMO,
			insts.ClassFPLoad, insts.ClassFPStore:
			if lateKill {
				p.dmem.KillS2(u.Tag)
			} else {
				p.dmem.KillS1(u.Tag)
			}
		case insts.ClassDiv:
			p.div.Kill()
		case insts.ClassRoCC:
			if p.rocc != nil {
				p.rocc.Kill()
			}
		case insts.ClassFP, insts.ClassFDiv:
			p.fpu.Kill(u.Inst.Rd, u.Inst.Op == insts.OpFMVXD)
		}
		u.RequestInFlight = false
	}
	p.releaseClaim(u)
}

// releaseClaim clears a squashed op's scoreboard bit. The scoreboard
// guarantees a single outstanding producer per register, so the claim is
// always this op's own.
func (p *Pipeline) releaseClaim(u *UOP) {
	if !u.ScoreboardClaimed {
		return
	}
	if u.Inst.FpRd {
		p.fpSB.Release(u.Inst.Rd)
	} else {
		p.intSB.Release(u.Inst.Rd)
	}
	u.ScoreboardClaimed = false
}

// vaMask compresses an address to the 39-bit sign-extended virtual
// address space used for effective addresses and indirect targets.
func vaMask(addr uint64) uint64 {
	return uint64(int64(addr<<25) >> 25)
}
