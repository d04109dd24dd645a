package pipeline

import (
	"github.com/rs/xid"
	"github.com/sarchlab/rvsim/insts"
)

// groupDest records the destination of an older lane fired in the same
// cycle, for same-group dependency and write-collision checks.
type groupDest struct {
	lane      int
	rd        uint8
	fp        bool
	simpleALU bool
}

// registerRead decodes the fetch bundle, resolves operands through the
// register file and the bypass network, applies the hazard checks, and
// fires a leading prefix of lanes into execute.
//
// Issue is strictly in order: a stalled lane stalls every younger lane in
// the group, and a control-flow instruction is always the youngest op
// fired in its group, so a taken branch never leaves older unissued work
// behind.
func (p *Pipeline) registerRead() []UOP {
	lanes := newLanes(p.width)
	bundle := p.front.Fetch(p.width)

	fired := 0
	memOpFired := false
	var dests []groupDest

	for i := 0; i < p.width && i < len(bundle); i++ {
		fl := &bundle[i]
		if !fl.Valid {
			break
		}

		u := &lanes[i]
		u.Valid = true
		u.PC = fl.PC
		u.PredictionValid = fl.PredictionValid
		u.PredictedPC = fl.PredictedPC
		u.Inst = p.decoder.Decode(fl.Word)

		p.classifyException(u, fl, i)

		if !p.fireLane(u, i, memOpFired, dests) {
			u.Clear()
			for j := i + 1; j < p.width && j < len(bundle); j++ {
				if bundle[j].Valid {
					p.stats.InOrderStalls++
				}
			}
			break
		}

		in := u.Inst
		if !u.Exception {
			if in.IsMem() {
				memOpFired = true
				u.Tag = xid.New().String()
			}
			if in.FpRd || (in.HasRd && in.Rd != 0) {
				dests = append(dests, groupDest{
					lane:      i,
					rd:        in.Rd,
					fp:        in.FpRd,
					simpleALU: in.Class == insts.ClassALU,
				})
			}
			// Every destination is claimed at issue. In-pipe writers
			// release at commit, long-latency writers when their write
			// event lands.
			if in.FpRd {
				p.fpSB.Claim(in.Rd)
				u.ScoreboardClaimed = true
			} else if in.HasRd && in.Rd != 0 {
				p.intSB.Claim(in.Rd)
				u.ScoreboardClaimed = true
			}
		}

		fired++

		// Nothing younger issues behind a control-flow op or a
		// recognized exception.
		if u.IsCFI() || u.Exception {
			break
		}
	}

	p.front.Consume(fired)
	return lanes
}

// classifyException attaches any exception already known at decode time.
// An excepting op carries no architectural effects down the pipe; the
// trap is finalized at writeback.
func (p *Pipeline) classifyException(u *UOP, fl *FetchLane, lane int) {
	if lane == 0 {
		if cause, ok := p.csr.InterruptPending(); ok {
			u.Exception = true
			u.Cause = cause
			return
		}
	}

	switch {
	case fl.Fault:
		u.Exception = true
		u.Cause = fl.FaultCause
		u.Tval = fl.PC
	case u.Inst.Class == insts.ClassIllegal:
		u.Exception = true
		u.Cause = CauseIllegalInstr
		u.Tval = uint64(u.Inst.Raw)
	case u.Inst.Class == insts.ClassCSR && p.csr.IllegalAccess(u.Inst):
		u.Exception = true
		u.Cause = CauseIllegalInstr
		u.Tval = uint64(u.Inst.Raw)
	case u.Inst.Op == insts.OpECALL:
		u.Exception = true
		u.Cause = CauseEcallM
	case u.Inst.Op == insts.OpEBREAK:
		u.Exception = true
		u.Cause = CauseBreakpoint
		u.Tval = u.PC
	}
}

// fireLane applies the hazard chain for one lane and resolves its
// operands. Returns false when the lane must stall this cycle.
func (p *Pipeline) fireLane(u *UOP, lane int, memOpFired bool, dests []groupDest) bool {
	in := u.Inst

	// An excepting op issues as a bubble, but only from lane 0 and only
	// once the machine has drained, so the trap finalizes against
	// committed architectural state.
	if u.Exception {
		if lane != 0 {
			p.stats.Pipe0Stalls++
			return false
		}
		if !p.pipelineQuiet() {
			p.stats.OrderedStalls++
			return false
		}
		return true
	}

	if lane != 0 && in.Pipe0Only() {
		p.stats.Pipe0Stalls++
		return false
	}

	if in.NeedsOrdering() {
		if lane != 0 || !p.pipelineQuiet() {
			p.stats.OrderedStalls++
			return false
		}
	}

	if in.IsMem() && memOpFired {
		p.stats.MemPortStalls++
		return false
	}

	// Destination hazards: a register may have only one outstanding
	// writer, in the pipe or in a long-latency unit.
	if in.FpRd {
		if p.fpSB.Busy(in.Rd) {
			p.stats.DataHazardStalls++
			return false
		}
	} else if in.HasRd && in.Rd != 0 && p.intSB.Busy(in.Rd) {
		p.stats.DataHazardStalls++
		return false
	}
	if in.FpRd || (in.HasRd && in.Rd != 0) {
		for _, d := range dests {
			if d.rd == in.Rd && d.fp == in.FpRd {
				p.stats.DataHazardStalls++
				return false
			}
		}
	}

	return p.resolveOperands(u, dests)
}

// resolveOperands fills Rs1Data and Rs2Data from the register file, the
// bypass network, or the memory-stage ALU fast path. Returns false when a
// pending producer cannot forward yet.
func (p *Pipeline) resolveOperands(u *UOP, dests []groupDest) bool {
	in := u.Inst

	if in.HasRs1 {
		if in.FpRs1 {
			v, ok := p.resolveFp(in.Rs1)
			if !ok {
				p.stats.DataHazardStalls++
				return false
			}
			u.Rs1Data = v
		} else {
			v, fast, ok := p.resolveInt(u, in.Rs1, dests)
			if !ok {
				p.stats.DataHazardStalls++
				return false
			}
			u.Rs1Data = v
			u.MemALUSrc1 = fast
		}
	}

	if in.HasRs2 {
		if in.FpRs2 {
			v, ok := p.resolveFp(in.Rs2)
			if !ok {
				p.stats.DataHazardStalls++
				return false
			}
			u.Rs2Data = v
		} else {
			v, fast, ok := p.resolveInt(u, in.Rs2, dests)
			if !ok {
				p.stats.DataHazardStalls++
				return false
			}
			u.Rs2Data = v
			u.MemALUSrc2 = fast
		}
	}

	u.UsesMemALU = u.MemALUSrc1 || u.MemALUSrc2
	return true
}

// resolveInt resolves one integer source register. The fast return value
// marks an operand deferred to the memory-stage ALU: lane 0's result is
// substituted there, one cycle after both ops leave execute together.
func (p *Pipeline) resolveInt(u *UOP, reg uint8, dests []groupDest) (val uint64, fast bool, ok bool) {
	if reg == 0 {
		return 0, false, true
	}

	// Same-group dependency: lane 0's simple ALU result can feed a
	// younger simple ALU op through the memory-stage fast path; every
	// other producer forces a stall until the value is forwardable.
	for _, d := range dests {
		if d.rd != reg || d.fp {
			continue
		}
		if p.memALUForward && d.lane == 0 && d.simpleALU &&
			u.Inst.Class == insts.ClassALU {
			return 0, true, true
		}
		return 0, false, false
	}

	if rec, found := p.bypass.Lookup(reg); found {
		if rec.CanForward {
			return rec.Data, false, true
		}
		return 0, false, false
	}

	if p.intSB.Busy(reg) {
		return 0, false, false
	}

	return p.regFile.ReadReg(reg), false, true
}

// resolveFp resolves one floating-point source register. There is no FP
// bypass network; pending producers are visible only through the
// scoreboard.
func (p *Pipeline) resolveFp(reg uint8) (uint64, bool) {
	if p.fpSB.Busy(reg) {
		return 0, false
	}
	return p.regFile.ReadFReg(reg), true
}

// pipelineQuiet reports whether every stage is empty and every
// collaborator has drained, the issue condition for ordered instructions
// (fences, atomics, system ops, coprocessor ops).
func (p *Pipeline) pipelineQuiet() bool {
	if anyValid(p.ex) || anyValid(p.mem) || anyValid(p.wb) {
		return false
	}
	if p.intSB.AnyBusy() || p.fpSB.AnyBusy() {
		return false
	}
	if !p.dmem.Ordered() {
		return false
	}
	if p.div.Busy() || !p.fpu.Idle() {
		return false
	}
	if p.rocc != nil && !p.rocc.Idle() {
		return false
	}
	return true
}
