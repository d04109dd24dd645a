package pipeline

import "github.com/sarchlab/rvsim/insts"

// wbResult is the outcome of the writeback stage for one cycle.
type wbResult struct {
	flush      bool
	redirectPC uint64
}

// writeback finalizes the oldest stage, lane 0 first. Each lane either
// traps, replays, or commits; a trap, a replay, or a committing flush op
// stops the group and squashes everything younger.
func (p *Pipeline) writeback() wbResult {
	var res wbResult

	for i := range p.wb {
		u := &p.wb[i]
		if !u.Valid {
			continue
		}

		cause, tval, excepts := p.resolveException(u)
		if excepts && i != 0 {
			// Exceptions finalize only from lane 0. A fault discovered
			// on a younger lane replays; the op re-issues alone and
			// traps on its next pass.
			excepts = false
			u.NeedsReplay = true
		}

		if excepts {
			res.flush = true
			res.redirectPC = p.takeTrap(u, cause, tval)
			p.killYounger(i)
			p.stats.Exceptions++
			p.stats.FlushesException++
			return res
		}

		if u.NeedsReplay || (u.Tag != "" && p.dmem.Nacked(u.Tag)) {
			// No commit, no retire. The op and everything younger is
			// squashed and fetch redirected to the op's own PC.
			p.killLane(u, true)
			p.killYounger(i)
			res.flush = true
			res.redirectPC = u.PC
			p.stats.Replays++
			p.stats.FlushesReplay++
			return res
		}

		flushPC, flushes := p.commit(u)
		p.retire(u)
		// In-pipe writers release their destination claim at commit.
		// Long-latency claims stay set until the arbitrated write lands.
		if u.ScoreboardClaimed && !u.Inst.LongLatency() {
			p.releaseClaim(u)
		}
		if flushes {
			p.killYounger(i)
			res.flush = true
			res.redirectPC = flushPC
			p.stats.FlushesCSR++
			return res
		}
	}

	return res
}

// resolveException merges the exception carried from decode with any
// memory fault reported for the op's request. The decode-time exception
// wins; a single request reports at most one fault.
func (p *Pipeline) resolveException(u *UOP) (cause, tval uint64, ok bool) {
	if u.Exception {
		return u.Cause, u.Tval, true
	}
	if u.Tag != "" {
		if f, found := p.dmem.Fault(u.Tag); found {
			return memFaultCause(f), f.Addr, true
		}
	}
	return 0, 0, false
}

func memFaultCause(f MemFault) uint64 {
	switch f.Kind {
	case FaultMisaligned:
		if f.Store {
			return CauseMisalignedStore
		}
		return CauseMisalignedLoad
	case FaultPageFault:
		if f.Store {
			return CauseStorePageFault
		}
		return CauseLoadPageFault
	default:
		if f.Store {
			return CauseStoreAccessFault
		}
		return CauseLoadAccessFault
	}
}

// takeTrap records the trap in the CSR file and returns the redirect
// target. A zero trap vector means no handler is installed; the pipeline
// halts with a0 as the exit code.
func (p *Pipeline) takeTrap(u *UOP, cause, tval uint64) uint64 {
	p.killLane(u, true)
	vector := p.csr.TakeTrap(u.PC, cause, tval)
	if vector == 0 {
		p.halted = true
		p.exitCode = int64(p.regFile.ReadReg(10))
	}
	return vector
}

// killYounger squashes every writeback lane younger than lane i.
func (p *Pipeline) killYounger(i int) {
	for j := i + 1; j < len(p.wb); j++ {
		p.killLane(&p.wb[j], true)
		p.wb[j].Clear()
	}
}

// commit applies the op's architectural effect. Long-latency results are
// not written here; they arrive through the writeback arbiter after the
// op has retired. Returns a redirect PC when the op forces a pipeline
// flush (CSR writes, fence.i, mret).
func (p *Pipeline) commit(u *UOP) (uint64, bool) {
	in := u.Inst

	switch in.Class {
	case insts.ClassCSR:
		return p.commitCSR(u)

	case insts.ClassSystem:
		if in.Op == insts.OpMRET {
			return p.csr.Ret(), true
		}
		// wfi commits as a nop.
		return 0, false

	case insts.ClassFence:
		if in.Op == insts.OpFENCEI {
			return u.PC + 4, true
		}
		return 0, false
	}

	if u.HasIntRd() && u.WdataReady {
		p.regFile.WriteReg(in.Rd, u.Wdata)
	}
	return 0, false
}

// commitCSR performs the read-modify-write of a CSR op. Writes force a
// flush and refetch of the next instruction, so every younger op sees the
// new CSR state.
func (p *Pipeline) commitCSR(u *UOP) (uint64, bool) {
	in := u.Inst
	old := p.csr.Read(in.CSR)

	operand := u.Rs1Data
	switch in.Op {
	case insts.OpCSRRWI, insts.OpCSRRSI, insts.OpCSRRCI:
		operand = uint64(in.Imm)
	}

	if csrWrites(in) {
		switch in.Op {
		case insts.OpCSRRW, insts.OpCSRRWI:
			p.csr.Write(in.CSR, operand)
		case insts.OpCSRRS, insts.OpCSRRSI:
			p.csr.Write(in.CSR, old|operand)
		case insts.OpCSRRC, insts.OpCSRRCI:
			p.csr.Write(in.CSR, old&^operand)
		}
	}

	if u.HasIntRd() {
		u.Wdata = old
		u.WdataReady = true
		p.regFile.WriteReg(in.Rd, old)
	}

	if csrWrites(in) {
		return u.PC + 4, true
	}
	return 0, false
}

// retire counts the op as committed and fires the trace hook.
func (p *Pipeline) retire(u *UOP) {
	p.stats.Retired++
	p.csr.Retire(1)
	if p.traceFn != nil {
		p.traceFn(CommitEvent{
			Cycle: p.cycle,
			PC:    u.PC,
			Inst:  u.Inst,
			Wrote: u.HasIntRd() && u.WdataReady,
			Rd:    u.Inst.Rd,
			Value: u.Wdata,
		})
	}
}
