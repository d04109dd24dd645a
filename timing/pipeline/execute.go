package pipeline

import (
	"github.com/sarchlab/rvsim/emu"
	"github.com/sarchlab/rvsim/insts"
)

// execute evaluates the ops in the execute stage and issues requests to
// the external collaborators. Returns the lanes advancing into the memory
// stage and whether the stage must hold because the data memory refused
// this cycle's request.
//
// When an older stage flushed this cycle (cancelled), nothing is
// evaluated or issued; the lanes are about to die.
func (p *Pipeline) execute(cancelled bool) ([]UOP, bool) {
	if cancelled {
		return p.ex, false
	}

	exStall := false

	for i := range p.ex {
		u := &p.ex[i]
		if !u.Valid || u.Exception || u.NeedsReplay {
			continue
		}

		in := u.Inst

		switch {
		case in.Class == insts.ClassALU:
			if in.Op == insts.OpAUIPC {
				u.Wdata = u.PC + uint64(in.Imm)
				u.WdataReady = true
			} else if !u.UsesMemALU {
				u.Wdata = emu.EvalALU(in, u.Rs1Data, u.Rs2Data)
				u.WdataReady = true
			}

		case in.Class == insts.ClassBitManip:
			u.Wdata = p.bmu.Eval(in, u.Rs1Data, u.Rs2Data)
			u.WdataReady = true

		case in.Class == insts.ClassMul:
			// The product exists now but is forwardable only from
			// the memory stage on, matching the unit's latency.
			u.Wdata = p.mul.Eval(in, u.Rs1Data, u.Rs2Data)

		case in.Class == insts.ClassBranch:
			u.BranchTaken = emu.EvalBranch(in.Op, u.Rs1Data, u.Rs2Data)
			u.BranchTarget = vaMask(u.PC + uint64(in.Imm))

		case in.Class == insts.ClassJAL:
			u.BranchTaken = true
			u.BranchTarget = vaMask(u.PC + uint64(in.Imm))
			u.Wdata = u.PC + 4
			u.WdataReady = true

		case in.Class == insts.ClassJALR:
			u.BranchTaken = true
			u.BranchTarget = vaMask((u.Rs1Data + uint64(in.Imm)) &^ 1)
			u.Wdata = u.PC + 4
			u.WdataReady = true

		case in.IsMem():
			u.MemAddr = vaMask(u.Rs1Data + uint64(in.Imm))
			if !u.RequestInFlight {
				if !p.issueMemRequest(u) {
					exStall = true
				}
			}

		case in.Class == insts.ClassDiv:
			if !u.RequestInFlight {
				if p.div.Submit(in.Rd, in, u.Rs1Data, u.Rs2Data) {
					u.RequestInFlight = true
				} else {
					u.NeedsReplay = true
				}
			}

		case in.Class == insts.ClassFP || in.Class == insts.ClassFDiv:
			if !u.RequestInFlight {
				if p.fpu.Submit(in, u.Rs1Data, u.Rs2Data) {
					u.RequestInFlight = true
				} else {
					u.NeedsReplay = true
				}
			}

		case in.Class == insts.ClassRoCC:
			if p.rocc == nil {
				u.Exception = true
				u.Cause = CauseIllegalInstr
				u.Tval = uint64(in.Raw)
			} else if !u.RequestInFlight {
				if p.rocc.Submit(in, u.Rs1Data, u.Rs2Data) {
					u.RequestInFlight = true
				} else {
					u.NeedsReplay = true
				}
			}

		case in.Class == insts.ClassCSR,
			in.Class == insts.ClassSystem,
			in.Class == insts.ClassFence:
			// Handled entirely at writeback.
		}
	}

	return p.ex, exStall
}

// issueMemRequest submits one data-memory request for a load, store, or
// atomic. Returns false when the port is not ready.
func (p *Pipeline) issueMemRequest(u *UOP) bool {
	if !p.dmem.Ready() {
		return false
	}

	in := u.Inst
	req := &DMemRequest{
		Tag:      u.Tag,
		Addr:     u.MemAddr,
		Store:    in.MemWrite,
		Data:     u.Rs2Data,
		SizeLog2: in.MemSizeLog2,
		Signed:   in.MemSigned,
		Rd:       in.Rd,
		FpRd:     in.FpRd,
		Amo:      in.Class == insts.ClassAMO,
		Op:       in.Op,
	}
	if !p.dmem.Submit(req) {
		return false
	}
	u.RequestInFlight = true
	return true
}
