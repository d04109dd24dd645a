package pipeline

import (
	"github.com/sarchlab/rvsim/emu"
	"github.com/sarchlab/rvsim/insts"
)

// memALUStage runs the memory-stage ALU pass. Two things become
// forwardable here: multiply results, whose unit latency spans execute and
// memory, and fast-path ALU ops from lanes >0, re-evaluated now that lane
// 0's architectural result is final.
func (p *Pipeline) memALUStage() {
	lane0 := &p.mem[0]
	lane0Ready := lane0.Valid && lane0.WdataReady && !lane0.Exception && !lane0.NeedsReplay

	for i := range p.mem {
		u := &p.mem[i]
		if !u.Valid || u.Exception || u.NeedsReplay {
			continue
		}

		if u.Inst.Class == insts.ClassMul {
			u.WdataReady = true
			continue
		}

		if !u.UsesMemALU {
			continue
		}

		if !lane0Ready {
			// The producer was squashed out from under the consumer;
			// replay rather than compute with a stale operand.
			u.NeedsReplay = true
			continue
		}

		rs1, rs2 := u.Rs1Data, u.Rs2Data
		if u.MemALUSrc1 {
			rs1 = lane0.Wdata
		}
		if u.MemALUSrc2 {
			rs2 = lane0.Wdata
		}
		u.Wdata = emu.EvalALU(u.Inst, rs1, rs2)
		u.WdataReady = true
		u.UsesMemALU = false
	}
}
