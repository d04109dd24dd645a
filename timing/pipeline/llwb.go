package pipeline

// llWriteRecord is the long-latency integer write performed this cycle,
// published to the bypass network as its highest-priority source.
type llWriteRecord struct {
	rd   uint8
	data uint64
}

// longLatencyWriteback arbitrates the asynchronous result streams into the
// register files. The integer file accepts one long-latency write per
// cycle, priority data cache over divider over coprocessor over FP moves;
// losers keep their results buffered and retry next cycle. The
// floating-point file has its own independent port, loads over the FP
// pipe.
//
// Every write clears the destination's scoreboard bit, reopening the
// register to issue.
func (p *Pipeline) longLatencyWriteback() *llWriteRecord {
	p.fpWriteback()

	switch {
	case p.dmem.ResponseReady() && !p.dmem.PeekResponse().FpRd:
		resp := p.dmem.TakeResponse()
		p.regFile.WriteReg(resp.Rd, resp.Data)
		p.intSB.Release(resp.Rd)
		return &llWriteRecord{rd: resp.Rd, data: resp.Data}

	case p.div.ResultReady():
		rd, val := p.div.PeekResult()
		p.div.TakeResult()
		p.regFile.WriteReg(rd, val)
		p.intSB.Release(rd)
		return &llWriteRecord{rd: rd, data: val}

	case p.rocc != nil && p.rocc.ResultReady():
		rd, val := p.rocc.PeekResult()
		p.rocc.TakeResult()
		p.regFile.WriteReg(rd, val)
		p.intSB.Release(rd)
		return &llWriteRecord{rd: rd, data: val}

	case p.fpu.IntResultReady():
		rd, val := p.fpu.PeekIntResult()
		p.fpu.TakeIntResult()
		p.regFile.WriteReg(rd, val)
		p.intSB.Release(rd)
		return &llWriteRecord{rd: rd, data: val}
	}

	return nil
}

// fpWriteback retires one floating-point result per cycle.
func (p *Pipeline) fpWriteback() {
	if p.dmem.ResponseReady() && p.dmem.PeekResponse().FpRd {
		resp := p.dmem.TakeResponse()
		p.regFile.WriteFReg(resp.Rd, resp.Data)
		p.fpSB.Release(resp.Rd)
		return
	}
	if p.fpu.ResultReady() {
		rd, val := p.fpu.PeekResult()
		p.fpu.TakeResult()
		p.regFile.WriteFReg(rd, val)
		p.fpSB.Release(rd)
	}
}
