package pipeline

import (
	"github.com/sarchlab/rvsim/emu"
	"github.com/sarchlab/rvsim/insts"
	"github.com/sarchlab/rvsim/timing/cache"
	"github.com/sarchlab/rvsim/timing/latency"
)

// FaultKind classifies a data-memory fault.
type FaultKind int

const (
	FaultNone FaultKind = iota
	FaultMisaligned
	FaultPageFault
	FaultAccessFault
)

// MemFault is a structured fault reported for a tagged request.
type MemFault struct {
	Kind  FaultKind
	Store bool
	Addr  uint64
}

// DMemRequest is one data-memory operation. Tag identifies the request
// through its whole lifetime: kill signals, nack queries, fault queries,
// and the eventual response all use it.
type DMemRequest struct {
	Tag      string
	Addr     uint64
	Store    bool
	Data     uint64 // store data, or the AMO operand
	SizeLog2 uint8
	Signed   bool
	Rd       uint8
	FpRd     bool
	Amo      bool
	Op       insts.Op
}

// DMemResponse carries a completed load's data back to the long-latency
// writeback arbiter.
type DMemResponse struct {
	Tag  string
	Rd   uint8
	FpRd bool
	Data uint64
}

// DMem is the data-memory collaborator. The pipeline issues at most one
// request per cycle from the execute stage, may kill it one cycle later
// (KillS1, from the memory stage) or two cycles later (KillS2, from
// writeback), and learns about nacks and faults by tag before the op
// retires.
type DMem interface {
	// Ready reports whether a new request can be accepted this cycle.
	Ready() bool
	// Ordered reports whether no requests are in flight or pending.
	Ordered() bool
	Submit(req *DMemRequest) bool
	KillS1(tag string)
	KillS2(tag string)
	// Nacked reports whether the tagged request was refused and must be
	// replayed. The record is consumed by the query.
	Nacked(tag string) bool
	// Fault returns the structured fault for the tagged request, if any.
	// The record is consumed by the query.
	Fault(tag string) (MemFault, bool)
	Tick()
	// ResponseReady reports whether a load response is available.
	ResponseReady() bool
	PeekResponse() *DMemResponse
	TakeResponse() *DMemResponse
}

// inflightOp tracks one request from submission to completion.
type inflightOp struct {
	req       DMemRequest
	age       uint64
	started   bool
	remaining uint64
	killed    bool
	nacked    bool
	faulted   bool
}

// storeKillWindow is the number of cycles a store is held before touching
// memory, long enough for the late writeback-stage kill to arrive.
const storeKillWindow = 2

// DefaultDMem is a single-ported data memory with a configurable access
// latency and injectable nacks and faults for testing. Requests are
// processed head-first in submission order; stores are held until the
// kill window closes before they modify memory.
type DefaultDMem struct {
	mem    *emu.Memory
	table  *latency.Table
	dcache *cache.Cache

	queue     []*inflightOp
	responses []DMemResponse

	nacks  map[string]bool
	faults map[string]MemFault

	// Test hooks.
	injectNacks   int
	injectFault   FaultKind
	maxInFlight   int
	forceNotReady bool
}

// NewDefaultDMem creates a data memory backed by the given sparse memory.
func NewDefaultDMem(mem *emu.Memory, table *latency.Table) *DefaultDMem {
	return &DefaultDMem{
		mem:         mem,
		table:       table,
		nacks:       make(map[string]bool),
		faults:      make(map[string]MemFault),
		maxInFlight: 4,
	}
}

// AttachCache routes access latency through an L1 data cache model. The
// architectural data path stays in the backing memory; the cache decides
// only how long each access takes.
func (d *DefaultDMem) AttachCache(c *cache.Cache) { d.dcache = c }

// CacheStats returns the attached cache's statistics, if a cache is
// attached.
func (d *DefaultDMem) CacheStats() (cache.Statistics, bool) {
	if d.dcache == nil {
		return cache.Statistics{}, false
	}
	return d.dcache.Stats(), true
}

// InjectNacks refuses the next n submitted requests.
func (d *DefaultDMem) InjectNacks(n int) { d.injectNacks = n }

// InjectFault makes the next submitted request fault with the given kind.
func (d *DefaultDMem) InjectFault(kind FaultKind) { d.injectFault = kind }

// SetNotReady forces Ready to report false until cleared.
func (d *DefaultDMem) SetNotReady(v bool) { d.forceNotReady = v }

func (d *DefaultDMem) Ready() bool {
	return !d.forceNotReady && len(d.queue) < d.maxInFlight
}

func (d *DefaultDMem) Ordered() bool {
	return len(d.queue) == 0 && len(d.responses) == 0
}

func (d *DefaultDMem) Submit(req *DMemRequest) bool {
	if !d.Ready() {
		return false
	}

	op := &inflightOp{req: *req}

	if d.injectNacks > 0 {
		d.injectNacks--
		op.nacked = true
		d.nacks[req.Tag] = true
	} else if d.injectFault != FaultNone {
		op.faulted = true
		d.faults[req.Tag] = MemFault{Kind: d.injectFault, Store: req.Store, Addr: req.Addr}
		d.injectFault = FaultNone
	} else if req.Addr&((1<<req.SizeLog2)-1) != 0 {
		op.faulted = true
		d.faults[req.Tag] = MemFault{Kind: FaultMisaligned, Store: req.Store, Addr: req.Addr}
	}

	d.queue = append(d.queue, op)
	return true
}

func (d *DefaultDMem) KillS1(tag string) { d.kill(tag) }
func (d *DefaultDMem) KillS2(tag string) { d.kill(tag) }

func (d *DefaultDMem) kill(tag string) {
	delete(d.nacks, tag)
	delete(d.faults, tag)
	for _, op := range d.queue {
		if op.req.Tag == tag {
			op.killed = true
			return
		}
	}
}

// Nacked reports and consumes the nack recorded for tag. A replayed op
// resubmits under a fresh tag, so each tag is queried at most once.
func (d *DefaultDMem) Nacked(tag string) bool {
	nacked := d.nacks[tag]
	delete(d.nacks, tag)
	return nacked
}

// Fault reports and consumes the fault recorded for tag.
func (d *DefaultDMem) Fault(tag string) (MemFault, bool) {
	f, ok := d.faults[tag]
	delete(d.faults, tag)
	return f, ok
}

func (d *DefaultDMem) Tick() {
	if len(d.queue) == 0 {
		return
	}

	head := d.queue[0]
	head.age++

	if head.killed || head.nacked || head.faulted {
		d.queue = d.queue[1:]
		return
	}

	if !head.started {
		// Stores and atomics wait out the kill window before touching
		// memory.
		if (head.req.Store || head.req.Amo) && head.age < storeKillWindow {
			return
		}
		head.started = true
		head.remaining = d.accessLatency(&head.req)
		if head.remaining == 0 {
			head.remaining = 1
		}
	}

	head.remaining--
	if head.remaining > 0 {
		return
	}

	d.complete(head)
	d.queue = d.queue[1:]
}

// accessLatency decides how many cycles the head access takes: the cache
// model when one is attached, flat table latencies otherwise.
func (d *DefaultDMem) accessLatency(req *DMemRequest) uint64 {
	size := 1 << req.SizeLog2
	if d.dcache != nil {
		if req.Store && !req.Amo {
			return d.dcache.Write(req.Addr, size, req.Data).Latency
		}
		return d.dcache.Read(req.Addr, size).Latency
	}
	if req.Store && !req.Amo {
		return d.table.Config().StoreLatency
	}
	return d.table.Config().LoadLatency
}

// complete performs the architectural access and, for loads and AMOs,
// enqueues the writeback response.
func (d *DefaultDMem) complete(op *inflightOp) {
	req := &op.req

	if req.Amo {
		// Atomics read-modify-write the backing memory directly, so any
		// cached copy of the line is stale afterwards.
		if d.dcache != nil {
			d.dcache.Invalidate(req.Addr)
		}
		switch req.Op {
		case insts.OpLRW, insts.OpLRD:
			d.responses = append(d.responses, DMemResponse{
				Tag: req.Tag, Rd: req.Rd,
				Data: d.load(req.Addr, req.SizeLog2, true),
			})
		case insts.OpSCW, insts.OpSCD:
			// Single-hart model: conditional stores always succeed.
			d.store(req.Addr, req.Data, req.SizeLog2)
			d.responses = append(d.responses, DMemResponse{
				Tag: req.Tag, Rd: req.Rd, Data: 0,
			})
		default:
			old := d.load(req.Addr, req.SizeLog2, true)
			newVal := emu.EvalAMO(req.Op, old, req.Data, req.SizeLog2 == 2)
			d.store(req.Addr, newVal, req.SizeLog2)
			d.responses = append(d.responses, DMemResponse{
				Tag: req.Tag, Rd: req.Rd, Data: old,
			})
		}
		return
	}

	if req.Store {
		d.store(req.Addr, req.Data, req.SizeLog2)
		return
	}

	d.responses = append(d.responses, DMemResponse{
		Tag:  req.Tag,
		Rd:   req.Rd,
		FpRd: req.FpRd,
		Data: d.load(req.Addr, req.SizeLog2, req.Signed),
	})
}

func (d *DefaultDMem) load(addr uint64, sizeLog2 uint8, signed bool) uint64 {
	var v uint64
	switch sizeLog2 {
	case 0:
		v = uint64(d.mem.Read8(addr))
		if signed {
			v = uint64(int64(int8(v)))
		}
	case 1:
		v = uint64(d.mem.Read16(addr))
		if signed {
			v = uint64(int64(int16(v)))
		}
	case 2:
		v = uint64(d.mem.Read32(addr))
		if signed {
			v = uint64(int64(int32(v)))
		}
	default:
		v = d.mem.Read64(addr)
	}
	return v
}

func (d *DefaultDMem) store(addr, data uint64, sizeLog2 uint8) {
	switch sizeLog2 {
	case 0:
		d.mem.Write8(addr, uint8(data))
	case 1:
		d.mem.Write16(addr, uint16(data))
	case 2:
		d.mem.Write32(addr, uint32(data))
	default:
		d.mem.Write64(addr, data)
	}
}

func (d *DefaultDMem) ResponseReady() bool { return len(d.responses) > 0 }

func (d *DefaultDMem) PeekResponse() *DMemResponse {
	if len(d.responses) == 0 {
		return nil
	}
	return &d.responses[0]
}

func (d *DefaultDMem) TakeResponse() *DMemResponse {
	if len(d.responses) == 0 {
		return nil
	}
	resp := d.responses[0]
	d.responses = d.responses[1:]
	return &resp
}
