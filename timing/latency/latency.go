// Package latency provides instruction timing models for cycle-accurate
// simulation. Values can be configured via TimingConfig.
package latency

import (
	"math/bits"

	"github.com/sarchlab/rvsim/insts"
)

// Table provides instruction latency lookups.
type Table struct {
	config *TimingConfig
}

// NewTable creates a new latency table with default timing values.
func NewTable() *Table {
	return &Table{
		config: DefaultTimingConfig(),
	}
}

// NewTableWithConfig creates a new latency table with custom timing configuration.
func NewTableWithConfig(config *TimingConfig) *Table {
	return &Table{
		config: config,
	}
}

// GetLatency returns the execution latency in cycles for the given instruction.
// For variable-latency operations, returns the typical/expected latency.
func (t *Table) GetLatency(inst *insts.Instruction) uint64 {
	if inst == nil {
		return 1
	}

	switch inst.Class {
	case insts.ClassALU, insts.ClassBitManip:
		return t.config.ALULatency

	case insts.ClassBranch, insts.ClassJAL, insts.ClassJALR:
		return t.config.BranchLatency

	case insts.ClassLoad, insts.ClassFPLoad:
		return t.config.LoadLatency

	case insts.ClassStore, insts.ClassFPStore:
		return t.config.StoreLatency

	case insts.ClassAMO:
		return t.config.LoadLatency + t.config.StoreLatency

	case insts.ClassMul:
		return t.config.MulLatency

	case insts.ClassDiv:
		return (t.config.DivLatencyMin + t.config.DivLatencyMax) / 2

	case insts.ClassFP:
		return t.config.FPLatency

	case insts.ClassFDiv:
		return (t.config.FDivLatencyMin + t.config.FDivLatencyMax) / 2

	case insts.ClassCSR:
		return t.config.CSRLatency

	case insts.ClassRoCC:
		return t.config.RoCCLatency

	default:
		return 1
	}
}

// GetMinLatency returns the minimum execution latency for variable-latency
// operations.
func (t *Table) GetMinLatency(inst *insts.Instruction) uint64 {
	if inst == nil {
		return 1
	}

	switch inst.Class {
	case insts.ClassDiv:
		return t.config.DivLatencyMin
	case insts.ClassFDiv:
		return t.config.FDivLatencyMin
	}
	return t.GetLatency(inst)
}

// GetMaxLatency returns the maximum execution latency for variable-latency
// operations.
func (t *Table) GetMaxLatency(inst *insts.Instruction) uint64 {
	if inst == nil {
		return 1
	}

	switch inst.Class {
	case insts.ClassDiv:
		return t.config.DivLatencyMax
	case insts.ClassFDiv:
		return t.config.FDivLatencyMax
	}
	return t.GetLatency(inst)
}

// DivLatency returns the operand-dependent latency of the iterative
// divider: one cycle per significant dividend bit, clamped to the
// configured range.
func (t *Table) DivLatency(dividend uint64) uint64 {
	cycles := t.config.DivLatencyMin + uint64(64-bits.LeadingZeros64(dividend))
	if cycles > t.config.DivLatencyMax {
		cycles = t.config.DivLatencyMax
	}
	return cycles
}

// IsMemoryOp returns true if the instruction accesses memory.
func (t *Table) IsMemoryOp(inst *insts.Instruction) bool {
	if inst == nil {
		return false
	}
	return inst.IsMem()
}

// IsLongLatencyOp returns true if the instruction writes back through the
// long-latency port rather than the in-pipeline writeback lanes.
func (t *Table) IsLongLatencyOp(inst *insts.Instruction) bool {
	if inst == nil {
		return false
	}
	return inst.LongLatency()
}

// IsBranchOp returns true if the instruction changes control flow.
func (t *Table) IsBranchOp(inst *insts.Instruction) bool {
	if inst == nil {
		return false
	}
	return inst.IsCFI()
}

// Config returns the current timing configuration.
func (t *Table) Config() *TimingConfig {
	return t.config
}
