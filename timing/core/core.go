// Package core provides the cycle-accurate CPU core model. It wraps the
// pipeline with program loading and a high-level run interface.
package core

import (
	"github.com/sarchlab/rvsim/emu"
	"github.com/sarchlab/rvsim/loader"
	"github.com/sarchlab/rvsim/timing/pipeline"
)

// Stats holds aggregated performance statistics for the core.
type Stats struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64
	// Instructions is the number of instructions retired.
	Instructions uint64
	// Stalls is the total number of stall events across all causes.
	Stalls uint64
	// Flushes is the total number of pipeline flushes across all causes.
	Flushes uint64
	// Mispredictions is the number of mispredicted control-flow ops.
	Mispredictions uint64
}

// CPI returns the cycles per retired instruction.
func (s Stats) CPI() float64 {
	if s.Instructions == 0 {
		return 0
	}
	return float64(s.Cycles) / float64(s.Instructions)
}

// Core is one cycle-accurate CPU core.
type Core struct {
	// Pipeline is the underlying multi-wide in-order pipeline.
	Pipeline *pipeline.Pipeline

	regFile *emu.RegFile
	memory  *emu.Memory
}

// NewCore creates a core around the given register file and memory.
// Pipeline options pass through, so callers can pick the issue width or
// swap collaborators.
func NewCore(regFile *emu.RegFile, memory *emu.Memory, opts ...pipeline.Option) *Core {
	return &Core{
		Pipeline: pipeline.New(regFile, memory, opts...),
		regFile:  regFile,
		memory:   memory,
	}
}

// Load installs a loaded ELF program into the core's memory and points
// fetch at its entry.
func (c *Core) Load(prog *loader.Program) {
	prog.Install(c.memory)
	c.regFile.WriteReg(2, prog.InitialSP)
	c.SetPC(prog.EntryPoint)
}

// SetPC redirects fetch to the given address.
func (c *Core) SetPC(pc uint64) {
	c.Pipeline.SetPC(pc)
}

// Tick executes one pipeline cycle.
func (c *Core) Tick() {
	c.Pipeline.Tick()
}

// Halted reports whether the core has stopped at an unhandled trap.
func (c *Core) Halted() bool {
	return c.Pipeline.Halted()
}

// ExitCode returns the exit code once the core has halted.
func (c *Core) ExitCode() int64 {
	return c.Pipeline.ExitCode()
}

// Stats returns aggregated performance statistics.
func (c *Core) Stats() Stats {
	ps := c.Pipeline.Stats()
	return Stats{
		Cycles:       ps.Cycles,
		Instructions: ps.Retired,
		Stalls: ps.DataHazardStalls + ps.StructuralStalls +
			ps.MemPortStalls + ps.Pipe0Stalls +
			ps.OrderedStalls + ps.InOrderStalls,
		Flushes: ps.FlushesMispredict + ps.FlushesReplay +
			ps.FlushesException + ps.FlushesCSR,
		Mispredictions: ps.Mispredictions,
	}
}

// Run executes until the core halts. Returns the exit code.
func (c *Core) Run() int64 {
	return c.Pipeline.Run()
}

// RunCycles executes at most the given number of cycles. Returns true if
// still running.
func (c *Core) RunCycles(cycles uint64) bool {
	return c.Pipeline.RunCycles(cycles)
}

// Reset clears in-flight pipeline state and statistics.
func (c *Core) Reset() {
	c.Pipeline.Reset()
}
