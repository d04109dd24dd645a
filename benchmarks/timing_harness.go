// Package benchmarks provides timing benchmark infrastructure for pipeline
// calibration.
package benchmarks

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sarchlab/rvsim/emu"
	"github.com/sarchlab/rvsim/timing/cache"
	"github.com/sarchlab/rvsim/timing/pipeline"
)

// BenchmarkResult holds the timing results for a single benchmark run.
type BenchmarkResult struct {
	// Name identifies the benchmark
	Name string `json:"name"`

	// Description explains what the benchmark measures
	Description string `json:"description"`

	// Cycles is the total cycle count from the timing simulator
	Cycles uint64 `json:"cycles"`

	// Instructions is the number of committed instructions
	Instructions uint64 `json:"instructions"`

	// CPI is cycles per instruction
	CPI float64 `json:"cpi"`

	// DataHazardStalls counts cycles lost to unforwardable operands
	DataHazardStalls uint64 `json:"data_hazard_stalls"`

	// StructuralStalls counts cycles lost to busy execution resources
	StructuralStalls uint64 `json:"structural_stalls"`

	// MemPortStalls counts lanes held back by the single memory port
	MemPortStalls uint64 `json:"mem_port_stalls"`

	// OrderedStalls counts cycles spent draining for fences and atomics
	OrderedStalls uint64 `json:"ordered_stalls"`

	// Flushes is the total number of pipeline flushes from all causes
	Flushes uint64 `json:"flushes"`

	// Mispredictions is the number of mispredicted control transfers
	Mispredictions uint64 `json:"mispredictions"`

	// Replays is the number of instructions re-issued after a transient
	// condition
	Replays uint64 `json:"replays"`

	// Exceptions is the number of architectural traps taken
	Exceptions uint64 `json:"exceptions"`

	// DCacheHits/Misses (if the data cache is enabled)
	DCacheHits   uint64 `json:"dcache_hits,omitempty"`
	DCacheMisses uint64 `json:"dcache_misses,omitempty"`

	// ExitCode is the program's exit code
	ExitCode int64 `json:"exit_code"`

	// WallTime is the actual time taken to run the simulation
	WallTime time.Duration `json:"wall_time_ns"`
}

// Benchmark defines a single benchmark program.
type Benchmark struct {
	// Name identifies the benchmark
	Name string

	// Description explains what the benchmark measures
	Description string

	// Setup prepares the machine state (e.g., initialize registers, memory)
	Setup func(regFile *emu.RegFile, memory *emu.Memory)

	// Program is the RV64 machine code to execute
	Program []uint32

	// ExpectedExit is the expected exit code (for validation)
	ExpectedExit int64
}

// HarnessConfig configures the benchmark harness.
type HarnessConfig struct {
	// Width is the issue width of the simulated pipeline
	Width int

	// DisableMemALUForward turns off the memory-stage ALU fast path
	DisableMemALUForward bool

	// EnableDCache models an L1 data cache instead of flat memory latency
	EnableDCache bool

	// Output is where to write results (default: os.Stdout)
	Output io.Writer

	// Verbose enables detailed output
	Verbose bool
}

// DefaultConfig returns a default harness configuration.
func DefaultConfig() HarnessConfig {
	return HarnessConfig{
		Width:  2,
		Output: os.Stdout,
	}
}

// Harness runs timing benchmarks and reports results.
type Harness struct {
	config     HarnessConfig
	benchmarks []Benchmark
}

// NewHarness creates a new benchmark harness.
func NewHarness(config HarnessConfig) *Harness {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	if config.Width < 1 {
		config.Width = 2
	}
	return &Harness{
		config:     config,
		benchmarks: []Benchmark{},
	}
}

// AddBenchmark adds a benchmark to the harness.
func (h *Harness) AddBenchmark(b Benchmark) {
	h.benchmarks = append(h.benchmarks, b)
}

// AddBenchmarks adds multiple benchmarks to the harness.
func (h *Harness) AddBenchmarks(benchmarks []Benchmark) {
	h.benchmarks = append(h.benchmarks, benchmarks...)
}

// RunAll executes all benchmarks and returns results.
func (h *Harness) RunAll() []BenchmarkResult {
	results := make([]BenchmarkResult, 0, len(h.benchmarks))

	for _, bench := range h.benchmarks {
		results = append(results, h.runBenchmark(bench))
	}

	return results
}

// benchProgramAddr is where benchmark programs are installed in memory.
const benchProgramAddr = uint64(0x1000)

// runBenchmark executes a single benchmark.
func (h *Harness) runBenchmark(bench Benchmark) BenchmarkResult {
	regFile := &emu.RegFile{}
	memory := emu.NewMemory()

	// Give the program a usable stack.
	regFile.WriteReg(2, 0x10000)

	if bench.Setup != nil {
		bench.Setup(regFile, memory)
	}

	for i, word := range bench.Program {
		memory.Write32(benchProgramAddr+uint64(i)*4, word)
	}

	opts := []pipeline.Option{
		pipeline.WithIssueWidth(h.config.Width),
	}
	if h.config.DisableMemALUForward {
		opts = append(opts, pipeline.WithMemALUForward(false))
	}
	if h.config.EnableDCache {
		opts = append(opts, pipeline.WithDataCache(cache.DefaultL1DConfig()))
	}

	pipe := pipeline.New(regFile, memory, opts...)
	pipe.SetPC(benchProgramAddr)

	start := time.Now()
	exitCode := pipe.Run()
	wallTime := time.Since(start)

	stats := pipe.Stats()
	result := BenchmarkResult{
		Name:             bench.Name,
		Description:      bench.Description,
		Cycles:           stats.Cycles,
		Instructions:     stats.Retired,
		CPI:              stats.CPI(),
		DataHazardStalls: stats.DataHazardStalls,
		StructuralStalls: stats.StructuralStalls,
		MemPortStalls:    stats.MemPortStalls,
		OrderedStalls:    stats.OrderedStalls,
		Flushes: stats.FlushesMispredict + stats.FlushesReplay +
			stats.FlushesException + stats.FlushesCSR,
		Mispredictions: stats.Mispredictions,
		Replays:        stats.Replays,
		Exceptions:     stats.Exceptions,
		ExitCode:       exitCode,
		WallTime:       wallTime,
	}

	if dm, ok := pipe.DMem().(*pipeline.DefaultDMem); ok {
		if cacheStats, attached := dm.CacheStats(); attached {
			result.DCacheHits = cacheStats.Hits
			result.DCacheMisses = cacheStats.Misses
		}
	}

	return result
}

// PrintResults outputs benchmark results in a human-readable format.
func (h *Harness) PrintResults(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output, "=== rvsim Timing Benchmark Results ===")
	_, _ = fmt.Fprintln(h.config.Output, "")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "Benchmark: %s\n", r.Name)
		_, _ = fmt.Fprintf(h.config.Output, "  Description: %s\n", r.Description)
		_, _ = fmt.Fprintf(h.config.Output, "  Exit Code: %d\n", r.ExitCode)
		_, _ = fmt.Fprintln(h.config.Output, "  --- Timing ---")
		_, _ = fmt.Fprintf(h.config.Output, "  Cycles:             %d\n", r.Cycles)
		_, _ = fmt.Fprintf(h.config.Output, "  Instructions:       %d\n", r.Instructions)
		_, _ = fmt.Fprintf(h.config.Output, "  CPI:                %.3f\n", r.CPI)
		_, _ = fmt.Fprintf(h.config.Output, "  Data Hazard Stalls: %d\n", r.DataHazardStalls)
		_, _ = fmt.Fprintf(h.config.Output, "  Structural Stalls:  %d\n", r.StructuralStalls)
		_, _ = fmt.Fprintf(h.config.Output, "  Mem Port Stalls:    %d\n", r.MemPortStalls)
		_, _ = fmt.Fprintf(h.config.Output, "  Ordered Stalls:     %d\n", r.OrderedStalls)
		_, _ = fmt.Fprintf(h.config.Output, "  Flushes:            %d\n", r.Flushes)

		if r.Mispredictions > 0 {
			_, _ = fmt.Fprintf(h.config.Output, "  Mispredictions:     %d\n", r.Mispredictions)
		}
		if r.Replays > 0 {
			_, _ = fmt.Fprintf(h.config.Output, "  Replays:            %d\n", r.Replays)
		}
		if r.Exceptions > 0 {
			_, _ = fmt.Fprintf(h.config.Output, "  Exceptions:         %d\n", r.Exceptions)
		}

		if r.DCacheHits > 0 || r.DCacheMisses > 0 {
			_, _ = fmt.Fprintln(h.config.Output, "  --- D-Cache ---")
			_, _ = fmt.Fprintf(h.config.Output, "  Hits:   %d\n", r.DCacheHits)
			_, _ = fmt.Fprintf(h.config.Output, "  Misses: %d\n", r.DCacheMisses)
		}

		_, _ = fmt.Fprintf(h.config.Output, "  Wall Time: %v\n", r.WallTime)
		_, _ = fmt.Fprintln(h.config.Output, "")
	}
}

// PrintCSV outputs benchmark results in CSV format for easy comparison.
func (h *Harness) PrintCSV(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output,
		"name,cycles,instructions,cpi,data_hazard_stalls,structural_stalls,mem_port_stalls,ordered_stalls,flushes,mispredictions,replays,exceptions,exit_code")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "%s,%d,%d,%.3f,%d,%d,%d,%d,%d,%d,%d,%d,%d\n",
			r.Name,
			r.Cycles,
			r.Instructions,
			r.CPI,
			r.DataHazardStalls,
			r.StructuralStalls,
			r.MemPortStalls,
			r.OrderedStalls,
			r.Flushes,
			r.Mispredictions,
			r.Replays,
			r.Exceptions,
			r.ExitCode,
		)
	}
}

// WriteJSON writes benchmark results as indented JSON.
func (h *Harness) WriteJSON(results []BenchmarkResult) error {
	enc := json.NewEncoder(h.config.Output)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}
