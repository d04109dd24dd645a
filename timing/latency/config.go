package latency

import (
	"encoding/json"
	"fmt"
	"os"
)

// TimingConfig holds latency values for different instruction types.
// Values model a small in-order RV64 core with an iterative divider.
type TimingConfig struct {
	// ALULatency is the execution latency for single-cycle integer
	// operations, including bit-manipulation. Default: 1 cycle.
	ALULatency uint64 `json:"alu_latency"`

	// BranchLatency is the base execution latency for branch instructions.
	// This does not include redirect penalty. Default: 1 cycle.
	BranchLatency uint64 `json:"branch_latency"`

	// BranchMispredictPenalty is the cycles lost when a branch resolved
	// in the memory stage redirects the front end. Default: 3 cycles.
	BranchMispredictPenalty uint64 `json:"branch_mispredict_penalty"`

	// LoadLatency is the latency for load operations assuming L1 cache hit.
	// Default: 3 cycles.
	LoadLatency uint64 `json:"load_latency"`

	// StoreLatency is the latency for store operations. Default: 1 cycle.
	StoreLatency uint64 `json:"store_latency"`

	// MulLatency is the latency of the pipelined integer multiplier.
	// Default: 2 cycles.
	MulLatency uint64 `json:"mul_latency"`

	// DivLatencyMin is the minimum latency of the iterative integer
	// divider. Default: 2 cycles (early out on small dividends).
	DivLatencyMin uint64 `json:"div_latency_min"`

	// DivLatencyMax is the maximum latency of the iterative integer
	// divider. Default: 66 cycles (one bit per cycle plus setup).
	DivLatencyMax uint64 `json:"div_latency_max"`

	// FPLatency is the latency of the pipelined FP add/mul path.
	// Default: 4 cycles.
	FPLatency uint64 `json:"fp_latency"`

	// FDivLatencyMin is the minimum latency of the FP divide/sqrt unit.
	// Default: 10 cycles.
	FDivLatencyMin uint64 `json:"fdiv_latency_min"`

	// FDivLatencyMax is the maximum latency of the FP divide/sqrt unit.
	// Default: 30 cycles.
	FDivLatencyMax uint64 `json:"fdiv_latency_max"`

	// RoCCLatency is the default response latency of an attached
	// coprocessor. Default: 4 cycles.
	RoCCLatency uint64 `json:"rocc_latency"`

	// CSRLatency is the latency of CSR accesses. Default: 1 cycle.
	CSRLatency uint64 `json:"csr_latency"`

	// L1HitLatency is the L1 data cache hit latency. Default: 3 cycles.
	L1HitLatency uint64 `json:"l1_hit_latency"`

	// MemoryLatency is the latency of an access that misses the L1.
	// Default: 40 cycles.
	MemoryLatency uint64 `json:"memory_latency"`
}

// DefaultTimingConfig returns a TimingConfig with default values.
func DefaultTimingConfig() *TimingConfig {
	return &TimingConfig{
		ALULatency:              1,
		BranchLatency:           1,
		BranchMispredictPenalty: 3,
		LoadLatency:             3,
		StoreLatency:            1,
		MulLatency:              2,
		DivLatencyMin:           2,
		DivLatencyMax:           66,
		FPLatency:               4,
		FDivLatencyMin:          10,
		FDivLatencyMax:          30,
		RoCCLatency:             4,
		CSRLatency:              1,
		L1HitLatency:            3,
		MemoryLatency:           40,
	}
}

// LoadConfig loads a TimingConfig from a JSON file.
func LoadConfig(path string) (*TimingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read timing config file: %w", err)
	}

	config := DefaultTimingConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse timing config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid timing config: %w", err)
	}

	return config, nil
}

// SaveConfig writes a TimingConfig to a JSON file.
func (c *TimingConfig) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize timing config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write timing config file: %w", err)
	}

	return nil
}

// Validate checks that all latency values are valid (> 0).
func (c *TimingConfig) Validate() error {
	if c.ALULatency == 0 {
		return fmt.Errorf("alu_latency must be > 0")
	}
	if c.BranchLatency == 0 {
		return fmt.Errorf("branch_latency must be > 0")
	}
	if c.LoadLatency == 0 {
		return fmt.Errorf("load_latency must be > 0")
	}
	if c.StoreLatency == 0 {
		return fmt.Errorf("store_latency must be > 0")
	}
	if c.MulLatency == 0 {
		return fmt.Errorf("mul_latency must be > 0")
	}
	if c.DivLatencyMin == 0 {
		return fmt.Errorf("div_latency_min must be > 0")
	}
	if c.DivLatencyMin > c.DivLatencyMax {
		return fmt.Errorf("div_latency_min must be <= div_latency_max")
	}
	if c.FPLatency == 0 {
		return fmt.Errorf("fp_latency must be > 0")
	}
	if c.FDivLatencyMin == 0 {
		return fmt.Errorf("fdiv_latency_min must be > 0")
	}
	if c.FDivLatencyMin > c.FDivLatencyMax {
		return fmt.Errorf("fdiv_latency_min must be <= fdiv_latency_max")
	}
	return nil
}

// Clone returns a deep copy of the TimingConfig.
func (c *TimingConfig) Clone() *TimingConfig {
	clone := *c
	return &clone
}
