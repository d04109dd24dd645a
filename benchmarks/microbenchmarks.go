package benchmarks

import (
	"github.com/sarchlab/rvsim/emu"
	"github.com/sarchlab/rvsim/insts"
)

// GetMicrobenchmarks returns the standard set of microbenchmarks for
// pipeline calibration. Each benchmark targets a specific CPU
// characteristic. Programs exit by placing a code in a0 and executing
// ECALL with no trap handler installed.
func GetMicrobenchmarks() []Benchmark {
	return []Benchmark{
		arithmeticSequential(),
		dependencyChain(),
		loadUseChain(),
		branchLoop(),
		functionCalls(),
		mulDivMix(),
		matrixMultiply2x2(),
	}
}

// GetCoreBenchmarks returns a minimal set of benchmarks for quick
// validation: a loop, a small matrix multiply, and call-heavy code.
func GetCoreBenchmarks() []Benchmark {
	return []Benchmark{
		branchLoop(),
		matrixMultiply2x2(),
		functionCalls(),
	}
}

// arithmeticSequential measures best-case throughput on independent
// integer operations.
func arithmeticSequential() Benchmark {
	program := make([]uint32, 0, 18)
	for rd := uint32(5); rd <= 20; rd++ {
		program = append(program, insts.ADDI(rd, 0, int32(rd)))
	}
	program = append(program,
		insts.ADDI(10, 0, 0),
		insts.ECALL(),
	)
	return Benchmark{
		Name:         "arithmetic_sequential",
		Description:  "Independent integer adds, no hazards",
		Program:      program,
		ExpectedExit: 0,
	}
}

// dependencyChain measures the forwarding network on a serial chain of
// dependent adds.
func dependencyChain() Benchmark {
	program := []uint32{
		insts.ADDI(5, 0, 0),
		insts.ADDI(6, 0, 0),
	}
	// Ping-pong between two registers so each add consumes the previous
	// result without stacking writes on a single destination.
	for i := 0; i < 8; i++ {
		program = append(program,
			insts.ADDI(6, 5, 1),
			insts.ADDI(5, 6, 1),
		)
	}
	program = append(program,
		insts.ADDI(10, 5, -16), // 0 when the chain completed
		insts.ECALL(),
	)
	return Benchmark{
		Name:         "dependency_chain",
		Description:  "Serial chain of dependent adds",
		Program:      program,
		ExpectedExit: 0,
	}
}

// loadUseChain measures load-to-use latency through store/load pairs.
func loadUseChain() Benchmark {
	program := []uint32{
		insts.LUI(6, 0x2000), // x6 = 0x2000
		insts.ADDI(5, 0, 42),
		insts.SD(6, 5, 0),
		insts.LD(7, 6, 0),
		insts.ADDI(8, 7, 1),
		insts.SD(6, 8, 8),
		insts.LD(9, 6, 8),
		insts.ADDI(10, 9, -43), // 0 when both round trips landed
		insts.ECALL(),
	}
	return Benchmark{
		Name:         "load_use_chain",
		Description:  "Store/load pairs with immediate use of the loaded value",
		Program:      program,
		ExpectedExit: 0,
	}
}

// branchLoop measures branch prediction on a countdown loop that sums
// 10..1 into an accumulator.
func branchLoop() Benchmark {
	program := []uint32{
		insts.ADDI(5, 0, 10),
		insts.ADDI(6, 0, 0),
		insts.ADD(6, 6, 5), // loop:
		insts.ADDI(5, 5, -1),
		insts.BNE(5, 0, -8),
		insts.ADDI(10, 6, -55), // 0 when sum == 55
		insts.ECALL(),
	}
	return Benchmark{
		Name:         "branch_loop",
		Description:  "Countdown loop exercising the branch predictor",
		Program:      program,
		ExpectedExit: 0,
	}
}

// functionCalls measures call/return overhead through the return address
// stack with three calls to a leaf.
func functionCalls() Benchmark {
	program := []uint32{
		insts.ADDI(5, 0, 0),
		insts.JAL(1, 20), // call leaf
		insts.JAL(1, 16), // call leaf
		insts.JAL(1, 12), // call leaf
		insts.ADDI(10, 5, -3),
		insts.ECALL(),
		insts.ADDI(5, 5, 1), // leaf:
		insts.JALR(0, 1, 0),
	}
	return Benchmark{
		Name:         "function_calls",
		Description:  "Repeated calls to a leaf, exercising the return address stack",
		Program:      program,
		ExpectedExit: 0,
	}
}

// mulDivMix measures long-latency execution, with back-to-back divides
// contending for the single divider.
func mulDivMix() Benchmark {
	program := []uint32{
		insts.ADDI(5, 0, 7),
		insts.ADDI(6, 0, 9),
		insts.MUL(7, 5, 6), // 63
		insts.DIV(8, 7, 5), // 9
		insts.DIV(9, 7, 6), // 7, contends with the previous divide
		insts.XOR(12, 9, 9),
		insts.SUB(10, 8, 6), // 0 when 63/7 == 9
		insts.ADD(10, 10, 12),
		insts.ECALL(),
	}
	return Benchmark{
		Name:         "mul_div_mix",
		Description:  "Multiplies and back-to-back divides through the scoreboard",
		Program:      program,
		ExpectedExit: 0,
	}
}

// matrixMultiply2x2 computes one element of a 2x2 matrix product from
// operands staged in memory.
func matrixMultiply2x2() Benchmark {
	return Benchmark{
		Name:        "matmul_2x2",
		Description: "Unrolled 2x2 matrix multiply element with memory traffic",
		Setup: func(regFile *emu.RegFile, memory *emu.Memory) {
			a := []uint64{1, 2, 3, 4}
			b := []uint64{5, 6, 7, 8}
			for i, v := range a {
				memory.Write64(0x2000+uint64(i)*8, v)
			}
			for i, v := range b {
				memory.Write64(0x2020+uint64(i)*8, v)
			}
		},
		Program: []uint32{
			insts.LUI(6, 0x2000),  // x6 = 0x2000
			insts.LD(8, 6, 16),    // a10 = 3
			insts.LD(9, 6, 24),    // a11 = 4
			insts.LD(12, 6, 40),   // b01 = 6
			insts.LD(14, 6, 56),   // b11 = 8
			insts.MUL(15, 8, 12),  // a10*b01 = 18
			insts.MUL(16, 9, 14),  // a11*b11 = 32
			insts.ADD(17, 15, 16), // c11 = 50
			insts.SD(6, 17, 64),
			insts.LD(18, 6, 64),
			insts.ADDI(10, 18, -50),
			insts.ECALL(),
		},
		ExpectedExit: 0,
	}
}
