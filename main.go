// Package main provides the entry point for rvsim.
// rvsim is a cycle-accurate RV64 in-order pipeline simulator.
//
// For the full CLI, use: go run ./cmd/rvsim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("rvsim - RV64 In-Order Pipeline Simulator")
	fmt.Println("")
	fmt.Println("Usage: rvsim <command> [options] <program.elf>")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  run        Run a program on the timing model")
	fmt.Println("  emu        Run a program on the functional interpreter")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/rvsim' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/rvsim' instead.")
	}
}
