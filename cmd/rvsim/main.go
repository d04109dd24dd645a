// Package main provides the rvsim command line interface.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sarchlab/rvsim/emu"
	"github.com/sarchlab/rvsim/loader"
	"github.com/sarchlab/rvsim/timing/cache"
	"github.com/sarchlab/rvsim/timing/core"
	"github.com/sarchlab/rvsim/timing/latency"
	"github.com/sarchlab/rvsim/timing/pipeline"
)

var (
	flagWidth      int
	flagConfig     string
	flagMaxCycles  uint64
	flagMaxInsts   uint64
	flagTrace      bool
	flagVerbose    bool
	flagNoMemALUFw bool
	flagDCache     bool
)

func main() {
	root := &cobra.Command{
		Use:   "rvsim",
		Short: "Cycle-accurate RV64 in-order pipeline simulator",
	}
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false,
		"verbose output")

	runCmd := &cobra.Command{
		Use:   "run <program.elf>",
		Short: "Run a program on the timing model",
		Args:  cobra.ExactArgs(1),
		RunE:  runTiming,
	}
	runCmd.Flags().IntVarP(&flagWidth, "width", "w", 2,
		"issue width of the pipeline")
	runCmd.Flags().StringVarP(&flagConfig, "config", "c", "",
		"path to a timing configuration JSON file")
	runCmd.Flags().Uint64Var(&flagMaxCycles, "max-cycles", 0,
		"stop after this many cycles (0 = unlimited)")
	runCmd.Flags().BoolVar(&flagTrace, "trace", false,
		"print every committed instruction")
	runCmd.Flags().BoolVar(&flagNoMemALUFw, "no-memalu-forward", false,
		"disable the memory-stage ALU fast path")
	runCmd.Flags().BoolVar(&flagDCache, "dcache", false,
		"model an L1 data cache instead of flat memory latency")

	emuCmd := &cobra.Command{
		Use:   "emu <program.elf>",
		Short: "Run a program on the functional interpreter",
		Args:  cobra.ExactArgs(1),
		RunE:  runEmulation,
	}
	emuCmd.Flags().Uint64Var(&flagMaxInsts, "max-insts", 0,
		"stop after this many instructions (0 = unlimited)")

	root.AddCommand(runCmd, emuCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func loadInto(path string, memory *emu.Memory) (*loader.Program, error) {
	prog, err := loader.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	prog.Install(memory)

	if flagVerbose {
		fmt.Printf("Loaded: %s\n", path)
		fmt.Printf("Entry point: 0x%X\n", prog.EntryPoint)
		fmt.Printf("Segments: %d\n", len(prog.Segments))
	}
	return prog, nil
}

func runTiming(cmd *cobra.Command, args []string) error {
	memory := emu.NewMemory()
	prog, err := loadInto(args[0], memory)
	if err != nil {
		return err
	}

	table := latency.NewTable()
	if flagConfig != "" {
		cfg, err := latency.LoadConfig(flagConfig)
		if err != nil {
			return fmt.Errorf("loading timing config: %w", err)
		}
		table = latency.NewTableWithConfig(cfg)
	}

	opts := []pipeline.Option{
		pipeline.WithIssueWidth(flagWidth),
		pipeline.WithLatencyTable(table),
	}
	if flagNoMemALUFw {
		opts = append(opts, pipeline.WithMemALUForward(false))
	}
	if flagDCache {
		opts = append(opts, pipeline.WithDataCache(cache.DefaultL1DConfig()))
	}
	if flagTrace {
		opts = append(opts, pipeline.WithCommitTrace(func(ev pipeline.CommitEvent) {
			if ev.Wrote {
				fmt.Printf("%10d  %08x  %-8s x%d=%#x\n",
					ev.Cycle, ev.PC, ev.Inst.Op, ev.Rd, ev.Value)
			} else {
				fmt.Printf("%10d  %08x  %s\n", ev.Cycle, ev.PC, ev.Inst.Op)
			}
		}))
	}

	regFile := &emu.RegFile{}
	c := core.NewCore(regFile, memory, opts...)
	c.Load(prog)

	if flagMaxCycles > 0 {
		c.RunCycles(flagMaxCycles)
		if !c.Halted() {
			return fmt.Errorf("did not halt within %d cycles", flagMaxCycles)
		}
	} else {
		c.Run()
	}

	stats := c.Stats()
	fmt.Printf("Exit code: %d\n", c.ExitCode())
	fmt.Printf("Cycles: %d\n", stats.Cycles)
	fmt.Printf("Instructions: %d\n", stats.Instructions)
	fmt.Printf("CPI: %.3f\n", stats.CPI())
	if flagVerbose {
		fmt.Printf("Stalls: %d\n", stats.Stalls)
		fmt.Printf("Flushes: %d\n", stats.Flushes)
		fmt.Printf("Mispredictions: %d\n", stats.Mispredictions)
	}

	os.Exit(int(c.ExitCode()))
	return nil
}

func runEmulation(cmd *cobra.Command, args []string) error {
	memory := emu.NewMemory()
	prog, err := loadInto(args[0], memory)
	if err != nil {
		return err
	}

	e := emu.NewEmulator(
		emu.WithMemory(memory),
		emu.WithEntryPC(prog.EntryPoint),
	)
	e.RegFile.WriteReg(2, prog.InitialSP)

	max := flagMaxInsts
	if max == 0 {
		max = ^uint64(0)
	}
	if err := e.Run(max); err != nil {
		return err
	}

	exitCode := int(e.RegFile.ReadReg(10))
	if flagVerbose {
		fmt.Printf("Instructions: %d\n", e.InstCount())
	}
	fmt.Printf("Exit code: %d\n", exitCode)

	os.Exit(exitCode)
	return nil
}
