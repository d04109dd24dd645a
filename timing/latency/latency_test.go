package latency_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvsim/insts"
	"github.com/sarchlab/rvsim/timing/latency"
)

var _ = Describe("Latency", func() {
	var (
		table   *latency.Table
		decoder *insts.Decoder
	)

	BeforeEach(func() {
		table = latency.NewTable()
		decoder = insts.NewDecoder()
	})

	Describe("Default Timing Values", func() {
		It("should have correct ALU latency", func() {
			config := table.Config()
			Expect(config.ALULatency).To(Equal(uint64(1)))
		})

		It("should have correct branch latency", func() {
			config := table.Config()
			Expect(config.BranchLatency).To(Equal(uint64(1)))
		})

		It("should have correct load latency", func() {
			config := table.Config()
			Expect(config.LoadLatency).To(Equal(uint64(3)))
		})

		It("should have correct store latency", func() {
			config := table.Config()
			Expect(config.StoreLatency).To(Equal(uint64(1)))
		})

		It("should have correct branch misprediction penalty", func() {
			config := table.Config()
			Expect(config.BranchMispredictPenalty).To(Equal(uint64(3)))
		})
	})

	Describe("ALU Instruction Latencies", func() {
		It("should return 1 cycle for ADDI", func() {
			inst := decoder.Decode(insts.ADDI(1, 2, 42))
			Expect(table.GetLatency(inst)).To(Equal(uint64(1)))
		})

		It("should return 1 cycle for ADD register", func() {
			inst := decoder.Decode(insts.ADD(1, 2, 3))
			Expect(table.GetLatency(inst)).To(Equal(uint64(1)))
		})

		It("should return 1 cycle for AND register", func() {
			inst := decoder.Decode(insts.AND(1, 2, 3))
			Expect(table.GetLatency(inst)).To(Equal(uint64(1)))
		})

		It("should return 1 cycle for LUI", func() {
			inst := decoder.Decode(insts.LUI(1, 0x12345))
			Expect(table.GetLatency(inst)).To(Equal(uint64(1)))
		})
	})

	Describe("Multiply and Divide Latencies", func() {
		It("should return MulLatency for MUL", func() {
			inst := decoder.Decode(insts.MUL(1, 2, 3))
			Expect(inst.Op).To(Equal(insts.OpMUL))
			Expect(table.GetLatency(inst)).To(Equal(uint64(2)))
		})

		It("should return the configured range for DIV", func() {
			inst := decoder.Decode(insts.DIV(1, 2, 3))
			Expect(inst.Op).To(Equal(insts.OpDIV))
			Expect(table.GetMinLatency(inst)).To(Equal(uint64(2)))
			Expect(table.GetMaxLatency(inst)).To(Equal(uint64(66)))
		})

		It("should scale divide latency with dividend width", func() {
			short := table.DivLatency(3)
			long := table.DivLatency(1 << 60)
			Expect(short).To(BeNumerically("<", long))
			Expect(long).To(BeNumerically("<=", table.Config().DivLatencyMax))
		})
	})

	Describe("Branch Instruction Latencies", func() {
		It("should return 1 cycle for BEQ", func() {
			inst := decoder.Decode(insts.BEQ(1, 2, 16))
			Expect(table.GetLatency(inst)).To(Equal(uint64(1)))
		})

		It("should return 1 cycle for JAL", func() {
			inst := decoder.Decode(insts.JAL(1, 16))
			Expect(table.GetLatency(inst)).To(Equal(uint64(1)))
		})

		It("should return 1 cycle for JALR", func() {
			inst := decoder.Decode(insts.JALR(0, 1, 0))
			Expect(table.GetLatency(inst)).To(Equal(uint64(1)))
		})
	})

	Describe("Memory Instruction Latencies", func() {
		It("should return 3 cycles for LD (L1 hit)", func() {
			inst := decoder.Decode(insts.LD(1, 2, 8))
			Expect(table.GetLatency(inst)).To(Equal(uint64(3)))
		})

		It("should return 1 cycle for SD", func() {
			inst := decoder.Decode(insts.SD(2, 1, 8))
			Expect(table.GetLatency(inst)).To(Equal(uint64(1)))
		})
	})

	Describe("Instruction Type Detection", func() {
		It("should detect memory operations", func() {
			ld := decoder.Decode(insts.LD(1, 2, 0))
			sd := decoder.Decode(insts.SD(2, 1, 0))
			add := decoder.Decode(insts.ADD(1, 2, 3))

			Expect(table.IsMemoryOp(ld)).To(BeTrue())
			Expect(table.IsMemoryOp(sd)).To(BeTrue())
			Expect(table.IsMemoryOp(add)).To(BeFalse())
		})

		It("should detect long-latency operations", func() {
			ld := decoder.Decode(insts.LD(1, 2, 0))
			div := decoder.Decode(insts.DIV(1, 2, 3))
			mul := decoder.Decode(insts.MUL(1, 2, 3))

			Expect(table.IsLongLatencyOp(ld)).To(BeTrue())
			Expect(table.IsLongLatencyOp(div)).To(BeTrue())
			Expect(table.IsLongLatencyOp(mul)).To(BeFalse())
		})

		It("should detect branch operations", func() {
			beq := decoder.Decode(insts.BEQ(1, 2, 16))
			jal := decoder.Decode(insts.JAL(1, 16))
			jalr := decoder.Decode(insts.JALR(0, 1, 0))
			add := decoder.Decode(insts.ADD(1, 2, 3))

			Expect(table.IsBranchOp(beq)).To(BeTrue())
			Expect(table.IsBranchOp(jal)).To(BeTrue())
			Expect(table.IsBranchOp(jalr)).To(BeTrue())
			Expect(table.IsBranchOp(add)).To(BeFalse())
		})
	})

	Describe("Nil Instruction Handling", func() {
		It("should return 1 for nil instruction", func() {
			Expect(table.GetLatency(nil)).To(Equal(uint64(1)))
		})

		It("should return false for nil instruction type checks", func() {
			Expect(table.IsMemoryOp(nil)).To(BeFalse())
			Expect(table.IsLongLatencyOp(nil)).To(BeFalse())
			Expect(table.IsBranchOp(nil)).To(BeFalse())
		})
	})

	Describe("Custom Configuration", func() {
		It("should use custom config values", func() {
			config := latency.DefaultTimingConfig()
			config.ALULatency = 2
			config.BranchLatency = 3
			config.LoadLatency = 8
			customTable := latency.NewTableWithConfig(config)

			add := decoder.Decode(insts.ADD(1, 2, 3))
			ld := decoder.Decode(insts.LD(1, 2, 0))
			beq := decoder.Decode(insts.BEQ(1, 2, 16))

			Expect(customTable.GetLatency(add)).To(Equal(uint64(2)))
			Expect(customTable.GetLatency(ld)).To(Equal(uint64(8)))
			Expect(customTable.GetLatency(beq)).To(Equal(uint64(3)))
		})
	})
})

var _ = Describe("TimingConfig", func() {
	Describe("Default Config", func() {
		It("should create valid default config", func() {
			config := latency.DefaultTimingConfig()
			Expect(config.Validate()).To(Succeed())
		})
	})

	Describe("Validation", func() {
		It("should reject zero ALU latency", func() {
			config := latency.DefaultTimingConfig()
			config.ALULatency = 0
			Expect(config.Validate()).To(HaveOccurred())
		})

		It("should reject zero branch latency", func() {
			config := latency.DefaultTimingConfig()
			config.BranchLatency = 0
			Expect(config.Validate()).To(HaveOccurred())
		})

		It("should reject zero load latency", func() {
			config := latency.DefaultTimingConfig()
			config.LoadLatency = 0
			Expect(config.Validate()).To(HaveOccurred())
		})

		It("should reject zero multiply latency", func() {
			config := latency.DefaultTimingConfig()
			config.MulLatency = 0
			Expect(config.Validate()).To(HaveOccurred())
		})

		It("should reject zero minimum divide latency", func() {
			config := latency.DefaultTimingConfig()
			config.DivLatencyMin = 0
			Expect(config.Validate()).To(HaveOccurred())
		})

		It("should reject zero FP latency", func() {
			config := latency.DefaultTimingConfig()
			config.FPLatency = 0
			Expect(config.Validate()).To(HaveOccurred())
		})

		It("should reject zero minimum FP divide latency", func() {
			config := latency.DefaultTimingConfig()
			config.FDivLatencyMin = 0
			Expect(config.Validate()).To(HaveOccurred())
		})

		It("should reject inverted divide latency range", func() {
			config := latency.DefaultTimingConfig()
			config.DivLatencyMin = 20
			config.DivLatencyMax = 10
			Expect(config.Validate()).To(HaveOccurred())
		})

		It("should reject inverted FP divide latency range", func() {
			config := latency.DefaultTimingConfig()
			config.FDivLatencyMin = 40
			config.FDivLatencyMax = 10
			Expect(config.Validate()).To(HaveOccurred())
		})
	})

	Describe("Clone", func() {
		It("should create independent copy", func() {
			original := latency.DefaultTimingConfig()
			clone := original.Clone()

			clone.ALULatency = 100

			Expect(original.ALULatency).To(Equal(uint64(1)))
			Expect(clone.ALULatency).To(Equal(uint64(100)))
		})
	})

	Describe("File Operations", func() {
		var tempDir string

		BeforeEach(func() {
			var err error
			tempDir, err = os.MkdirTemp("", "latency-test")
			Expect(err).NotTo(HaveOccurred())
		})

		AfterEach(func() {
			_ = os.RemoveAll(tempDir)
		})

		It("should save and load config", func() {
			original := latency.DefaultTimingConfig()
			original.ALULatency = 5
			original.LoadLatency = 10

			path := filepath.Join(tempDir, "timing.json")
			Expect(original.SaveConfig(path)).To(Succeed())

			loaded, err := latency.LoadConfig(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.ALULatency).To(Equal(uint64(5)))
			Expect(loaded.LoadLatency).To(Equal(uint64(10)))
		})

		It("should return error for non-existent file", func() {
			_, err := latency.LoadConfig("/nonexistent/path/timing.json")
			Expect(err).To(HaveOccurred())
		})

		It("should return error for invalid JSON", func() {
			path := filepath.Join(tempDir, "invalid.json")
			err := os.WriteFile(path, []byte("not valid json"), 0644)
			Expect(err).NotTo(HaveOccurred())

			_, err = latency.LoadConfig(path)
			Expect(err).To(HaveOccurred())
		})

		It("should reject a config with a zero iterative latency", func() {
			path := filepath.Join(tempDir, "zero-div.json")
			err := os.WriteFile(path, []byte(`{"div_latency_min": 0}`), 0644)
			Expect(err).NotTo(HaveOccurred())

			_, err = latency.LoadConfig(path)
			Expect(err).To(MatchError(ContainSubstring("div_latency_min")))
		})
	})
})
