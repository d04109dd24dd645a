package emu_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvsim/emu"
	"github.com/sarchlab/rvsim/insts"
)

var _ = Describe("Emulator", func() {
	var e *emu.Emulator

	BeforeEach(func() {
		e = emu.NewEmulator(emu.WithEntryPC(0x1000))
	})

	loadProgram := func(words ...uint32) {
		for i, w := range words {
			e.Memory.Write32(0x1000+uint64(i)*4, w)
		}
	}

	It("should execute register arithmetic", func() {
		e.RegFile.WriteReg(1, 7)
		e.RegFile.WriteReg(2, 5)
		loadProgram(
			insts.ADD(3, 1, 2),
			insts.SUB(4, 1, 2),
			insts.MUL(5, 1, 2),
		)

		Expect(e.Run(3)).To(Succeed())

		Expect(e.RegFile.ReadReg(3)).To(Equal(uint64(12)))
		Expect(e.RegFile.ReadReg(4)).To(Equal(uint64(2)))
		Expect(e.RegFile.ReadReg(5)).To(Equal(uint64(35)))
		Expect(e.RegFile.PC).To(Equal(uint64(0x100c)))
	})

	It("should keep x0 hardwired to zero", func() {
		loadProgram(insts.ADDI(0, 0, 42))

		Expect(e.Step()).To(Succeed())

		Expect(e.RegFile.ReadReg(0)).To(Equal(uint64(0)))
	})

	It("should sign-extend negative immediates", func() {
		loadProgram(insts.ADDI(1, 0, -1))

		Expect(e.Step()).To(Succeed())

		Expect(e.RegFile.ReadReg(1)).To(Equal(^uint64(0)))
	})

	It("should follow RISC-V divide-by-zero semantics", func() {
		e.RegFile.WriteReg(1, 9)
		loadProgram(insts.DIV(2, 1, 0))

		Expect(e.Step()).To(Succeed())

		Expect(e.RegFile.ReadReg(2)).To(Equal(^uint64(0)))
	})

	It("should load what it stores", func() {
		e.RegFile.WriteReg(1, 0x2000)
		e.RegFile.WriteReg(2, 0xDEADBEEFCAFE)
		loadProgram(
			insts.SD(1, 2, 8),
			insts.LD(3, 1, 8),
		)

		Expect(e.Run(2)).To(Succeed())

		Expect(e.RegFile.ReadReg(3)).To(Equal(uint64(0xDEADBEEFCAFE)))
	})

	It("should NaN-box a single-precision load", func() {
		e.RegFile.WriteReg(1, 0x2000)
		e.Memory.Write32(0x2000, math.Float32bits(1.5))
		loadProgram(insts.FLW(2, 1, 0))

		Expect(e.Step()).To(Succeed())

		want := ^uint64(0xFFFFFFFF) | uint64(math.Float32bits(1.5))
		Expect(e.RegFile.ReadFReg(2)).To(Equal(want))
	})

	It("should sign-extend a word load", func() {
		e.RegFile.WriteReg(1, 0x2000)
		e.Memory.Write32(0x2000, 0xFFFF_FFFE)
		loadProgram(insts.LW(2, 1, 0))

		Expect(e.Step()).To(Succeed())

		Expect(e.RegFile.ReadReg(2)).To(Equal(uint64(0xFFFFFFFFFFFFFFFE)))
	})

	It("should take a backward branch until the counter expires", func() {
		// x1 counts down from 3; x2 accumulates iterations.
		e.RegFile.WriteReg(1, 3)
		loadProgram(
			insts.ADDI(2, 2, 1),
			insts.ADDI(1, 1, -1),
			insts.BNE(1, 0, -8),
			insts.ECALL(),
		)

		Expect(e.Run(100)).To(Succeed())

		Expect(e.Halted()).To(BeTrue())
		Expect(e.RegFile.ReadReg(2)).To(Equal(uint64(3)))
	})

	It("should link and jump through JAL and JALR", func() {
		loadProgram(
			insts.JAL(1, 8),     // 0x1000: skip one slot, x1 = 0x1004
			insts.ECALL(),       // 0x1004: skipped
			insts.JALR(2, 1, 0), // 0x1008: back to 0x1004, x2 = 0x100c
		)

		Expect(e.Run(2)).To(Succeed())

		Expect(e.RegFile.ReadReg(1)).To(Equal(uint64(0x1004)))
		Expect(e.RegFile.ReadReg(2)).To(Equal(uint64(0x100c)))
		Expect(e.RegFile.PC).To(Equal(uint64(0x1004)))
	})

	It("should swap through CSRRW", func() {
		e.WriteCSR(0x340, 0x1111)
		e.RegFile.WriteReg(1, 0x2222)
		loadProgram(insts.CSRRW(2, 0x340, 1))

		Expect(e.Step()).To(Succeed())

		Expect(e.RegFile.ReadReg(2)).To(Equal(uint64(0x1111)))
		Expect(e.ReadCSR(0x340)).To(Equal(uint64(0x2222)))
	})

	It("should return to mepc on MRET", func() {
		e.WriteCSR(0x341, 0x3000)
		loadProgram(insts.MRET())

		Expect(e.Step()).To(Succeed())

		Expect(e.RegFile.PC).To(Equal(uint64(0x3000)))
	})

	It("should stop at ECALL without advancing the PC", func() {
		loadProgram(insts.ECALL())

		Expect(e.Run(10)).To(Succeed())

		Expect(e.Halted()).To(BeTrue())
		Expect(e.RegFile.PC).To(Equal(uint64(0x1000)))
		Expect(e.InstCount()).To(Equal(uint64(1)))
	})

	It("should report an illegal instruction", func() {
		loadProgram(0xFFFFFFFF)

		Expect(e.Step()).To(HaveOccurred())
	})

	It("should count retired instructions in instret", func() {
		loadProgram(insts.NOP(), insts.NOP(), insts.NOP())

		Expect(e.Run(3)).To(Succeed())

		Expect(e.ReadCSR(0xC02)).To(Equal(uint64(3)))
	})
})

var _ = Describe("Memory", func() {
	It("should read zero from untouched locations", func() {
		m := emu.NewMemory()

		Expect(m.Read64(0x8000)).To(Equal(uint64(0)))
	})

	It("should handle accesses that straddle a page boundary", func() {
		m := emu.NewMemory()
		m.Write64(0xFFC, 0x0102030405060708)

		Expect(m.Read64(0xFFC)).To(Equal(uint64(0x0102030405060708)))
		Expect(m.Read8(0x1000)).To(Equal(uint8(0x05)))
	})
})
