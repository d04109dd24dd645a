package insts_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvsim/insts"
)

var _ = Describe("Decoder", func() {
	var decoder *insts.Decoder

	BeforeEach(func() {
		decoder = insts.NewDecoder()
	})

	Describe("register-register ops", func() {
		It("should decode ADD", func() {
			inst := decoder.Decode(insts.ADD(3, 1, 2))

			Expect(inst.Op).To(Equal(insts.OpADD))
			Expect(inst.Class).To(Equal(insts.ClassALU))
			Expect(inst.Rd).To(Equal(uint8(3)))
			Expect(inst.Rs1).To(Equal(uint8(1)))
			Expect(inst.Rs2).To(Equal(uint8(2)))
			Expect(inst.HasRd).To(BeTrue())
			Expect(inst.HasRs1).To(BeTrue())
			Expect(inst.HasRs2).To(BeTrue())
		})

		It("should decode SUB via funct7", func() {
			inst := decoder.Decode(insts.SUB(5, 6, 7))

			Expect(inst.Op).To(Equal(insts.OpSUB))
			Expect(inst.Is32).To(BeFalse())
		})

		It("should decode ADDW as a 32-bit op", func() {
			inst := decoder.Decode(insts.EncodeR(0x3B, 3, 0, 1, 2, 0))

			Expect(inst.Op).To(Equal(insts.OpADDW))
			Expect(inst.Is32).To(BeTrue())
		})
	})

	Describe("immediates", func() {
		It("should sign-extend I-type immediates", func() {
			inst := decoder.Decode(insts.ADDI(1, 2, -5))

			Expect(inst.Op).To(Equal(insts.OpADDI))
			Expect(inst.Imm).To(Equal(int64(-5)))
		})

		It("should decode U-type immediates into the high bits", func() {
			inst := decoder.Decode(insts.LUI(1, 0xDEAD0000))

			Expect(inst.Op).To(Equal(insts.OpLUI))
			Expect(inst.Imm).To(Equal(int64(-0x21530000)))
		})

		It("should decode negative branch offsets", func() {
			inst := decoder.Decode(insts.BEQ(1, 2, -8))

			Expect(inst.Op).To(Equal(insts.OpBEQ))
			Expect(inst.Imm).To(Equal(int64(-8)))
		})

		It("should decode J-type offsets", func() {
			inst := decoder.Decode(insts.JAL(1, 2048))

			Expect(inst.Op).To(Equal(insts.OpJAL))
			Expect(inst.Imm).To(Equal(int64(2048)))
			Expect(inst.HasRd).To(BeTrue())
		})
	})

	Describe("memory ops", func() {
		It("should decode LD with size and sign", func() {
			inst := decoder.Decode(insts.LD(3, 2, 16))

			Expect(inst.Op).To(Equal(insts.OpLD))
			Expect(inst.Class).To(Equal(insts.ClassLoad))
			Expect(inst.MemSizeLog2).To(Equal(uint8(3)))
			Expect(inst.MemSigned).To(BeTrue())
			Expect(inst.Imm).To(Equal(int64(16)))
			Expect(inst.IsMem()).To(BeTrue())
		})

		It("should decode SW as a store with the S-type immediate", func() {
			inst := decoder.Decode(insts.SW(2, 3, -4))

			Expect(inst.Op).To(Equal(insts.OpSW))
			Expect(inst.Class).To(Equal(insts.ClassStore))
			Expect(inst.MemWrite).To(BeTrue())
			Expect(inst.HasRd).To(BeFalse())
			Expect(inst.Imm).To(Equal(int64(-4)))
		})

		It("should decode AMOADD.D with ordering requirements", func() {
			inst := decoder.Decode(insts.EncodeR(0x2F, 3, 3, 1, 2, 0))

			Expect(inst.Op).To(Equal(insts.OpAMOADDD))
			Expect(inst.Class).To(Equal(insts.ClassAMO))
			Expect(inst.NeedsOrdering()).To(BeTrue())
			Expect(inst.Pipe0Only()).To(BeTrue())
		})
	})

	Describe("control flow", func() {
		It("should classify branches, JAL and JALR as CFIs", func() {
			Expect(decoder.Decode(insts.BNE(1, 2, 16)).IsCFI()).To(BeTrue())
			Expect(decoder.Decode(insts.JAL(0, 32)).IsCFI()).To(BeTrue())
			Expect(decoder.Decode(insts.JALR(0, 1, 0)).IsCFI()).To(BeTrue())
			Expect(decoder.Decode(insts.ADD(1, 2, 3)).IsCFI()).To(BeFalse())
		})
	})

	Describe("system and CSR ops", func() {
		It("should decode CSRRW with the CSR address", func() {
			inst := decoder.Decode(insts.CSRRW(1, 0x305, 2))

			Expect(inst.Op).To(Equal(insts.OpCSRRW))
			Expect(inst.Class).To(Equal(insts.ClassCSR))
			Expect(inst.CSR).To(Equal(uint16(0x305)))
			Expect(inst.Pipe0Only()).To(BeTrue())
		})

		It("should decode ECALL and MRET exactly", func() {
			Expect(decoder.Decode(insts.ECALL()).Op).To(Equal(insts.OpECALL))
			Expect(decoder.Decode(insts.MRET()).Op).To(Equal(insts.OpMRET))
		})

		It("should decode FENCE regardless of the ordering bits", func() {
			inst := decoder.Decode(insts.FENCE())

			Expect(inst.Op).To(Equal(insts.OpFENCE))
			Expect(inst.NeedsOrdering()).To(BeTrue())
		})
	})

	Describe("extension gating", func() {
		It("should decode MUL when M is enabled", func() {
			inst := decoder.Decode(insts.MUL(3, 1, 2))

			Expect(inst.Op).To(Equal(insts.OpMUL))
			Expect(inst.Class).To(Equal(insts.ClassMul))
		})

		It("should reject MUL when M is disabled", func() {
			d := insts.NewDecoderWithFeatures(insts.Features{})
			inst := d.Decode(insts.MUL(3, 1, 2))

			Expect(inst.Op).To(Equal(insts.OpUnknown))
			Expect(inst.Class).To(Equal(insts.ClassIllegal))
		})

		It("should decode Zbb ops when enabled", func() {
			inst := decoder.Decode(insts.EncodeR(0x33, 3, 7, 1, 2, 0x20))

			Expect(inst.Op).To(Equal(insts.OpANDN))
			Expect(inst.Class).To(Equal(insts.ClassBitManip))
		})

		It("should decode unary Zbb ops via the rs2 field", func() {
			clz := decoder.Decode(0x60001013 | 1<<15 | 3<<7)

			Expect(clz.Op).To(Equal(insts.OpCLZ))
			Expect(clz.HasRs2).To(BeFalse())
		})

		It("should only decode custom opcodes when RoCC is enabled", func() {
			word := uint32(0x0B) | 7<<12 | 1<<15 | 2<<20 | 3<<7

			plain := decoder.Decode(word)
			Expect(plain.Class).To(Equal(insts.ClassIllegal))

			d := insts.NewDecoderWithFeatures(insts.Features{RoCC: true})
			inst := d.Decode(word)
			Expect(inst.Op).To(Equal(insts.OpCUSTOM0))
			Expect(inst.HasRd).To(BeTrue())
			Expect(inst.HasRs1).To(BeTrue())
			Expect(inst.HasRs2).To(BeTrue())
		})
	})

	Describe("floating point front end", func() {
		It("should decode FLD addressing the FP destination file", func() {
			inst := decoder.Decode(insts.EncodeI(0x07, 1, 3, 2, 24))

			Expect(inst.Op).To(Equal(insts.OpFLD))
			Expect(inst.FpRd).To(BeTrue())
			Expect(inst.HasRd).To(BeFalse())
			Expect(inst.HasRs1).To(BeTrue())
		})

		It("should decode FDIV.D as a long-latency op with a rounding mode", func() {
			inst := decoder.Decode(0x1A000053 | 7<<12 | 1<<15 | 2<<20 | 3<<7)

			Expect(inst.Op).To(Equal(insts.OpFDIVD))
			Expect(inst.Class).To(Equal(insts.ClassFDiv))
			Expect(inst.RoundMode).To(Equal(uint8(7)))
			Expect(inst.LongLatency()).To(BeTrue())
		})
	})

	It("should decode garbage to an illegal instruction", func() {
		inst := decoder.Decode(0xFFFFFFFF)

		Expect(inst.Op).To(Equal(insts.OpUnknown))
		Expect(inst.Class).To(Equal(insts.ClassIllegal))
	})
})
