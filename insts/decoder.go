package insts

// Features selects the ISA extensions the decoder accepts. Anything outside
// the enabled set decodes to an illegal instruction.
type Features struct {
	// M enables integer multiply/divide.
	M bool
	// Zbb enables the bit-manipulation base subset.
	Zbb bool
	// FD enables the floating-point load/store/arithmetic front end.
	FD bool
	// A enables the atomic subset.
	A bool
	// RoCC enables the custom-0/1 coprocessor opcodes.
	RoCC bool
}

// DefaultFeatures returns the default feature set (RV64IMFD + Zbb + A).
func DefaultFeatures() Features {
	return Features{M: true, Zbb: true, FD: true, A: true}
}

// format selects how operand fields are extracted from the raw word.
type format uint8

const (
	fmtR format = iota
	fmtI
	fmtIShift // RV64 shift-immediate (6-bit shamt)
	fmtUnary  // rd, rs1 only (Zbb count/extend ops)
	fmtS
	fmtB
	fmtU
	fmtJ
	fmtNone // no operand fields (system ops, fences)
	fmtCSR
	fmtCSRI
	fmtLoad
	fmtStore
	fmtAMO
	fmtFPLoad
	fmtFPStore
	fmtFPR
	fmtFPUnary // fsqrt: fp rd, fp rs1
	fmtFMVXD   // int rd, fp rs1
	fmtFMVDX   // fp rd, int rs1
	fmtRoCC
)

// rule is one mask/match decode entry.
type rule struct {
	mask  uint32
	match uint32
	op    Op
	class Class
	fmt   format

	is32      bool
	memSize   uint8 // log2 bytes
	memSigned bool
}

// baseRules covers RV64I plus Zicsr and the privileged returns.
var baseRules = []rule{
	{0x0000007F, 0x37, OpLUI, ClassALU, fmtU, false, 0, false},
	{0x0000007F, 0x17, OpAUIPC, ClassALU, fmtU, false, 0, false},
	{0x0000007F, 0x6F, OpJAL, ClassJAL, fmtJ, false, 0, false},
	{0x0000707F, 0x67, OpJALR, ClassJALR, fmtI, false, 0, false},

	{0x0000707F, 0x0063, OpBEQ, ClassBranch, fmtB, false, 0, false},
	{0x0000707F, 0x1063, OpBNE, ClassBranch, fmtB, false, 0, false},
	{0x0000707F, 0x4063, OpBLT, ClassBranch, fmtB, false, 0, false},
	{0x0000707F, 0x5063, OpBGE, ClassBranch, fmtB, false, 0, false},
	{0x0000707F, 0x6063, OpBLTU, ClassBranch, fmtB, false, 0, false},
	{0x0000707F, 0x7063, OpBGEU, ClassBranch, fmtB, false, 0, false},

	{0x0000707F, 0x0003, OpLB, ClassLoad, fmtLoad, false, 0, true},
	{0x0000707F, 0x1003, OpLH, ClassLoad, fmtLoad, false, 1, true},
	{0x0000707F, 0x2003, OpLW, ClassLoad, fmtLoad, false, 2, true},
	{0x0000707F, 0x3003, OpLD, ClassLoad, fmtLoad, false, 3, true},
	{0x0000707F, 0x4003, OpLBU, ClassLoad, fmtLoad, false, 0, false},
	{0x0000707F, 0x5003, OpLHU, ClassLoad, fmtLoad, false, 1, false},
	{0x0000707F, 0x6003, OpLWU, ClassLoad, fmtLoad, false, 2, false},

	{0x0000707F, 0x0023, OpSB, ClassStore, fmtStore, false, 0, false},
	{0x0000707F, 0x1023, OpSH, ClassStore, fmtStore, false, 1, false},
	{0x0000707F, 0x2023, OpSW, ClassStore, fmtStore, false, 2, false},
	{0x0000707F, 0x3023, OpSD, ClassStore, fmtStore, false, 3, false},

	{0x0000707F, 0x0013, OpADDI, ClassALU, fmtI, false, 0, false},
	{0x0000707F, 0x2013, OpSLTI, ClassALU, fmtI, false, 0, false},
	{0x0000707F, 0x3013, OpSLTIU, ClassALU, fmtI, false, 0, false},
	{0x0000707F, 0x4013, OpXORI, ClassALU, fmtI, false, 0, false},
	{0x0000707F, 0x6013, OpORI, ClassALU, fmtI, false, 0, false},
	{0x0000707F, 0x7013, OpANDI, ClassALU, fmtI, false, 0, false},
	{0xFC00707F, 0x00001013, OpSLLI, ClassALU, fmtIShift, false, 0, false},
	{0xFC00707F, 0x00005013, OpSRLI, ClassALU, fmtIShift, false, 0, false},
	{0xFC00707F, 0x40005013, OpSRAI, ClassALU, fmtIShift, false, 0, false},

	{0xFE00707F, 0x00000033, OpADD, ClassALU, fmtR, false, 0, false},
	{0xFE00707F, 0x40000033, OpSUB, ClassALU, fmtR, false, 0, false},
	{0xFE00707F, 0x00001033, OpSLL, ClassALU, fmtR, false, 0, false},
	{0xFE00707F, 0x00002033, OpSLT, ClassALU, fmtR, false, 0, false},
	{0xFE00707F, 0x00003033, OpSLTU, ClassALU, fmtR, false, 0, false},
	{0xFE00707F, 0x00004033, OpXOR, ClassALU, fmtR, false, 0, false},
	{0xFE00707F, 0x00005033, OpSRL, ClassALU, fmtR, false, 0, false},
	{0xFE00707F, 0x40005033, OpSRA, ClassALU, fmtR, false, 0, false},
	{0xFE00707F, 0x00006033, OpOR, ClassALU, fmtR, false, 0, false},
	{0xFE00707F, 0x00007033, OpAND, ClassALU, fmtR, false, 0, false},

	{0x0000707F, 0x001B, OpADDIW, ClassALU, fmtI, true, 0, false},
	{0xFE00707F, 0x0000101B, OpSLLIW, ClassALU, fmtIShift, true, 0, false},
	{0xFE00707F, 0x0000501B, OpSRLIW, ClassALU, fmtIShift, true, 0, false},
	{0xFE00707F, 0x4000501B, OpSRAIW, ClassALU, fmtIShift, true, 0, false},
	{0xFE00707F, 0x0000003B, OpADDW, ClassALU, fmtR, true, 0, false},
	{0xFE00707F, 0x4000003B, OpSUBW, ClassALU, fmtR, true, 0, false},
	{0xFE00707F, 0x0000103B, OpSLLW, ClassALU, fmtR, true, 0, false},
	{0xFE00707F, 0x0000503B, OpSRLW, ClassALU, fmtR, true, 0, false},
	{0xFE00707F, 0x4000503B, OpSRAW, ClassALU, fmtR, true, 0, false},

	{0x0000707F, 0x000F, OpFENCE, ClassFence, fmtNone, false, 0, false},
	{0x0000707F, 0x100F, OpFENCEI, ClassFence, fmtNone, false, 0, false},

	{0xFFFFFFFF, 0x00000073, OpECALL, ClassSystem, fmtNone, false, 0, false},
	{0xFFFFFFFF, 0x00100073, OpEBREAK, ClassSystem, fmtNone, false, 0, false},
	{0xFFFFFFFF, 0x30200073, OpMRET, ClassSystem, fmtNone, false, 0, false},
	{0xFFFFFFFF, 0x10500073, OpWFI, ClassSystem, fmtNone, false, 0, false},

	{0x0000707F, 0x1073, OpCSRRW, ClassCSR, fmtCSR, false, 0, false},
	{0x0000707F, 0x2073, OpCSRRS, ClassCSR, fmtCSR, false, 0, false},
	{0x0000707F, 0x3073, OpCSRRC, ClassCSR, fmtCSR, false, 0, false},
	{0x0000707F, 0x5073, OpCSRRWI, ClassCSR, fmtCSRI, false, 0, false},
	{0x0000707F, 0x6073, OpCSRRSI, ClassCSR, fmtCSRI, false, 0, false},
	{0x0000707F, 0x7073, OpCSRRCI, ClassCSR, fmtCSRI, false, 0, false},
}

// mulRules covers the M extension.
var mulRules = []rule{
	{0xFE00707F, 0x02000033, OpMUL, ClassMul, fmtR, false, 0, false},
	{0xFE00707F, 0x02001033, OpMULH, ClassMul, fmtR, false, 0, false},
	{0xFE00707F, 0x02002033, OpMULHSU, ClassMul, fmtR, false, 0, false},
	{0xFE00707F, 0x02003033, OpMULHU, ClassMul, fmtR, false, 0, false},
	{0xFE00707F, 0x02004033, OpDIV, ClassDiv, fmtR, false, 0, false},
	{0xFE00707F, 0x02005033, OpDIVU, ClassDiv, fmtR, false, 0, false},
	{0xFE00707F, 0x02006033, OpREM, ClassDiv, fmtR, false, 0, false},
	{0xFE00707F, 0x02007033, OpREMU, ClassDiv, fmtR, false, 0, false},
	{0xFE00707F, 0x0200003B, OpMULW, ClassMul, fmtR, true, 0, false},
	{0xFE00707F, 0x0200403B, OpDIVW, ClassDiv, fmtR, true, 0, false},
	{0xFE00707F, 0x0200503B, OpDIVUW, ClassDiv, fmtR, true, 0, false},
	{0xFE00707F, 0x0200603B, OpREMW, ClassDiv, fmtR, true, 0, false},
	{0xFE00707F, 0x0200703B, OpREMUW, ClassDiv, fmtR, true, 0, false},
}

// zbbRules covers the bit-manipulation subset.
var zbbRules = []rule{
	{0xFE00707F, 0x40007033, OpANDN, ClassBitManip, fmtR, false, 0, false},
	{0xFE00707F, 0x40006033, OpORN, ClassBitManip, fmtR, false, 0, false},
	{0xFE00707F, 0x40004033, OpXNOR, ClassBitManip, fmtR, false, 0, false},
	{0xFFF0707F, 0x60001013, OpCLZ, ClassBitManip, fmtUnary, false, 0, false},
	{0xFFF0707F, 0x60101013, OpCTZ, ClassBitManip, fmtUnary, false, 0, false},
	{0xFFF0707F, 0x60201013, OpCPOP, ClassBitManip, fmtUnary, false, 0, false},
	{0xFE00707F, 0x0A004033, OpMIN, ClassBitManip, fmtR, false, 0, false},
	{0xFE00707F, 0x0A005033, OpMINU, ClassBitManip, fmtR, false, 0, false},
	{0xFE00707F, 0x0A006033, OpMAX, ClassBitManip, fmtR, false, 0, false},
	{0xFE00707F, 0x0A007033, OpMAXU, ClassBitManip, fmtR, false, 0, false},
	{0xFFF0707F, 0x60401013, OpSEXTB, ClassBitManip, fmtUnary, false, 0, false},
	{0xFFF0707F, 0x60501013, OpSEXTH, ClassBitManip, fmtUnary, false, 0, false},
	{0xFFF0707F, 0x0800403B, OpZEXTH, ClassBitManip, fmtUnary, false, 0, false},
	{0xFE00707F, 0x60001033, OpROL, ClassBitManip, fmtR, false, 0, false},
	{0xFE00707F, 0x60005033, OpROR, ClassBitManip, fmtR, false, 0, false},
	{0xFC00707F, 0x60005013, OpRORI, ClassBitManip, fmtIShift, false, 0, false},
}

// amoRules covers the atomic subset. The aq/rl bits are ignored by the mask;
// ordering is enforced structurally by the issue rules, not per access.
var amoRules = []rule{
	{0xF800707F, 0x1000202F, OpLRW, ClassAMO, fmtAMO, true, 2, true},
	{0xF800707F, 0x1000302F, OpLRD, ClassAMO, fmtAMO, false, 3, true},
	{0xF800707F, 0x1800202F, OpSCW, ClassAMO, fmtAMO, true, 2, true},
	{0xF800707F, 0x1800302F, OpSCD, ClassAMO, fmtAMO, false, 3, true},
	{0xF800707F, 0x0800202F, OpAMOSWAPW, ClassAMO, fmtAMO, true, 2, true},
	{0xF800707F, 0x0800302F, OpAMOSWAPD, ClassAMO, fmtAMO, false, 3, true},
	{0xF800707F, 0x0000202F, OpAMOADDW, ClassAMO, fmtAMO, true, 2, true},
	{0xF800707F, 0x0000302F, OpAMOADDD, ClassAMO, fmtAMO, false, 3, true},
}

// fpRules covers the F/D front end classification.
var fpRules = []rule{
	{0x0000707F, 0x2007, OpFLW, ClassFPLoad, fmtFPLoad, false, 2, false},
	{0x0000707F, 0x3007, OpFLD, ClassFPLoad, fmtFPLoad, false, 3, false},
	{0x0000707F, 0x2027, OpFSW, ClassFPStore, fmtFPStore, false, 2, false},
	{0x0000707F, 0x3027, OpFSD, ClassFPStore, fmtFPStore, false, 3, false},
	{0xFE00007F, 0x02000053, OpFADDD, ClassFP, fmtFPR, false, 0, false},
	{0xFE00007F, 0x0A000053, OpFSUBD, ClassFP, fmtFPR, false, 0, false},
	{0xFE00007F, 0x12000053, OpFMULD, ClassFP, fmtFPR, false, 0, false},
	{0xFE00007F, 0x1A000053, OpFDIVD, ClassFDiv, fmtFPR, false, 0, false},
	{0xFFF0007F, 0x5A000053, OpFSQRTD, ClassFDiv, fmtFPUnary, false, 0, false},
	{0xFFF0707F, 0xE2000053, OpFMVXD, ClassFP, fmtFMVXD, false, 0, false},
	{0xFFF0707F, 0xF2000053, OpFMVDX, ClassFP, fmtFMVDX, false, 0, false},
}

// roccRules covers the custom coprocessor opcodes. The funct fields are
// opaque to this core; the coprocessor interprets the raw word.
var roccRules = []rule{
	{0x0000007F, 0x0B, OpCUSTOM0, ClassRoCC, fmtRoCC, false, 0, false},
	{0x0000007F, 0x2B, OpCUSTOM1, ClassRoCC, fmtRoCC, false, 0, false},
}

// Decoder decodes RV64 machine code into instructions.
type Decoder struct {
	// byOpcode indexes the composed rule list by the low 7 opcode bits.
	byOpcode [128][]rule
}

// NewDecoder creates a decoder with the default feature set.
func NewDecoder() *Decoder {
	return NewDecoderWithFeatures(DefaultFeatures())
}

// NewDecoderWithFeatures creates a decoder accepting only the enabled
// extensions.
func NewDecoderWithFeatures(f Features) *Decoder {
	d := &Decoder{}
	d.install(baseRules)
	if f.M {
		d.install(mulRules)
	}
	if f.Zbb {
		d.install(zbbRules)
	}
	if f.A {
		d.install(amoRules)
	}
	if f.FD {
		d.install(fpRules)
	}
	if f.RoCC {
		d.install(roccRules)
	}
	return d
}

func (d *Decoder) install(rules []rule) {
	for _, r := range rules {
		op7 := r.match & 0x7F
		d.byOpcode[op7] = append(d.byOpcode[op7], r)
	}
}

// Decode decodes a 32-bit RV64 instruction word. Unrecognized words decode
// to ClassIllegal with OpUnknown; illegality is reported by the pipeline,
// not here.
func (d *Decoder) Decode(word uint32) *Instruction {
	inst := &Instruction{Op: OpUnknown, Class: ClassIllegal, Raw: word}

	for _, r := range d.byOpcode[word&0x7F] {
		if word&r.mask == r.match {
			inst.Op = r.op
			inst.Class = r.class
			inst.Is32 = r.is32
			inst.MemSizeLog2 = r.memSize
			inst.MemSigned = r.memSigned
			d.fillOperands(word, r.fmt, inst)
			return inst
		}
	}

	return inst
}

// Field extraction helpers. Register fields sit at fixed positions in every
// format; immediates differ per format.

func rdField(w uint32) uint8  { return uint8((w >> 7) & 0x1F) }
func rs1Field(w uint32) uint8 { return uint8((w >> 15) & 0x1F) }
func rs2Field(w uint32) uint8 { return uint8((w >> 20) & 0x1F) }

func immI(w uint32) int64 { return int64(int32(w)) >> 20 }

func immS(w uint32) int64 {
	return (int64(int32(w))>>25)<<5 | int64((w>>7)&0x1F)
}

func immB(w uint32) int64 {
	imm := (int64(int32(w))>>31)<<12 |
		int64((w>>7)&0x1)<<11 |
		int64((w>>25)&0x3F)<<5 |
		int64((w>>8)&0xF)<<1
	return imm
}

func immU(w uint32) int64 { return int64(int32(w & 0xFFFFF000)) }

func immJ(w uint32) int64 {
	imm := (int64(int32(w))>>31)<<20 |
		int64((w>>12)&0xFF)<<12 |
		int64((w>>20)&0x1)<<11 |
		int64((w>>21)&0x3FF)<<1
	return imm
}

//nolint:gocyclo // one arm per encoding format
func (d *Decoder) fillOperands(word uint32, f format, inst *Instruction) {
	switch f {
	case fmtR:
		inst.Rd, inst.Rs1, inst.Rs2 = rdField(word), rs1Field(word), rs2Field(word)
		inst.HasRd, inst.HasRs1, inst.HasRs2 = true, true, true

	case fmtI:
		inst.Rd, inst.Rs1 = rdField(word), rs1Field(word)
		inst.HasRd, inst.HasRs1 = true, true
		inst.Imm = immI(word)

	case fmtIShift:
		inst.Rd, inst.Rs1 = rdField(word), rs1Field(word)
		inst.HasRd, inst.HasRs1 = true, true
		inst.Imm = int64((word >> 20) & 0x3F)

	case fmtUnary:
		inst.Rd, inst.Rs1 = rdField(word), rs1Field(word)
		inst.HasRd, inst.HasRs1 = true, true

	case fmtS:
		inst.Rs1, inst.Rs2 = rs1Field(word), rs2Field(word)
		inst.HasRs1, inst.HasRs2 = true, true
		inst.Imm = immS(word)

	case fmtB:
		inst.Rs1, inst.Rs2 = rs1Field(word), rs2Field(word)
		inst.HasRs1, inst.HasRs2 = true, true
		inst.Imm = immB(word)

	case fmtU:
		inst.Rd = rdField(word)
		inst.HasRd = true
		inst.Imm = immU(word)

	case fmtJ:
		inst.Rd = rdField(word)
		inst.HasRd = true
		inst.Imm = immJ(word)

	case fmtNone:
		// No operand fields.

	case fmtCSR:
		inst.Rd, inst.Rs1 = rdField(word), rs1Field(word)
		inst.HasRd, inst.HasRs1 = true, true
		inst.CSR = uint16(word >> 20)

	case fmtCSRI:
		inst.Rd = rdField(word)
		inst.HasRd = true
		// The rs1 field is a zero-extended 5-bit immediate.
		inst.Imm = int64(rs1Field(word))
		inst.CSR = uint16(word >> 20)

	case fmtLoad:
		inst.Rd, inst.Rs1 = rdField(word), rs1Field(word)
		inst.HasRd, inst.HasRs1 = true, true
		inst.Imm = immI(word)

	case fmtStore:
		inst.Rs1, inst.Rs2 = rs1Field(word), rs2Field(word)
		inst.HasRs1, inst.HasRs2 = true, true
		inst.Imm = immS(word)
		inst.MemWrite = true

	case fmtAMO:
		inst.Rd, inst.Rs1, inst.Rs2 = rdField(word), rs1Field(word), rs2Field(word)
		inst.HasRd, inst.HasRs1, inst.HasRs2 = true, true, true
		inst.MemWrite = inst.Op != OpLRW && inst.Op != OpLRD

	case fmtFPLoad:
		inst.Rd, inst.Rs1 = rdField(word), rs1Field(word)
		inst.FpRd, inst.HasRs1 = true, true
		inst.Imm = immI(word)

	case fmtFPStore:
		inst.Rs1, inst.Rs2 = rs1Field(word), rs2Field(word)
		inst.HasRs1, inst.FpRs2 = true, true
		inst.Imm = immS(word)
		inst.MemWrite = true

	case fmtFPR:
		inst.Rd, inst.Rs1, inst.Rs2 = rdField(word), rs1Field(word), rs2Field(word)
		inst.FpRd, inst.FpRs1, inst.FpRs2 = true, true, true
		inst.RoundMode = uint8((word >> 12) & 0x7)

	case fmtFPUnary:
		inst.Rd, inst.Rs1 = rdField(word), rs1Field(word)
		inst.FpRd, inst.FpRs1 = true, true
		inst.RoundMode = uint8((word >> 12) & 0x7)

	case fmtFMVXD:
		inst.Rd, inst.Rs1 = rdField(word), rs1Field(word)
		inst.HasRd, inst.FpRs1 = true, true

	case fmtFMVDX:
		inst.Rd, inst.Rs1 = rdField(word), rs1Field(word)
		inst.FpRd, inst.HasRs1 = true, true

	case fmtRoCC:
		inst.Rd, inst.Rs1, inst.Rs2 = rdField(word), rs1Field(word), rs2Field(word)
		// xd/xs1/xs2 bits say which register ports the command uses.
		inst.HasRd = (word>>14)&1 == 1
		inst.HasRs1 = (word>>13)&1 == 1
		inst.HasRs2 = (word>>12)&1 == 1
	}
}
