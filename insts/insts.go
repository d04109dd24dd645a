// Package insts provides RV64 instruction definitions and decoding.
//
// This package implements decoding of RISC-V machine code into structured
// instruction representations. Decode rules are grouped per ISA extension
// (base RV64I, M, Zbb, A, F/D classification, Zicsr/system, and the custom
// coprocessor opcodes) and composed into one lookup structure when the
// decoder is constructed, conditionally on the enabled feature set.
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	inst := decoder.Decode(0x002081b3) // ADD x3, x1, x2
//	fmt.Printf("Op: %v, Rd: %d, Rs1: %d, Rs2: %d\n", inst.Op, inst.Rd, inst.Rs1, inst.Rs2)
package insts

// Op represents an RV64 opcode.
type Op uint16

// RV64 opcodes.
const (
	OpUnknown Op = iota

	// RV64I base.
	OpLUI
	OpAUIPC
	OpJAL
	OpJALR
	OpBEQ
	OpBNE
	OpBLT
	OpBGE
	OpBLTU
	OpBGEU
	OpLB
	OpLH
	OpLW
	OpLD
	OpLBU
	OpLHU
	OpLWU
	OpSB
	OpSH
	OpSW
	OpSD
	OpADDI
	OpSLTI
	OpSLTIU
	OpXORI
	OpORI
	OpANDI
	OpSLLI
	OpSRLI
	OpSRAI
	OpADD
	OpSUB
	OpSLL
	OpSLT
	OpSLTU
	OpXOR
	OpSRL
	OpSRA
	OpOR
	OpAND
	OpADDIW
	OpSLLIW
	OpSRLIW
	OpSRAIW
	OpADDW
	OpSUBW
	OpSLLW
	OpSRLW
	OpSRAW
	OpFENCE
	OpFENCEI
	OpECALL
	OpEBREAK
	OpMRET
	OpWFI

	// Zicsr.
	OpCSRRW
	OpCSRRS
	OpCSRRC
	OpCSRRWI
	OpCSRRSI
	OpCSRRCI

	// M extension.
	OpMUL
	OpMULH
	OpMULHSU
	OpMULHU
	OpDIV
	OpDIVU
	OpREM
	OpREMU
	OpMULW
	OpDIVW
	OpDIVUW
	OpREMW
	OpREMUW

	// Zbb bit manipulation.
	OpANDN
	OpORN
	OpXNOR
	OpCLZ
	OpCTZ
	OpCPOP
	OpMIN
	OpMINU
	OpMAX
	OpMAXU
	OpSEXTB
	OpSEXTH
	OpZEXTH
	OpROL
	OpROR
	OpRORI

	// A extension (subset).
	OpLRW
	OpLRD
	OpSCW
	OpSCD
	OpAMOSWAPW
	OpAMOSWAPD
	OpAMOADDW
	OpAMOADDD

	// F/D front end (loads, stores, and a small arithmetic subset; the FP
	// pipe owns the arithmetic itself).
	OpFLW
	OpFLD
	OpFSW
	OpFSD
	OpFADDD
	OpFSUBD
	OpFMULD
	OpFDIVD
	OpFSQRTD
	OpFMVXD
	OpFMVDX

	// Custom coprocessor opcodes.
	OpCUSTOM0
	OpCUSTOM1
)

// Class groups opcodes by the pipeline resources they use.
type Class uint8

// Instruction classes.
const (
	ClassIllegal Class = iota
	ClassALU           // single-cycle integer ops, LUI/AUIPC included
	ClassLoad
	ClassStore
	ClassAMO
	ClassBranch
	ClassJAL
	ClassJALR
	ClassMul
	ClassDiv
	ClassCSR
	ClassSystem // ECALL/EBREAK/MRET/WFI
	ClassFence  // FENCE/FENCE.I
	ClassFPLoad
	ClassFPStore
	ClassFP   // FP pipe ops (single-pass front end)
	ClassFDiv // FP divide/sqrt (long latency, replay on busy)
	ClassBitManip
	ClassRoCC
)

// Instruction represents a decoded RV64 instruction.
type Instruction struct {
	Op    Op
	Class Class
	Raw   uint32

	// Register indices. Integer and FP files are disjoint; the Fp* flags
	// say which file each port addresses.
	Rd  uint8
	Rs1 uint8
	Rs2 uint8
	Rs3 uint8

	// Port validity. HasRd etc. refer to the integer file.
	HasRd  bool
	HasRs1 bool
	HasRs2 bool
	FpRd   bool
	FpRs1  bool
	FpRs2  bool
	FpRs3  bool

	// Imm is the sign-extended immediate operand.
	Imm int64

	// Is32 marks W-form ops that operate on the low 32 bits and
	// sign-extend the result.
	Is32 bool

	// Memory access fields (loads, stores, AMOs).
	MemSizeLog2 uint8
	MemSigned   bool
	MemWrite    bool

	// RoundMode is the FP rounding-mode field (0b111 = dynamic).
	RoundMode uint8

	// CSR is the CSR address for Zicsr ops.
	CSR uint16
}

// IsMem reports whether the instruction accesses data memory.
func (i *Instruction) IsMem() bool {
	switch i.Class {
	case ClassLoad, ClassStore, ClassAMO, ClassFPLoad, ClassFPStore:
		return true
	}
	return false
}

// IsCFI reports whether the instruction may redirect control flow.
func (i *Instruction) IsCFI() bool {
	switch i.Class {
	case ClassBranch, ClassJAL, ClassJALR:
		return true
	}
	return false
}

// Pipe0Only reports whether the instruction may only issue on lane 0.
func (i *Instruction) Pipe0Only() bool {
	switch i.Class {
	case ClassCSR, ClassSystem, ClassFence, ClassMul, ClassDiv,
		ClassFP, ClassFDiv, ClassFPLoad, ClassFPStore,
		ClassBitManip, ClassRoCC, ClassAMO:
		return true
	}
	return false
}

// NeedsOrdering reports whether the instruction must wait for the whole
// pipeline and the memory system to drain before it may issue.
func (i *Instruction) NeedsOrdering() bool {
	switch i.Class {
	case ClassFence, ClassAMO, ClassSystem, ClassRoCC:
		return true
	}
	return false
}

// LongLatency reports whether the destination is claimed in the scoreboard
// at issue and written back through the long-latency arbiter (or, for FP,
// through the independent FP writeback path).
func (i *Instruction) LongLatency() bool {
	switch i.Class {
	case ClassLoad, ClassAMO, ClassDiv, ClassRoCC,
		ClassFPLoad, ClassFP, ClassFDiv:
		return true
	}
	return false
}

// opNames maps opcodes to assembler mnemonics for tracing.
var opNames = map[Op]string{
	OpLUI: "lui", OpAUIPC: "auipc", OpJAL: "jal", OpJALR: "jalr",
	OpBEQ: "beq", OpBNE: "bne", OpBLT: "blt", OpBGE: "bge",
	OpBLTU: "bltu", OpBGEU: "bgeu",
	OpLB: "lb", OpLH: "lh", OpLW: "lw", OpLD: "ld",
	OpLBU: "lbu", OpLHU: "lhu", OpLWU: "lwu",
	OpSB: "sb", OpSH: "sh", OpSW: "sw", OpSD: "sd",
	OpADDI: "addi", OpSLTI: "slti", OpSLTIU: "sltiu", OpXORI: "xori",
	OpORI: "ori", OpANDI: "andi", OpSLLI: "slli", OpSRLI: "srli",
	OpSRAI: "srai",
	OpADD:  "add", OpSUB: "sub", OpSLL: "sll", OpSLT: "slt",
	OpSLTU: "sltu", OpXOR: "xor", OpSRL: "srl", OpSRA: "sra",
	OpOR: "or", OpAND: "and",
	OpADDIW: "addiw", OpSLLIW: "slliw", OpSRLIW: "srliw", OpSRAIW: "sraiw",
	OpADDW: "addw", OpSUBW: "subw", OpSLLW: "sllw", OpSRLW: "srlw",
	OpSRAW:  "sraw",
	OpFENCE: "fence", OpFENCEI: "fence.i",
	OpECALL: "ecall", OpEBREAK: "ebreak", OpMRET: "mret", OpWFI: "wfi",
	OpCSRRW: "csrrw", OpCSRRS: "csrrs", OpCSRRC: "csrrc",
	OpCSRRWI: "csrrwi", OpCSRRSI: "csrrsi", OpCSRRCI: "csrrci",
	OpMUL: "mul", OpMULH: "mulh", OpMULHSU: "mulhsu", OpMULHU: "mulhu",
	OpDIV: "div", OpDIVU: "divu", OpREM: "rem", OpREMU: "remu",
	OpMULW: "mulw", OpDIVW: "divw", OpDIVUW: "divuw",
	OpREMW: "remw", OpREMUW: "remuw",
	OpANDN: "andn", OpORN: "orn", OpXNOR: "xnor",
	OpCLZ: "clz", OpCTZ: "ctz", OpCPOP: "cpop",
	OpMIN: "min", OpMINU: "minu", OpMAX: "max", OpMAXU: "maxu",
	OpSEXTB: "sext.b", OpSEXTH: "sext.h", OpZEXTH: "zext.h",
	OpROL: "rol", OpROR: "ror", OpRORI: "rori",
	OpLRW: "lr.w", OpLRD: "lr.d", OpSCW: "sc.w", OpSCD: "sc.d",
	OpAMOSWAPW: "amoswap.w", OpAMOSWAPD: "amoswap.d",
	OpAMOADDW: "amoadd.w", OpAMOADDD: "amoadd.d",
	OpFLW: "flw", OpFLD: "fld", OpFSW: "fsw", OpFSD: "fsd",
	OpFADDD: "fadd.d", OpFSUBD: "fsub.d", OpFMULD: "fmul.d",
	OpFDIVD: "fdiv.d", OpFSQRTD: "fsqrt.d",
	OpFMVXD: "fmv.x.d", OpFMVDX: "fmv.d.x",
	OpCUSTOM0: "custom0", OpCUSTOM1: "custom1",
}

// String returns the assembler mnemonic of the opcode.
func (o Op) String() string {
	if s, ok := opNames[o]; ok {
		return s
	}
	return "unknown"
}
