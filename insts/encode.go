package insts

// Instruction encoding helpers, used for tests and program construction.
// Field order follows the RISC-V instruction formats (R/I/S/B/U/J).

// EncodeR encodes an R-type instruction.
func EncodeR(opcode, rd, funct3, rs1, rs2, funct7 uint32) uint32 {
	return (funct7 << 25) | (rs2 << 20) | (rs1 << 15) | (funct3 << 12) | (rd << 7) | opcode
}

// EncodeI encodes an I-type instruction with a signed 12-bit immediate.
func EncodeI(opcode, rd, funct3, rs1 uint32, imm int32) uint32 {
	return (uint32(imm)&0xFFF)<<20 | (rs1 << 15) | (funct3 << 12) | (rd << 7) | opcode
}

// EncodeS encodes an S-type instruction.
func EncodeS(opcode, funct3, rs1, rs2 uint32, imm int32) uint32 {
	u := uint32(imm)
	return ((u>>5)&0x7F)<<25 | (rs2 << 20) | (rs1 << 15) | (funct3 << 12) | (u&0x1F)<<7 | opcode
}

// EncodeB encodes a B-type instruction with a signed 13-bit byte offset.
func EncodeB(opcode, funct3, rs1, rs2 uint32, imm int32) uint32 {
	u := uint32(imm)
	return ((u>>12)&0x1)<<31 | ((u>>5)&0x3F)<<25 | (rs2 << 20) | (rs1 << 15) |
		(funct3 << 12) | ((u>>1)&0xF)<<8 | ((u>>11)&0x1)<<7 | opcode
}

// EncodeU encodes a U-type instruction; imm supplies bits [31:12].
func EncodeU(opcode, rd, imm uint32) uint32 {
	return imm&0xFFFFF000 | (rd << 7) | opcode
}

// EncodeJ encodes a J-type instruction with a signed 21-bit byte offset.
func EncodeJ(opcode, rd uint32, imm int32) uint32 {
	u := uint32(imm)
	return ((u>>20)&0x1)<<31 | ((u>>1)&0x3FF)<<21 | ((u>>11)&0x1)<<20 |
		((u>>12)&0xFF)<<12 | (rd << 7) | opcode
}

// Convenience encoders for the instructions the test suites use most.

// ADD encodes add rd, rs1, rs2.
func ADD(rd, rs1, rs2 uint32) uint32 { return EncodeR(0x33, rd, 0, rs1, rs2, 0) }

// SUB encodes sub rd, rs1, rs2.
func SUB(rd, rs1, rs2 uint32) uint32 { return EncodeR(0x33, rd, 0, rs1, rs2, 0x20) }

// AND encodes and rd, rs1, rs2.
func AND(rd, rs1, rs2 uint32) uint32 { return EncodeR(0x33, rd, 7, rs1, rs2, 0) }

// OR encodes or rd, rs1, rs2.
func OR(rd, rs1, rs2 uint32) uint32 { return EncodeR(0x33, rd, 6, rs1, rs2, 0) }

// XOR encodes xor rd, rs1, rs2.
func XOR(rd, rs1, rs2 uint32) uint32 { return EncodeR(0x33, rd, 4, rs1, rs2, 0) }

// MUL encodes mul rd, rs1, rs2.
func MUL(rd, rs1, rs2 uint32) uint32 { return EncodeR(0x33, rd, 0, rs1, rs2, 1) }

// DIV encodes div rd, rs1, rs2.
func DIV(rd, rs1, rs2 uint32) uint32 { return EncodeR(0x33, rd, 4, rs1, rs2, 1) }

// ADDI encodes addi rd, rs1, imm.
func ADDI(rd, rs1 uint32, imm int32) uint32 { return EncodeI(0x13, rd, 0, rs1, imm) }

// ANDI encodes andi rd, rs1, imm.
func ANDI(rd, rs1 uint32, imm int32) uint32 { return EncodeI(0x13, rd, 7, rs1, imm) }

// LUI encodes lui rd, imm (imm supplies bits [31:12]).
func LUI(rd, imm uint32) uint32 { return EncodeU(0x37, rd, imm) }

// AUIPC encodes auipc rd, imm.
func AUIPC(rd, imm uint32) uint32 { return EncodeU(0x17, rd, imm) }

// LD encodes ld rd, imm(rs1).
func LD(rd, rs1 uint32, imm int32) uint32 { return EncodeI(0x03, rd, 3, rs1, imm) }

// LW encodes lw rd, imm(rs1).
func LW(rd, rs1 uint32, imm int32) uint32 { return EncodeI(0x03, rd, 2, rs1, imm) }

// SD encodes sd rs2, imm(rs1).
func SD(rs1, rs2 uint32, imm int32) uint32 { return EncodeS(0x23, 3, rs1, rs2, imm) }

// SW encodes sw rs2, imm(rs1).
func SW(rs1, rs2 uint32, imm int32) uint32 { return EncodeS(0x23, 2, rs1, rs2, imm) }

// BEQ encodes beq rs1, rs2, offset.
func BEQ(rs1, rs2 uint32, off int32) uint32 { return EncodeB(0x63, 0, rs1, rs2, off) }

// BNE encodes bne rs1, rs2, offset.
func BNE(rs1, rs2 uint32, off int32) uint32 { return EncodeB(0x63, 1, rs1, rs2, off) }

// BLT encodes blt rs1, rs2, offset.
func BLT(rs1, rs2 uint32, off int32) uint32 { return EncodeB(0x63, 4, rs1, rs2, off) }

// JAL encodes jal rd, offset.
func JAL(rd uint32, off int32) uint32 { return EncodeJ(0x6F, rd, off) }

// JALR encodes jalr rd, imm(rs1).
func JALR(rd, rs1 uint32, imm int32) uint32 { return EncodeI(0x67, rd, 0, rs1, imm) }

// CSRRW encodes csrrw rd, csr, rs1.
func CSRRW(rd, csr, rs1 uint32) uint32 { return EncodeI(0x73, rd, 1, rs1, int32(csr)) }

// CSRRS encodes csrrs rd, csr, rs1.
func CSRRS(rd, csr, rs1 uint32) uint32 { return EncodeI(0x73, rd, 2, rs1, int32(csr)) }

// ECALL encodes ecall.
func ECALL() uint32 { return 0x00000073 }

// MRET encodes mret.
func MRET() uint32 { return 0x30200073 }

// FENCE encodes fence iorw, iorw.
func FENCE() uint32 { return 0x0FF0000F }

// FLW encodes flw rd, imm(rs1).
func FLW(rd, rs1 uint32, imm int32) uint32 { return EncodeI(0x07, rd, 2, rs1, imm) }

// FLD encodes fld rd, imm(rs1).
func FLD(rd, rs1 uint32, imm int32) uint32 { return EncodeI(0x07, rd, 3, rs1, imm) }

// FMVDX encodes fmv.d.x rd, rs1 (integer bit pattern into an FP register).
func FMVDX(rd, rs1 uint32) uint32 { return 0xF2000053 | (rs1 << 15) | (rd << 7) }

// FMVXD encodes fmv.x.d rd, rs1 (FP bit pattern into an integer register).
func FMVXD(rd, rs1 uint32) uint32 { return 0xE2000053 | (rs1 << 15) | (rd << 7) }

// FADDD encodes fadd.d rd, rs1, rs2 rounding to nearest even.
func FADDD(rd, rs1, rs2 uint32) uint32 {
	return 0x02000053 | (rs2 << 20) | (rs1 << 15) | (rd << 7)
}

// FDIVD encodes fdiv.d rd, rs1, rs2 rounding to nearest even.
func FDIVD(rd, rs1, rs2 uint32) uint32 {
	return 0x1A000053 | (rs2 << 20) | (rs1 << 15) | (rd << 7)
}

// NOP encodes addi x0, x0, 0.
func NOP() uint32 { return ADDI(0, 0, 0) }
