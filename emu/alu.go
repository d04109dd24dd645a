package emu

import (
	"math/bits"

	"github.com/sarchlab/rvsim/insts"
)

// EvalALU computes the integer result of an arithmetic, logic, multiply,
// divide, or bit-manipulation instruction. rs1 and rs2 are the source
// register values; immediate forms take their operand from in.Imm. W-form
// instructions operate on the low 32 bits and sign-extend the result.
func EvalALU(in *insts.Instruction, rs1, rs2 uint64) uint64 {
	imm := uint64(in.Imm)
	switch in.Op {
	case insts.OpLUI:
		return imm
	case insts.OpADD:
		return rs1 + rs2
	case insts.OpADDI:
		return rs1 + imm
	case insts.OpSUB:
		return rs1 - rs2
	case insts.OpAND:
		return rs1 & rs2
	case insts.OpANDI:
		return rs1 & imm
	case insts.OpOR:
		return rs1 | rs2
	case insts.OpORI:
		return rs1 | imm
	case insts.OpXOR:
		return rs1 ^ rs2
	case insts.OpXORI:
		return rs1 ^ imm
	case insts.OpSLT:
		return boolToReg(int64(rs1) < int64(rs2))
	case insts.OpSLTI:
		return boolToReg(int64(rs1) < in.Imm)
	case insts.OpSLTU:
		return boolToReg(rs1 < rs2)
	case insts.OpSLTIU:
		return boolToReg(rs1 < imm)
	case insts.OpSLL:
		return rs1 << (rs2 & 63)
	case insts.OpSLLI:
		return rs1 << (imm & 63)
	case insts.OpSRL:
		return rs1 >> (rs2 & 63)
	case insts.OpSRLI:
		return rs1 >> (imm & 63)
	case insts.OpSRA:
		return uint64(int64(rs1) >> (rs2 & 63))
	case insts.OpSRAI:
		return uint64(int64(rs1) >> (imm & 63))

	case insts.OpADDW:
		return signExt32(uint32(rs1) + uint32(rs2))
	case insts.OpADDIW:
		return signExt32(uint32(rs1) + uint32(imm))
	case insts.OpSUBW:
		return signExt32(uint32(rs1) - uint32(rs2))
	case insts.OpSLLW:
		return signExt32(uint32(rs1) << (rs2 & 31))
	case insts.OpSLLIW:
		return signExt32(uint32(rs1) << (imm & 31))
	case insts.OpSRLW:
		return signExt32(uint32(rs1) >> (rs2 & 31))
	case insts.OpSRLIW:
		return signExt32(uint32(rs1) >> (imm & 31))
	case insts.OpSRAW:
		return signExt32(uint32(int32(rs1) >> (rs2 & 31)))
	case insts.OpSRAIW:
		return signExt32(uint32(int32(rs1) >> (imm & 31)))

	case insts.OpMUL:
		return rs1 * rs2
	case insts.OpMULH:
		hi, _ := mulSigned(int64(rs1), int64(rs2))
		return hi
	case insts.OpMULHU:
		hi, _ := bits.Mul64(rs1, rs2)
		return hi
	case insts.OpMULHSU:
		return mulSignedUnsignedHigh(int64(rs1), rs2)
	case insts.OpMULW:
		return signExt32(uint32(rs1) * uint32(rs2))
	case insts.OpDIV:
		return uint64(divSigned(int64(rs1), int64(rs2)))
	case insts.OpDIVU:
		if rs2 == 0 {
			return ^uint64(0)
		}
		return rs1 / rs2
	case insts.OpREM:
		return uint64(remSigned(int64(rs1), int64(rs2)))
	case insts.OpREMU:
		if rs2 == 0 {
			return rs1
		}
		return rs1 % rs2
	case insts.OpDIVW:
		return signExt32(uint32(divSigned32(int32(rs1), int32(rs2))))
	case insts.OpDIVUW:
		if uint32(rs2) == 0 {
			return ^uint64(0)
		}
		return signExt32(uint32(rs1) / uint32(rs2))
	case insts.OpREMW:
		return signExt32(uint32(remSigned32(int32(rs1), int32(rs2))))
	case insts.OpREMUW:
		if uint32(rs2) == 0 {
			return signExt32(uint32(rs1))
		}
		return signExt32(uint32(rs1) % uint32(rs2))

	case insts.OpANDN:
		return rs1 &^ rs2
	case insts.OpORN:
		return rs1 | ^rs2
	case insts.OpXNOR:
		return ^(rs1 ^ rs2)
	case insts.OpCLZ:
		return uint64(bits.LeadingZeros64(rs1))
	case insts.OpCTZ:
		return uint64(bits.TrailingZeros64(rs1))
	case insts.OpCPOP:
		return uint64(bits.OnesCount64(rs1))
	case insts.OpMAX:
		if int64(rs1) > int64(rs2) {
			return rs1
		}
		return rs2
	case insts.OpMAXU:
		if rs1 > rs2 {
			return rs1
		}
		return rs2
	case insts.OpMIN:
		if int64(rs1) < int64(rs2) {
			return rs1
		}
		return rs2
	case insts.OpMINU:
		if rs1 < rs2 {
			return rs1
		}
		return rs2
	case insts.OpSEXTB:
		return uint64(int64(int8(rs1)))
	case insts.OpSEXTH:
		return uint64(int64(int16(rs1)))
	case insts.OpZEXTH:
		return uint64(uint16(rs1))
	case insts.OpROL:
		return bits.RotateLeft64(rs1, int(rs2&63))
	case insts.OpROR:
		return bits.RotateLeft64(rs1, -int(rs2&63))
	case insts.OpRORI:
		return bits.RotateLeft64(rs1, -int(imm&63))
	}
	return 0
}

// EvalBranch reports whether a conditional branch is taken.
func EvalBranch(op insts.Op, rs1, rs2 uint64) bool {
	switch op {
	case insts.OpBEQ:
		return rs1 == rs2
	case insts.OpBNE:
		return rs1 != rs2
	case insts.OpBLT:
		return int64(rs1) < int64(rs2)
	case insts.OpBGE:
		return int64(rs1) >= int64(rs2)
	case insts.OpBLTU:
		return rs1 < rs2
	case insts.OpBGEU:
		return rs1 >= rs2
	}
	return false
}

// EvalAMO computes the value stored back to memory by an AMO, given the
// loaded value and the rs2 operand. AMOSWAP returns rs2 unchanged.
func EvalAMO(op insts.Op, loaded, rs2 uint64, is32 bool) uint64 {
	a, b := loaded, rs2
	if is32 {
		a = signExt32(uint32(a))
		b = signExt32(uint32(b))
	}
	var r uint64
	switch op {
	case insts.OpAMOSWAPW, insts.OpAMOSWAPD:
		r = b
	case insts.OpAMOADDW, insts.OpAMOADDD:
		r = a + b
	}
	return r
}

func boolToReg(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func signExt32(v uint32) uint64 {
	return uint64(int64(int32(v)))
}

func divSigned(a, b int64) int64 {
	switch {
	case b == 0:
		return -1
	case a == -1<<63 && b == -1:
		return a
	}
	return a / b
}

func remSigned(a, b int64) int64 {
	switch {
	case b == 0:
		return a
	case a == -1<<63 && b == -1:
		return 0
	}
	return a % b
}

func divSigned32(a, b int32) int32 {
	switch {
	case b == 0:
		return -1
	case a == -1<<31 && b == -1:
		return a
	}
	return a / b
}

func remSigned32(a, b int32) int32 {
	switch {
	case b == 0:
		return a
	case a == -1<<31 && b == -1:
		return 0
	}
	return a % b
}

func mulSigned(a, b int64) (hi, lo uint64) {
	h, l := bits.Mul64(uint64(a), uint64(b))
	if a < 0 {
		h -= uint64(b)
	}
	if b < 0 {
		h -= uint64(a)
	}
	return h, l
}

func mulSignedUnsignedHigh(a int64, b uint64) uint64 {
	h, _ := bits.Mul64(uint64(a), b)
	if a < 0 {
		h -= b
	}
	return h
}
