package emu

import (
	"fmt"
	"math"

	"github.com/sarchlab/rvsim/insts"
)

// Emulator executes RV64 instructions one at a time against an
// architectural register file and memory. It is the golden model the
// timing core is checked against: no pipelining, no speculation, every
// instruction completes before the next begins.
type Emulator struct {
	RegFile *RegFile
	Memory  *Memory
	Decoder *insts.Decoder

	csrs    map[uint16]uint64
	instret uint64
	halted  bool
}

// EmulatorOption configures an Emulator.
type EmulatorOption func(*Emulator)

// WithMemory sets the memory backing the emulator.
func WithMemory(m *Memory) EmulatorOption {
	return func(e *Emulator) { e.Memory = m }
}

// WithEntryPC sets the initial program counter.
func WithEntryPC(pc uint64) EmulatorOption {
	return func(e *Emulator) { e.RegFile.PC = pc }
}

// WithDecoder replaces the default decoder, typically to restrict or
// extend the enabled ISA extensions.
func WithDecoder(d *insts.Decoder) EmulatorOption {
	return func(e *Emulator) { e.Decoder = d }
}

// NewEmulator creates an emulator with a fresh register file, an empty
// memory, and a decoder for the default feature set.
func NewEmulator(opts ...EmulatorOption) *Emulator {
	e := &Emulator{
		RegFile: &RegFile{},
		Memory:  NewMemory(),
		Decoder: insts.NewDecoder(),
		csrs:    make(map[uint16]uint64),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Halted reports whether the emulator has stopped at an ECALL or EBREAK.
func (e *Emulator) Halted() bool { return e.halted }

// InstCount returns the number of retired instructions.
func (e *Emulator) InstCount() uint64 { return e.instret }

// ReadCSR returns the current value of a CSR.
func (e *Emulator) ReadCSR(addr uint16) uint64 { return e.csrs[addr] }

// WriteCSR sets a CSR value directly, bypassing instruction semantics.
func (e *Emulator) WriteCSR(addr uint16, v uint64) { e.csrs[addr] = v }

// Step fetches, decodes, and executes a single instruction.
func (e *Emulator) Step() error {
	if e.halted {
		return nil
	}

	pc := e.RegFile.PC
	raw := e.Memory.Read32(pc)
	in := e.Decoder.Decode(raw)
	if in.Class == insts.ClassIllegal {
		return fmt.Errorf("illegal instruction 0x%08x at pc 0x%x", raw, pc)
	}

	nextPC := pc + 4
	rf := e.RegFile
	rs1 := rf.ReadReg(in.Rs1)
	rs2 := rf.ReadReg(in.Rs2)

	switch in.Class {
	case insts.ClassALU, insts.ClassMul, insts.ClassDiv, insts.ClassBitManip:
		if in.Op == insts.OpAUIPC {
			rf.WriteReg(in.Rd, pc+uint64(in.Imm))
		} else {
			rf.WriteReg(in.Rd, EvalALU(in, rs1, rs2))
		}

	case insts.ClassLoad:
		v, err := e.load(rs1+uint64(in.Imm), in)
		if err != nil {
			return err
		}
		rf.WriteReg(in.Rd, v)

	case insts.ClassStore:
		e.store(rs1+uint64(in.Imm), rs2, in.MemSizeLog2)

	case insts.ClassAMO:
		addr := rs1
		if addr&((1<<in.MemSizeLog2)-1) != 0 {
			return fmt.Errorf("misaligned amo at 0x%x", addr)
		}
		switch in.Op {
		case insts.OpLRW, insts.OpLRD:
			v, err := e.load(addr, in)
			if err != nil {
				return err
			}
			rf.WriteReg(in.Rd, v)
		case insts.OpSCW, insts.OpSCD:
			e.store(addr, rs2, in.MemSizeLog2)
			rf.WriteReg(in.Rd, 0)
		default:
			old, err := e.load(addr, in)
			if err != nil {
				return err
			}
			e.store(addr, EvalAMO(in.Op, old, rs2, in.Is32), in.MemSizeLog2)
			rf.WriteReg(in.Rd, old)
		}

	case insts.ClassBranch:
		if EvalBranch(in.Op, rs1, rs2) {
			nextPC = pc + uint64(in.Imm)
		}

	case insts.ClassJAL:
		rf.WriteReg(in.Rd, pc+4)
		nextPC = pc + uint64(in.Imm)

	case insts.ClassJALR:
		target := (rs1 + uint64(in.Imm)) &^ 1
		rf.WriteReg(in.Rd, pc+4)
		nextPC = target

	case insts.ClassCSR:
		nextPC = e.execCSR(in, rs1, pc)

	case insts.ClassSystem:
		switch in.Op {
		case insts.OpECALL, insts.OpEBREAK:
			e.halted = true
			nextPC = pc
		case insts.OpMRET:
			nextPC = e.csrs[csrMEPC]
		case insts.OpWFI:
			// Treated as a hint.
		}

	case insts.ClassFence:
		// Single-hart model, nothing to order.

	case insts.ClassFPLoad:
		v, err := e.load(rs1+uint64(in.Imm), in)
		if err != nil {
			return err
		}
		if in.MemSizeLog2 == 2 {
			v |= ^uint64(0xFFFFFFFF) // NaN-box single-precision values
		}
		rf.WriteFReg(in.Rd, v)

	case insts.ClassFPStore:
		e.store(rs1+uint64(in.Imm), rf.ReadFReg(in.Rs2), in.MemSizeLog2)

	case insts.ClassFP, insts.ClassFDiv:
		e.execFP(in)

	case insts.ClassRoCC:
		// No coprocessor is attached to the reference model.
		if in.HasRd {
			rf.WriteReg(in.Rd, 0)
		}
	}

	rf.PC = nextPC
	e.instret++
	e.csrs[csrInstret] = e.instret
	e.csrs[csrCycle]++
	return nil
}

// Run steps until the emulator halts or maxInsts instructions retire.
func (e *Emulator) Run(maxInsts uint64) error {
	for i := uint64(0); i < maxInsts && !e.halted; i++ {
		if err := e.Step(); err != nil {
			return err
		}
	}
	return nil
}

const (
	csrMEPC    = 0x341
	csrCycle   = 0xC00
	csrInstret = 0xC02
)

func (e *Emulator) execCSR(in *insts.Instruction, rs1 uint64, pc uint64) uint64 {
	old := e.csrs[in.CSR]
	var operand uint64
	switch in.Op {
	case insts.OpCSRRW, insts.OpCSRRS, insts.OpCSRRC:
		operand = rs1
	default:
		operand = uint64(in.Rs1) // zimm form encodes the operand in rs1
	}

	switch in.Op {
	case insts.OpCSRRW, insts.OpCSRRWI:
		e.csrs[in.CSR] = operand
	case insts.OpCSRRS, insts.OpCSRRSI:
		if operand != 0 {
			e.csrs[in.CSR] = old | operand
		}
	case insts.OpCSRRC, insts.OpCSRRCI:
		if operand != 0 {
			e.csrs[in.CSR] = old &^ operand
		}
	}
	e.RegFile.WriteReg(in.Rd, old)
	return pc + 4
}

func (e *Emulator) load(addr uint64, in *insts.Instruction) (uint64, error) {
	var v uint64
	switch in.MemSizeLog2 {
	case 0:
		v = uint64(e.Memory.Read8(addr))
		if in.MemSigned {
			v = uint64(int64(int8(v)))
		}
	case 1:
		v = uint64(e.Memory.Read16(addr))
		if in.MemSigned {
			v = uint64(int64(int16(v)))
		}
	case 2:
		v = uint64(e.Memory.Read32(addr))
		if in.MemSigned {
			v = signExt32(uint32(v))
		}
	case 3:
		v = e.Memory.Read64(addr)
	}
	return v, nil
}

func (e *Emulator) store(addr, v uint64, sizeLog2 uint8) {
	switch sizeLog2 {
	case 0:
		e.Memory.Write8(addr, uint8(v))
	case 1:
		e.Memory.Write16(addr, uint16(v))
	case 2:
		e.Memory.Write32(addr, uint32(v))
	case 3:
		e.Memory.Write64(addr, v)
	}
}

func (e *Emulator) execFP(in *insts.Instruction) {
	rf := e.RegFile
	a := math.Float64frombits(rf.ReadFReg(in.Rs1))
	b := math.Float64frombits(rf.ReadFReg(in.Rs2))

	switch in.Op {
	case insts.OpFADDD:
		rf.WriteFReg(in.Rd, math.Float64bits(a+b))
	case insts.OpFSUBD:
		rf.WriteFReg(in.Rd, math.Float64bits(a-b))
	case insts.OpFMULD:
		rf.WriteFReg(in.Rd, math.Float64bits(a*b))
	case insts.OpFDIVD:
		rf.WriteFReg(in.Rd, math.Float64bits(a/b))
	case insts.OpFSQRTD:
		rf.WriteFReg(in.Rd, math.Float64bits(math.Sqrt(a)))
	case insts.OpFMVXD:
		rf.WriteReg(in.Rd, rf.ReadFReg(in.Rs1))
	case insts.OpFMVDX:
		rf.WriteFReg(in.Rd, rf.ReadReg(in.Rs1))
	}
}
