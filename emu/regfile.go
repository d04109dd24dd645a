// Package emu provides the architectural RV64 reference model: register
// files, ALU evaluation, memory, and a scalar interpreter used as the golden
// model by the timing tests.
package emu

// RegFile represents the RV64 register state. It contains 32 integer
// registers (x0 hard-wired to zero), 32 floating-point registers, and the
// program counter.
type RegFile struct {
	// X holds integer registers x0-x31. x0 always reads as 0.
	X [32]uint64

	// F holds floating-point registers f0-f31 as raw bit patterns.
	F [32]uint64

	// PC is the program counter.
	PC uint64
}

// ReadReg returns the value of integer register r.
func (rf *RegFile) ReadReg(r uint8) uint64 {
	if r == 0 {
		return 0
	}
	return rf.X[r]
}

// WriteReg writes integer register r. Writes to x0 are discarded.
func (rf *RegFile) WriteReg(r uint8, v uint64) {
	if r == 0 {
		return
	}
	rf.X[r] = v
}

// ReadFReg returns the raw bits of floating-point register r.
func (rf *RegFile) ReadFReg(r uint8) uint64 {
	return rf.F[r]
}

// WriteFReg writes floating-point register r.
func (rf *RegFile) WriteFReg(r uint8, v uint64) {
	rf.F[r] = v
}

// Reset clears all registers and the PC.
func (rf *RegFile) Reset() {
	*rf = RegFile{}
}
