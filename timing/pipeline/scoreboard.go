package pipeline

// Scoreboard tracks one busy bit per architectural register. A bit is set
// between the cycle a register is claimed as a destination at issue and the
// cycle its result is committed, at writeback for in-pipe producers or by
// the arriving write event for long-latency ones (or the cycle its issuing
// instruction is squashed).
type Scoreboard struct {
	busy [32]bool

	// pinZero keeps register 0 permanently clear (integer file only).
	pinZero bool
}

// NewIntScoreboard creates the integer scoreboard. x0 is hard-wired zero
// and never reads busy.
func NewIntScoreboard() *Scoreboard {
	sb := &Scoreboard{pinZero: true}
	sb.Reset()
	return sb
}

// NewFpScoreboard creates the floating-point scoreboard.
func NewFpScoreboard() *Scoreboard {
	sb := &Scoreboard{}
	sb.Reset()
	return sb
}

// Reset clears every busy bit.
func (sb *Scoreboard) Reset() {
	for i := range sb.busy {
		sb.busy[i] = false
	}
}

// Busy reports whether the register has a pending writer.
func (sb *Scoreboard) Busy(reg uint8) bool {
	if sb.pinZero && reg == 0 {
		return false
	}
	return sb.busy[reg]
}

// Claim marks the register busy until its write event arrives.
func (sb *Scoreboard) Claim(reg uint8) {
	if sb.pinZero && reg == 0 {
		return
	}
	sb.busy[reg] = true
}

// Release clears the busy bit, either by the write event or by a squash of
// an issue whose request never left the core.
func (sb *Scoreboard) Release(reg uint8) {
	sb.busy[reg] = false
}

// AnyBusy reports whether any register is pending. Ordered instructions
// wait for both scoreboards to drain before issuing.
func (sb *Scoreboard) AnyBusy() bool {
	for i := range sb.busy {
		if sb.busy[i] {
			return true
		}
	}
	return false
}
