package pipeline

import "github.com/sarchlab/rvsim/emu"

// FetchLane is one slot of a fetch bundle: a raw instruction word with its
// PC, any fetch-time exception, and the prediction the front end made.
type FetchLane struct {
	Valid bool
	PC    uint64
	Word  uint32

	// Fault marks a fetch exception (access or page fault on the
	// instruction address). Cause carries the mcause encoding.
	Fault      bool
	FaultCause uint64

	// PredictionValid means the front end predicted a taken redirect at
	// this PC; PredictedPC is where fetch resumed.
	PredictionValid bool
	PredictedPC     uint64
}

// BTBUpdate carries resolved control-flow metadata back to the front end,
// published every cycle a control-flow instruction resolves regardless of
// misprediction, so prediction structures stay trained.
type BTBUpdate struct {
	PC     uint64
	Taken  bool
	Target uint64
	IsCall bool
	IsRet  bool
}

// FrontEnd is the fetch collaborator contract. The core consumes fetch
// bundles, acknowledges accepted lanes, and drives redirects and predictor
// updates; everything else about fetching is the collaborator's business.
type FrontEnd interface {
	// Fetch returns the current bundle of up to width lanes. The bundle
	// is stable until lanes are consumed or a redirect arrives.
	Fetch(width int) []FetchLane

	// Consume acknowledges that the oldest n lanes issued.
	Consume(n int)

	// Redirect restarts fetching at target with the corrected
	// return-address-stack head.
	Redirect(target uint64, rasTop int)

	// Update trains the branch predictor and maintains the RAS with a
	// resolved outcome.
	Update(u BTBUpdate)

	// RASTop returns the current return-address-stack head index.
	RASTop() int
}

// DefaultFrontEndConfig sizes the prediction structures.
type DefaultFrontEndConfig struct {
	// BHTSize is the number of 2-bit counters. Power of 2.
	BHTSize uint32
	// BTBSize is the number of target buffer entries. Power of 2.
	BTBSize uint32
	// RASSize is the return-address-stack depth.
	RASSize int
}

// DefaultFrontEndConfigDefaults returns the default sizing.
func DefaultFrontEndConfigDefaults() DefaultFrontEndConfig {
	return DefaultFrontEndConfig{
		BHTSize: 1024,
		BTBSize: 256,
		RASSize: 16,
	}
}

type btbEntry struct {
	pc     uint64
	target uint64
	valid  bool
	isRet  bool
}

// DefaultFrontEnd fetches sequential instruction words from a memory image
// and predicts redirects with a bimodal branch-history table, a branch
// target buffer, and a return-address stack. It implements FrontEnd and is
// what timing/core and the pipeline tests wire in by default.
type DefaultFrontEnd struct {
	mem *emu.Memory
	pc  uint64

	bht []uint8
	btb []btbEntry

	ras    []uint64
	rasTop int

	cfg DefaultFrontEndConfig

	bundle      []FetchLane
	bundleValid bool

	stats FrontEndStats
}

// FrontEndStats counts prediction activity.
type FrontEndStats struct {
	Predictions uint64
	BTBHits     uint64
	RASPops     uint64
}

// NewDefaultFrontEnd creates a front end fetching from mem starting at pc.
func NewDefaultFrontEnd(mem *emu.Memory, pc uint64, cfg DefaultFrontEndConfig) *DefaultFrontEnd {
	if cfg.BHTSize == 0 {
		cfg.BHTSize = 1024
	}
	if cfg.BTBSize == 0 {
		cfg.BTBSize = 256
	}
	if cfg.RASSize == 0 {
		cfg.RASSize = 16
	}

	fe := &DefaultFrontEnd{
		mem: mem,
		pc:  pc,
		bht: make([]uint8, cfg.BHTSize),
		btb: make([]btbEntry, cfg.BTBSize),
		ras: make([]uint64, cfg.RASSize),
		cfg: cfg,
	}

	// Bias counters weakly not-taken; a redirect is only predicted on a
	// BTB hit anyway, so cold branches fall through sequentially.
	for i := range fe.bht {
		fe.bht[i] = 1
	}
	return fe
}

func (fe *DefaultFrontEnd) bhtIndex(pc uint64) uint32 {
	return uint32((pc >> 2) & uint64(fe.cfg.BHTSize-1))
}

func (fe *DefaultFrontEnd) btbIndex(pc uint64) uint32 {
	return uint32((pc >> 2) & uint64(fe.cfg.BTBSize-1))
}

// predict returns the predicted next PC for one fetched word, or 0 when
// fetch should continue sequentially. A redirect is predicted only when
// the BTB knows a target and the counter says taken.
func (fe *DefaultFrontEnd) predict(pc uint64) (uint64, bool) {
	entry := &fe.btb[fe.btbIndex(pc)]
	if !entry.valid || entry.pc != pc {
		return 0, false
	}
	fe.stats.BTBHits++

	if entry.isRet && fe.rasTop > 0 {
		fe.stats.RASPops++
		return fe.ras[fe.rasTop-1], true
	}

	fe.stats.Predictions++
	if fe.bht[fe.bhtIndex(pc)] >= 2 {
		return entry.target, true
	}
	return 0, false
}

// Fetch assembles up to width sequential lanes, stopping the bundle after
// a predicted-taken redirect so younger lanes come from the new stream.
func (fe *DefaultFrontEnd) Fetch(width int) []FetchLane {
	if fe.bundleValid && len(fe.bundle) > 0 {
		return fe.bundle
	}

	fe.bundle = fe.bundle[:0]
	pc := fe.pc
	for i := 0; i < width; i++ {
		lane := FetchLane{
			Valid: true,
			PC:    pc,
			Word:  fe.mem.Read32(pc),
		}
		if target, ok := fe.predict(pc); ok {
			lane.PredictionValid = true
			lane.PredictedPC = target
			fe.bundle = append(fe.bundle, lane)
			pc = target
			break
		}
		fe.bundle = append(fe.bundle, lane)
		pc += 4
	}
	fe.pc = pc
	fe.bundleValid = true
	return fe.bundle
}

// Consume drops the oldest n lanes from the current bundle.
func (fe *DefaultFrontEnd) Consume(n int) {
	if n <= 0 {
		return
	}
	if n >= len(fe.bundle) {
		fe.bundle = fe.bundle[:0]
		fe.bundleValid = false
		return
	}
	fe.bundle = fe.bundle[n:]
}

// Redirect restarts fetching at target and restores the RAS head.
func (fe *DefaultFrontEnd) Redirect(target uint64, rasTop int) {
	fe.pc = target
	fe.bundle = fe.bundle[:0]
	fe.bundleValid = false
	if rasTop < 0 {
		rasTop = 0
	}
	if rasTop > len(fe.ras) {
		rasTop = len(fe.ras)
	}
	fe.rasTop = rasTop
}

// Update trains the BHT/BTB and maintains the RAS from a resolved outcome.
func (fe *DefaultFrontEnd) Update(u BTBUpdate) {
	idx := fe.bhtIndex(u.PC)
	counter := fe.bht[idx]
	if u.Taken {
		if counter < 3 {
			fe.bht[idx] = counter + 1
		}
	} else if counter > 0 {
		fe.bht[idx] = counter - 1
	}

	if u.Taken {
		fe.btb[fe.btbIndex(u.PC)] = btbEntry{
			pc:     u.PC,
			target: u.Target,
			valid:  true,
			isRet:  u.IsRet,
		}
	}

	if u.IsCall && fe.rasTop < len(fe.ras) {
		fe.ras[fe.rasTop] = u.PC + 4
		fe.rasTop++
	}
	if u.IsRet && fe.rasTop > 0 {
		fe.rasTop--
	}
}

// RASTop returns the current return-address-stack head index.
func (fe *DefaultFrontEnd) RASTop() int { return fe.rasTop }

// Stats returns prediction statistics.
func (fe *DefaultFrontEnd) Stats() FrontEndStats { return fe.stats }

// PC returns the next fetch address.
func (fe *DefaultFrontEnd) PC() uint64 { return fe.pc }
