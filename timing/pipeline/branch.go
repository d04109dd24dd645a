package pipeline

import "github.com/sarchlab/rvsim/insts"

// branchResult is the outcome of memory-stage branch resolution.
type branchResult struct {
	flush      bool
	redirectPC uint64
	rasTop     int
}

// resolveBranch compares the memory-stage control-flow op, if any, against
// its prediction. The predictor is trained on every resolved op; a
// misprediction additionally flushes everything younger (the execute and
// register-read stages) and redirects fetch to the corrected path.
//
// Issue guarantees at most one control-flow op per group and that it is
// the group's youngest op, so nothing older is lost in the flush.
//
// Resolution is suppressed when writeback flushed this cycle: the op is
// about to be squashed and must neither train the predictor nor redirect.
func (p *Pipeline) resolveBranch(suppressed bool) branchResult {
	var res branchResult
	if suppressed {
		return res
	}

	for i := range p.mem {
		u := &p.mem[i]
		if !u.Valid || u.Exception || u.NeedsReplay {
			continue
		}

		if !u.IsCFI() {
			// A stale BTB entry can attach a prediction to an op that is
			// not control flow at all. That is a misprediction: untrain
			// the entry and redirect down the fall-through path.
			if u.PredictionValid {
				p.front.Update(BTBUpdate{
					PC:     u.PC,
					Taken:  false,
					Target: u.PC + 4,
				})
				p.stats.Mispredictions++
				p.stats.FlushesMispredict++
				res.flush = true
				res.redirectPC = u.PC + 4
				res.rasTop = p.front.RASTop()
				return res
			}
			continue
		}

		in := u.Inst
		taken := u.BranchTaken
		target := u.BranchTarget

		if taken && target&3 != 0 {
			// Misaligned target: convert to a fetch exception, trapped
			// at writeback instead of redirected here.
			u.Exception = true
			u.Cause = CauseMisalignedFetch
			u.Tval = target
			return res
		}

		isJump := in.Class == insts.ClassJAL || in.Class == insts.ClassJALR
		p.front.Update(BTBUpdate{
			PC:     u.PC,
			Taken:  taken,
			Target: target,
			IsCall: isJump && in.Rd == 1,
			IsRet:  in.Class == insts.ClassJALR && in.Rs1 == 1 && in.Rd == 0,
		})

		mispredicted := taken && (!u.PredictionValid || u.PredictedPC != target) ||
			!taken && u.PredictionValid
		if mispredicted {
			p.stats.Mispredictions++
			p.stats.FlushesMispredict++
			res.flush = true
			if taken {
				res.redirectPC = target
			} else {
				res.redirectPC = u.PC + 4
			}
			res.rasTop = p.front.RASTop()
		}
		return res
	}

	return res
}
