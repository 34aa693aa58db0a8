package penalty

import (
	"math"

	"github.com/llm-defender/defender-go/core/history"
	"github.com/llm-defender/defender-go/core/types"
	"github.com/llm-defender/defender-go/log"
)

// NoHistoryPenalty is the fixed distrust assigned to every sub-penalty
// on first-ever contact with a hotkey, regardless of response content.
const NoHistoryPenalty = 5.0

// rejectThreshold is the penalty magnitude at which a multiplier drops
// straight to zero.
const rejectThreshold = 20.0

// Signal is one external penalty sub-scorer. It reads the worker's
// prior history plus the current response and returns a non-negative
// penalty.
type Signal interface {
	Check(uid int, records []history.Record, resp *types.Response, prompt string) float64
}

// Evaluator resolves the similarity, base and duplicate penalties for a
// response.
type Evaluator struct {
	history    *history.Store
	similarity Signal
	base       Signal
	duplicate  Signal
	log        log.Logger
}

func NewEvaluator(store *history.Store, similarity, base, duplicate Signal) *Evaluator {
	return &Evaluator{
		history:    store,
		similarity: similarity,
		base:       base,
		duplicate:  duplicate,
		log:        log.New("component", "penalty"),
	}
}

// Evaluate returns the three sub-penalties for the response. A hotkey
// without any prior history gets NoHistoryPenalty across the board.
func (e *Evaluator) Evaluate(uid int, hotkey string, resp *types.Response, prompt string) (similarity, base, duplicate float64) {
	if !e.history.Has(hotkey) {
		return NoHistoryPenalty, NoHistoryPenalty, NoHistoryPenalty
	}
	records := e.history.Get(hotkey)

	similarity = e.check(e.similarity, uid, records, resp, prompt)
	base = e.check(e.base, uid, records, resp, prompt)
	duplicate = e.check(e.duplicate, uid, records, resp, prompt)

	e.log.Trace("Penalty scores resolved", "uid", uid,
		"similarity", similarity, "base", base, "duplicate", duplicate)
	return similarity, base, duplicate
}

func (e *Evaluator) check(signal Signal, uid int, records []history.Record, resp *types.Response, prompt string) float64 {
	if signal == nil {
		return 0.0
	}
	value := signal.Check(uid, records, resp, prompt)
	if math.IsNaN(value) || value < 0 {
		e.log.Warn("Penalty signal returned an invalid value", "uid", uid, "value", value)
		return 0.0
	}
	return value
}

// Multipliers derives the [0,1] score multipliers from the raw
// penalties. Both are monotonically decreasing in penalty magnitude:
// the base penalty drives the distance multiplier, the similarity and
// duplicate penalties together drive the speed multiplier.
func Multipliers(similarity, base, duplicate float64) (distanceMul, speedMul float64) {
	distanceMul = 1.0
	speedMul = 1.0

	if base >= rejectThreshold {
		distanceMul = 0.0
	} else if base > 0.0 {
		distanceMul = 1 - (base/2.0)/10
	}

	if sum := similarity + duplicate; sum >= rejectThreshold {
		speedMul = 0.0
	} else if sum > 0.0 {
		speedMul = 1 - (sum/2.0)/10
	}
	return distanceMul, speedMul
}
