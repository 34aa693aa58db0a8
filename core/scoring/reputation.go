package scoring

import (
	"github.com/llm-defender/defender-go/log"
)

// Scores is the exponentially-smoothed per-worker reputation vector,
// indexed positionally to match the registry snapshot. All mutations
// happen on the coordinator goroutine at round boundaries.
type Scores struct {
	values []float64
	log    log.Logger
}

// NewScores returns an all-zero vector sized to the registry.
func NewScores(size int) *Scores {
	s := &Scores{log: log.New("component", "scores")}
	s.Reset(size)
	return s
}

// NewScoresFromValues wraps a vector loaded from persisted state.
func NewScoresFromValues(values []float64) *Scores {
	copied := make([]float64, len(values))
	copy(copied, values)
	return &Scores{values: copied, log: log.New("component", "scores")}
}

func (s *Scores) Len() int {
	return len(s.values)
}

// Get returns the score for a uid, zero when the uid was never seen.
func (s *Scores) Get(uid int) float64 {
	if uid < 0 || uid >= len(s.values) {
		return 0.0
	}
	return s.values[uid]
}

// Values returns a copy of the vector.
func (s *Scores) Values() []float64 {
	values := make([]float64, len(s.values))
	copy(values, s.values)
	return values
}

// Update applies the EMA rule new = alpha*raw + (1-alpha)*old for the
// uid and returns the previous and the new score. roundWeight scales
// reported telemetry only; the stored value is always the unweighted
// EMA.
func (s *Scores) Update(uid int, alpha, raw, roundWeight float64) (old, unweighted float64) {
	if uid >= len(s.values) {
		grown := make([]float64, uid+1)
		copy(grown, s.values)
		s.values = grown
	}
	old = s.values[uid]
	unweighted = alpha*raw + (1-alpha)*old
	s.values[uid] = unweighted

	s.log.Trace("Score updated", "uid", uid, "old", old, "new", unweighted,
		"raw", raw, "alpha", alpha, "weight", roundWeight)
	return old, unweighted
}

// Reset reinitializes the whole vector to zero. Used on first run and
// whenever the persisted state cannot be trusted.
func (s *Scores) Reset(size int) {
	s.values = make([]float64, size)
	s.log.Info("Initialized default scores", "size", size)
}

// ResetOnMembershipChange reconciles the vector with a fresh registry
// snapshot. A length mismatch discards the whole vector; a positional
// hotkey mismatch resets only that slot, which handles slot reuse after
// a worker deregisters.
func (s *Scores) ResetOnMembershipChange(knownHotkeys, currentHotkeys []string) (fullReset bool) {
	if len(knownHotkeys) != len(currentHotkeys) {
		s.log.Info("Score reset because of hotkey length mismatch",
			"expected", len(currentHotkeys), "had", len(knownHotkeys))
		s.Reset(len(currentHotkeys))
		return true
	}
	for i, hotkey := range currentHotkeys {
		if knownHotkeys[i] != hotkey {
			s.log.Debug("Mismatching hotkey, resetting score", "uid", i,
				"old", knownHotkeys[i], "new", hotkey, "score", s.values[i])
			s.values[i] = 0.0
		}
	}
	return false
}
