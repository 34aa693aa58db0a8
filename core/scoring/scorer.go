package scoring

import (
	"time"

	"github.com/llm-defender/defender-go/core/penalty"
	"github.com/llm-defender/defender-go/core/types"
	"github.com/llm-defender/defender-go/log"
)

// Fixed subscore weights.
const (
	DistanceWeight = 0.85
	SpeedWeight    = 0.15
)

// Comparator is the semantic content comparator collaborator. ok is
// false when the response cannot be evaluated against the target.
type Comparator interface {
	Distance(resp *types.Response, target float64) (score float64, ok bool)
}

// ScoreResult carries every component of a scored response for
// auditability. The zero value is the fail-closed result.
type ScoreResult struct {
	Total           float64 `json:"total"`
	Distance        float64 `json:"distance"`
	Speed           float64 `json:"speed"`
	DistancePenalty float64 `json:"distance_penalty"`
	SpeedPenalty    float64 `json:"speed_penalty"`
	RawDistance     float64 `json:"raw_distance"`
	RawSpeed        float64 `json:"raw_speed"`
}

// Scorer computes a worker's round score from the comparator value, the
// response timing and the penalty multipliers.
type Scorer struct {
	comparator Comparator
	penalties  *penalty.Evaluator
	log        log.Logger
}

func NewScorer(comparator Comparator, penalties *penalty.Evaluator) *Scorer {
	return &Scorer{
		comparator: comparator,
		penalties:  penalties,
		log:        log.New("component", "scoring"),
	}
}

// Score computes the bounded round score for a structurally valid
// response. Out-of-range subscores or components fail closed to a zero
// result instead of being clamped, so a corrupted input can never leak
// into the reputation vector.
func (s *Scorer) Score(uid int, hotkey string, resp *types.Response, target float64, prompt string, responseTime, timeout time.Duration) ScoreResult {
	distance, ok := s.comparator.Distance(resp, target)
	if !ok {
		s.log.Debug("Comparator flagged an invalid response", "hotkey", hotkey, "uuid", resp.SynapseUUID)
		distance = 0.0
	}
	speed := SpeedSubscore(responseTime, timeout)

	if !types.InRange(distance, 0.0, 1.0) || !types.InRange(speed, 0.0, 1.0) {
		s.log.Error("Calculated out-of-bounds individual scores",
			"hotkey", hotkey, "distance", distance, "speed", speed)
		return ScoreResult{}
	}

	similarity, base, duplicate := s.penalties.Evaluate(uid, hotkey, resp, prompt)
	distanceMul, speedMul := penalty.Multipliers(similarity, base, duplicate)

	finalDistance := DistanceWeight * distance * distanceMul
	finalSpeed := SpeedWeight * speed * speedMul
	total := finalDistance + finalSpeed

	if !types.InRange(total, 0.0, 1.0) ||
		!types.InRange(finalDistance, 0.0, 1.0) ||
		!types.InRange(finalSpeed, 0.0, 1.0) {
		s.log.Error("Calculated out-of-bounds penalized scores", "hotkey", hotkey,
			"total", total, "distance", finalDistance, "speed", finalSpeed)
		return ScoreResult{}
	}

	result := ScoreResult{
		Total:           total,
		Distance:        finalDistance,
		Speed:           finalSpeed,
		DistancePenalty: distanceMul,
		SpeedPenalty:    speedMul,
		RawDistance:     distance,
		RawSpeed:        speed,
	}
	s.log.Debug("Calculated score", "hotkey", hotkey, "uuid", resp.SynapseUUID,
		"total", result.Total, "distance", result.Distance, "speed", result.Speed,
		"distance_penalty", result.DistancePenalty, "speed_penalty", result.SpeedPenalty)
	return result
}

// SpeedSubscore maps the response time onto [0,1]: instant responses
// score 1, responses at or beyond the timeout score 0 but are still
// accepted.
func SpeedSubscore(responseTime, timeout time.Duration) float64 {
	if timeout <= 0 {
		return 0.0
	}
	if responseTime > timeout {
		responseTime = timeout
	}
	return 1.0 - responseTime.Seconds()/timeout.Seconds()
}
