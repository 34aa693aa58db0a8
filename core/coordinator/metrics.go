package coordinator

import (
	"github.com/rcrowley/go-metrics"
)

type roundMetrics struct {
	rounds           metrics.Counter
	validResponses   metrics.Counter
	invalidResponses metrics.Counter
	weightsPublished metrics.Counter
	roundTimer       metrics.Timer
}

func newRoundMetrics() *roundMetrics {
	return &roundMetrics{
		rounds:           metrics.GetOrRegisterCounter("coordinator/rounds", metrics.DefaultRegistry),
		validResponses:   metrics.GetOrRegisterCounter("coordinator/responses/valid", metrics.DefaultRegistry),
		invalidResponses: metrics.GetOrRegisterCounter("coordinator/responses/invalid", metrics.DefaultRegistry),
		weightsPublished: metrics.GetOrRegisterCounter("coordinator/weights/published", metrics.DefaultRegistry),
		roundTimer:       metrics.GetOrRegisterTimer("coordinator/round", metrics.DefaultRegistry),
	}
}
