package penalty

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/llm-defender/defender-go/core/history"
	"github.com/llm-defender/defender-go/core/types"
)

type stubSignal struct {
	value float64
}

func (s stubSignal) Check(uid int, records []history.Record, resp *types.Response, prompt string) float64 {
	return s.value
}

func TestEvaluator_Evaluate_noHistory(t *testing.T) {
	r := require.New(t)

	evaluator := NewEvaluator(history.NewStore(""), stubSignal{1}, stubSignal{2}, stubSignal{3})
	similarity, base, duplicate := evaluator.Evaluate(0, "unseen", &types.Response{}, "p")

	r.Equal(NoHistoryPenalty, similarity)
	r.Equal(NoHistoryPenalty, base)
	r.Equal(NoHistoryPenalty, duplicate)

	// The default distrust halves the speed multiplier and shaves a
	// quarter off the distance multiplier.
	distanceMul, speedMul := Multipliers(similarity, base, duplicate)
	r.Equal(0.75, distanceMul)
	r.Equal(0.5, speedMul)
}

func TestEvaluator_Evaluate_delegatesToSignals(t *testing.T) {
	r := require.New(t)

	store := history.NewStore("")
	store.Append("hk", history.Record{Prompt: "old", Confidence: 0.4})

	evaluator := NewEvaluator(store, stubSignal{1.5}, stubSignal{2.5}, stubSignal{0})
	similarity, base, duplicate := evaluator.Evaluate(0, "hk", &types.Response{}, "p")

	r.Equal(1.5, similarity)
	r.Equal(2.5, base)
	r.Equal(0.0, duplicate)
}

func TestEvaluator_Evaluate_invalidSignalValuesBecomeZero(t *testing.T) {
	r := require.New(t)

	store := history.NewStore("")
	store.Append("hk", history.Record{Prompt: "old"})

	evaluator := NewEvaluator(store, stubSignal{math.NaN()}, stubSignal{-4}, nil)
	similarity, base, duplicate := evaluator.Evaluate(0, "hk", &types.Response{}, "p")

	r.Equal(0.0, similarity)
	r.Equal(0.0, base)
	r.Equal(0.0, duplicate)
}

func Test_Multipliers(t *testing.T) {
	r := require.New(t)

	distanceMul, speedMul := Multipliers(0, 0, 0)
	r.Equal(1.0, distanceMul)
	r.Equal(1.0, speedMul)

	distanceMul, _ = Multipliers(0, 4, 0)
	r.Equal(1-(4/2.0)/10, distanceMul)

	// Similarity and duplicate stack onto the speed multiplier.
	_, speedMul = Multipliers(3, 0, 2)
	r.Equal(1-(5/2.0)/10, speedMul)

	// The rejection threshold zeroes the multiplier outright.
	distanceMul, speedMul = Multipliers(10, 20, 10)
	r.Equal(0.0, distanceMul)
	r.Equal(0.0, speedMul)

	distanceMul, speedMul = Multipliers(25, 19.9, 0)
	r.True(distanceMul > 0)
	r.Equal(0.0, speedMul)
}
