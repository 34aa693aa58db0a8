package scoring

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScores_Update(t *testing.T) {
	r := require.New(t)

	scores := NewScores(4)
	old, unweighted := scores.Update(2, 0.1, 1.0, 1.0)
	r.Equal(0.0, old)
	r.Equal(0.1*1.0+(1-0.1)*0.0, unweighted)
	r.Equal(unweighted, scores.Get(2))

	// EMA is exact for any alpha in (0,1].
	prev := scores.Get(2)
	old, unweighted = scores.Update(2, 0.3, 0.5, 1.0)
	r.Equal(prev, old)
	r.Equal(0.3*0.5+(1-0.3)*prev, unweighted)

	// alpha of 1 discards the old value entirely.
	_, unweighted = scores.Update(2, 1.0, 0.77, 1.0)
	r.Equal(0.77, unweighted)
}

func TestScores_Update_roundWeightDoesNotAffectStoredValue(t *testing.T) {
	r := require.New(t)

	weighted := NewScores(1)
	unweightedScores := NewScores(1)

	_, a := weighted.Update(0, 0.2, 0.8, 5.0)
	_, b := unweightedScores.Update(0, 0.2, 0.8, 1.0)
	r.Equal(a, b)
	r.Equal(weighted.Get(0), unweightedScores.Get(0))
}

func TestScores_Update_growsForUnseenUid(t *testing.T) {
	r := require.New(t)

	scores := NewScores(2)
	old, _ := scores.Update(5, 0.5, 1.0, 1.0)
	r.Equal(0.0, old)
	r.Equal(6, scores.Len())
	r.Equal(0.5, scores.Get(5))
}

func TestScores_ResetOnMembershipChange(t *testing.T) {
	r := require.New(t)

	scores := NewScoresFromValues([]float64{0.4, 0.5, 0.6})

	// Same membership: nothing changes.
	full := scores.ResetOnMembershipChange([]string{"a", "b", "c"}, []string{"a", "b", "c"})
	r.False(full)
	r.Equal([]float64{0.4, 0.5, 0.6}, scores.Values())

	// One slot changed owner: only that score resets.
	full = scores.ResetOnMembershipChange([]string{"a", "b", "c"}, []string{"a", "x", "c"})
	r.False(full)
	r.Equal([]float64{0.4, 0.0, 0.6}, scores.Values())

	// Population churn: the whole vector reinitializes.
	full = scores.ResetOnMembershipChange([]string{"a", "x", "c"}, []string{"a", "x", "c", "d"})
	r.True(full)
	r.Equal([]float64{0, 0, 0, 0}, scores.Values())
}

func TestScores_Get_outOfRange(t *testing.T) {
	r := require.New(t)

	scores := NewScores(1)
	r.Equal(0.0, scores.Get(-1))
	r.Equal(0.0, scores.Get(10))
}
