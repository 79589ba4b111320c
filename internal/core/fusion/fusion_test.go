package fusion

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jp3tty/FraudDocAI/internal/core/domain"
)

func TestRiskLevelBoundaries(t *testing.T) {
	cases := map[float64]domain.RiskLevel{
		0.0:     domain.RiskLow,
		0.29999: domain.RiskLow,
		0.3:     domain.RiskMedium,
		0.59999: domain.RiskMedium,
		0.6:     domain.RiskHigh,
		0.79999: domain.RiskHigh,
		0.8:     domain.RiskCritical,
		1.0:     domain.RiskCritical,
	}
	for score, want := range cases {
		require.Equal(t, want, RiskLevelFor(score), "score %v", score)
	}
}

func TestFuseDegradedUsesPatternScoreExactly(t *testing.T) {
	for _, p := range []float64{0, 0.2, 0.25, 0.45, 0.65, 1} {
		score, _ := Fuse(domain.PatternResult{Score: p}, nil)
		require.Equal(t, p, score)
	}
}

func TestFuseWeighted(t *testing.T) {
	emotion := &domain.EmotionResult{Score: 0.08}

	score, risk := Fuse(domain.PatternResult{Score: 0}, emotion)

	require.Equal(t, 0.032, score)
	require.Equal(t, domain.RiskLow, risk)
}

func TestFuseWeightedCritical(t *testing.T) {
	score, risk := Fuse(domain.PatternResult{Score: 1}, &domain.EmotionResult{Score: 0.5})

	require.Equal(t, 0.8, score)
	require.Equal(t, domain.RiskCritical, risk)
}

func TestFuseStaysInUnitRange(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 10000; i++ {
		p := rng.Float64()
		e := rng.Float64()
		if i%50 == 0 {
			p, e = 1, 1
		}

		weighted := Score(p, &domain.EmotionResult{Score: e})
		require.GreaterOrEqual(t, weighted, 0.0)
		require.LessOrEqual(t, weighted, 1.0)

		degraded := Score(p, nil)
		require.GreaterOrEqual(t, degraded, 0.0)
		require.LessOrEqual(t, degraded, 1.0)
	}
}

func TestFuseClampsOutOfRangeInputs(t *testing.T) {
	require.Equal(t, 1.0, Score(3, &domain.EmotionResult{Score: 2}))
	require.Equal(t, 0.0, Score(-1, nil))
}
