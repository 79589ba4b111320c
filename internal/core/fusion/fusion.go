// Package fusion combines pattern and emotion scores into the final fraud
// score and risk level.
package fusion

import "github.com/jp3tty/FraudDocAI/internal/core/domain"

const (
	EmotionWeight = 0.4
	PatternWeight = 0.6
)

// Risk thresholds are lower bounds of half-open intervals.
const (
	MediumThreshold   = 0.3
	HighThreshold     = 0.6
	CriticalThreshold = 0.8
)

// Fuse computes the fraud score from a pattern result and an optional emotion
// result. Without emotion input the pattern score carries the full weight;
// this is the only degradation rule.
func Fuse(pattern domain.PatternResult, emotion *domain.EmotionResult) (float64, domain.RiskLevel) {
	score := Score(pattern.Score, emotion)
	return score, RiskLevelFor(score)
}

func Score(patternScore float64, emotion *domain.EmotionResult) float64 {
	if emotion == nil {
		return domain.ClampScore(patternScore)
	}
	weighted := EmotionWeight*domain.ClampScore(emotion.Score) + PatternWeight*domain.ClampScore(patternScore)
	return domain.ClampScore(domain.RoundScore(weighted))
}

func RiskLevelFor(score float64) domain.RiskLevel {
	switch {
	case score >= CriticalThreshold:
		return domain.RiskCritical
	case score >= HighThreshold:
		return domain.RiskHigh
	case score >= MediumThreshold:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}
