package domain

import "math"

// scorePrecision removes floating point drift from sums of fixed weights so
// that e.g. 0.25+0.20+0.20+0.35 persists as exactly 1.
const scorePrecision = 1e6

// RoundScore rounds v to six decimal places.
func RoundScore(v float64) float64 {
	return math.Round(v*scorePrecision) / scorePrecision
}

// ClampScore bounds v to [0, 1]. NaN maps to 0.
func ClampScore(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
