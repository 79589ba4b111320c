package domain

// ResultSchemaVersion tags persisted analysis records so readers can tell
// layouts apart once the structure evolves.
const ResultSchemaVersion = 1

type PatternCategory string

const (
	CategoryUrgency            PatternCategory = "urgency"
	CategoryConfidentiality    PatternCategory = "confidentiality"
	CategoryWireOnlyPayment    PatternCategory = "wire_only_payment"
	CategoryLargeAmountUrgency PatternCategory = "large_amount_urgency"
)

// PatternMatch is one matched indicator category. Triggers holds the spans of
// document text (phrases or amounts) that caused the match, as written.
type PatternMatch struct {
	Category PatternCategory `json:"category"`
	Weight   float64         `json:"weight"`
	Triggers []string        `json:"triggers"`
}

type PatternResult struct {
	SchemaVersion int            `json:"schema_version"`
	Matches       []PatternMatch `json:"matches"`
	Score         float64        `json:"pattern_score"`
}

// Matched reports whether category is present in the result.
func (r PatternResult) Matched(category PatternCategory) bool {
	for _, m := range r.Matches {
		if m.Category == category {
			return true
		}
	}
	return false
}

type Emotion string

const (
	EmotionAnger    Emotion = "anger"
	EmotionFear     Emotion = "fear"
	EmotionJoy      Emotion = "joy"
	EmotionLove     Emotion = "love"
	EmotionSadness  Emotion = "sadness"
	EmotionSurprise Emotion = "surprise"
)

// Emotions is the fixed classifier vocabulary in response order.
var Emotions = []Emotion{EmotionAnger, EmotionFear, EmotionJoy, EmotionLove, EmotionSadness, EmotionSurprise}

// IsFraudIndicating reports whether e counts as evidence of manipulation framing.
func (e Emotion) IsFraudIndicating() bool {
	switch e {
	case EmotionAnger, EmotionFear, EmotionSadness:
		return true
	default:
		return false
	}
}

type EmotionScore struct {
	Emotion    Emotion `json:"emotion"`
	Confidence float64 `json:"confidence"`
}

type FraudIndicator struct {
	Emotion    Emotion `json:"emotion"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

type EmotionResult struct {
	SchemaVersion   int              `json:"schema_version"`
	Model           string           `json:"model,omitempty"`
	Emotions        []EmotionScore   `json:"emotions"`
	FraudIndicators []FraudIndicator `json:"fraud_indicators"`
	Score           float64          `json:"emotion_score"`
}
