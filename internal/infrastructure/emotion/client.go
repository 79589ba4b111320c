// Package emotion is the HTTP client for the remote emotion classification
// service. Classify never returns a partial result: either the response maps
// cleanly onto the six-label vocabulary or the call reports the classifier as
// unavailable or timed out.
package emotion

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jp3tty/FraudDocAI/internal/core/domain"
	"github.com/jp3tty/FraudDocAI/internal/infrastructure/resilience"
)

const (
	DefaultTimeout       = 5 * time.Second
	DefaultMaxInputChars = 512

	// IndicatorThreshold is the confidence a fraud-indicating emotion must
	// exceed to be reported as an indicator.
	IndicatorThreshold = 0.05

	operationClassify = "emotion_classify"
)

var indicatorReasons = map[domain.Emotion]string{
	domain.EmotionAnger:   "anger can indicate frustration with legitimate processes or manipulation",
	domain.EmotionFear:    "fear often accompanies fraudulent activity due to risk of discovery",
	domain.EmotionSadness: "sadness might indicate desperation or a pity appeal",
}

type Options struct {
	// MaxInputChars caps the text sent to the model, in runes.
	MaxInputChars int
	Policy        resilience.Config
	HTTPClient    *http.Client
}

type Client struct {
	baseURL       string
	maxInputChars int
	httpClient    *http.Client
	executor      *resilience.Executor
}

func New(baseURL string, opts Options) *Client {
	maxChars := opts.MaxInputChars
	if maxChars <= 0 {
		maxChars = DefaultMaxInputChars
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		// Attempts are bounded through their context.
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		maxInputChars: maxChars,
		httpClient:    httpClient,
		executor:      resilience.NewExecutor(opts.Policy),
	}
}

type classifyRequest struct {
	Text string `json:"text"`
}

type labelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

type classifyResponse struct {
	Model  string       `json:"model"`
	Scores []labelScore `json:"scores"`
}

// Classify scores text against the emotion vocabulary. Each attempt is bounded
// by timeout and a timed-out attempt is retried once with the same budget.
func (c *Client) Classify(ctx context.Context, text string, timeout time.Duration) (domain.EmotionResult, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	req := classifyRequest{Text: truncateRunes(text, c.maxInputChars)}

	var result domain.EmotionResult
	err := c.executor.ExecuteWithTimeout(ctx, operationClassify, timeout, func(ctx context.Context) error {
		var resp classifyResponse
		if err := c.postJSON(ctx, "/classify", req, &resp, "classify"); err != nil {
			return err
		}
		mapped, err := toResult(resp)
		if err != nil {
			return err
		}
		result = mapped
		return nil
	}, classifyEmotionError)
	if err != nil {
		return domain.EmotionResult{}, mapClassifyError(err)
	}
	return result, nil
}

// toResult validates the raw label scores and derives indicators and the
// emotion score. Labels missing from the response score 0.
func toResult(resp classifyResponse) (domain.EmotionResult, error) {
	seen := make(map[domain.Emotion]float64, len(domain.Emotions))
	for _, s := range resp.Scores {
		label := domain.Emotion(strings.ToLower(strings.TrimSpace(s.Label)))
		if !knownEmotion(label) {
			return domain.EmotionResult{}, &MalformedResponseError{Reason: fmt.Sprintf("unknown label %q", s.Label)}
		}
		if math.IsNaN(s.Score) || s.Score < 0 || s.Score > 1 {
			return domain.EmotionResult{}, &MalformedResponseError{Reason: fmt.Sprintf("confidence %v for %q outside [0,1]", s.Score, label)}
		}
		if _, dup := seen[label]; dup {
			return domain.EmotionResult{}, &MalformedResponseError{Reason: fmt.Sprintf("duplicate label %q", label)}
		}
		seen[label] = s.Score
	}

	result := domain.EmotionResult{
		SchemaVersion:   domain.ResultSchemaVersion,
		Model:           resp.Model,
		Emotions:        make([]domain.EmotionScore, 0, len(domain.Emotions)),
		FraudIndicators: []domain.FraudIndicator{},
	}
	var sum float64
	for _, e := range domain.Emotions {
		confidence := seen[e]
		result.Emotions = append(result.Emotions, domain.EmotionScore{Emotion: e, Confidence: confidence})
		if !e.IsFraudIndicating() || confidence <= IndicatorThreshold {
			continue
		}
		result.FraudIndicators = append(result.FraudIndicators, domain.FraudIndicator{
			Emotion:    e,
			Confidence: confidence,
			Reason:     indicatorReasons[e],
		})
		sum += confidence
	}
	result.Score = domain.ClampScore(domain.RoundScore(sum))
	return result, nil
}

func knownEmotion(e domain.Emotion) bool {
	for _, known := range domain.Emotions {
		if e == known {
			return true
		}
	}
	return false
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}
