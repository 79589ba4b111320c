package domain

import "time"

type DocumentStatus string

const (
	StatusUploaded   DocumentStatus = "uploaded"
	StatusProcessing DocumentStatus = "processing"
	StatusProcessed  DocumentStatus = "processed"
	StatusFailed     DocumentStatus = "failed"
)

// IsTerminal reports whether no further transition can happen from s.
func (s DocumentStatus) IsTerminal() bool {
	return s == StatusProcessed || s == StatusFailed
}

func (s DocumentStatus) Valid() bool {
	switch s {
	case StatusUploaded, StatusProcessing, StatusProcessed, StatusFailed:
		return true
	}
	return false
}

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// DocumentFilter selects a page of documents, newest first. An empty Status
// matches every status.
type DocumentFilter struct {
	Status DocumentStatus
	Limit  int
	Offset int
}

type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

type Document struct {
	ID              string         `json:"id"`
	Filename        string         `json:"filename,omitempty"`
	MimeType        string         `json:"mime_type,omitempty"`
	Status          DocumentStatus `json:"status"`
	ExtractedText   *string        `json:"extracted_text,omitempty"`
	FraudScore      *float64       `json:"fraud_score"`
	RiskLevel       *RiskLevel     `json:"risk_level"`
	PatternAnalysis *PatternResult `json:"pattern_analysis"`
	EmotionAnalysis *EmotionResult `json:"emotion_analysis"`
	FailureReason   string         `json:"failure_reason,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// AnalysisOutcome is everything the coordinator persists for a document in a
// single write. EmotionAnalysis is nil when scoring degraded to pattern-only.
type AnalysisOutcome struct {
	Status          DocumentStatus `json:"status"`
	FraudScore      *float64       `json:"fraud_score"`
	RiskLevel       *RiskLevel     `json:"risk_level"`
	PatternAnalysis *PatternResult `json:"pattern_analysis"`
	EmotionAnalysis *EmotionResult `json:"emotion_analysis"`
	Reason          string         `json:"reason,omitempty"`
}

// Degraded reports whether a processed outcome was scored without emotion input.
func (o AnalysisOutcome) Degraded() bool {
	return o.Status == StatusProcessed && o.EmotionAnalysis == nil
}
