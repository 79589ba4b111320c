package httpadapter

import (
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jp3tty/FraudDocAI/internal/config"
	"github.com/jp3tty/FraudDocAI/internal/core/domain"
	"github.com/jp3tty/FraudDocAI/internal/core/pattern"
	"github.com/jp3tty/FraudDocAI/internal/core/ports"
	"github.com/jp3tty/FraudDocAI/internal/observability/metrics"
)

const defaultMaxUploadBytes = 10 << 20

// PatternCatalog exposes the active rule pack for inspection.
type PatternCatalog interface {
	Rules() pattern.RulePack
	LargeAmountThreshold() float64
}

type Router struct {
	ingest   ports.DocumentIngestor
	docs     ports.DocumentReader
	patterns PatternCatalog

	rateLimitRPS     float64
	rateLimitBurst   int
	maxUploadBytes   int64
	maxInFlight      int
	backpressureWait time.Duration

	metrics        *metrics.HTTPServerMetrics
	metricsService string
}

func NewRouter(
	cfg config.Config,
	ingest ports.DocumentIngestor,
	docs ports.DocumentReader,
	patterns PatternCatalog,
) *Router {
	maxUpload := cfg.APIMaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadBytes
	}
	return &Router{
		ingest:           ingest,
		docs:             docs,
		patterns:         patterns,
		rateLimitRPS:     cfg.APIRateLimitRPS,
		rateLimitBurst:   cfg.APIRateLimitBurst,
		maxUploadBytes:   maxUpload,
		maxInFlight:      cfg.APIMaxInFlight,
		backpressureWait: cfg.APIBackpressureWait,
	}
}

// WithMetrics enables request metrics and the /metrics endpoint.
func (rt *Router) WithMetrics(m *metrics.HTTPServerMetrics, service string) *Router {
	rt.metrics = m
	rt.metricsService = service
	return rt
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("GET /v1/documents", rt.listDocuments)
	mux.HandleFunc("POST /v1/documents", rt.submitDocument)
	mux.HandleFunc("GET /v1/documents/{id}", rt.getDocument)
	mux.HandleFunc("GET /v1/documents/{id}/status", rt.getDocumentStatus)
	mux.HandleFunc("POST /v1/documents/{id}/analyze", rt.requestAnalysis)
	mux.HandleFunc("GET /v1/fraud/patterns", rt.listPatterns)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	var onLimited func()
	if rt.metrics != nil {
		onLimited = func() { rt.metrics.RecordRateLimited(rt.metricsService) }
	}

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.maxInFlight, rt.backpressureWait)
	handler = rateLimitMiddleware(handler, rt.rateLimitRPS, rt.rateLimitBurst, onLimited)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.metricsService, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type submitTextRequest struct {
	Filename string `json:"filename"`
	Text     string `json:"text"`
}

func (rt *Router) submitDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, rt.maxUploadBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var (
		doc  *domain.Document
		err  error
		kind string
	)
	switch mediaType {
	case "application/json":
		var req submitTextRequest
		if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr != nil {
			rt.writeBodyError(w, r, decodeErr, "invalid json")
			return
		}
		kind = "text"
		doc, err = rt.ingest.SubmitText(r.Context(), req.Filename, req.Text)
	case "multipart/form-data":
		file, header, formErr := r.FormFile("file")
		if formErr != nil {
			rt.writeBodyError(w, r, formErr, "multipart field 'file' is required")
			return
		}
		defer file.Close()
		kind = "file"
		doc, err = rt.ingest.SubmitFile(r.Context(), header.Filename, uploadMimeType(header.Header.Get("Content-Type"), header.Filename), file)
	default:
		writeError(w, r, http.StatusUnsupportedMediaType, "content type must be application/json or multipart/form-data")
		return
	}
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, r, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeDomainError(w, r, err)
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordIngest(rt.metricsService, kind)
	}
	writeJSON(w, http.StatusCreated, newDocumentView(doc))
}

func (rt *Router) writeBodyError(w http.ResponseWriter, r *http.Request, err error, message string) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		writeError(w, r, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	writeError(w, r, http.StatusBadRequest, message)
}

// uploadMimeType trusts a specific part content type and otherwise falls
// back to the file extension.
func uploadMimeType(declared, filename string) string {
	if mediaType, _, err := mime.ParseMediaType(declared); err == nil && mediaType != "application/octet-stream" {
		return mediaType
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "application/pdf"
	case ".txt", ".text", ".md":
		return "text/plain"
	default:
		return declared
	}
}

func (rt *Router) getDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := rt.docs.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newDocumentView(doc))
}

func (rt *Router) listDocuments(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := domain.DocumentFilter{Status: domain.DocumentStatus(query.Get("status"))}
	var err error
	if filter.Limit, err = intParam(query.Get("limit")); err != nil {
		writeError(w, r, http.StatusBadRequest, "limit must be an integer")
		return
	}
	if filter.Offset, err = intParam(query.Get("offset")); err != nil {
		writeError(w, r, http.StatusBadRequest, "offset must be an integer")
		return
	}

	docs, err := rt.docs.List(r.Context(), filter)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	views := make([]documentView, len(docs))
	for i, doc := range docs {
		views[i] = newDocumentView(doc)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"documents": views,
		"count":     len(views),
	})
}

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func (rt *Router) getDocumentStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	status, err := rt.docs.Status(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"document_id": id,
		"status":      string(status),
	})
}

func (rt *Router) requestAnalysis(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := rt.ingest.RequestAnalysis(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"document_id": id,
		"status":      "queued",
	})
}

func (rt *Router) listPatterns(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"rules":                  rt.patterns.Rules(),
		"large_amount_threshold": rt.patterns.LargeAmountThreshold(),
	})
}

// documentView is the API shape of a document. Extracted text stays
// server-side.
type documentView struct {
	ID              string                `json:"id"`
	Filename        string                `json:"filename,omitempty"`
	MimeType        string                `json:"mime_type,omitempty"`
	Status          domain.DocumentStatus `json:"status"`
	HasText         bool                  `json:"has_text"`
	FraudScore      *float64              `json:"fraud_score"`
	RiskLevel       *domain.RiskLevel     `json:"risk_level"`
	PatternAnalysis *domain.PatternResult `json:"pattern_analysis"`
	EmotionAnalysis *domain.EmotionResult `json:"emotion_analysis"`
	FailureReason   string                `json:"failure_reason,omitempty"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

func newDocumentView(doc *domain.Document) documentView {
	return documentView{
		ID:              doc.ID,
		Filename:        doc.Filename,
		MimeType:        doc.MimeType,
		Status:          doc.Status,
		HasText:         doc.ExtractedText != nil,
		FraudScore:      doc.FraudScore,
		RiskLevel:       doc.RiskLevel,
		PatternAnalysis: doc.PatternAnalysis,
		EmotionAnalysis: doc.EmotionAnalysis,
		FailureReason:   doc.FailureReason,
		CreatedAt:       doc.CreatedAt,
		UpdatedAt:       doc.UpdatedAt,
	}
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, status, errorResponse{
		Error:     message,
		RequestID: requestIDFromContext(r.Context()),
	})
}

func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error("http_unhandled_error",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
		message = "internal server error"
	}
	writeError(w, r, status, message)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
