package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jp3tty/FraudDocAI/internal/config"
	"github.com/jp3tty/FraudDocAI/internal/core/domain"
	"github.com/jp3tty/FraudDocAI/internal/core/pattern"
	"github.com/jp3tty/FraudDocAI/internal/observability/metrics"
)

type ingestFake struct {
	err error

	gotFilename string
	gotMimeType string
	gotText     string
	gotBody     string
	requested   []string
}

func (f *ingestFake) SubmitText(_ context.Context, filename, text string) (*domain.Document, error) {
	f.gotFilename = filename
	f.gotText = text
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Document{ID: "doc-1", Filename: filename, MimeType: "text/plain", Status: domain.StatusUploaded, ExtractedText: &text}, nil
}

func (f *ingestFake) SubmitFile(_ context.Context, filename, mimeType string, body io.Reader) (*domain.Document, error) {
	f.gotFilename = filename
	f.gotMimeType = mimeType
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	f.gotBody = string(raw)
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Document{ID: "doc-2", Filename: filename, MimeType: mimeType, Status: domain.StatusUploaded}, nil
}

func (f *ingestFake) RequestAnalysis(_ context.Context, documentID string) error {
	if f.err != nil {
		return f.err
	}
	f.requested = append(f.requested, documentID)
	return nil
}

type docsFake struct {
	doc *domain.Document
	err error

	listed  []*domain.Document
	filters []domain.DocumentFilter
}

func (f *docsFake) List(_ context.Context, filter domain.DocumentFilter) ([]*domain.Document, error) {
	f.filters = append(f.filters, filter)
	if f.err != nil {
		return nil, f.err
	}
	return f.listed, nil
}

func (f *docsFake) GetByID(_ context.Context, id string) (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.doc == nil || f.doc.ID != id {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", errors.New(id))
	}
	return f.doc, nil
}

func (f *docsFake) Status(ctx context.Context, id string) (domain.DocumentStatus, error) {
	doc, err := f.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return doc.Status, nil
}

func newTestRouter(t *testing.T, cfg config.Config, ingest *ingestFake, docs *docsFake) *Router {
	t.Helper()
	analyzer, err := pattern.NewDefault(pattern.DefaultLargeAmountThreshold)
	if err != nil {
		t.Fatalf("build analyzer: %v", err)
	}
	return NewRouter(cfg, ingest, docs, analyzer)
}

func newTestHandler(t *testing.T, cfg config.Config, ingest *ingestFake, docs *docsFake) http.Handler {
	t.Helper()
	return newTestRouter(t, cfg, ingest, docs).Handler()
}

func decodeBody(t *testing.T, res *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(res.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", res.Body.String(), err)
	}
	return out
}

func TestSubmitTextCreatesDocument(t *testing.T) {
	ingest := &ingestFake{}
	handler := newTestHandler(t, config.Config{}, ingest, &docsFake{})

	payload, _ := json.Marshal(map[string]string{"filename": "invoice.txt", "text": "URGENT wire transfer"})
	req := httptest.NewRequest(http.MethodPost, "/v1/documents", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", res.Code, res.Body.String())
	}
	if ingest.gotText != "URGENT wire transfer" || ingest.gotFilename != "invoice.txt" {
		t.Fatalf("unexpected submission: %+v", ingest)
	}

	body := decodeBody(t, res)
	if body["id"] != "doc-1" || body["status"] != "uploaded" {
		t.Fatalf("unexpected body: %v", body)
	}
	if body["has_text"] != true {
		t.Fatalf("expected has_text true, got %v", body["has_text"])
	}
	if _, ok := body["extracted_text"]; ok {
		t.Fatalf("extracted text must not be exposed")
	}
}

func TestSubmitFileFallsBackToExtensionMimeType(t *testing.T) {
	ingest := &ingestFake{}
	handler := newTestHandler(t, config.Config{}, ingest, &docsFake{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "scan.pdf")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	_, _ = part.Write([]byte("%PDF-1.4"))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", res.Code, res.Body.String())
	}
	if ingest.gotMimeType != "application/pdf" {
		t.Fatalf("expected application/pdf, got %q", ingest.gotMimeType)
	}
	if ingest.gotBody != "%PDF-1.4" {
		t.Fatalf("unexpected body %q", ingest.gotBody)
	}
}

func TestSubmitRejectsUnsupportedContentType(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, &ingestFake{}, &docsFake{})

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", strings.NewReader("hello"))
	req.Header.Set("Content-Type", "text/plain")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d", res.Code)
	}
}

func TestSubmitRejectsOversizedBody(t *testing.T) {
	handler := newTestHandler(t, config.Config{APIMaxUploadBytes: 16}, &ingestFake{}, &docsFake{})

	payload, _ := json.Marshal(map[string]string{"text": strings.Repeat("a", 64)})
	req := httptest.NewRequest(http.MethodPost, "/v1/documents", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", res.Code)
	}
}

func TestGetDocumentReturnsResults(t *testing.T) {
	score := 0.58
	risk := domain.RiskMedium
	text := "secret"
	docs := &docsFake{doc: &domain.Document{
		ID:            "doc-7",
		Status:        domain.StatusProcessed,
		ExtractedText: &text,
		FraudScore:    &score,
		RiskLevel:     &risk,
		PatternAnalysis: &domain.PatternResult{
			SchemaVersion: domain.ResultSchemaVersion,
			Matches:       []domain.PatternMatch{},
		},
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}}
	handler := newTestHandler(t, config.Config{}, &ingestFake{}, docs)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/documents/doc-7", nil))

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	body := decodeBody(t, res)
	if body["fraud_score"] != 0.58 || body["risk_level"] != "medium" {
		t.Fatalf("unexpected body: %v", body)
	}
	if body["emotion_analysis"] != nil {
		t.Fatalf("expected null emotion analysis, got %v", body["emotion_analysis"])
	}
	if strings.Contains(res.Body.String(), "secret") {
		t.Fatalf("extracted text leaked: %s", res.Body.String())
	}
}

func TestListDocumentsPassesFilter(t *testing.T) {
	text := "do not leak"
	docs := &docsFake{listed: []*domain.Document{
		{ID: "doc-2", Status: domain.StatusFailed, ExtractedText: &text, FailureReason: "missing analysis input"},
		{ID: "doc-1", Status: domain.StatusFailed},
	}}
	handler := newTestHandler(t, config.Config{}, &ingestFake{}, docs)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/documents?status=failed&limit=2&offset=4", nil))

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	want := domain.DocumentFilter{Status: domain.StatusFailed, Limit: 2, Offset: 4}
	if len(docs.filters) != 1 || docs.filters[0] != want {
		t.Fatalf("unexpected filters: %+v", docs.filters)
	}
	var body struct {
		Documents []documentView `json:"documents"`
		Count     int            `json:"count"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Count != 2 || body.Documents[0].ID != "doc-2" || !body.Documents[0].HasText {
		t.Fatalf("unexpected body: %+v", body)
	}
	if strings.Contains(res.Body.String(), text) {
		t.Fatalf("extracted text leaked: %s", res.Body.String())
	}
}

func TestListDocumentsRejectsBadParams(t *testing.T) {
	docs := &docsFake{err: domain.WrapError(domain.ErrInvalidInput, "list documents", errors.New("unknown status"))}
	handler := newTestHandler(t, config.Config{}, &ingestFake{}, docs)

	for _, target := range []string{"/v1/documents?limit=ten", "/v1/documents?offset=1.5", "/v1/documents?status=archived"} {
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, target, nil))
		if res.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", target, res.Code)
		}
	}
	if len(docs.filters) != 1 {
		t.Fatalf("expected only the status request to reach the reader, got %+v", docs.filters)
	}
}

func TestGetDocumentStatus(t *testing.T) {
	docs := &docsFake{doc: &domain.Document{ID: "doc-7", Status: domain.StatusProcessing}}
	handler := newTestHandler(t, config.Config{}, &ingestFake{}, docs)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/documents/doc-7/status", nil))

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	body := decodeBody(t, res)
	if body["status"] != "processing" || body["document_id"] != "doc-7" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestRequestAnalysisReturns202(t *testing.T) {
	ingest := &ingestFake{}
	handler := newTestHandler(t, config.Config{}, ingest, &docsFake{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/v1/documents/doc-9/analyze", nil))

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", res.Code)
	}
	if len(ingest.requested) != 1 || ingest.requested[0] != "doc-9" {
		t.Fatalf("unexpected requests: %v", ingest.requested)
	}
}

func TestListPatternsExposesRulePack(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, &ingestFake{}, &docsFake{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/fraud/patterns", nil))

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	body := decodeBody(t, res)
	if body["large_amount_threshold"] != float64(pattern.DefaultLargeAmountThreshold) {
		t.Fatalf("unexpected threshold: %v", body["large_amount_threshold"])
	}
	rules, ok := body["rules"].(map[string]any)
	if !ok {
		t.Fatalf("expected rules object, got %T", body["rules"])
	}
	phrases, _ := rules["phrases"].([]any)
	if len(phrases) != 3 {
		t.Fatalf("expected 3 phrase rules, got %d", len(phrases))
	}
}

func TestMethodNotAllowed(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, &ingestFake{}, &docsFake{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodDelete, "/v1/documents/doc-1", nil))

	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", res.Code)
	}
}

func TestMetricsEndpointCountsRequests(t *testing.T) {
	m := metrics.NewHTTPServerMetrics("api")
	handler := newTestRouter(t, config.Config{}, &ingestFake{}, &docsFake{}).WithMetrics(m, "api").Handler()

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/documents/abc/status", nil))

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), `path="/v1/documents/{document_id}/status"`) {
		t.Fatalf("expected normalized path label in metrics output")
	}
}
