package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/jp3tty/FraudDocAI/internal/core/domain"
)

var fixedNow = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

func newRepoWithMock(t *testing.T) (*DocumentRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	repo := NewDocumentRepository(db)
	repo.now = func() time.Time { return fixedNow }
	return repo, mock, func() { _ = db.Close() }
}

func assertExpectations(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

var documentColumns = []string{
	"id", "filename", "mime_type", "status", "extracted_text", "fraud_score", "risk_level",
	"pattern_analysis", "emotion_analysis", "failure_reason", "created_at", "updated_at",
}

func TestEnsureSchemaTakesAdvisoryLock(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WithArgs(int64(2026101601)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS documents").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	if err := repo.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	assertExpectations(t, mock)
}

func TestCreateStoresNullTextWhenAbsent(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("INSERT INTO documents").
		WithArgs("doc-1", "scan.pdf", "application/pdf", "uploaded", nil, fixedNow, fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), &domain.Document{
		ID: "doc-1", Filename: "scan.pdf", MimeType: "application/pdf",
		Status: domain.StatusUploaded, CreatedAt: fixedNow, UpdatedAt: fixedNow,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	assertExpectations(t, mock)
}

func TestGetByIDReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, filename, mime_type, status").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	assertExpectations(t, mock)
}

func TestGetByIDDecodesResults(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	rows := sqlmock.NewRows(documentColumns).AddRow(
		"doc-1", "memo.txt", "text/plain", "processed", "URGENT", 0.25, "low",
		[]byte(`{"schema_version":1,"matches":[{"category":"urgency","weight":0.25,"triggers":["urgent"]}],"pattern_score":0.25}`),
		nil, "", fixedNow, fixedNow,
	)
	mock.ExpectQuery("SELECT id, filename, mime_type, status").WithArgs("doc-1").WillReturnRows(rows)

	doc, err := repo.GetByID(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if doc.Status != domain.StatusProcessed || *doc.ExtractedText != "URGENT" {
		t.Fatalf("unexpected document: %+v", doc)
	}
	if *doc.FraudScore != 0.25 || *doc.RiskLevel != domain.RiskLow {
		t.Fatalf("unexpected score fields: %v/%v", *doc.FraudScore, *doc.RiskLevel)
	}
	if doc.PatternAnalysis == nil || doc.PatternAnalysis.Matches[0].Category != domain.CategoryUrgency {
		t.Fatalf("unexpected pattern analysis: %+v", doc.PatternAnalysis)
	}
	if doc.EmotionAnalysis != nil {
		t.Fatalf("expected nil emotion analysis for degraded result")
	}
	assertExpectations(t, mock)
}

func TestListFiltersByStatusNewestFirst(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	rows := sqlmock.NewRows(documentColumns).
		AddRow("doc-2", "b.txt", "text/plain", "failed", nil, nil, nil, nil, nil, "missing analysis input", fixedNow, fixedNow).
		AddRow("doc-1", "a.txt", "text/plain", "failed", "", nil, nil, nil, nil, "missing analysis input", fixedNow.Add(-time.Hour), fixedNow)
	mock.ExpectQuery(`(?s)SELECT id, filename.*ORDER BY created_at DESC, id\s+LIMIT \$2 OFFSET \$3`).
		WithArgs("failed", 10, 5).
		WillReturnRows(rows)

	docs, err := repo.List(context.Background(), domain.DocumentFilter{Status: domain.StatusFailed, Limit: 10, Offset: 5})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(docs) != 2 || docs[0].ID != "doc-2" || docs[1].ID != "doc-1" {
		t.Fatalf("unexpected documents: %+v", docs)
	}
	if docs[0].ExtractedText != nil || docs[1].ExtractedText == nil {
		t.Fatalf("extracted text nullability lost: %v / %v", docs[0].ExtractedText, docs[1].ExtractedText)
	}
	assertExpectations(t, mock)
}

func TestListWithoutLimitReturnsEmptySlice(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, filename").
		WithArgs("", nil, 0).
		WillReturnRows(sqlmock.NewRows(documentColumns))

	docs, err := repo.List(context.Background(), domain.DocumentFilter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if docs == nil || len(docs) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", docs)
	}
	assertExpectations(t, mock)
}

func TestClaimForProcessingWins(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE documents").
		WithArgs("doc-1", "processing", fixedNow, "uploaded").
		WillReturnResult(sqlmock.NewResult(0, 1))

	claimed, err := repo.ClaimForProcessing(context.Background(), "doc-1")
	if err != nil || !claimed {
		t.Fatalf("expected claim, got %v, %v", claimed, err)
	}
	assertExpectations(t, mock)
}

func TestClaimForProcessingLostClaim(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE documents").
		WithArgs("doc-1", "processing", fixedNow, "uploaded").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT status FROM documents").
		WithArgs("doc-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("processed"))

	claimed, err := repo.ClaimForProcessing(context.Background(), "doc-1")
	if err != nil || claimed {
		t.Fatalf("expected lost claim without error, got %v, %v", claimed, err)
	}
	assertExpectations(t, mock)
}

func TestClaimForProcessingUnknownDocument(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE documents").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT status FROM documents").WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, err := repo.ClaimForProcessing(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	assertExpectations(t, mock)
}

func TestWriteResultSingleGuardedUpdate(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	score := 1.0
	risk := domain.RiskCritical
	outcome := domain.AnalysisOutcome{
		Status:          domain.StatusProcessed,
		FraudScore:      &score,
		RiskLevel:       &risk,
		PatternAnalysis: &domain.PatternResult{SchemaVersion: 1, Matches: []domain.PatternMatch{}, Score: 1},
	}

	mock.ExpectExec("UPDATE documents").
		WithArgs("doc-1", "processed", 1.0, "critical", sqlmock.AnyArg(), nil, "", fixedNow, "processing").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.WriteResult(context.Background(), "doc-1", outcome); err != nil {
		t.Fatalf("WriteResult() error = %v", err)
	}
	assertExpectations(t, mock)
}

func TestWriteResultReturnsNotClaimedWhenNoRowsAffected(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE documents").
		WithArgs("doc-1", "failed", nil, nil, nil, nil, "missing analysis input", fixedNow, "processing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.WriteResult(context.Background(), "doc-1", domain.AnalysisOutcome{
		Status: domain.StatusFailed,
		Reason: "missing analysis input",
	})
	if !domain.IsKind(err, domain.ErrNotClaimed) {
		t.Fatalf("expected ErrNotClaimed, got %v", err)
	}
	assertExpectations(t, mock)
}

func TestWriteResultRejectsNonTerminalStatus(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	err := repo.WriteResult(context.Background(), "doc-1", domain.AnalysisOutcome{Status: domain.StatusProcessing})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	assertExpectations(t, mock)
}

func TestGetExtractedTextNullIsNotAvailable(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT extracted_text FROM documents").
		WithArgs("doc-1").
		WillReturnRows(sqlmock.NewRows([]string{"extracted_text"}).AddRow(nil))

	_, err := repo.GetExtractedText(context.Background(), "doc-1")
	if !domain.IsKind(err, domain.ErrTextNotAvailable) {
		t.Fatalf("expected ErrTextNotAvailable, got %v", err)
	}
	assertExpectations(t, mock)
}

func TestGetStatusNotFound(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT status FROM documents").WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetStatus(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	assertExpectations(t, mock)
}
