package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/jp3tty/FraudDocAI/internal/core/domain"
)

// DocumentRepository stores documents and analysis results in one table.
// Result payloads are jsonb columns holding the versioned result structs.
type DocumentRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *DocumentRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101601)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	filename TEXT NOT NULL,
	mime_type TEXT NOT NULL,
	status TEXT NOT NULL CHECK (status IN ('uploaded', 'processing', 'processed', 'failed')),
	extracted_text TEXT,
	fraud_score DOUBLE PRECISION,
	risk_level TEXT,
	pattern_analysis JSONB,
	emotion_analysis JSONB,
	failure_reason TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO documents (
	id, filename, mime_type, status, extracted_text, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7)
`,
		doc.ID, doc.Filename, doc.MimeType, string(doc.Status), nullString(doc.ExtractedText), doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

const selectDocument = `
SELECT id, filename, mime_type, status, extracted_text, fraud_score, risk_level,
	pattern_analysis, emotion_analysis, failure_reason, created_at, updated_at
FROM documents
`

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, selectDocument+`WHERE id = $1`, id)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id %s", id))
		}
		return nil, err
	}
	return doc, nil
}

// List pages newest first. The filter is expected to be normalized already;
// a non-positive limit returns every matching row.
func (r *DocumentRepository) List(ctx context.Context, filter domain.DocumentFilter) ([]*domain.Document, error) {
	var limit any
	if filter.Limit > 0 {
		limit = filter.Limit
	}
	rows, err := r.db.QueryContext(ctx, selectDocument+`
WHERE ($1 = '' OR status = $1)
ORDER BY created_at DESC, id
LIMIT $2 OFFSET $3
`, string(filter.Status), limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	docs := []*domain.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanDocument returns sql.ErrNoRows unwrapped so callers can map it.
func scanDocument(row rowScanner) (*domain.Document, error) {
	var (
		doc        domain.Document
		status     string
		text       sql.NullString
		score      sql.NullFloat64
		risk       sql.NullString
		patternRaw []byte
		emotionRaw []byte
	)
	err := row.Scan(
		&doc.ID, &doc.Filename, &doc.MimeType, &status, &text, &score, &risk,
		&patternRaw, &emotionRaw, &doc.FailureReason, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}

	doc.Status = domain.DocumentStatus(status)
	if text.Valid {
		doc.ExtractedText = &text.String
	}
	if score.Valid {
		doc.FraudScore = &score.Float64
	}
	if risk.Valid {
		level := domain.RiskLevel(risk.String)
		doc.RiskLevel = &level
	}
	if len(patternRaw) > 0 {
		var pattern domain.PatternResult
		if err := json.Unmarshal(patternRaw, &pattern); err != nil {
			return nil, fmt.Errorf("unmarshal pattern analysis: %w", err)
		}
		doc.PatternAnalysis = &pattern
	}
	if len(emotionRaw) > 0 {
		var emotion domain.EmotionResult
		if err := json.Unmarshal(emotionRaw, &emotion); err != nil {
			return nil, fmt.Errorf("unmarshal emotion analysis: %w", err)
		}
		doc.EmotionAnalysis = &emotion
	}
	return &doc, nil
}

// ClaimForProcessing is the compare-and-set uploaded -> processing. Exactly
// one concurrent caller sees a row affected.
func (r *DocumentRepository) ClaimForProcessing(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = $2, updated_at = $3
WHERE id = $1 AND status = $4
`, id, string(domain.StatusProcessing), r.now(), string(domain.StatusUploaded))
	if err != nil {
		return false, fmt.Errorf("claim document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim document rows affected: %w", err)
	}
	if affected == 1 {
		return true, nil
	}

	// Distinguish a lost claim from an unknown id.
	if _, err := r.GetStatus(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

// WriteResult persists the terminal status together with every result field
// in one statement, guarded on the document still being processing.
func (r *DocumentRepository) WriteResult(ctx context.Context, id string, outcome domain.AnalysisOutcome) error {
	if !outcome.Status.IsTerminal() {
		return domain.WrapError(domain.ErrInvalidInput, "write result", fmt.Errorf("status %q is not terminal", outcome.Status))
	}

	patternJSON, err := marshalNullable(outcome.PatternAnalysis)
	if err != nil {
		return fmt.Errorf("marshal pattern analysis: %w", err)
	}
	emotionJSON, err := marshalNullable(outcome.EmotionAnalysis)
	if err != nil {
		return fmt.Errorf("marshal emotion analysis: %w", err)
	}
	var risk any
	if outcome.RiskLevel != nil {
		risk = string(*outcome.RiskLevel)
	}
	var score any
	if outcome.FraudScore != nil {
		score = *outcome.FraudScore
	}

	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = $2, fraud_score = $3, risk_level = $4, pattern_analysis = $5,
	emotion_analysis = $6, failure_reason = $7, updated_at = $8
WHERE id = $1 AND status = $9
`, id, string(outcome.Status), score, risk, patternJSON, emotionJSON, outcome.Reason, r.now(), string(domain.StatusProcessing))
	if err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("write result rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrNotClaimed, "write result", fmt.Errorf("document %s is not processing", id))
	}
	return nil
}

func (r *DocumentRepository) GetStatus(ctx context.Context, id string) (domain.DocumentStatus, error) {
	var status string
	err := r.db.QueryRowContext(ctx, `SELECT status FROM documents WHERE id = $1`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.WrapError(domain.ErrDocumentNotFound, "get status", fmt.Errorf("id %s", id))
		}
		return "", fmt.Errorf("scan status: %w", err)
	}
	return domain.DocumentStatus(status), nil
}

func (r *DocumentRepository) GetExtractedText(ctx context.Context, id string) (string, error) {
	var text sql.NullString
	err := r.db.QueryRowContext(ctx, `SELECT extracted_text FROM documents WHERE id = $1`, id).Scan(&text)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.WrapError(domain.ErrDocumentNotFound, "get extracted text", fmt.Errorf("id %s", id))
		}
		return "", fmt.Errorf("scan extracted text: %w", err)
	}
	if !text.Valid {
		return "", domain.WrapError(domain.ErrTextNotAvailable, "get extracted text", fmt.Errorf("document %s", id))
	}
	return text.String, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// marshalNullable keeps SQL NULL for absent results so that "not run" is
// distinguishable from an empty result.
func marshalNullable[T any](v *T) (any, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return raw, nil
}
