package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jp3tty/FraudDocAI/internal/bootstrap"
	"github.com/jp3tty/FraudDocAI/internal/config"
	"github.com/jp3tty/FraudDocAI/internal/core/domain"
	"github.com/jp3tty/FraudDocAI/internal/core/pattern"
	"github.com/jp3tty/FraudDocAI/internal/core/usecase"
	"github.com/jp3tty/FraudDocAI/internal/infrastructure/extractor"
	"github.com/jp3tty/FraudDocAI/internal/infrastructure/repository/memory"
	"github.com/jp3tty/FraudDocAI/internal/observability/logging"
)

func analyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze [file]",
		Short: "Score a local document without the queue or database",
		Long: `Extract text from a local file (or stdin with "-"), run the pattern
analyzer and, when an emotion service is configured, the emotion
classifier, then print the verdict as JSON.`,
		Args: cobra.ExactArgs(1),
		RunE: runAnalyze,
	}

	cmd.Flags().String("emotion-url", "", "Emotion service base URL (defaults to EMOTION_URL)")
	cmd.Flags().Bool("no-emotion", false, "Score with the pattern analyzer only")
	cmd.Flags().Duration("timeout", 0, "Per-attempt classifier timeout (defaults to EMOTION_TIMEOUT)")

	return cmd
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	level, _ := cmd.Flags().GetString("log-level")
	logger := logging.NewTextLogger(cmd.ErrOrStderr(), level)

	if url, _ := cmd.Flags().GetString("emotion-url"); url != "" {
		cfg.EmotionURL = url
	}
	if off, _ := cmd.Flags().GetBool("no-emotion"); off {
		cfg.EmotionURL = ""
	}
	if timeout, _ := cmd.Flags().GetDuration("timeout"); timeout > 0 {
		cfg.EmotionTimeout = timeout
	}

	filename, body, err := openInput(cmd.InOrStdin(), args[0])
	if err != nil {
		return err
	}
	defer body.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
	defer cancel()

	text, err := extractor.New(cfg.APIMaxUploadBytes).Extract(ctx, mimeTypeFor(filename), body)
	if err != nil {
		return fmt.Errorf("extract %s: %w", filename, err)
	}

	patterns, err := pattern.NewDefault(cfg.PatternLargeAmountThreshold)
	if err != nil {
		return err
	}

	store := memory.New()
	now := time.Now().UTC()
	doc := &domain.Document{
		ID:        "local",
		Filename:  filename,
		MimeType:  mimeTypeFor(filename),
		Status:    domain.StatusUploaded,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if strings.TrimSpace(text) != "" {
		doc.ExtractedText = &text
	}
	if err := store.Create(ctx, doc); err != nil {
		return err
	}

	classifier := bootstrap.NewClassifier(cfg, logger)
	uc := usecase.NewAnalyzeDocumentUseCase(store, store, store, patterns, classifier, cfg.EmotionTimeout, logger).
		WithClassifierRetryBackoff(cfg.EmotionRetryBackoff)
	if _, err := uc.Analyze(ctx, doc.ID); err != nil {
		return err
	}

	result, err := uc.GetByID(ctx, doc.ID)
	if err != nil {
		return err
	}
	result.ExtractedText = nil
	return printJSON(cmd.OutOrStdout(), result)
}

func openInput(stdin io.Reader, path string) (string, io.ReadCloser, error) {
	if path == "-" {
		return "stdin.txt", io.NopCloser(stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return "", nil, fmt.Errorf("open input: %w", err)
	}
	return filepath.Base(path), f, nil
}

func mimeTypeFor(filename string) string {
	if strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return extractor.MimePDF
	}
	return extractor.MimeTextPlain
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
