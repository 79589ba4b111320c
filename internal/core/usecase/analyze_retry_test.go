package usecase

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jp3tty/FraudDocAI/internal/core/domain"
	"github.com/jp3tty/FraudDocAI/internal/core/pattern"
	"github.com/jp3tty/FraudDocAI/internal/infrastructure/emotion"
	"github.com/jp3tty/FraudDocAI/internal/infrastructure/resilience"
)

func TestAnalyzeWaitsThroughClassifierRetryBackoff(t *testing.T) {
	const (
		attemptTimeout = 50 * time.Millisecond
		retryBackoff   = 1500 * time.Millisecond
	)

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			<-r.Context().Done()
			return
		}
		_, _ = w.Write([]byte(`{"model":"emo-1","scores":[{"label":"anger","score":0.5}]}`))
	}))
	defer server.Close()

	classifier := emotion.New(server.URL, emotion.Options{
		Policy: resilience.ClassifierPolicy(retryBackoff, false),
	})
	patterns, err := pattern.NewDefault(pattern.DefaultLargeAmountThreshold)
	if err != nil {
		t.Fatalf("pattern.NewDefault() error = %v", err)
	}
	store := newStore(t, "doc-retry", textPtr(invoiceText))
	observer := &observerFake{}
	uc := NewAnalyzeDocumentUseCase(store, store, store, patterns, classifier, attemptTimeout, discardLogger()).
		WithClassifierRetryBackoff(retryBackoff).
		WithObserver(observer)

	outcome, err := uc.Analyze(context.Background(), "doc-retry")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("expected 2 classifier calls, got %d", got)
	}
	if outcome.EmotionAnalysis == nil {
		t.Fatalf("scored pattern-only although the retry succeeded: %+v", outcome)
	}
	if *outcome.FraudScore != 0.2 || *outcome.RiskLevel != domain.RiskLow {
		t.Fatalf("expected 0.2/low, got %v/%v", *outcome.FraudScore, *outcome.RiskLevel)
	}
	if len(observer.classifier) != 1 || observer.classifier[0] != classifierOK {
		t.Fatalf("expected one ok classifier event, got %v", observer.classifier)
	}
}

func TestClassifierWaitCoversBothAttemptsAndBackoff(t *testing.T) {
	store := newStore(t, "doc-wait", textPtr(invoiceText))
	uc := newAnalyzer(t, store, &classifierFake{})

	if got, want := uc.classifierWait(), 2*50*time.Millisecond+classifierWaitGrace; got != want {
		t.Fatalf("expected %v without backoff, got %v", want, got)
	}
	uc.WithClassifierRetryBackoff(3 * time.Second)
	if got, want := uc.classifierWait(), 100*time.Millisecond+3*time.Second+classifierWaitGrace; got != want {
		t.Fatalf("expected %v with backoff, got %v", want, got)
	}
	uc.WithClassifierRetryBackoff(-time.Second)
	if got, want := uc.classifierWait(), 100*time.Millisecond+classifierWaitGrace; got != want {
		t.Fatalf("negative backoff must not shrink the wait: expected %v, got %v", want, got)
	}
}
