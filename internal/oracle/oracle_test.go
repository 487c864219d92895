package oracle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/vertexai/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestMain(m *testing.M) {
	// Override backoff to avoid real sleeps in retry tests.
	backoffBase = time.Millisecond
	os.Exit(m.Run())
}

// scriptedOracle returns the queued errors in order, then succeeds.
type scriptedOracle struct {
	errs     []error
	calls    int
	analysis *Analysis
	text     string
}

func (s *scriptedOracle) next() error {
	s.calls++
	if s.calls <= len(s.errs) {
		return s.errs[s.calls-1]
	}
	return nil
}

func (s *scriptedOracle) Analyze(context.Context, Content) (*Analysis, error) {
	if err := s.next(); err != nil {
		return nil, err
	}
	return s.analysis, nil
}

func (s *scriptedOracle) Transcribe(context.Context, []byte, string) (string, error) {
	if err := s.next(); err != nil {
		return "", err
	}
	return s.text, nil
}

func (s *scriptedOracle) ExtractText(context.Context, Content) (string, error) {
	if err := s.next(); err != nil {
		return "", err
	}
	return s.text, nil
}

func TestRetry_RetriableThenSuccess(t *testing.T) {
	inner := &scriptedOracle{
		errs:     []error{Retriable("analyze", errors.New("503")), context.DeadlineExceeded},
		analysis: &Analysis{Summary: "ok"},
	}
	r := WithRetry(inner, 3, nil)

	a, err := r.Analyze(context.Background(), Content{Text: "x"})
	require.NoError(t, err)
	assert.Equal(t, "ok", a.Summary)
	assert.Equal(t, 3, inner.calls)
}

func TestRetry_FatalIsNotRetried(t *testing.T) {
	inner := &scriptedOracle{errs: []error{Fatal("analyze", errors.New("malformed request"))}}
	r := WithRetry(inner, 3, nil)

	_, err := r.Analyze(context.Background(), Content{Text: "x"})
	require.Error(t, err)
	assert.False(t, IsRetriable(err))
	assert.Equal(t, 1, inner.calls)
}

func TestRetry_ExhaustsBudget(t *testing.T) {
	transient := Retriable("transcribe", errors.New("unavailable"))
	inner := &scriptedOracle{errs: []error{transient, transient, transient, transient, transient}}
	r := WithRetry(inner, 2, nil)

	_, err := r.Transcribe(context.Background(), []byte("a"), "audio/mpeg")
	require.Error(t, err)
	assert.True(t, IsRetriable(err))
	assert.Equal(t, 3, inner.calls)
}

func TestRetry_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	inner := &scriptedOracle{errs: []error{Retriable("extractText", errors.New("busy"))}}
	r := WithRetry(inner, 3, nil)
	cancel()

	_, err := r.ExtractText(ctx, Content{Text: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, inner.calls)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retriable bool
	}{
		{"deadline", context.DeadlineExceeded, true},
		{"cancelled", context.Canceled, false},
		{"http 503", &googleapi.Error{Code: http.StatusServiceUnavailable}, true},
		{"http 429", &googleapi.Error{Code: http.StatusTooManyRequests}, true},
		{"http 400", &googleapi.Error{Code: http.StatusBadRequest}, false},
		{"grpc unavailable", status.Error(codes.Unavailable, "try later"), true},
		{"grpc invalid argument", status.Error(codes.InvalidArgument, "bad request"), false},
		{"blocked", fmt.Errorf("generate: %w", &genai.BlockedError{}), false},
		{"already fatal", Fatal("analyze", errors.New("x")), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retriable, IsRetriable(Classify("analyze", tt.err)))
		})
	}
	assert.NoError(t, Classify("analyze", nil))
}

func TestCached_AnalyzesIdenticalContentOnce(t *testing.T) {
	inner := &scriptedOracle{analysis: &Analysis{Summary: "cached"}}
	c := WithCache(inner, 8, time.Minute)
	content := Content{Blob: []byte("%PDF-1.7"), MIMEType: "application/pdf"}

	for i := 0; i < 3; i++ {
		a, err := c.Analyze(context.Background(), content)
		require.NoError(t, err)
		assert.Equal(t, "cached", a.Summary)
	}
	assert.Equal(t, 1, inner.calls)

	_, err := c.Analyze(context.Background(), Content{Text: "different"})
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestAnalysis_EventsAndStats(t *testing.T) {
	a := ParseAnalysis(`{"summary":"s","timelineEvents":[{"date":"2024-01-05","description":" Warning ","severity":"high","relevance":"support"},{"date":"2024-01-06","description":""}],"issues":["unfair dismissal",{"name":"notice"}],"entities":["ACME"]}`)
	require.False(t, a.Absent)

	events := a.Events("doc-1")
	require.Len(t, events, 1)
	assert.Equal(t, "Warning", events[0].Description)
	assert.Equal(t, []string{"doc-1"}, events[0].Sources)
	assert.EqualValues(t, "High", events[0].Severity)
	assert.EqualValues(t, "Support", events[0].Relevance)

	stats := a.Stats()
	assert.Equal(t, 2, stats.Events)
	assert.Equal(t, 2, stats.Issues)
	assert.Equal(t, 1, stats.Entities)
}
