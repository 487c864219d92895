package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/casebinder/internal/extract"
	"github.com/Lllllllleong/casebinder/internal/ingest"
	"github.com/Lllllllleong/casebinder/internal/models"
	"github.com/Lllllllleong/casebinder/internal/oracle"
	"github.com/Lllllllleong/casebinder/internal/timeline"
)

func doc(id string, status models.Status) models.Document {
	return models.Document{ID: id, Filename: id + ".txt", Status: status}
}

func TestApply_StatusNeverRegresses(t *testing.T) {
	r := New(timeline.Options{}, nil)

	assert.True(t, r.Apply(ingest.Event{Kind: ingest.EventQueued, Document: doc("a", models.StatusQueued)}))
	assert.True(t, r.Apply(ingest.Event{Kind: ingest.EventStarted, Document: doc("a", models.StatusProcessing)}))
	assert.True(t, r.Apply(ingest.Event{Kind: ingest.EventCompleted, Document: doc("a", models.StatusReady)}))

	assert.False(t, r.Apply(ingest.Event{Kind: ingest.EventStarted, Document: doc("a", models.StatusProcessing)}))
	assert.False(t, r.Apply(ingest.Event{Kind: ingest.EventFailed, Document: doc("a", models.StatusError)}))
	assert.False(t, r.Apply(ingest.Event{Kind: ingest.EventQueued, Document: doc("a", models.StatusQueued)}))

	got, ok := r.Document("a")
	require.True(t, ok)
	assert.Equal(t, models.StatusReady, got.Status)
	assert.Len(t, r.Documents(), 1)
}

func TestApply_CompletedEventsFeedTimeline(t *testing.T) {
	r := New(timeline.Options{}, nil)
	for _, id := range []string{"A", "B"} {
		r.Apply(ingest.Event{Kind: ingest.EventQueued, Document: doc(id, models.StatusQueued)})
	}
	r.Apply(ingest.Event{
		Kind:     ingest.EventCompleted,
		Document: doc("A", models.StatusReady),
		Timeline: []models.TimelineEvent{{Date: "2024-01-05", Description: "Verbal warning issued", Sources: []string{"A"}}},
	})
	r.Apply(ingest.Event{
		Kind:     ingest.EventCompleted,
		Document: doc("B", models.StatusReady),
		Timeline: []models.TimelineEvent{{Date: "05/01/2024", Description: "verbal warning issued by manager", Sources: []string{"B"}}},
	})

	tl := r.Timeline()
	require.Len(t, tl, 1)
	assert.Equal(t, "2024-01-05", tl[0].Date)
	assert.Equal(t, []string{"A", "B"}, tl[0].Sources)
}

type stubOracle struct{}

func (stubOracle) Analyze(_ context.Context, c oracle.Content) (*oracle.Analysis, error) {
	return &oracle.Analysis{
		Summary:        "ok",
		TimelineEvents: []oracle.ExtractedEvent{{Date: "2024-02-01", Description: "Grievance lodged"}},
	}, nil
}

func (stubOracle) Transcribe(context.Context, []byte, string) (string, error) { return "", nil }

func (stubOracle) ExtractText(context.Context, oracle.Content) (string, error) { return "", nil }

func TestIngest_ScenarioA(t *testing.T) {
	x := extract.New(extract.Env{Oracle: stubOracle{}, Sanitizer: extract.NewPDFSanitizer(nil)})
	p := ingest.New(x, stubOracle{}, ingest.Config{Concurrency: 3, MaxFileBytes: 64}, nil)
	items := []ingest.Item{
		ingest.BytesItem("one.txt", "text/plain", "", []byte("one")),
		ingest.BytesItem("two.txt", "text/plain", "", []byte("two")),
		ingest.BytesItem("big.txt", "text/plain", "", make([]byte, 65)),
		ingest.BytesItem("broken.pdf", "application/pdf", "", []byte("%PDF-1.7 truncated")),
		ingest.BytesItem("three.txt", "text/plain", "", []byte("three")),
	}

	r := New(timeline.Options{}, nil)
	r.Ingest(context.Background(), p, items)

	counts := r.Counts()
	assert.Equal(t, 3, counts[models.StatusReady])
	assert.Equal(t, 2, counts[models.StatusError])
	assert.Zero(t, counts[models.StatusQueued])
	assert.Zero(t, counts[models.StatusProcessing])

	kinds := map[models.FailureKind]int{}
	for _, d := range r.Documents() {
		if d.Status == models.StatusError {
			kinds[d.FailureKind]++
		}
	}
	assert.Equal(t, map[models.FailureKind]int{models.FailureValidation: 1, models.FailureExtraction: 1}, kinds)

	// The same event from three documents collapses into one with three sources.
	tl := r.Timeline()
	require.Len(t, tl, 1)
	assert.Len(t, tl[0].Sources, 3)

	// Documents keep the submission order.
	names := []string{}
	for _, d := range r.Documents() {
		names = append(names, d.Filename)
	}
	assert.Equal(t, []string{"one.txt", "two.txt", "big.txt", "broken.pdf", "three.txt"}, names)
}

func TestSnapshotRoundTrip(t *testing.T) {
	r := New(timeline.Options{}, nil)
	d := doc("a", models.StatusReady)
	d.FileHash = "abc"
	r.Apply(ingest.Event{Kind: ingest.EventCompleted, Document: d,
		Timeline: []models.TimelineEvent{{Date: "2024-03-01", Description: "Meeting", Sources: []string{"a"}}}})

	base := models.Case{ID: "case-1", Sections: []models.Section{{Name: "Letters", DocumentIDs: []string{"a"}}}}
	now := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	snap := r.Snapshot(base, now)
	assert.Equal(t, "case-1", snap.ID)
	assert.Len(t, snap.Sections, 1)
	assert.Len(t, snap.Documents, 1)
	assert.Len(t, snap.Timeline, 1)
	assert.Equal(t, now, snap.UpdatedAt)

	restored := FromCase(&snap, timeline.Options{}, nil)
	assert.Equal(t, r.Documents(), restored.Documents())
	assert.Equal(t, r.Timeline(), restored.Timeline())

	found, ok := restored.ByHash("abc")
	require.True(t, ok)
	assert.Equal(t, "a", found.ID)
	_, ok = restored.ByHash("")
	assert.False(t, ok)
}
