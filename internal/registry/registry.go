// Package registry holds the authoritative per-document state of a case and
// its canonical timeline. State changes only through Apply, which is called
// from a single goroutine draining the pipeline's completion events.
package registry

import (
	"context"
	"log/slog"
	"time"

	"github.com/Lllllllleong/casebinder/internal/ingest"
	"github.com/Lllllllleong/casebinder/internal/models"
	"github.com/Lllllllleong/casebinder/internal/timeline"
)

// Registry is not safe for concurrent use. Feed it through Consume or Ingest
// and read it once those return.
type Registry struct {
	documents map[string]models.Document
	order     []string
	timeline  []models.TimelineEvent
	opts      timeline.Options
	logger    *slog.Logger
}

func New(opts timeline.Options, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		documents: make(map[string]models.Document),
		opts:      opts,
		logger:    logger,
	}
}

// FromCase seeds a registry with a stored snapshot.
func FromCase(c *models.Case, opts timeline.Options, logger *slog.Logger) *Registry {
	r := New(opts, logger)
	for _, d := range c.Documents {
		if _, ok := r.documents[d.ID]; ok {
			continue
		}
		r.documents[d.ID] = d
		r.order = append(r.order, d.ID)
	}
	r.timeline = timeline.Merge(nil, c.Timeline, opts)
	return r
}

// Apply reduces one event into the registry. It reports false when the event
// was dropped because it would move a document's status backwards.
func (r *Registry) Apply(ev ingest.Event) bool {
	next := ev.Document
	cur, known := r.documents[next.ID]
	switch {
	case !known:
		r.order = append(r.order, next.ID)
	case ev.Kind == ingest.EventQueued:
		// Re-queueing a known document never resets it.
		return false
	case !cur.Status.CanAdvanceTo(next.Status):
		r.logger.Warn("Dropping out-of-order document event.",
			"documentId", next.ID, "event", ev.Kind, "from", cur.Status, "to", next.Status)
		return false
	}
	r.documents[next.ID] = next
	if ev.Kind == ingest.EventCompleted && len(ev.Timeline) > 0 {
		r.timeline = timeline.Merge(r.timeline, ev.Timeline, r.opts)
	}
	return true
}

// Consume applies events until the channel is closed.
func (r *Registry) Consume(events <-chan ingest.Event) {
	for ev := range events {
		r.Apply(ev)
	}
}

// Ingest runs items through the pipeline with this registry as the only
// consumer of its events, and returns once every item is terminal.
func (r *Registry) Ingest(ctx context.Context, p *ingest.Pipeline, items []ingest.Item) {
	events := make(chan ingest.Event, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Consume(events)
	}()
	p.Run(ctx, items, events)
	close(events)
	<-done
}

// Document returns the current state of one document.
func (r *Registry) Document(id string) (models.Document, bool) {
	d, ok := r.documents[id]
	return d, ok
}

// ByHash returns the first document whose content hash matches.
func (r *Registry) ByHash(hash string) (models.Document, bool) {
	if hash == "" {
		return models.Document{}, false
	}
	for _, id := range r.order {
		if d := r.documents[id]; d.FileHash == hash {
			return d, true
		}
	}
	return models.Document{}, false
}

// Documents returns every document in the order it was first seen.
func (r *Registry) Documents() []models.Document {
	out := make([]models.Document, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.documents[id])
	}
	return out
}

// Timeline returns a copy of the canonical timeline.
func (r *Registry) Timeline() []models.TimelineEvent {
	out := make([]models.TimelineEvent, len(r.timeline))
	copy(out, r.timeline)
	return out
}

// Counts tallies documents by status.
func (r *Registry) Counts() map[models.Status]int {
	counts := make(map[models.Status]int, 4)
	for _, d := range r.documents {
		counts[d.Status]++
	}
	return counts
}

// Snapshot builds a persistable case from the registry, keeping the
// sections of base.
func (r *Registry) Snapshot(base models.Case, now time.Time) models.Case {
	base.Documents = r.Documents()
	base.Timeline = r.Timeline()
	base.UpdatedAt = now
	return base
}
