package ingest

import "github.com/Lllllllleong/casebinder/internal/models"

// EventKind tags a completion event.
type EventKind int

const (
	EventQueued EventKind = iota
	EventStarted
	EventCompleted
	EventFailed
)

func (k EventKind) String() string {
	switch k {
	case EventQueued:
		return "queued"
	case EventStarted:
		return "started"
	case EventCompleted:
		return "completed"
	case EventFailed:
		return "failed"
	}
	return "unknown"
}

// Event is an immutable record of one step of one item. Document is a value
// copy taken when the event was emitted; the pipeline never touches shared
// state directly.
type Event struct {
	Kind     EventKind
	Document models.Document
	// Timeline holds the events extracted from the document, attributed
	// to it. Only set on EventCompleted.
	Timeline []models.TimelineEvent
}
