// Package oracle defines the external analysis capability used during
// ingestion, together with its error classification, retry policy and cache.
package oracle

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/Lllllllleong/casebinder/internal/models"
)

// Content is what gets submitted for analysis or text extraction. Blob is
// set for binary payloads (sanitized PDF, image); Text otherwise.
type Content struct {
	Text     string
	Blob     []byte
	MIMEType string
	Filename string
}

// HasBlob reports whether the content carries a binary payload.
func (c Content) HasBlob() bool {
	return len(c.Blob) > 0
}

// ExtractedEvent is a timeline event as returned by the model.
type ExtractedEvent struct {
	Date        string `json:"date"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	Category    string `json:"category"`
	Quote       string `json:"quote"`
	Relevance   string `json:"relevance"`
}

// Analysis is the structured result of analyzing one document. The list
// fields other than TimelineEvents are kept raw; only their counts matter
// to the pipeline.
type Analysis struct {
	Summary          string            `json:"summary"`
	TimelineEvents   []ExtractedEvent  `json:"timelineEvents"`
	Issues           []json.RawMessage `json:"issues"`
	Entities         []json.RawMessage `json:"entities"`
	MedicalEvidence  []json.RawMessage `json:"medicalEvidence"`
	PolicyReferences []json.RawMessage `json:"policyReferences"`

	// Absent is set when the model's response could not be parsed even
	// after repair.
	Absent bool `json:"-"`
}

// Stats counts the facts found in the analysis.
func (a *Analysis) Stats() models.Stats {
	if a == nil {
		return models.Stats{}
	}
	return models.Stats{
		Events:           len(a.TimelineEvents),
		Issues:           len(a.Issues),
		Entities:         len(a.Entities),
		MedicalEvidence:  len(a.MedicalEvidence),
		PolicyReferences: len(a.PolicyReferences),
	}
}

// Events converts the extracted events into timeline events attributed to
// the given document. Events without a description are dropped.
func (a *Analysis) Events(documentID string) []models.TimelineEvent {
	if a == nil {
		return nil
	}
	out := make([]models.TimelineEvent, 0, len(a.TimelineEvents))
	for _, e := range a.TimelineEvents {
		if strings.TrimSpace(e.Description) == "" {
			continue
		}
		out = append(out, models.TimelineEvent{
			Date:        strings.TrimSpace(e.Date),
			Description: strings.TrimSpace(e.Description),
			Severity:    models.ParseSeverity(strings.TrimSpace(e.Severity)),
			Category:    strings.TrimSpace(e.Category),
			Sources:     []string{documentID},
			Quote:       strings.TrimSpace(e.Quote),
			Relevance:   models.ParseRelevance(strings.TrimSpace(e.Relevance)),
		})
	}
	return out
}

// Oracle is the opaque content-analysis and transcription capability.
type Oracle interface {
	Analyze(ctx context.Context, content Content) (*Analysis, error)
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
	ExtractText(ctx context.Context, content Content) (string, error)
}
