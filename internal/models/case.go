package models

import "time"

// Section is a named, ordered grouping of documents that drives binder order.
// DocumentIDs may reference documents that no longer exist.
type Section struct {
	Name        string   `json:"name" yaml:"name" firestore:"name"`
	Summary     string   `json:"summary,omitempty" yaml:"summary" firestore:"summary,omitempty"`
	DocumentIDs []string `json:"documentIds" yaml:"documents" firestore:"documentIds"`
}

// Case is the whole-case snapshot persisted by the case store.
type Case struct {
	ID        string          `json:"id" firestore:"id"`
	Name      string          `json:"name" firestore:"name"`
	Documents []Document      `json:"documents" firestore:"-"`
	Timeline  []TimelineEvent `json:"timeline" firestore:"timeline"`
	Sections  []Section       `json:"sections,omitempty" firestore:"sections,omitempty"`
	UpdatedAt time.Time       `json:"updatedAt" firestore:"updatedAt"`
}

// Document returns the document with the given id.
func (c *Case) Document(id string) (Document, bool) {
	for _, d := range c.Documents {
		if d.ID == id {
			return d, true
		}
	}
	return Document{}, false
}
