package models

import "time"

// Status is the lifecycle state of an evidence file. It only moves forward:
// Queued -> Processing -> Ready|Error.
type Status string

const (
	StatusQueued     Status = "QUEUED"
	StatusProcessing Status = "PROCESSING"
	StatusReady      Status = "READY"
	StatusError      Status = "ERROR"
)

// rank orders statuses so that a transition can be checked for regression.
func (s Status) rank() int {
	switch s {
	case StatusQueued:
		return 0
	case StatusProcessing:
		return 1
	case StatusReady, StatusError:
		return 2
	}
	return -1
}

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusReady || s == StatusError
}

// CanAdvanceTo reports whether moving from s to next keeps the status monotonic.
func (s Status) CanAdvanceTo(next Status) bool {
	if s.Terminal() {
		return false
	}
	return next.rank() > s.rank()
}

// FailureKind classifies why a Document ended in StatusError.
type FailureKind string

const (
	FailureNone       FailureKind = ""
	FailureValidation FailureKind = "VALIDATION"
	FailureExtraction FailureKind = "EXTRACTION_FAILURE"
	FailureOracle     FailureKind = "ORACLE_ERROR"
)

// ContentType is the effective content type resolved for a file.
type ContentType string

const (
	ContentUnknown ContentType = ""
	ContentPDF     ContentType = "pdf"
	ContentImage   ContentType = "image"
	ContentWord    ContentType = "word"
	ContentAudio   ContentType = "audio"
	ContentText    ContentType = "text"
)

// Stats counts the facts the analysis found in a document.
type Stats struct {
	Events           int `json:"events" firestore:"events"`
	Issues           int `json:"issues" firestore:"issues"`
	Entities         int `json:"entities" firestore:"entities"`
	MedicalEvidence  int `json:"medicalEvidence" firestore:"medicalEvidence"`
	PolicyReferences int `json:"policyReferences" firestore:"policyReferences"`
}

// Document is one evidence file tracked by the case registry.
type Document struct {
	ID           string      `json:"id" firestore:"id"`
	Filename     string      `json:"filename" firestore:"filename"`
	MimeType     string      `json:"mimeType" firestore:"mimeType"`
	ContentType  ContentType `json:"contentType,omitempty" firestore:"contentType,omitempty"`
	Status       Status      `json:"status" firestore:"status"`
	FailureKind  FailureKind `json:"failureKind,omitempty" firestore:"failureKind,omitempty"`
	ErrorDetails string      `json:"errorDetails,omitempty" firestore:"errorDetails,omitempty"`
	Size         int64       `json:"size" firestore:"size"`
	FileHash     string      `json:"fileHash,omitempty" firestore:"fileHash,omitempty"`
	SourceURI    string      `json:"sourceUri,omitempty" firestore:"sourceUri,omitempty"`
	Text         *string     `json:"text,omitempty" firestore:"text,omitempty"`
	Summary      string      `json:"summary,omitempty" firestore:"summary,omitempty"`
	Stats        Stats       `json:"stats" firestore:"stats"`
	Tag          string      `json:"tag,omitempty" firestore:"tag,omitempty"`
	PageCount    int         `json:"pageCount,omitempty" firestore:"pageCount,omitempty"`
	UploadedAt   time.Time   `json:"uploadedAt" firestore:"uploadedAt"`
}

// ExtractedText returns the extracted text, or "" when none was recorded.
func (d Document) ExtractedText() string {
	if d.Text == nil {
		return ""
	}
	return *d.Text
}

// PageCountOrDefault returns the page-count override, defaulting to 1.
func (d Document) PageCountOrDefault() int {
	if d.PageCount <= 0 {
		return 1
	}
	return d.PageCount
}
