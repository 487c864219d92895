package models

// Severity ranks how significant a timeline event is.
type Severity string

const (
	SeverityLow      Severity = "Low"
	SeverityMedium   Severity = "Medium"
	SeverityHigh     Severity = "High"
	SeverityCritical Severity = "Critical"
)

// Relevance tags how an event relates to the case theory.
type Relevance string

const (
	RelevanceNone        Relevance = ""
	RelevanceSupport     Relevance = "Support"
	RelevanceContradicts Relevance = "Contradiction"
	RelevanceNeutral     Relevance = "Neutral-link"
)

// TimelineEvent is a dated fact extracted from one or more evidence files.
// Sources holds Document ids and only ever grows across merges.
type TimelineEvent struct {
	Date        string    `json:"date" firestore:"date"`
	Description string    `json:"description" firestore:"description"`
	Severity    Severity  `json:"severity,omitempty" firestore:"severity,omitempty"`
	Category    string    `json:"category,omitempty" firestore:"category,omitempty"`
	Sources     []string  `json:"sources" firestore:"sources"`
	Quote       string    `json:"quote,omitempty" firestore:"quote,omitempty"`
	Relevance   Relevance `json:"relevance,omitempty" firestore:"relevance,omitempty"`
}

// ParseSeverity maps free-form model output onto a Severity, defaulting to Medium.
func ParseSeverity(s string) Severity {
	switch s {
	case "low", "Low", "LOW":
		return SeverityLow
	case "high", "High", "HIGH":
		return SeverityHigh
	case "critical", "Critical", "CRITICAL":
		return SeverityCritical
	}
	return SeverityMedium
}

// ParseRelevance maps free-form model output onto a Relevance tag.
func ParseRelevance(s string) Relevance {
	switch s {
	case "support", "Support", "supports":
		return RelevanceSupport
	case "contradiction", "Contradiction", "contradicts":
		return RelevanceContradicts
	case "neutral", "Neutral", "neutral-link", "Neutral-link":
		return RelevanceNeutral
	}
	return RelevanceNone
}
