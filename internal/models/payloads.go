package models

// These structs define the JSON payloads exchanged between the Cloud Workflow
// and the case functions.

// IngestCaseRequest is the input for the batch ingestion function.
type IngestCaseRequest struct {
	CaseID      string `json:"caseId"`
	Prefix      string `json:"prefix,omitempty"`
	Tag         string `json:"tag,omitempty"`
	Concurrency int    `json:"concurrency,omitempty"`
	ExecutionID string `json:"executionId,omitempty"`
}

// IngestCaseResponse is the output of the batch ingestion function.
type IngestCaseResponse struct {
	Status  string `json:"status"`
	Ready   int    `json:"ready"`
	Failed  int    `json:"failed"`
	Events  int    `json:"events"`
	Skipped int    `json:"skipped"`
}

// CompileBinderRequest is the input for the binder-compiler function.
type CompileBinderRequest struct {
	CaseID      string `json:"caseId"`
	ExecutionID string `json:"executionId,omitempty"`
}

// CompileBinderResponse is the output of the binder-compiler function.
type CompileBinderResponse struct {
	Status     string `json:"status"`
	BinderURI  string `json:"binderUri"`
	TotalPages int    `json:"totalPages"`
	IndexPages int    `json:"indexPages"`
	Entries    int    `json:"entries"`
}
