package oracle

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepairJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"valid", `{"summary":"a","issues":[]}`},
		{"fenced", "```json\n{\"summary\":\"a\"}\n```"},
		{"leading prose", `Here is the analysis: {"summary":"a"}`},
		{"missing closers", `{"summary":"a","issues":["x","y"`},
		{"trailing comma", `{"summary":"a","issues":["x",],}`},
		{"unterminated string", `{"summary":"the employee was`},
		{"dangling key", `{"summary":"a","issues":`},
		{"trailing garbage", `{"summary":"a"} and some more text }`},
		{"braces inside strings", `{"summary":"uses {curly} and [square"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repaired := RepairJSON(tt.in)
			assert.True(t, json.Valid([]byte(repaired)), "repaired: %s", repaired)
		})
	}
}

func TestParseAnalysis_RepairsTruncatedResponse(t *testing.T) {
	raw := `{"summary":"Meeting notes","timelineEvents":[{"date":"2024-01-05","description":"Verbal warning issued"},{"date":"2024-01-09","descr`
	a := ParseAnalysis(raw)

	require.False(t, a.Absent)
	assert.Equal(t, "Meeting notes", a.Summary)
	require.NotEmpty(t, a.TimelineEvents)
	assert.Equal(t, "Verbal warning issued", a.TimelineEvents[0].Description)
}

func TestParseAnalysis_UnrepairableIsAbsent(t *testing.T) {
	a := ParseAnalysis("I could not find any events in this document.")
	assert.True(t, a.Absent)
}
