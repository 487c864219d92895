package oracle

import (
	"encoding/json"
	"strings"
)

// stripFences removes markdown code fences the model sometimes wraps JSON in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```JSON")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// RepairJSON makes a best effort to turn a truncated or sloppy JSON response
// into valid JSON: leading prose and trailing garbage are dropped, trailing
// commas removed, an unterminated string closed, a member cut off before its
// value dropped, and unmatched braces and brackets balanced.
func RepairJSON(raw string) string {
	s := stripFences(raw)
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return s
	}
	s = s[start:]

	var (
		out      strings.Builder
		stack    []byte
		inString bool
		escaped  bool
		// cut is where to truncate if the input ends between an object key
		// and its value; -1 when no key is pending.
		cut = -1
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			out.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case ' ', '\t', '\r', '\n', ':':
			out.WriteByte(c)
			continue
		case '"':
			if k := keyCut(out.String(), stack); k >= 0 {
				cut = k
			} else {
				cut = -1
			}
			inString = true
		case '{':
			cut = -1
			stack = append(stack, '}')
		case '[':
			cut = -1
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				// Stray closer; skip it.
				continue
			}
			cut = -1
			trimTrailingComma(&out)
			stack = stack[:len(stack)-1]
			out.WriteByte(c)
			if len(stack) == 0 {
				return out.String()
			}
			continue
		case ',':
		default:
			cut = -1
		}
		out.WriteByte(c)
	}

	if inString {
		if escaped {
			// Drop the dangling backslash so the closing quote is not escaped.
			str := out.String()
			out.Reset()
			out.WriteString(str[:len(str)-1])
		}
		out.WriteByte('"')
	}
	if cut >= 0 {
		str := out.String()
		out.Reset()
		out.WriteString(str[:cut])
	}
	for i := len(stack) - 1; i >= 0; i-- {
		trimTrailingComma(&out)
		out.WriteByte(stack[i])
	}
	return out.String()
}

// keyCut reports where to truncate if a string starting now is an object key
// that never receives a value, or -1 when the string is a value.
func keyCut(written string, stack []byte) int {
	if len(stack) == 0 || stack[len(stack)-1] != '}' {
		return -1
	}
	trimmed := strings.TrimRight(written, " \t\r\n")
	if trimmed == "" {
		return -1
	}
	switch trimmed[len(trimmed)-1] {
	case '{':
		return len(trimmed)
	case ',':
		return len(trimmed) - 1
	}
	return -1
}

func trimTrailingComma(b *strings.Builder) {
	s := strings.TrimRight(b.String(), " \t\r\n")
	if strings.HasSuffix(s, ",") {
		b.Reset()
		b.WriteString(s[:len(s)-1])
	}
}

// ParseAnalysis decodes a model response into an Analysis, repairing it if
// needed. When even the repaired text does not decode, the returned analysis
// is marked Absent.
func ParseAnalysis(raw string) *Analysis {
	var a Analysis
	if err := json.Unmarshal([]byte(stripFences(raw)), &a); err == nil {
		return &a
	}
	a = Analysis{}
	if err := json.Unmarshal([]byte(RepairJSON(raw)), &a); err == nil {
		return &a
	}
	return &Analysis{Absent: true}
}
