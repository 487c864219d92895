package oracle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"cloud.google.com/go/vertexai/genai"
)

// Generator is the subset of *genai.GenerativeModel the oracle needs.
type Generator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Prompts sent alongside the content. The system instructions live on the
// models themselves (see gcp.NewVertexClient).
const (
	AnalyzeUserPrompt = `Analyze the provided evidence document and return a single JSON object with exactly these keys:
- "summary": a short neutral summary of the document.
- "timelineEvents": an array of objects with keys "date" (YYYY-MM-DD when known), "description", "severity" (Low, Medium, High or Critical), "category", "quote" (verbatim supporting text, may be empty) and "relevance" (Support, Contradiction or Neutral-link).
- "issues": an array of short strings naming disputed issues.
- "entities": an array of people and organisations mentioned.
- "medicalEvidence": an array of medical facts, may be empty.
- "policyReferences": an array of policies or procedures referenced, may be empty.
Do not include any text before or after the JSON object.`

	ExtractTextUserPrompt = `Extract all text from the provided document verbatim, in reading order. Preserve paragraph breaks as blank lines. Describe images in one short bracketed sentence. Return only the extracted text.`

	TranscribeUserPrompt = `Transcribe the provided audio recording verbatim. Prefix each change of speaker with "Speaker N:". Return only the transcript.`
)

const maxRefusalLen = 300

var refusalPhrases = []string{
	"i am unable to",
	"i cannot fulfill",
	"i cannot answer",
	"i cannot provide",
	"as a large language model",
}

// Gemini implements Oracle on top of Vertex AI generative models.
type Gemini struct {
	analysisModel   Generator
	extractionModel Generator
	transcribeModel Generator
	logger          *slog.Logger
}

var _ Oracle = (*Gemini)(nil)

// NewGemini builds an oracle from pre-configured models. The analysis model
// is expected to be configured for JSON output.
func NewGemini(analysisModel, extractionModel, transcribeModel Generator, logger *slog.Logger) *Gemini {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gemini{
		analysisModel:   analysisModel,
		extractionModel: extractionModel,
		transcribeModel: transcribeModel,
		logger:          logger,
	}
}

func (g *Gemini) Analyze(ctx context.Context, content Content) (*Analysis, error) {
	resp, err := g.analysisModel.GenerateContent(ctx, contentParts(content, AnalyzeUserPrompt)...)
	if err != nil {
		return nil, Classify("analyze", err)
	}
	raw := responseText(resp)
	if raw == "" {
		return nil, Retriable("analyze", errors.New("model returned an empty response"))
	}
	a := ParseAnalysis(raw)
	if a.Absent && refused(raw) {
		return nil, Fatal("analyze", ErrContentBlocked)
	}
	if a.Absent {
		g.logger.Warn("Analysis response could not be parsed; treating as absent.", "filename", content.Filename, "responseBody", raw)
	}
	return a, nil
}

func (g *Gemini) ExtractText(ctx context.Context, content Content) (string, error) {
	resp, err := g.extractionModel.GenerateContent(ctx, contentParts(content, ExtractTextUserPrompt)...)
	if err != nil {
		return "", Classify("extractText", err)
	}
	text := stripMarkdownFences(responseText(resp))
	if refused(text) {
		return "", Fatal("extractText", ErrContentBlocked)
	}
	return text, nil
}

func (g *Gemini) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if len(audio) == 0 {
		return "", Fatal("transcribe", errors.New("empty audio payload"))
	}
	resp, err := g.transcribeModel.GenerateContent(ctx,
		genai.Blob{MIMEType: mimeType, Data: audio},
		genai.Text(TranscribeUserPrompt),
	)
	if err != nil {
		return "", Classify("transcribe", err)
	}
	text := responseText(resp)
	if refused(text) {
		return "", Fatal("transcribe", ErrContentBlocked)
	}
	return text, nil
}

func contentParts(content Content, prompt string) []genai.Part {
	if content.HasBlob() {
		return []genai.Part{
			genai.Blob{MIMEType: content.MIMEType, Data: content.Blob},
			genai.Text(prompt),
		}
	}
	return []genai.Part{
		genai.Text(fmt.Sprintf("Document %q:\n\n%s", content.Filename, content.Text)),
		genai.Text(prompt),
	}
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	return strings.TrimSpace(sb.String())
}

func stripMarkdownFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```markdown")
	s = strings.TrimPrefix(s, "```text")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// refused only inspects short responses; evidence text itself may quote
// phrases like "I am unable to".
func refused(s string) bool {
	if len(s) > maxRefusalLen {
		return false
	}
	lower := strings.ToLower(s)
	for _, phrase := range refusalPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
