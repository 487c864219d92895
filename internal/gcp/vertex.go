package gcp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/vertexai/genai"

	"github.com/Lllllllleong/casebinder/internal/oracle"
)

// DefaultModel is used when GEMINI_MODEL is not set.
const DefaultModel = "gemini-1.5-pro"

// --- Analysis Model Prompts ---
const AnalysisSystemPrompt = "You are an evidence analyst preparing material for an employment dispute. You read one evidence document at a time and report what it establishes. You must output your response as a single valid JSON object."

// --- Extraction Model Prompts ---
const ExtractionSystemPrompt = "You are a document transcriber. Your task is to reproduce the text of the provided document faithfully. Accuracy and completeness matter more than formatting."

// --- Transcription Model Prompts ---
const TranscriptionSystemPrompt = "You are an audio transcriber. Your task is to produce a faithful verbatim transcript of the provided recording, marking changes of speaker."

// VertexClient holds the pre-configured generative models used by the oracle.
type VertexClient struct {
	AnalysisModel      *genai.GenerativeModel
	ExtractionModel    *genai.GenerativeModel
	TranscriptionModel *genai.GenerativeModel
	baseClient         *genai.Client
}

// NewVertexClient creates a client holding all necessary models.
func NewVertexClient(ctx context.Context, projectID, region, modelName string) (*VertexClient, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewVertexClient: projectID and region cannot be empty")
	}
	if modelName == "" {
		modelName = DefaultModel
	}

	baseClient, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	analysisModel := baseClient.GenerativeModel(modelName)
	analysisModel.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(AnalysisSystemPrompt)},
	}
	analysisModel.GenerationConfig = genai.GenerationConfig{
		// Structured output; the oracle still repairs truncated JSON.
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.0),
	}
	// Evidence routinely describes harassment and injuries.
	analysisModel.SafetySettings = permissiveSafety()

	extractionModel := baseClient.GenerativeModel(modelName)
	extractionModel.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(ExtractionSystemPrompt)},
	}
	extractionModel.GenerationConfig = genai.GenerationConfig{
		Temperature: genai.Ptr[float32](0.0),
	}
	extractionModel.SafetySettings = permissiveSafety()

	transcriptionModel := baseClient.GenerativeModel(modelName)
	transcriptionModel.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(TranscriptionSystemPrompt)},
	}
	transcriptionModel.SafetySettings = permissiveSafety()

	return &VertexClient{
		AnalysisModel:      analysisModel,
		ExtractionModel:    extractionModel,
		TranscriptionModel: transcriptionModel,
		baseClient:         baseClient,
	}, nil
}

func permissiveSafety() []*genai.SafetySetting {
	return []*genai.SafetySetting{
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockNone},
	}
}

// Response cache sizing for Oracle.
const (
	oracleCacheSize = 256
	oracleCacheTTL  = time.Hour
)

// Oracle assembles the analysis oracle: Gemini calls behind the bounded
// retry loop, behind a content-hash cache.
func (c *VertexClient) Oracle(logger *slog.Logger) oracle.Oracle {
	gemini := oracle.NewGemini(c.AnalysisModel, c.ExtractionModel, c.TranscriptionModel, logger)
	return oracle.WithCache(oracle.WithRetry(gemini, oracle.DefaultMaxRetries, logger), oracleCacheSize, oracleCacheTTL)
}

func (c *VertexClient) Close() error {
	if c.baseClient != nil {
		return c.baseClient.Close()
	}
	return nil
}
