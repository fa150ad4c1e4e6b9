package llm

import (
	"context"
	"os"

	"google.golang.org/genai"

	"redraft/internal/core"
)

// DefaultGeminiModel is used when neither the caller nor the config names one.
const DefaultGeminiModel = "gemini-flash-lite-latest"

// GeminiClient implements Client over the Google Gemini API. It is the
// alternate vendor backend; selection between backends happens at the
// construction root.
type GeminiClient struct {
	modelName string
	gClient   *genai.Client
}

// NewGeminiClient creates a Gemini-backed client. The API key comes from the
// argument or, when empty, the GEMINI_API_KEY environment variable.
func NewGeminiClient(ctx context.Context, apiKey, modelName string) (*GeminiClient, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, core.E(core.KindValidation, "gemini API key is required (set gemini.api_key or GEMINI_API_KEY)")
	}
	if modelName == "" {
		modelName = DefaultGeminiModel
	}

	gClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, core.Wrap(core.KindTransport, "create gemini client", err)
	}

	return &GeminiClient{
		modelName: modelName,
		gClient:   gClient,
	}, nil
}

// Call performs one generation. Gemini does not expose the OpenAI-style
// penalty knobs; temperature, top_p and max_tokens map directly.
func (c *GeminiClient) Call(ctx context.Context, prompt string, params Params) (*Result, error) {
	if prompt == "" {
		return nil, core.E(core.KindValidation, "prompt is empty")
	}

	model := params.Model
	if model == "" {
		model = c.modelName
	}

	temperature := float32(params.temperature())
	topP := float32(params.topP())
	cfg := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		TopP:            &topP,
		MaxOutputTokens: int32(params.maxTokens()),
	}

	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: prompt}},
		Role:  "user",
	}}

	resp, err := c.gClient.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return nil, classifyTransportErr(ctx, err)
	}

	text := resp.Text()
	if text == "" {
		return nil, core.E(core.KindLLMFailure, "empty response from model")
	}

	result := &Result{Text: text}
	if resp.UsageMetadata != nil {
		result.Usage = Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	if len(resp.Candidates) > 0 {
		result.FinishReason = string(resp.Candidates[0].FinishReason)
	}
	return result, nil
}
