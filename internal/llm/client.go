package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Result is the outcome of one provider invocation. An empty Text is a
// valid result, not an error; downstream substitutes a placeholder.
type Result struct {
	Text    string
	Model   string
	Elapsed time.Duration
}

// Image is one inline image attached to a request.
type Image struct {
	MIME string
	Data []byte
}

// Client is an abstraction over the generative-language provider.
type Client interface {
	// GenerateText runs a text-only generation with the given system prompt.
	GenerateText(ctx context.Context, tier ModelTier, systemPrompt, input string) (Result, error)
	// GenerateVision runs a generation over inline images plus optional text.
	GenerateVision(ctx context.Context, tier ModelTier, systemPrompt, input string, images []Image) (Result, error)
	// ModelName returns the provider model id behind a tier.
	ModelName(tier ModelTier) string
	// Close releases any resources held by the client.
	Close() error
}

// GeminiClient implements Client on the Gemini SDK.
type GeminiClient struct {
	client *genai.Client
	config *Config
}

// NewGeminiClient creates a new Gemini-backed client.
func NewGeminiClient(ctx context.Context, config *Config, apiKey string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if config == nil {
		config = DefaultConfig()
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{client: client, config: config}, nil
}

// GenerateText runs a single text generation bounded by the text timeout.
func (c *GeminiClient) GenerateText(ctx context.Context, tier ModelTier, systemPrompt, input string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.TextTimeout)
	defer cancel()

	model := c.model(tier, systemPrompt)
	return c.generate(ctx, model, c.config.Model(tier), genai.Text(input))
}

// GenerateVision runs a generation over inline images bounded by the
// longer vision timeout.
func (c *GeminiClient) GenerateVision(ctx context.Context, tier ModelTier, systemPrompt, input string, images []Image) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.VisionTimeout)
	defer cancel()

	parts := make([]genai.Part, 0, len(images)+1)
	for _, img := range images {
		parts = append(parts, genai.Blob{MIMEType: img.MIME, Data: img.Data})
	}
	if input != "" {
		parts = append(parts, genai.Text(input))
	}

	model := c.model(tier, systemPrompt)
	return c.generate(ctx, model, c.config.Model(tier), parts...)
}

// ModelName returns the model id configured for a tier.
func (c *GeminiClient) ModelName(tier ModelTier) string {
	return c.config.Model(tier)
}

// Close releases resources held by the client.
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

func (c *GeminiClient) model(tier ModelTier, systemPrompt string) *genai.GenerativeModel {
	model := c.client.GenerativeModel(c.config.Model(tier))
	model.SetTemperature(0.4)
	if systemPrompt != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}
	}
	// Safety filtering is disabled: business and e-commerce analysis
	// content trips false positives on the default thresholds.
	model.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockNone},
	}
	return model
}

func (c *GeminiClient) generate(ctx context.Context, model *genai.GenerativeModel, modelID string, parts ...genai.Part) (Result, error) {
	start := time.Now()
	resp, err := model.GenerateContent(ctx, parts...)
	elapsed := time.Since(start)
	if err != nil {
		return Result{}, fmt.Errorf("model %s: %w", modelID, err)
	}

	return Result{
		Text:    extractText(resp),
		Model:   modelID,
		Elapsed: elapsed,
	}, nil
}

// extractText pulls the text parts out of a response. A response with no
// usable text yields the empty string; the caller decides what that means.
func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return ""
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}
	return strings.Join(parts, "")
}
