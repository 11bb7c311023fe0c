package classifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/fpang/media-sensitivity-detector/internal/assets"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-3-flash-preview"

// GeminiBackend asks a Gemini model to score each image. It is slower and
// costlier than a dedicated model server but needs no infrastructure.
type GeminiBackend struct {
	apiKey  string
	model   string
	baseURL string
	prompt  string

	client *genai.Client
}

// NewGeminiBackend creates a backend. baseURL overrides the API endpoint
// and is normally empty.
func NewGeminiBackend(apiKey, model, baseURL string) *GeminiBackend {
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiBackend{
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
		prompt:  assets.RenderClassifyPrompt(LabelNames()),
	}
}

func (b *GeminiBackend) Name() string { return "gemini" }

// Load creates the Gemini client.
func (b *GeminiBackend) Load(ctx context.Context) error {
	if b.apiKey == "" {
		return errors.New("GEMINI_API_KEY is not set")
	}
	cfg := &genai.ClientConfig{
		APIKey:  b.apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if b.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: b.baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create Gemini client: %w", err)
	}
	b.client = client
	log.Debug().Str("model", b.model).Msg("Gemini client created")
	return nil
}

func (b *GeminiBackend) Classify(ctx context.Context, png []byte) (Prediction, error) {
	if b.client == nil {
		return Prediction{}, errors.New("gemini backend not loaded")
	}

	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0),
	}
	contents := []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			{InlineData: &genai.Blob{MIMEType: "image/png", Data: png}},
			{Text: b.prompt},
		},
	}}

	callStart := time.Now()
	resp, err := b.client.Models.GenerateContent(ctx, b.model, contents, config)
	if err != nil {
		return Prediction{}, fmt.Errorf("failed to generate content: %w", err)
	}
	if resp == nil {
		return Prediction{}, errors.New("received empty response from Gemini API")
	}

	text := resp.Text()
	log.Debug().
		Str("model", b.model).
		Int("response_length", len(text)).
		Dur("duration", time.Since(callStart)).
		Msg("Gemini API response received for classification")

	classes, err := parseClasses(text)
	if err != nil {
		return Prediction{}, fmt.Errorf("failed to parse classification response: %w", err)
	}
	return PredictionFromClasses(classes)
}
