package ai

import (
	"context"
	"errors"
	"fmt"
	"image"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-flash"

type GeminiProvider struct {
	usageTracker
	client       *genai.Client
	model        string
	maxImageSize int
}

// NewGeminiProvider creates a provider for the Gemini API. An empty baseURL
// uses the public endpoint.
func NewGeminiProvider(ctx context.Context, apiKey, model, baseURL string, maxImageSize int) (*GeminiProvider, error) {
	if model == "" {
		model = defaultGeminiModel
	}
	if maxImageSize <= 0 {
		maxImageSize = defaultMaxImageSize
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: baseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiProvider{
		client:       client,
		model:        model,
		maxImageSize: maxImageSize,
	}, nil
}

func (p *GeminiProvider) Name() string {
	return "gemini"
}

// Model returns the Gemini model in use.
func (p *GeminiProvider) Model() string {
	return p.model
}

// GuessOrientation asks the model which rotation makes img upright.
func (p *GeminiProvider) GuessOrientation(ctx context.Context, img image.Image) (string, error) {
	data, err := ResizeImage(img, p.maxImageSize)
	if err != nil {
		return "", fmt.Errorf("failed to resize image: %w", err)
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: orientationPrompt},
				{InlineData: &genai.Blob{Data: data, MIMEType: "image/jpeg"}},
			},
		},
	}

	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}

	var lastError error
	var lastResponse string

	for range maxRetries {
		result, err := p.client.Models.GenerateContent(ctx, p.model, contents, config)
		if err != nil {
			return "", fmt.Errorf("gemini API error: %w", err)
		}

		if result.UsageMetadata != nil {
			p.track(int64(result.UsageMetadata.PromptTokenCount), int64(result.UsageMetadata.CandidatesTokenCount))
		}

		content := result.Text()
		if content == "" {
			return "", errors.New("no response from Gemini")
		}
		lastResponse = content

		label, err := parseGuess(content)
		if err != nil {
			lastError = err
			contents = append(contents,
				&genai.Content{
					Role:  "model",
					Parts: []*genai.Part{{Text: content}},
				},
				&genai.Content{
					Role:  "user",
					Parts: []*genai.Part{{Text: retryMessage(err)}},
				},
			)
			continue
		}

		return label, nil
	}

	return "", fmt.Errorf("failed to parse orientation after %d attempts: %w (last response: %s)", maxRetries, lastError, lastResponse)
}
