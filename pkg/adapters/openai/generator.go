// Package openai implements ports.Generator with the OpenAI chat and image APIs.
package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"

	"github.com/sashabaranov/go-openai"

	"github.com/aretw0/storyweaver/pkg/domain"
	"github.com/aretw0/storyweaver/pkg/ports"
)

const (
	// DefaultStoryModel writes the story proposals.
	DefaultStoryModel = openai.GPT3Dot5Turbo
	// DefaultImageModel renders the scene images.
	DefaultImageModel = openai.CreateImageModelDallE3
	// DefaultTemperature keeps proposals varied between attempts.
	DefaultTemperature float32 = 0.8
)

// Generator wraps the OpenAI API client to implement ports.Generator.
type Generator struct {
	client      *openai.Client
	storyModel  string
	imageModel  string
	imageSize   string
	temperature float32
}

var _ ports.Generator = (*Generator)(nil)

// Option configures the Generator.
type Option func(*settings)

type settings struct {
	baseURL     string
	httpClient  *http.Client
	storyModel  string
	imageModel  string
	imageSize   string
	temperature float32
}

// WithBaseURL points the client at an OpenAI compatible endpoint (must include /v1).
func WithBaseURL(url string) Option {
	return func(s *settings) { s.baseURL = url }
}

// WithHTTPClient replaces the HTTP client used for API calls.
func WithHTTPClient(c *http.Client) Option {
	return func(s *settings) { s.httpClient = c }
}

// WithStoryModel overrides the chat model.
func WithStoryModel(model string) Option {
	return func(s *settings) { s.storyModel = model }
}

// WithImageModel overrides the image model.
func WithImageModel(model string) Option {
	return func(s *settings) { s.imageModel = model }
}

// WithImageSize overrides the rendered image size.
func WithImageSize(size string) Option {
	return func(s *settings) { s.imageSize = size }
}

// WithTemperature overrides the sampling temperature of story completions.
func WithTemperature(t float32) Option {
	return func(s *settings) { s.temperature = t }
}

// New creates a generator authenticated with apiKey.
func New(apiKey string, opts ...Option) *Generator {
	s := settings{
		storyModel:  DefaultStoryModel,
		imageModel:  DefaultImageModel,
		imageSize:   openai.CreateImageSize1024x1024,
		temperature: DefaultTemperature,
	}
	for _, opt := range opts {
		opt(&s)
	}

	config := openai.DefaultConfig(apiKey)
	if s.baseURL != "" {
		config.BaseURL = s.baseURL
	}
	if s.httpClient != nil {
		config.HTTPClient = s.httpClient
	}

	return &Generator{
		client:      openai.NewClientWithConfig(config),
		storyModel:  s.storyModel,
		imageModel:  s.imageModel,
		imageSize:   s.imageSize,
		temperature: s.temperature,
	}
}

// CompleteStory runs a chat completion and returns the first choice.
func (g *Generator) CompleteStory(ctx context.Context, system, prompt string) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.storyModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: g.temperature,
	})
	if err != nil {
		return "", translate("propose story", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

// GenerateImage renders a single image. A response without URL or data yields a zero ImageRef.
func (g *Generator) GenerateImage(ctx context.Context, prompt string) (domain.ImageRef, error) {
	resp, err := g.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          g.imageModel,
		N:              1,
		Size:           g.imageSize,
		ResponseFormat: openai.CreateImageResponseFormatURL,
	})
	if err != nil {
		return domain.ImageRef{}, translate("generate image", err)
	}
	if len(resp.Data) == 0 {
		return domain.ImageRef{}, nil
	}

	item := resp.Data[0]
	if item.URL != "" {
		return domain.ImageRef{URL: item.URL}, nil
	}
	if item.B64JSON != "" {
		data, err := base64.StdEncoding.DecodeString(item.B64JSON)
		if err != nil {
			return domain.ImageRef{}, fmt.Errorf("failed to decode image data: %w", err)
		}
		return domain.ImageRef{Data: data}, nil
	}
	return domain.ImageRef{}, nil
}

// translate maps API failures to GenerationError so the upstream message reaches the user.
func translate(op string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &domain.GenerationError{Op: op, Status: apiErr.HTTPStatusCode, Message: apiErr.Message, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &domain.GenerationError{Op: op, Status: reqErr.HTTPStatusCode, Message: reqErr.Error(), Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}
