// Package storyapi is the HTTP client of the story backend (/api/story, /api/image).
package storyapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"resty.dev/v3"

	"github.com/aretw0/storyweaver/internal/logging"
	"github.com/aretw0/storyweaver/pkg/domain"
	"github.com/aretw0/storyweaver/pkg/ports"
	"github.com/aretw0/storyweaver/pkg/storygen"
)

// DefaultTimeout bounds a whole request, including image rendering on the backend.
const DefaultTimeout = 2 * time.Minute

const (
	opPropose = "propose story"
	opImage   = "generate image"
)

// StoryRequest is the body of POST /api/story.
type StoryRequest struct {
	Briefing  string `json:"briefing"`
	NumScenes int    `json:"numScenes"`
}

// StoryResponse is the success body of POST /api/story.
type StoryResponse struct {
	Story json.RawMessage `json:"story"`
}

// ImageRequest is the body of POST /api/image.
type ImageRequest struct {
	SceneDescription string `json:"sceneDescription"`
	Style            string `json:"style,omitempty"`
}

// ImageResponse is the success body of POST /api/image.
type ImageResponse struct {
	ImageURL string `json:"imageUrl"`
}

// ErrorResponse is the failure body of every backend route.
type ErrorResponse struct {
	Error string `json:"error"`
	Raw   string `json:"raw,omitempty"`
}

// Client implements ports.StoryService over HTTP. Calls are never retried.
type Client struct {
	http   *resty.Client
	logger *slog.Logger
}

var _ ports.StoryService = (*Client)(nil)

// Option configures the Client.
type Option func(*Client)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.SetTimeout(d)
	}
}

// WithLogger sets a logger for failed calls.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a client for the backend at baseURL (e.g. http://localhost:3001).
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(DefaultTimeout).
			SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "application/json"),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close releases the underlying transport.
func (c *Client) Close() error {
	return c.http.Close()
}

// ProposeStory calls POST /api/story. The proposal title is the briefing.
func (c *Client) ProposeStory(ctx context.Context, briefing string, numScenes int) (domain.Proposal, error) {
	body, status, err := c.post(ctx, "/api/story", StoryRequest{Briefing: briefing, NumScenes: numScenes})
	if err != nil {
		return domain.Proposal{}, c.fail(ctx, opPropose, 0, err)
	}
	if status < 200 || status > 299 {
		return domain.Proposal{}, c.failStatus(ctx, opPropose, status, body)
	}

	var resp StoryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.Proposal{}, &domain.GenerationError{
			Op: opPropose, Status: status, Message: storygen.MsgUnparseableStory, Raw: string(body), Err: err,
		}
	}
	scenes, err := storygen.ParseScenes(string(resp.Story))
	if err != nil {
		return domain.Proposal{}, &domain.GenerationError{
			Op: opPropose, Status: status, Message: storygen.MsgUnparseableStory, Raw: string(body), Err: err,
		}
	}
	return domain.Proposal{Title: briefing, Scenes: scenes}, nil
}

// GenerateSceneImage calls POST /api/image.
func (c *Client) GenerateSceneImage(ctx context.Context, description, style string) (domain.ImageRef, error) {
	body, status, err := c.post(ctx, "/api/image", ImageRequest{SceneDescription: description, Style: style})
	if err != nil {
		return domain.ImageRef{}, c.fail(ctx, opImage, 0, err)
	}
	if status < 200 || status > 299 {
		return domain.ImageRef{}, c.failStatus(ctx, opImage, status, body)
	}

	var resp ImageResponse
	if err := json.Unmarshal(body, &resp); err != nil || resp.ImageURL == "" {
		return domain.ImageRef{}, &domain.GenerationError{
			Op: opImage, Status: status, Message: storygen.MsgNoImage, Raw: string(body), Err: err,
		}
	}
	return domain.ImageRef{URL: resp.ImageURL, Style: style}, nil
}

// Health calls GET /health.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.http.R().SetContext(ctx).Get("/health")
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("health check: HTTP error! status: %d", resp.StatusCode())
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, int, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(payload).
		Post(path)
	if err != nil {
		return nil, 0, err
	}
	return []byte(resp.String()), resp.StatusCode(), nil
}

func (c *Client) fail(ctx context.Context, op string, status int, err error) error {
	c.logger.DebugContext(ctx, "backend call failed", "op", op, "err", err)
	return &domain.GenerationError{Op: op, Status: status, Message: err.Error(), Err: err}
}

// failStatus uses the backend's error message when the body carries one.
func (c *Client) failStatus(ctx context.Context, op string, status int, body []byte) error {
	var e ErrorResponse
	if err := json.Unmarshal(body, &e); err != nil {
		// Not our error shape, e.g. a proxy page.
		c.logger.DebugContext(ctx, "backend returned a non-JSON error", "op", op, "status", status, "err", err)
		return &domain.GenerationError{Op: op, Status: status, Raw: string(body)}
	}
	c.logger.DebugContext(ctx, "backend returned an error", "op", op, "status", status, "error", e.Error)
	return &domain.GenerationError{Op: op, Status: status, Message: e.Error, Raw: e.Raw}
}
