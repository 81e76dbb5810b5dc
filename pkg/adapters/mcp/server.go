package mcp

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/aretw0/storyweaver"
	"github.com/aretw0/storyweaver/internal/logging"
	"github.com/aretw0/storyweaver/internal/wizard"
	"github.com/aretw0/storyweaver/pkg/domain"
	"github.com/aretw0/storyweaver/pkg/ports"
)

const stylesURI = "storyweaver://styles"

// ProposeArgs are the arguments of the propose_story tool.
type ProposeArgs struct {
	Briefing  string `json:"briefing"`
	NumScenes int    `json:"num_scenes,omitempty"`
}

// ProposeResult is the structured output of the propose_story tool.
type ProposeResult struct {
	Title  string                 `json:"title" jsonschema_description:"Title of the proposed story"`
	Scenes []domain.ProposedScene `json:"scenes" jsonschema_description:"Proposed scenes, in story order"`
}

// ImageArgs are the arguments of the generate_scene_image tool.
type ImageArgs struct {
	SceneDescription string `json:"scene_description"`
	Style            string `json:"style,omitempty"`
}

// ImageResult is the structured output of the generate_scene_image tool.
type ImageResult struct {
	ImageURL string `json:"image_url" jsonschema_description:"Location of the generated image"`
	Style    string `json:"style,omitempty" jsonschema_description:"Style the image was rendered in"`
}

// Server exposes a StoryService as MCP tools.
type Server struct {
	service   ports.StoryService
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the logger. With stdio it must not write to Stdout.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(service ports.StoryService, opts ...Option) *Server {
	s := &Server{
		service:   service,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("storyweaver-mcp", strings.TrimSpace(storyweaver.Version)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE and stops when ctx ends.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to listen for errors coming from the listener.
	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("Shutdown signal received, shutting down server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	proposeTool := mcp.NewTool("propose_story",
		mcp.WithDescription("Propose a linear story, one description per scene, from a short briefing."),
		mcp.WithString("briefing", mcp.Required(), mcp.Description("Premise of the story")),
		mcp.WithNumber("num_scenes", mcp.Description(fmt.Sprintf("Number of scenes (default %d)", domain.DefaultNumScenes))),
		mcp.WithOutputSchema[ProposeResult](),
	)
	s.mcpServer.AddTool(proposeTool, mcp.NewStructuredToolHandler(s.handlePropose))

	imageTool := mcp.NewTool("generate_scene_image",
		mcp.WithDescription("Generate one image for a scene description in a visual style."),
		mcp.WithString("scene_description", mcp.Required(), mcp.Description("What the scene shows")),
		mcp.WithString("style", mcp.Description("Visual style, e.g. "+strings.Join(domain.StylePresets, ", "))),
		mcp.WithOutputSchema[ImageResult](),
	)
	s.mcpServer.AddTool(imageTool, mcp.NewStructuredToolHandler(s.handleImage))
}

func (s *Server) handlePropose(ctx context.Context, _ mcp.CallToolRequest, args ProposeArgs) (ProposeResult, error) {
	briefing, err := wizard.SanitizeInput(args.Briefing, wizard.DefaultMaxInputSize)
	if err != nil {
		return ProposeResult{}, fmt.Errorf("input rejected: %w", err)
	}
	if briefing == "" {
		return ProposeResult{}, errors.New("briefing is required")
	}
	n := args.NumScenes
	if n < 1 {
		n = domain.DefaultNumScenes
	}

	proposal, err := s.service.ProposeStory(ctx, briefing, n)
	if err != nil {
		s.logger.Warn("MCP propose_story failed", "err", err)
		return ProposeResult{}, errors.New(domain.UserMessage(err))
	}
	if proposal.Title == "" {
		proposal.Title = briefing
	}
	return ProposeResult{Title: proposal.Title, Scenes: proposal.Scenes}, nil
}

func (s *Server) handleImage(ctx context.Context, _ mcp.CallToolRequest, args ImageArgs) (ImageResult, error) {
	desc, err := wizard.SanitizeInput(args.SceneDescription, wizard.DefaultMaxInputSize)
	if err != nil {
		return ImageResult{}, fmt.Errorf("input rejected: %w", err)
	}
	if desc == "" {
		return ImageResult{}, errors.New("scene_description is required")
	}
	style, err := wizard.SanitizeInput(args.Style, wizard.DefaultMaxInputSize)
	if err != nil {
		return ImageResult{}, fmt.Errorf("input rejected: %w", err)
	}

	img, err := s.service.GenerateSceneImage(ctx, desc, style)
	if err != nil {
		s.logger.Warn("MCP generate_scene_image failed", "err", err)
		return ImageResult{}, errors.New(domain.UserMessage(err))
	}
	if img.IsZero() {
		return ImageResult{}, errors.New("no image URL returned")
	}
	url := img.URL
	if url == "" {
		mime := img.MIMEType
		if mime == "" {
			mime = "image/png"
		}
		url = "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
	}
	return ImageResult{ImageURL: url, Style: style}, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(stylesURI, "Visual style presets",
		mcp.WithMIMEType("text/plain"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      stylesURI,
				MIMEType: "text/plain",
				Text:     strings.Join(domain.StylePresets, "\n"),
			},
		}, nil
	})
}
