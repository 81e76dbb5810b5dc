package http

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/h2non/filetype"

	"github.com/aretw0/storyweaver/pkg/adapters/storyapi"
	"github.com/aretw0/storyweaver/pkg/domain"
	"github.com/aretw0/storyweaver/pkg/storygen"
)

// postStory handles POST /api/story.
func (s *Server) postStory(w http.ResponseWriter, r *http.Request) {
	var body storyapi.StoryRequest
	if err := s.decode(w, r, &body); err != nil {
		s.writeJSON(w, http.StatusBadRequest, storyapi.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if strings.TrimSpace(body.Briefing) == "" || body.NumScenes < 1 {
		s.writeJSON(w, http.StatusBadRequest, storyapi.ErrorResponse{Error: storygen.MsgMissingStoryFields})
		return
	}

	proposal, err := s.service.ProposeStory(r.Context(), body.Briefing, body.NumScenes)
	if err != nil {
		s.writeGenerationError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"story": proposal.Scenes})
}

// postImage handles POST /api/image.
func (s *Server) postImage(w http.ResponseWriter, r *http.Request) {
	var body storyapi.ImageRequest
	if err := s.decode(w, r, &body); err != nil {
		s.writeJSON(w, http.StatusBadRequest, storyapi.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if strings.TrimSpace(body.SceneDescription) == "" {
		s.writeJSON(w, http.StatusBadRequest, storyapi.ErrorResponse{Error: storygen.MsgMissingDescription})
		return
	}

	img, err := s.service.GenerateSceneImage(r.Context(), body.SceneDescription, body.Style)
	if err != nil {
		s.writeGenerationError(w, r, err)
		return
	}
	url := imageURL(img)
	if url == "" {
		s.writeJSON(w, http.StatusInternalServerError, storyapi.ErrorResponse{Error: storygen.MsgNoImage})
		return
	}
	s.writeJSON(w, http.StatusOK, storyapi.ImageResponse{ImageURL: url})
}

// writeGenerationError keeps the status and message of a GenerationError and maps
// everything else to 500.
func (s *Server) writeGenerationError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	resp := storyapi.ErrorResponse{Error: err.Error()}

	var gen *domain.GenerationError
	if errors.As(err, &gen) {
		if gen.Status >= 400 && gen.Status <= 599 {
			status = gen.Status
		}
		resp.Error = domain.UserMessage(gen)
		resp.Raw = gen.Raw
	}
	s.logger.ErrorContext(r.Context(), "generation failed", "path", r.URL.Path, "status", status, "err", err)
	s.writeJSON(w, status, resp)
}

// imageURL returns the image location, turning inline bytes into a data URI.
func imageURL(img domain.ImageRef) string {
	if img.URL != "" {
		return img.URL
	}
	if len(img.Data) == 0 {
		return ""
	}
	mime := img.MIMEType
	if mime == "" {
		if kind, err := filetype.Match(img.Data); err == nil && kind != filetype.Unknown {
			mime = kind.MIME.Value
		} else {
			mime = "image/png"
		}
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}
