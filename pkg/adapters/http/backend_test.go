package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/aretw0/storyweaver/pkg/adapters/http"
	"github.com/aretw0/storyweaver/pkg/adapters/storyapi"
	"github.com/aretw0/storyweaver/pkg/domain"
)

// stubService answers every call with the configured values.
type stubService struct {
	proposal domain.Proposal
	image    domain.ImageRef
	err      error

	gotBriefing string
	gotScenes   int
	gotStyle    string
}

func (s *stubService) ProposeStory(_ context.Context, briefing string, n int) (domain.Proposal, error) {
	s.gotBriefing, s.gotScenes = briefing, n
	return s.proposal, s.err
}

func (s *stubService) GenerateSceneImage(_ context.Context, _ string, style string) (domain.ImageRef, error) {
	s.gotStyle = style
	return s.image, s.err
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestBackend_Story(t *testing.T) {
	svc := &stubService{proposal: domain.Proposal{Scenes: []domain.ProposedScene{
		{Description: "A knight enters", Dialogue: "Hello"},
		{Description: "A dragon wakes"},
	}}}
	h := httpadapter.NewHandler(httpadapter.WithStoryService(svc))

	w := do(t, h, http.MethodPost, "/api/story", storyapi.StoryRequest{Briefing: "knight", NumScenes: 2})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "knight", svc.gotBriefing)
	assert.Equal(t, 2, svc.gotScenes)

	resp := decodeBody[struct {
		Story []domain.ProposedScene `json:"story"`
	}](t, w)
	assert.Equal(t, svc.proposal.Scenes, resp.Story)
}

func TestBackend_Story_MissingFields(t *testing.T) {
	svc := &stubService{err: errors.New("must not be called")}
	h := httpadapter.NewHandler(httpadapter.WithStoryService(svc))

	for _, body := range []storyapi.StoryRequest{{Briefing: "x"}, {NumScenes: 3}, {Briefing: "  ", NumScenes: 3}} {
		w := do(t, h, http.MethodPost, "/api/story", body)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Missing required fields: briefing, numScenes", decodeBody[storyapi.ErrorResponse](t, w).Error)
	}
	assert.Empty(t, svc.gotBriefing)
}

func TestBackend_Story_Unparseable(t *testing.T) {
	svc := &stubService{err: &domain.GenerationError{
		Op: "propose story", Status: 500, Message: "Failed to parse story output from AI.", Raw: "Once upon",
	}}
	h := httpadapter.NewHandler(httpadapter.WithStoryService(svc))

	w := do(t, h, http.MethodPost, "/api/story", storyapi.StoryRequest{Briefing: "knight", NumScenes: 1})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, storyapi.ErrorResponse{Error: "Failed to parse story output from AI.", Raw: "Once upon"},
		decodeBody[storyapi.ErrorResponse](t, w))
}

func TestBackend_Image(t *testing.T) {
	svc := &stubService{image: domain.ImageRef{URL: "https://img.example/1.png"}}
	h := httpadapter.NewHandler(httpadapter.WithStoryService(svc))

	w := do(t, h, http.MethodPost, "/api/image", storyapi.ImageRequest{SceneDescription: "castle", Style: "Anime"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Anime", svc.gotStyle)
	assert.Equal(t, "https://img.example/1.png", decodeBody[storyapi.ImageResponse](t, w).ImageURL)
}

func TestBackend_Image_InlineData(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0x0D, 'I', 'H', 'D', 'R'}
	svc := &stubService{image: domain.ImageRef{Data: png}}
	h := httpadapter.NewHandler(httpadapter.WithStoryService(svc))

	w := do(t, h, http.MethodPost, "/api/image", storyapi.ImageRequest{SceneDescription: "castle"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decodeBody[storyapi.ImageResponse](t, w).ImageURL, "data:image/png;base64,")
}

func TestBackend_Image_Errors(t *testing.T) {
	t.Run("MissingDescription", func(t *testing.T) {
		h := httpadapter.NewHandler(httpadapter.WithStoryService(&stubService{}))
		w := do(t, h, http.MethodPost, "/api/image", storyapi.ImageRequest{Style: "Anime"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Missing required field: sceneDescription", decodeBody[storyapi.ErrorResponse](t, w).Error)
	})

	t.Run("NoImage", func(t *testing.T) {
		h := httpadapter.NewHandler(httpadapter.WithStoryService(&stubService{}))
		w := do(t, h, http.MethodPost, "/api/image", storyapi.ImageRequest{SceneDescription: "castle"})
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "No image URL returned from OpenAI.", decodeBody[storyapi.ErrorResponse](t, w).Error)
	})

	t.Run("Upstream", func(t *testing.T) {
		h := httpadapter.NewHandler(httpadapter.WithStoryService(&stubService{err: errors.New("rate limited")}))
		w := do(t, h, http.MethodPost, "/api/image", storyapi.ImageRequest{SceneDescription: "castle"})
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "rate limited", decodeBody[storyapi.ErrorResponse](t, w).Error)
	})

	t.Run("InvalidBody", func(t *testing.T) {
		h := httpadapter.NewHandler(httpadapter.WithStoryService(&stubService{}))
		req := httptest.NewRequest(http.MethodPost, "/api/image", bytes.NewBufferString("{"))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

// The storyapi client and the backend routes agree on the wire contract.
func TestBackend_RoundTripThroughClient(t *testing.T) {
	svc := &stubService{
		proposal: domain.Proposal{Scenes: []domain.ProposedScene{{Description: "A knight enters"}}},
		image:    domain.ImageRef{URL: "https://img.example/1.png"},
	}
	srv := httptest.NewServer(httpadapter.NewHandler(httpadapter.WithStoryService(svc)))
	defer srv.Close()

	client := storyapi.New(srv.URL)
	defer client.Close()
	ctx := context.Background()

	p, err := client.ProposeStory(ctx, "knight", 1)
	require.NoError(t, err)
	assert.Equal(t, "knight", p.Title)
	assert.Equal(t, svc.proposal.Scenes, p.Scenes)

	img, err := client.GenerateSceneImage(ctx, "A knight enters", "Anime")
	require.NoError(t, err)
	assert.Equal(t, domain.ImageRef{URL: "https://img.example/1.png", Style: "Anime"}, img)

	require.NoError(t, client.Health(ctx))
}

func TestServer_HealthAndCORS(t *testing.T) {
	h := httpadapter.NewHandler()

	w := do(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = do(t, h, http.MethodGet, "/cors-test", nil)
	assert.JSONEq(t, `{"success":true,"message":"CORS is working!"}`, w.Body.String())
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = do(t, h, http.MethodOptions, "/api/story", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	// Groups that were not configured are not mounted.
	w = do(t, h, http.MethodPost, "/api/story", storyapi.StoryRequest{Briefing: "x", NumScenes: 1})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "storyweaver_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	h := httpadapter.NewHandler(httpadapter.WithMetrics(reg))
	w := do(t, h, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "storyweaver_test_total 1")
}
