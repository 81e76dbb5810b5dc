package storygen_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/storyweaver/pkg/domain"
	"github.com/aretw0/storyweaver/pkg/storygen"
)

type fakeGenerator struct {
	story    string
	storyErr error
	image    domain.ImageRef
	imageErr error

	lastSystem string
	lastPrompt string
}

func (f *fakeGenerator) CompleteStory(ctx context.Context, system, prompt string) (string, error) {
	f.lastSystem, f.lastPrompt = system, prompt
	return f.story, f.storyErr
}

func (f *fakeGenerator) GenerateImage(ctx context.Context, prompt string) (domain.ImageRef, error) {
	f.lastPrompt = prompt
	return f.image, f.imageErr
}

func TestLocal_ProposeStory(t *testing.T) {
	gen := &fakeGenerator{story: `[{"description":"one"},{"description":"two"}]`}
	svc := storygen.NewLocal(gen)

	p, err := svc.ProposeStory(context.Background(), "  A knight in a forest ", 2)
	require.NoError(t, err)
	assert.Equal(t, "A knight in a forest", p.Title)
	assert.Len(t, p.Scenes, 2)
	assert.Equal(t, storygen.SystemPrompt, gen.lastSystem)
	assert.Contains(t, gen.lastPrompt, "2 scenes")
}

func TestLocal_ProposeStory_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("MissingFields", func(t *testing.T) {
		_, err := storygen.NewLocal(&fakeGenerator{}).ProposeStory(ctx, " ", 2)
		var gen *domain.GenerationError
		require.ErrorAs(t, err, &gen)
		assert.Equal(t, 400, gen.Status)
		assert.Equal(t, storygen.MsgMissingStoryFields, gen.Message)
	})

	t.Run("Unparseable", func(t *testing.T) {
		_, err := storygen.NewLocal(&fakeGenerator{story: "not json"}).ProposeStory(ctx, "b", 1)
		var gen *domain.GenerationError
		require.ErrorAs(t, err, &gen)
		assert.Equal(t, storygen.MsgUnparseableStory, gen.Message)
		assert.Equal(t, "not json", gen.Raw)
		assert.ErrorIs(t, err, storygen.ErrUnparseable)
	})

	t.Run("Upstream", func(t *testing.T) {
		_, err := storygen.NewLocal(&fakeGenerator{storyErr: errors.New("rate limited")}).ProposeStory(ctx, "b", 1)
		var gen *domain.GenerationError
		require.ErrorAs(t, err, &gen)
		assert.Equal(t, "rate limited", gen.Message)
		assert.Equal(t, "propose story", gen.Op)
	})

	t.Run("TypedUpstream", func(t *testing.T) {
		typed := &domain.GenerationError{Status: 429, Message: "quota"}
		_, err := storygen.NewLocal(&fakeGenerator{storyErr: typed}).ProposeStory(ctx, "b", 1)
		var gen *domain.GenerationError
		require.ErrorAs(t, err, &gen)
		assert.Equal(t, 429, gen.Status)
		assert.Equal(t, "propose story", gen.Op)
		assert.Empty(t, typed.Op, "input error must not be modified")
	})
}

func TestLocal_GenerateSceneImage(t *testing.T) {
	ctx := context.Background()

	gen := &fakeGenerator{image: domain.ImageRef{URL: "https://img.example/1.png"}}
	img, err := storygen.NewLocal(gen).GenerateSceneImage(ctx, "a castle", "Anime")
	require.NoError(t, err)
	assert.Equal(t, "https://img.example/1.png", img.URL)
	assert.Equal(t, "Anime", img.Style)
	assert.Equal(t, "a castle in the style of Anime", gen.lastPrompt)

	_, err = storygen.NewLocal(&fakeGenerator{}).GenerateSceneImage(ctx, "a castle", "Anime")
	var genErr *domain.GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, storygen.MsgNoImage, genErr.Message)

	_, err = storygen.NewLocal(&fakeGenerator{}).GenerateSceneImage(ctx, "", "Anime")
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, 400, genErr.Status)
}
