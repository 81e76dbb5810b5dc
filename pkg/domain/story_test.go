package domain_test

import (
	"testing"

	"github.com/aretw0/storyweaver/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestProposal_Materialize(t *testing.T) {
	p := domain.Proposal{
		Title: "A knight in a forest",
		Scenes: []domain.ProposedScene{
			{Description: "The knight enters", Narration: "Dawn."},
			{Description: "A dragon appears", Dialogue: "Who goes there?"},
		},
	}

	story := p.Materialize(0)

	assert.Equal(t, "A knight in a forest", story.Title)
	assert.Len(t, story.Scenes, 2)
	for i, sc := range story.Scenes {
		assert.Equal(t, domain.SceneID(i), sc.ID)
		assert.Equal(t, p.Scenes[i].Description, sc.Description)
		assert.False(t, sc.HasImage())
	}
	assert.Equal(t, "Dawn.", story.Scenes[0].Narration)
	assert.Equal(t, "Who goes there?", story.Scenes[1].Dialogue)
}

func TestProposal_MaterializeLimit(t *testing.T) {
	p := domain.Proposal{Scenes: make([]domain.ProposedScene, 4)}

	assert.Len(t, p.Materialize(2).Scenes, 2)
	assert.Len(t, p.Materialize(10).Scenes, 4)
}

func TestStory_MissingImages(t *testing.T) {
	s := domain.Story{Scenes: []domain.Scene{
		{ID: "scene-0", Image: &domain.ImageRef{URL: "a", Style: "Anime"}},
		{ID: "scene-1"},
		{ID: "scene-2", Image: &domain.ImageRef{URL: "c", Style: "Watercolor"}},
	}}

	missing := s.MissingImages("Anime")

	assert.Len(t, missing, 2)
	assert.Equal(t, "scene-1", missing[0].ID)
	assert.Equal(t, "scene-2", missing[1].ID)
	assert.Equal(t, 2, s.SceneIndex("scene-2"))
	assert.Equal(t, -1, s.SceneIndex("scene-7"))
}
