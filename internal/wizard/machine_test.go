package wizard_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/storyweaver/internal/wizard"
	"github.com/aretw0/storyweaver/pkg/domain"
)

func knightProposal() domain.Proposal {
	return domain.Proposal{
		Title: "A knight in a forest",
		Scenes: []domain.ProposedScene{
			{Description: "A knight enters a dark forest", Narration: "It was quiet."},
			{Description: "The knight meets a dragon", Dialogue: "Halt!"},
		},
	}
}

func image(url string) *domain.ImageRef {
	return &domain.ImageRef{URL: url}
}

// styleState drives a fresh session up to the Style step with the knight proposal.
func styleState(t *testing.T, m wizard.Machine) *domain.State {
	t.Helper()
	s := domain.NewState("s1", 0)
	res := m.Transition(s, domain.SubmitBriefing{Text: "A knight in a forest", NumScenes: 2})
	require.NoError(t, res.Rejected)
	res = m.Transition(res.State, domain.ProposalReceived{Proposal: knightProposal()})
	require.NoError(t, res.Rejected)
	res = m.Transition(res.State, domain.Approve{})
	require.NoError(t, res.Rejected)
	require.Equal(t, domain.StepStyle, res.State.Step())
	return res.State
}

func TestTransition_KnightScenario(t *testing.T) {
	m := wizard.Machine{}
	s := domain.NewState("s1", 0)

	res := m.Transition(s, domain.SubmitBriefing{Text: "A knight in a forest", NumScenes: 2})
	require.NoError(t, res.Rejected)
	assert.True(t, res.State.Busy)
	assert.Equal(t, domain.StepBriefing, res.State.Step())
	require.Len(t, res.Commands, 1)
	assert.Equal(t, domain.ProposeCommand{Briefing: "A knight in a forest", NumScenes: 2}, res.Commands[0])

	res = m.Transition(res.State, domain.ProposalReceived{Proposal: knightProposal()})
	require.NoError(t, res.Rejected)
	assert.Equal(t, domain.StepProposal, res.State.Step())
	assert.False(t, res.State.Busy)
	require.NotNil(t, res.State.PendingProposal())
	assert.Equal(t, knightProposal(), *res.State.PendingProposal())

	res = m.Transition(res.State, domain.Approve{})
	require.NoError(t, res.Rejected)
	assert.Nil(t, res.State.PendingProposal())
	story := res.State.ApprovedStory()
	require.NotNil(t, story)
	require.Len(t, story.Scenes, 2)
	assert.Equal(t, "scene-0", story.Scenes[0].ID)
	assert.Equal(t, "scene-1", story.Scenes[1].ID)
	assert.False(t, story.Scenes[0].HasImage())

	res = m.Transition(res.State, domain.SubmitStyle{Style: "Watercolor"})
	require.NoError(t, res.Rejected)
	assert.True(t, res.State.Busy)
	require.Len(t, res.Commands, 1)
	cmd := res.Commands[0].(domain.GenerateImagesCommand)
	assert.Equal(t, "Watercolor", cmd.Style)
	assert.Len(t, cmd.Requests, 2)

	res = m.Transition(res.State, domain.ImagesSettled{
		Style: "Watercolor",
		Results: []domain.SceneImageResult{
			{SceneID: "scene-1", Image: image("u2")},
			{SceneID: "scene-0", Image: image("u1")},
		},
	})
	require.NoError(t, res.Rejected)
	final := res.State
	assert.Equal(t, domain.StepImages, final.Step())
	assert.Equal(t, 0, final.ActiveSceneIndex())
	assert.Equal(t, "Watercolor", final.SelectedStyle())
	assert.Empty(t, final.Error)
	assert.Equal(t, "u1", final.ApprovedStory().Scenes[0].Image.URL)
	assert.Equal(t, "u2", final.ApprovedStory().Scenes[1].Image.URL)

	texts := make([]string, 0, len(final.Log))
	for _, msg := range final.Log {
		texts = append(texts, msg.Text)
	}
	assert.Equal(t, []string{
		"A knight in a forest",
		"Here is a proposed story based on your briefing. Would you like to adjust it or proceed?",
		"Great! Now, let's choose a visual style for the images.",
		"Chosen style: Watercolor",
		"Generating images, please wait...",
		"Here are the generated images for your story in a Watercolor style!",
	}, texts)
}

func TestTransition_PartialFanOutFailure(t *testing.T) {
	m := wizard.Machine{}
	s := styleState(t, m)

	res := m.Transition(s, domain.SubmitStyle{Style: "Anime"})
	require.NoError(t, res.Rejected)

	res = m.Transition(res.State, domain.ImagesSettled{
		Style: "Anime",
		Results: []domain.SceneImageResult{
			{SceneID: "scene-0", Image: image("u1")},
			{SceneID: "scene-1", Err: &domain.GenerationError{Op: "generate image", Message: "content policy"}},
		},
	})
	require.NoError(t, res.Rejected)
	st := res.State
	assert.Equal(t, domain.StepStyle, st.Step())
	assert.False(t, st.Busy)
	assert.Contains(t, st.Error, "scene-1: content policy")
	assert.Equal(t, "u1", st.ApprovedStory().Scenes[0].Image.URL)
	assert.Equal(t, "Anime", st.ApprovedStory().Scenes[0].Image.Style)
	assert.False(t, st.ApprovedStory().Scenes[1].HasImage())
	assert.Equal(t, []domain.SceneFailure{{SceneID: "scene-1", Message: "content policy"}}, st.Failures())
	assert.Equal(t, "Sorry, I encountered an error generating images: scene-1: content policy", st.Log[len(st.Log)-1].Text)

	// Retrying the same style only asks for the missing scene.
	res = m.Transition(st, domain.SubmitStyle{Style: "Anime"})
	require.NoError(t, res.Rejected)
	assert.Empty(t, res.State.Error)
	cmd := res.Commands[0].(domain.GenerateImagesCommand)
	assert.Equal(t, []domain.ImageRequest{{SceneID: "scene-1", Description: "The knight meets a dragon"}}, cmd.Requests)

	res = m.Transition(res.State, domain.ImagesSettled{
		Style:   "Anime",
		Results: []domain.SceneImageResult{{SceneID: "scene-1", Image: image("u2")}},
	})
	require.NoError(t, res.Rejected)
	assert.Equal(t, domain.StepImages, res.State.Step())
	assert.Empty(t, res.State.Failures())
	assert.Equal(t, "u1", res.State.ApprovedStory().Scenes[0].Image.URL)
}

func TestTransition_BestEffortAdvances(t *testing.T) {
	m := wizard.Machine{Policy: domain.FanOutBestEffort}
	s := styleState(t, m)

	res := m.Transition(s, domain.SubmitStyle{Style: "Anime"})
	res = m.Transition(res.State, domain.ImagesSettled{
		Style: "Anime",
		Results: []domain.SceneImageResult{
			{SceneID: "scene-0", Image: image("u1")},
			{SceneID: "scene-1", Err: errors.New("timeout")},
		},
	})
	require.NoError(t, res.Rejected)
	assert.Equal(t, domain.StepImages, res.State.Step())
	assert.Len(t, res.State.Failures(), 1)
	assert.Equal(t, "scene-1: timeout", res.State.Error)
}

func TestTransition_ProposeFailure(t *testing.T) {
	s := domain.NewState("s1", 0)
	res := wizard.Transition(s, domain.SubmitBriefing{Text: "dragons"})
	require.NoError(t, res.Rejected)
	assert.Equal(t, domain.ProposeCommand{Briefing: "dragons", NumScenes: domain.DefaultNumScenes}, res.Commands[0])

	res = wizard.Transition(res.State, domain.ProposalReceived{
		Err: &domain.GenerationError{Op: "propose story", Status: 500, Message: "Failed to parse story output from AI."},
	})
	require.NoError(t, res.Rejected)
	assert.Equal(t, domain.StepBriefing, res.State.Step())
	assert.False(t, res.State.Busy)
	assert.Equal(t, "Failed to parse story output from AI.", res.State.Error)
	assert.Equal(t, "Sorry, I couldn't generate a story proposal: Failed to parse story output from AI.", res.State.Log[len(res.State.Log)-1].Text)

	// Resubmission clears the error and issues a fresh call.
	res = wizard.Transition(res.State, domain.SubmitBriefing{Text: "dragons again"})
	require.NoError(t, res.Rejected)
	assert.Empty(t, res.State.Error)
	assert.Len(t, res.Commands, 1)
}

func TestTransition_EmptyProposalIsFailure(t *testing.T) {
	res := wizard.Transition(domain.NewState("s1", 0), domain.SubmitBriefing{Text: "x"})
	res = wizard.Transition(res.State, domain.ProposalReceived{Proposal: domain.Proposal{Title: "x"}})
	require.NoError(t, res.Rejected)
	assert.Equal(t, domain.StepBriefing, res.State.Step())
	assert.NotEmpty(t, res.State.Error)
}

func TestTransition_Guards(t *testing.T) {
	t.Run("BlankBriefing", func(t *testing.T) {
		s := domain.NewState("s1", 0)
		res := wizard.Transition(s, domain.SubmitBriefing{Text: "  \n\t "})
		require.Error(t, res.Rejected)
		assert.ErrorIs(t, res.Rejected, domain.ErrGuardRejected)
		var verr *domain.ValidationError
		assert.ErrorAs(t, res.Rejected, &verr)
		assert.Same(t, s, res.State)
		assert.Empty(t, res.Commands)
		assert.Equal(t, 0, res.State.Revision)
	})

	t.Run("BlankStyle", func(t *testing.T) {
		s := styleState(t, wizard.Machine{})
		res := wizard.Transition(s, domain.SubmitStyle{Style: ""})
		assert.ErrorIs(t, res.Rejected, domain.ErrGuardRejected)
		assert.Empty(t, res.Commands)
		assert.Same(t, s, res.State)
	})

	t.Run("BusyBriefing", func(t *testing.T) {
		res := wizard.Transition(domain.NewState("s1", 0), domain.SubmitBriefing{Text: "one"})
		again := wizard.Transition(res.State, domain.SubmitBriefing{Text: "two"})
		assert.ErrorIs(t, again.Rejected, domain.ErrBusy)
		assert.Empty(t, again.Commands)
		assert.Len(t, again.State.Log, 1)
	})

	t.Run("BusyStyle", func(t *testing.T) {
		s := styleState(t, wizard.Machine{})
		res := wizard.Transition(s, domain.SubmitStyle{Style: "Anime"})
		again := wizard.Transition(res.State, domain.SubmitStyle{Style: "Cinematic"})
		assert.ErrorIs(t, again.Rejected, domain.ErrBusy)
		assert.Empty(t, again.Commands)
	})

	t.Run("WrongStep", func(t *testing.T) {
		res := wizard.Transition(domain.NewState("s1", 0), domain.Approve{})
		assert.ErrorIs(t, res.Rejected, domain.ErrUnexpectedEvent)
	})

	t.Run("OversizedInput", func(t *testing.T) {
		m := wizard.Machine{MaxInputSize: 8}
		res := m.Transition(domain.NewState("s1", 0), domain.SubmitBriefing{Text: "far too long for this"})
		var verr *domain.ValidationError
		require.ErrorAs(t, res.Rejected, &verr)
		assert.Equal(t, "briefing", verr.Field)
	})

	t.Run("StaleImages", func(t *testing.T) {
		s := styleState(t, wizard.Machine{})
		res := wizard.Transition(s, domain.ImagesSettled{Style: "Anime"})
		assert.ErrorIs(t, res.Rejected, domain.ErrUnexpectedEvent)
	})
}

func TestTransition_SceneCount(t *testing.T) {
	res := wizard.Transition(domain.NewState("s1", 0), domain.SubmitBriefing{Text: "knight", NumScenes: 2})
	res = wizard.Transition(res.State, domain.ProposalReceived{Proposal: knightProposal()})
	res = wizard.Transition(res.State, domain.NegotiateSceneCount{})
	require.NoError(t, res.Rejected)
	assert.Equal(t, domain.StepSceneCount, res.State.Step())
	require.NotNil(t, res.State.PendingProposal())

	t.Run("Clamped", func(t *testing.T) {
		next := wizard.Transition(res.State, domain.SubmitSceneCount{Count: 0})
		require.NoError(t, next.Rejected)
		assert.Equal(t, domain.StepStyle, next.State.Step())
		assert.Len(t, next.State.ApprovedStory().Scenes, 1)
		assert.Equal(t, "Let's go with 1 scene.", next.State.Log[len(next.State.Log)-2].Text)
	})

	t.Run("BeyondProposal", func(t *testing.T) {
		next := wizard.Transition(res.State, domain.SubmitSceneCount{Count: 5})
		require.NoError(t, next.Rejected)
		assert.Len(t, next.State.ApprovedStory().Scenes, 2)
		assert.Equal(t, "Let's go with 5 scenes.", next.State.Log[len(next.State.Log)-2].Text)
	})
}

func TestTransition_AdjustIsNoop(t *testing.T) {
	res := wizard.Transition(domain.NewState("s1", 0), domain.SubmitBriefing{Text: "knight"})
	res = wizard.Transition(res.State, domain.ProposalReceived{Proposal: knightProposal()})
	before := res.State

	res = wizard.Transition(before, domain.Adjust{})
	require.NoError(t, res.Rejected)
	assert.Same(t, before, res.State)
	assert.Empty(t, res.Commands)
}

func TestTransition_SelectScene(t *testing.T) {
	s := styleState(t, wizard.Machine{})

	res := wizard.Transition(s, domain.SubmitStyle{Style: "Anime"})
	require.True(t, res.State.Busy)

	// Browsing works while the fan-out is running.
	sel := wizard.Transition(res.State, domain.SelectScene{Index: 1})
	require.NoError(t, sel.Rejected)
	assert.Equal(t, 1, sel.State.ActiveSceneIndex())
	assert.True(t, sel.State.Busy)

	clamped := wizard.Transition(sel.State, domain.SelectScene{Index: 99})
	assert.Equal(t, 1, clamped.State.ActiveSceneIndex())
	negative := wizard.Transition(sel.State, domain.SelectScene{Index: -4})
	assert.Equal(t, 0, negative.State.ActiveSceneIndex())

	none := wizard.Transition(domain.NewState("s2", 0), domain.SelectScene{Index: 1})
	assert.ErrorIs(t, none.Rejected, domain.ErrNoStory)
}

func TestTransition_RestyleAndRestart(t *testing.T) {
	m := wizard.Machine{}
	s := styleState(t, m)
	res := m.Transition(s, domain.SubmitStyle{Style: "Anime"})
	res = m.Transition(res.State, domain.ImagesSettled{
		Style: "Anime",
		Results: []domain.SceneImageResult{
			{SceneID: "scene-0", Image: image("a0")},
			{SceneID: "scene-1", Image: image("a1")},
		},
	})
	require.Equal(t, domain.StepImages, res.State.Step())

	restyle := m.Transition(res.State, domain.SubmitStyle{Style: "Pixel Art"})
	require.NoError(t, restyle.Rejected)
	assert.Equal(t, domain.StepImages, restyle.State.Step())
	assert.Len(t, restyle.Commands[0].(domain.GenerateImagesCommand).Requests, 2)

	// Re-running the current style regenerates every scene.
	same := m.Transition(res.State, domain.SubmitStyle{Style: "Anime"})
	assert.Len(t, same.Commands[0].(domain.GenerateImagesCommand).Requests, 2)

	logLen := len(res.State.Log)
	restart := m.Transition(res.State, domain.Restart{})
	require.NoError(t, restart.Rejected)
	assert.Equal(t, domain.StepBriefing, restart.State.Step())
	assert.Nil(t, restart.State.ApprovedStory())
	assert.Len(t, restart.State.Log, logLen)
}

func TestTransition_RestartWaitsForRestyle(t *testing.T) {
	m := wizard.Machine{}
	s := styleState(t, m)
	res := m.Transition(s, domain.SubmitStyle{Style: "Anime"})
	res = m.Transition(res.State, domain.ImagesSettled{
		Style: "Anime",
		Results: []domain.SceneImageResult{
			{SceneID: "scene-0", Image: image("a0")},
			{SceneID: "scene-1", Image: image("a1")},
		},
	})
	restyle := m.Transition(res.State, domain.SubmitStyle{Style: "Watercolor"})
	require.True(t, restyle.State.Busy)

	restart := m.Transition(restyle.State, domain.Restart{})
	assert.ErrorIs(t, restart.Rejected, domain.ErrBusy)
	assert.Same(t, restyle.State, restart.State)

	settled := m.Transition(restyle.State, domain.ImagesSettled{
		Style: "Watercolor",
		Results: []domain.SceneImageResult{
			{SceneID: "scene-0", Image: image("w0")},
			{SceneID: "scene-1", Image: image("w1")},
		},
	})
	require.NoError(t, settled.Rejected)
	require.False(t, settled.State.Busy)

	restart = m.Transition(settled.State, domain.Restart{})
	require.NoError(t, restart.Rejected)
	require.False(t, restart.State.Busy)

	again := m.Transition(restart.State, domain.SubmitBriefing{Text: "A second story"})
	require.NoError(t, again.Rejected)
	assert.True(t, again.State.Busy)
	assert.Len(t, again.Commands, 1)
}

func TestTransition_DoesNotMutateInput(t *testing.T) {
	s := styleState(t, wizard.Machine{})
	snapshot := s.Clone()

	res := wizard.Transition(s, domain.SubmitStyle{Style: "Anime"})
	_ = wizard.Transition(res.State, domain.ImagesSettled{
		Style:   "Anime",
		Results: []domain.SceneImageResult{{SceneID: "scene-0", Image: image("u")}},
	})

	assert.Equal(t, snapshot, s)
}

func TestReplay_Deterministic(t *testing.T) {
	events := []domain.Event{
		domain.SubmitBriefing{Text: "A knight in a forest", NumScenes: 2},
		domain.ProposalReceived{Proposal: knightProposal()},
		domain.Approve{},
		domain.SubmitStyle{Style: ""}, // rejected, skipped
		domain.SubmitStyle{Style: "Anime"},
		domain.ImagesSettled{Style: "Anime", Results: []domain.SceneImageResult{
			{SceneID: "scene-0", Image: image("u1")},
			{SceneID: "scene-1", Image: image("u2")},
		}},
	}
	m := wizard.Machine{}
	a := m.Replay(domain.NewState("r", 0), events...)
	b := m.Replay(domain.NewState("r", 0), events...)
	assert.Equal(t, a, b)
	assert.Equal(t, domain.StepImages, a.Step())
	assert.Equal(t, 5, a.Revision)
}
