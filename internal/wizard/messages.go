package wizard

import (
	"fmt"
	"strings"

	"github.com/aretw0/storyweaver/pkg/domain"
)

const (
	msgProposalReady  = "Here is a proposed story based on your briefing. Would you like to adjust it or proceed?"
	msgChooseStyle    = "Great! Now, let's choose a visual style for the images."
	msgGenerating     = "Generating images, please wait..."
	msgEmptyProposal  = "the story proposal contained no scenes"
	msgNoImageResult  = "no image returned"
	fmtProposalFailed = "Sorry, I couldn't generate a story proposal: %s"
	fmtImagesFailed   = "Sorry, I encountered an error generating images: %s"
	fmtImagesReady    = "Here are the generated images for your story in a %s style!"
	fmtChosenStyle    = "Chosen style: %s"
)

func sceneCountMessage(n int) string {
	if n == 1 {
		return "Let's go with 1 scene."
	}
	return fmt.Sprintf("Let's go with %d scenes.", n)
}

func userSays(text string) domain.Message {
	return domain.Message{Speaker: domain.SpeakerUser, Text: text}
}

func systemSays(text string) domain.Message {
	return domain.Message{Speaker: domain.SpeakerSystem, Text: text}
}

// failureSummary renders the scene failures of a batch as one line.
func failureSummary(failures []domain.SceneFailure) string {
	parts := make([]string, 0, len(failures))
	for _, f := range failures {
		parts = append(parts, fmt.Sprintf("%s: %s", f.SceneID, f.Message))
	}
	return strings.Join(parts, "; ")
}
