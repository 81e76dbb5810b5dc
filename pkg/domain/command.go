package domain

// CommandType identifies a side-effect requested by the state machine.
type CommandType string

const (
	// CommandPropose asks the host to call the story backend for a proposal.
	CommandPropose CommandType = "propose_story"

	// CommandGenerateImages asks the host to fan out one image request per scene.
	CommandGenerateImages CommandType = "generate_images"
)

// Command is a side-effect that the engine requests the host to perform.
// Its outcome is fed back as an Event (ProposalReceived, ImagesSettled).
type Command interface {
	CommandType() CommandType
}

// ProposeCommand requests a story proposal.
type ProposeCommand struct {
	Briefing  string `json:"briefing"`
	NumScenes int    `json:"num_scenes"`
}

func (ProposeCommand) CommandType() CommandType { return CommandPropose }

// ImageRequest is one scene of an image fan-out.
type ImageRequest struct {
	SceneID     string `json:"scene_id"`
	Description string `json:"description"`
}

// GenerateImagesCommand requests one image per listed scene, all in the same style.
type GenerateImagesCommand struct {
	Style    string         `json:"style"`
	Requests []ImageRequest `json:"requests"`
}

func (GenerateImagesCommand) CommandType() CommandType { return CommandGenerateImages }
