package wizard

import "github.com/aretw0/storyweaver/pkg/domain"

// Edge is one step change the machine can make.
type Edge struct {
	From  domain.Step
	To    domain.Step
	Event domain.EventType
}

// Edges lists the accepted transitions in wizard order. Self loops are included.
// Failed remote results leave the step unchanged and are not listed separately.
var Edges = []Edge{
	{From: domain.StepBriefing, To: domain.StepBriefing, Event: domain.EventSubmitBriefing},
	{From: domain.StepBriefing, To: domain.StepProposal, Event: domain.EventProposalReceived},
	{From: domain.StepProposal, To: domain.StepStyle, Event: domain.EventApprove},
	{From: domain.StepProposal, To: domain.StepProposal, Event: domain.EventAdjust},
	{From: domain.StepProposal, To: domain.StepSceneCount, Event: domain.EventNegotiateSceneCount},
	{From: domain.StepSceneCount, To: domain.StepStyle, Event: domain.EventSubmitSceneCount},
	{From: domain.StepStyle, To: domain.StepStyle, Event: domain.EventSubmitStyle},
	{From: domain.StepStyle, To: domain.StepStyle, Event: domain.EventSelectScene},
	{From: domain.StepStyle, To: domain.StepImages, Event: domain.EventImagesSettled},
	{From: domain.StepImages, To: domain.StepImages, Event: domain.EventSubmitStyle},
	{From: domain.StepImages, To: domain.StepImages, Event: domain.EventSelectScene},
	{From: domain.StepImages, To: domain.StepImages, Event: domain.EventImagesSettled},
	{From: domain.StepImages, To: domain.StepBriefing, Event: domain.EventRestart},
}

// Steps lists the wizard steps in the order a session visits them.
var Steps = []domain.Step{
	domain.StepBriefing,
	domain.StepProposal,
	domain.StepSceneCount,
	domain.StepStyle,
	domain.StepImages,
}
