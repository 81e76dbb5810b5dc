/*
Package domain contains the core domain models of the storyweaver wizard.

It defines the story document (Story, Scene, Proposal), the wizard State with its
step-specific payloads, the Events that drive transitions and the Commands the host
executes on behalf of the state machine. This package is kept pure and free of I/O,
following Hexagonal Architecture principles.

# Key Entities

  - Proposal: A tentative story draft returned by the generation backend.
  - Story: The approved, immutable-order sequence of Scenes.
  - State: The runtime snapshot of one wizard session (Step, Payload, Log).
  - Command: A side-effect the engine requests the host to perform (propose, fan-out).
  - ReconcileScenes: The pure merge of asynchronous image results into a Story.
*/
package domain
