/*
Package ports defines the driven ports (interfaces) for the storyweaver engine.

These interfaces decouple the wizard from external implementations, allowing the
engine to work with various generation backends and session storage backends.

# Key Interfaces

  - StoryService: Proposes stories and generates scene images (HTTP client or in-process).
  - Generator: The raw model calls behind a story backend (e.g., OpenAI).
  - StateStore: Responsible for persisting and loading session State.
  - DistributedLocker: Provides distributed locking for handling concurrent session access.
*/
package ports
