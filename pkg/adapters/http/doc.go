/*
Package http serves storyweaver over HTTP with chi.

Two groups of routes share one handler:

  - The story backend (/api/story, /api/image, /health, /cors-test) exposes a
    ports.StoryService with the JSON contract consumed by the storyapi client.
  - The wizard API (/wizard/sessions/...) hosts wizard sessions through a
    session.Manager and streams state diffs to subscribers over SSE.

Either group is mounted only when configured, and /metrics only when a gatherer is set.
*/
package http
