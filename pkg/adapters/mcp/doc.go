// Package mcp exposes story generation as Model Context Protocol tools
// (propose_story, generate_scene_image) over stdio or SSE.
package mcp
