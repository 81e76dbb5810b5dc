package storygen

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/storyweaver/pkg/domain"
)

// ErrUnparseable is matched by every ParseError.
var ErrUnparseable = errors.New("unparseable story output")

// ParseError reports model output that is not a scene array. Raw keeps the output.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse story output: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrUnparseable }

type rawScene struct {
	Description json.RawMessage `json:"description"`
	Dialogue    json.RawMessage `json:"dialogue"`
	Narration   json.RawMessage `json:"narration"`
}

// ParseScenes decodes model output into proposed scenes.
//
// Accepted shapes: a JSON array of scenes, or an object wrapping it under "story" or
// "scenes", optionally inside a markdown code fence. Dialogue may be a string, a list of
// strings, a list of {character, line} objects, or a map of speaker to line.
func ParseScenes(raw string) ([]domain.ProposedScene, error) {
	body := []byte(stripFence(raw))

	var items []rawScene
	if err := json.Unmarshal(body, &items); err != nil {
		var wrapped struct {
			Story  []rawScene `json:"story"`
			Scenes []rawScene `json:"scenes"`
		}
		if werr := json.Unmarshal(body, &wrapped); werr != nil || (wrapped.Story == nil && wrapped.Scenes == nil) {
			return nil, &ParseError{Raw: raw, Err: err}
		}
		items = wrapped.Story
		if items == nil {
			items = wrapped.Scenes
		}
	}

	scenes := make([]domain.ProposedScene, 0, len(items))
	for _, it := range items {
		scenes = append(scenes, domain.ProposedScene{
			Description: flatten(it.Description, " "),
			Dialogue:    flatten(it.Dialogue, "\n"),
			Narration:   flatten(it.Narration, " "),
		})
	}
	return scenes, nil
}

// stripFence removes a surrounding ``` or ```json fence.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// flatten renders a loosely typed JSON value as text.
func flatten(raw json.RawMessage, sep string) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}

	var s string
	if json.Unmarshal(raw, &s) == nil {
		return strings.TrimSpace(s)
	}

	var list []json.RawMessage
	if json.Unmarshal(raw, &list) == nil {
		parts := make([]string, 0, len(list))
		for _, item := range list {
			if p := flatten(item, sep); p != "" {
				parts = append(parts, p)
			}
		}
		return strings.Join(parts, sep)
	}

	var obj map[string]json.RawMessage
	if json.Unmarshal(raw, &obj) == nil {
		return flattenObject(obj, sep)
	}

	// Numbers and booleans.
	return strings.TrimSpace(string(raw))
}

var (
	speakerKeys = []string{"character", "speaker", "name"}
	lineKeys    = []string{"line", "text", "dialogue", "content"}
)

func flattenObject(obj map[string]json.RawMessage, sep string) string {
	speaker := firstText(obj, speakerKeys, sep)
	line := firstText(obj, lineKeys, sep)
	if line != "" {
		if speaker != "" {
			return speaker + ": " + line
		}
		return line
	}

	// A map of speaker to line.
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if v := flatten(obj[k], sep); v != "" {
			parts = append(parts, k+": "+v)
		}
	}
	return strings.Join(parts, sep)
}

func firstText(obj map[string]json.RawMessage, keys []string, sep string) string {
	for _, k := range keys {
		if v, ok := obj[k]; ok {
			if s := flatten(v, sep); s != "" {
				return s
			}
		}
	}
	return ""
}
