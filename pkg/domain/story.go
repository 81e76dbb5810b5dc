package domain

import "fmt"

// ImageRef points at a generated scene image.
// Either URL or Data is set; Data carries inline bytes when the backend returns them.
type ImageRef struct {
	URL      string `json:"url,omitempty"`
	Data     []byte `json:"data,omitempty"`
	MIMEType string `json:"mime_type,omitempty"`

	// Style is the visual style the image was generated with.
	Style string `json:"style,omitempty"`
}

// IsZero reports whether the reference points at nothing.
func (r *ImageRef) IsZero() bool {
	return r == nil || (r.URL == "" && len(r.Data) == 0)
}

// Scene is one unit of the story.
// Image is the only field that changes after the Story is created.
type Scene struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Dialogue    string    `json:"dialogue,omitempty"`
	Narration   string    `json:"narration,omitempty"`
	Image       *ImageRef `json:"image,omitempty"`
}

// HasImage reports whether an image has been attached to the scene.
func (s Scene) HasImage() bool {
	return !s.Image.IsZero()
}

// Story is an approved story. Scene order is canonical and fixed at creation.
type Story struct {
	Title  string  `json:"title"`
	Scenes []Scene `json:"scenes"`
}

// Clone returns a copy of the story whose scene slice can be replaced safely.
// Image references are shared; they are never mutated once attached.
func (s Story) Clone() Story {
	scenes := make([]Scene, len(s.Scenes))
	copy(scenes, s.Scenes)
	return Story{Title: s.Title, Scenes: scenes}
}

// SceneIndex returns the position of the scene with the given id, or -1.
func (s Story) SceneIndex(id string) int {
	for i, sc := range s.Scenes {
		if sc.ID == id {
			return i
		}
	}
	return -1
}

// MissingImages returns the scenes that have no image rendered in the given style.
func (s Story) MissingImages(style string) []Scene {
	var out []Scene
	for _, sc := range s.Scenes {
		if !sc.HasImage() || sc.Image.Style != style {
			out = append(out, sc)
		}
	}
	return out
}

// ProposedScene is a scene as returned by the generation backend, before approval.
type ProposedScene struct {
	Description string `json:"description"`
	Dialogue    string `json:"dialogue,omitempty"`
	Narration   string `json:"narration,omitempty"`
}

// Proposal is a tentative story held until the user approves or discards it.
type Proposal struct {
	Title  string          `json:"title"`
	Scenes []ProposedScene `json:"scenes"`
}

// SceneID returns the stable identifier assigned to the scene at position i.
func SceneID(i int) string {
	return fmt.Sprintf("scene-%d", i)
}

// Materialize creates a new Story from the proposal.
// When limit is positive, at most limit scenes are kept.
func (p Proposal) Materialize(limit int) Story {
	n := len(p.Scenes)
	if limit > 0 && limit < n {
		n = limit
	}
	scenes := make([]Scene, n)
	for i := 0; i < n; i++ {
		ps := p.Scenes[i]
		scenes[i] = Scene{
			ID:          SceneID(i),
			Description: ps.Description,
			Dialogue:    ps.Dialogue,
			Narration:   ps.Narration,
		}
	}
	return Story{Title: p.Title, Scenes: scenes}
}

// Clone returns a deep copy of the proposal.
func (p Proposal) Clone() Proposal {
	scenes := make([]ProposedScene, len(p.Scenes))
	copy(scenes, p.Scenes)
	return Proposal{Title: p.Title, Scenes: scenes}
}
