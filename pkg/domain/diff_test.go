package domain

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestDiff(t *testing.T) {
	story := Story{Title: "t", Scenes: []Scene{{ID: "scene-0", Description: "a"}, {ID: "scene-1", Description: "b"}}}
	withImage := story.Clone()
	withImage.Scenes[1].Image = &ImageRef{URL: "http://img/1", Style: "Anime"}

	tests := []struct {
		name  string
		old   *State
		new   *State
		check func(t *testing.T, d *StateDiff)
	}{
		{
			name: "Initial Load (Old is Nil)",
			old:  nil,
			new:  NewState("sess-1", 2),
			check: func(t *testing.T, d *StateDiff) {
				if d == nil || d.Step == nil || *d.Step != StepBriefing {
					t.Fatalf("expected step in initial diff, got %+v", d)
				}
				if d.Payload == nil {
					t.Errorf("expected full payload on initial diff")
				}
			},
		},
		{
			name: "No Changes",
			old:  &State{SessionID: "sess-1", Payload: StylePayload{Story: story}},
			new:  &State{SessionID: "sess-1", Payload: StylePayload{Story: story}},
			check: func(t *testing.T, d *StateDiff) {
				if d != nil {
					t.Errorf("expected nil diff, got %+v", d)
				}
			},
		},
		{
			name: "Step Change Carries Payload",
			old:  &State{SessionID: "sess-1", Payload: ProposalPayload{}},
			new: &State{SessionID: "sess-1", Payload: StylePayload{Story: story}, Log: []Message{
				{Speaker: SpeakerSystem, Text: "style?"},
			}},
			check: func(t *testing.T, d *StateDiff) {
				if d.Step == nil || *d.Step != StepStyle {
					t.Fatalf("expected style step, got %+v", d.Step)
				}
				if len(d.Appended) != 1 {
					t.Errorf("expected 1 appended message, got %d", len(d.Appended))
				}
			},
		},
		{
			name: "Image Arrives Within Step",
			old:  &State{SessionID: "sess-1", Payload: ImagesPayload{Story: story}},
			new:  &State{SessionID: "sess-1", Payload: ImagesPayload{Story: withImage, ActiveSceneIndex: 1}},
			check: func(t *testing.T, d *StateDiff) {
				if d.Step != nil {
					t.Errorf("did not expect step change")
				}
				if len(d.Images) != 1 || d.Images[0].SceneID != "scene-1" {
					t.Errorf("expected scene-1 image delta, got %+v", d.Images)
				}
				if d.ActiveSceneIndex == nil || *d.ActiveSceneIndex != 1 {
					t.Errorf("expected active scene index 1")
				}
			},
		},
		{
			name: "Busy and Error Toggle",
			old:  &State{SessionID: "sess-1", Payload: BriefingPayload{}, Busy: true},
			new:  &State{SessionID: "sess-1", Payload: BriefingPayload{}, Error: "boom"},
			check: func(t *testing.T, d *StateDiff) {
				if d.Busy == nil || *d.Busy {
					t.Errorf("expected busy=false in diff")
				}
				if d.Error == nil || *d.Error != "boom" {
					t.Errorf("expected error in diff")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, Diff(tt.old, tt.new))
		})
	}
}

func TestDiff_JSONOmitsUnchangedFields(t *testing.T) {
	old := &State{SessionID: "sess-1", Payload: BriefingPayload{}}
	next := old.Clone()
	next.Log = append(next.Log, Message{Speaker: SpeakerUser, Text: "hi"})

	bytes, err := json.Marshal(Diff(old, next))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	out := string(bytes)
	if strings.Contains(out, `"step"`) || strings.Contains(out, `"busy"`) {
		t.Errorf("unexpected fields in %s", out)
	}
	if !strings.Contains(out, `"appended"`) {
		t.Errorf("expected appended messages in %s", out)
	}
}

func TestDiff_UnmarshalRestoresPayload(t *testing.T) {
	s := NewState("sess-1", 2)
	s.Payload = StylePayload{Story: Story{Title: "t", Scenes: []Scene{{ID: "scene-0", Description: "a"}}}}

	data, err := json.Marshal(Diff(nil, s))
	if err != nil {
		t.Fatal(err)
	}
	var got StateDiff
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Step == nil || *got.Step != StepStyle {
		t.Fatalf("expected style step, got %+v", got.Step)
	}
	payload, ok := got.Payload.(StylePayload)
	if !ok {
		t.Fatalf("expected StylePayload, got %T", got.Payload)
	}
	if payload.Story.Scenes[0].ID != "scene-0" {
		t.Errorf("unexpected scenes %+v", payload.Story.Scenes)
	}
}
