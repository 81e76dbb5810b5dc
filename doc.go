/*
Package storyweaver is a conversational story wizard: a user describes a premise, receives a
multi-scene story proposal, approves it, picks a visual style and gets one illustration per
scene, then exports the result as a standalone HTML document.

The wizard is a deterministic state machine. Transitions are pure (see internal/wizard) and
describe remote work as commands; the Engine executes those commands against a
ports.StoryService and feeds the outcomes back in. This Hexagonal Architecture allows the
wizard to be embedded in any interface: terminal, HTTP server, or AI Agent infrastructure.

# Usage

	package main

	import (
		"context"
		"log"

		"github.com/aretw0/storyweaver"
		"github.com/aretw0/storyweaver/pkg/adapters/storyapi"
		"github.com/aretw0/storyweaver/pkg/domain"
	)

	func main() {
		client := storyapi.New("http://localhost:3001")
		defer client.Close()

		eng, err := storyweaver.New(client)
		if err != nil {
			log.Fatal(err)
		}

		ctx := context.Background()
		state := eng.Start(ctx, "")

		for _, ev := range []domain.Event{
			domain.SubmitBriefing{Text: "A knight in a forest", NumScenes: 2},
			domain.Approve{},
			domain.SubmitStyle{Style: "Watercolor"},
		} {
			if state, err = eng.Dispatch(ctx, state, ev); err != nil {
				log.Fatal(err)
			}
		}

		doc, err := eng.Export(state)
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("exported %d bytes", len(doc))
	}
*/
package storyweaver
