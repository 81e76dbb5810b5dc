package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/aretw0/storyweaver/internal/logging"
	"github.com/aretw0/storyweaver/internal/presentation/tui"
	"github.com/aretw0/storyweaver/pkg/domain"
	"github.com/aretw0/storyweaver/pkg/export"
	"github.com/aretw0/storyweaver/pkg/session"
)

const (
	cmdQuit       = "/quit"
	msgAdjustSoon = "Adjust flow coming soon!"
)

// RunOptions contains all the configuration for the terminal wizard.
type RunOptions struct {
	SessionID     string
	Fresh         bool
	DefaultScenes int
	ExportDir     string
	Banner        bool

	In  io.Reader
	Out io.Writer

	// Render turns markdown into terminal output. Nil prints the markdown as is.
	Render func(string) (string, error)
	Logger *slog.Logger
}

// action is what one line of input asks for.
type action struct {
	event  domain.Event
	export bool
	quit   bool
	note   string
}

// Run drives a wizard session from the terminal until the input ends or /quit.
// Every accepted step is saved through mgr, so a session can be resumed by id.
func Run(ctx context.Context, eng session.Engine, mgr *session.Manager, opts RunOptions) error {
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if opts.SessionID == "" {
		opts.SessionID = uuid.NewString()
	}
	t := &terminal{out: opts.Out, render: opts.Render}

	if opts.Fresh {
		if err := mgr.Delete(ctx, opts.SessionID); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
			return fmt.Errorf("failed to reset session: %w", err)
		}
	}
	state, err := mgr.LoadOrStart(ctx, opts.SessionID, opts.DefaultScenes)
	if err != nil {
		return fmt.Errorf("failed to init session: %w", err)
	}
	if state.Busy {
		// A busy session at startup was left by a run that ended during a remote call.
		if state, err = mgr.ReleaseBusy(ctx, opts.SessionID); err != nil {
			return fmt.Errorf("failed to release session: %w", err)
		}
	}

	if opts.Banner {
		tui.PrintBanner(opts.Out)
	}
	printSystemMessage(opts.Out, "Session '%s' active. Type %s to leave.", opts.SessionID, cmdQuit)
	opts.Logger.Info("Session active", "session_id", opts.SessionID, "step", state.Step(), "revision", state.Revision)
	t.markdown(tui.Messages(state.Log))
	t.view(state)

	scanner := bufio.NewScanner(NewInterruptibleReader(opts.In, ctx.Done()))
	for {
		t.hint(state.Step())
		if !scanner.Scan() {
			err := scanner.Err()
			if err == nil {
				err = ctx.Err()
			}
			return handleExecutionError(err)
		}

		act, err := parseInput(state, scanner.Text())
		if err != nil {
			t.error(err.Error())
			continue
		}
		if act.quit {
			printSystemMessage(opts.Out, "Session '%s' saved at step '%s'.", opts.SessionID, state.Step())
			return nil
		}
		if act.note != "" {
			t.status(act.note)
		}
		if act.export {
			if err := exportStory(state, opts.ExportDir, opts.Out); err != nil {
				t.error(err.Error())
			}
			continue
		}
		if act.event == nil {
			continue
		}

		switch act.event.(type) {
		case domain.SubmitBriefing:
			t.status("Generating proposal...")
		case domain.SubmitStyle:
			t.status("Generating images...")
		}

		seen := len(state.Log)
		next, err := mgr.Submit(ctx, eng, opts.SessionID, act.event)
		if errors.Is(err, domain.ErrGuardRejected) {
			t.error(rejection(err))
			continue
		}
		if err != nil {
			return handleExecutionError(err)
		}

		if len(next.Log) > seen {
			t.markdown(tui.Messages(next.Log[seen:]))
		}
		if next.Step() != state.Step() || next.Step() == domain.StepImages {
			t.view(next)
		}
		state = next
	}
}

// parseInput maps a line to an action for the current step.
func parseInput(state *domain.State, line string) (action, error) {
	line = strings.TrimSpace(line)
	if line == cmdQuit {
		return action{quit: true}, nil
	}

	switch state.Step() {
	case domain.StepBriefing:
		return action{event: domain.SubmitBriefing{Text: line}}, nil

	case domain.StepProposal:
		switch strings.ToLower(line) {
		case "a", "approve":
			return action{event: domain.Approve{}}, nil
		case "s", "scenes":
			return action{event: domain.NegotiateSceneCount{}}, nil
		case "d", "adjust":
			return action{event: domain.Adjust{}, note: msgAdjustSoon}, nil
		}
		return action{}, fmt.Errorf("unknown choice %q", line)

	case domain.StepSceneCount:
		n, err := strconv.Atoi(line)
		if err != nil {
			return action{}, errors.New("please enter a number of scenes")
		}
		return action{event: domain.SubmitSceneCount{Count: n}}, nil

	case domain.StepStyle:
		if n, err := strconv.Atoi(line); err == nil && n >= 1 && n <= len(domain.StylePresets) {
			return action{event: domain.SubmitStyle{Style: domain.StylePresets[n-1]}}, nil
		}
		return action{event: domain.SubmitStyle{Style: line}}, nil

	case domain.StepImages:
		return parseImagesInput(state, line)
	}
	return action{}, fmt.Errorf("unexpected step %q", state.Step())
}

func parseImagesInput(state *domain.State, line string) (action, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return action{}, nil
	}
	idx := state.ActiveSceneIndex()

	switch strings.ToLower(fields[0]) {
	case "n", "next":
		return action{event: domain.SelectScene{Index: idx + 1}}, nil
	case "p", "prev", "previous":
		return action{event: domain.SelectScene{Index: idx - 1}}, nil
	case "e", "export":
		return action{export: true}, nil
	case "b", "begin":
		return action{event: domain.Restart{}}, nil
	case "r", "restyle":
		style := strings.TrimSpace(strings.Join(fields[1:], " "))
		if style == "" {
			return action{}, errors.New("usage: r <style>")
		}
		return action{event: domain.SubmitStyle{Style: style}}, nil
	}
	if n, err := strconv.Atoi(fields[0]); err == nil {
		return action{event: domain.SelectScene{Index: n - 1}}, nil
	}
	return action{}, fmt.Errorf("unknown choice %q", line)
}

// rejection explains a guard rejection in user terms.
func rejection(err error) string {
	var invalid *domain.ValidationError
	if errors.As(err, &invalid) {
		return invalid.Error()
	}
	var guard *domain.GuardError
	if errors.As(err, &guard) && guard.Cause != nil {
		return guard.Cause.Error()
	}
	return err.Error()
}

func exportStory(state *domain.State, dir string, out io.Writer) error {
	story := state.ApprovedStory()
	if story == nil {
		return &domain.ExportError{Format: "html", Err: domain.ErrNoStory}
	}
	doc, err := export.HTML(*story)
	if err != nil {
		return err
	}
	if dir == "" {
		dir = "."
	}
	path := filepath.Join(dir, export.FileName(*story))
	if err := os.WriteFile(path, doc, 0o644); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	printSystemMessage(out, "Story exported to %s", path)
	return nil
}

// terminal writes the wizard views.
type terminal struct {
	out    io.Writer
	render func(string) (string, error)
}

func (t *terminal) markdown(md string) {
	if md == "" {
		return
	}
	if t.render != nil {
		if out, err := t.render(md); err == nil {
			md = out
		}
	}
	fmt.Fprint(t.out, md)
}

func (t *terminal) view(state *domain.State) {
	switch state.Step() {
	case domain.StepProposal:
		if p := state.PendingProposal(); p != nil {
			t.markdown(tui.Proposal(*p))
		}
	case domain.StepStyle:
		t.markdown(tui.StyleMenu(domain.StylePresets))
	case domain.StepImages:
		if story := state.ApprovedStory(); story != nil {
			t.markdown(tui.Scene(*story, state.ActiveSceneIndex()))
		}
	}
	if state.Error == session.MsgInterrupted {
		t.error(state.Error)
	}
}

func (t *terminal) hint(step domain.Step) {
	fmt.Fprintf(t.out, "%s\n> ", tui.Hint(step))
}

func (t *terminal) status(msg string) {
	fmt.Fprintln(t.out, tui.Status(msg))
}

func (t *terminal) error(msg string) {
	fmt.Fprintln(t.out, tui.Error(msg))
}
