package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ribartra/ai-chatbots/internal/assistants"
	"github.com/ribartra/ai-chatbots/internal/config"
	"github.com/ribartra/ai-chatbots/internal/display"
	"github.com/ribartra/ai-chatbots/internal/extract"
	"github.com/ribartra/ai-chatbots/internal/metrics"
	"github.com/ribartra/ai-chatbots/internal/poller"
	"github.com/ribartra/ai-chatbots/internal/telemetry"
	"github.com/ribartra/ai-chatbots/memory"
)

// ExitSentinel ends the conversation when typed on its own, in any case.
const ExitSentinel = "exit"

// ErrBootstrap wraps the remote error that prevented a session from starting.
var ErrBootstrap = errors.New("session bootstrap failed")

// Remote is the subset of the resource client the runner calls directly.
type Remote interface {
	CreateAssistant(ctx context.Context, spec assistants.AssistantSpec) (assistants.Assistant, error)
	CreateThread(ctx context.Context) (assistants.Thread, error)
	PostMessage(ctx context.Context, threadID, text string) (assistants.Message, error)
	StartRun(ctx context.Context, threadID string, opts assistants.RunOptions) (assistants.Run, error)
}

type RunPoller interface {
	Poll(ctx context.Context, threadID, runID string) poller.Result
	Options() poller.Options
}

type ReplyExtractor interface {
	Latest(ctx context.Context, threadID, runID string) (extract.Reply, error)
}

// Exit says why Run returned.
type Exit string

const (
	ExitUser            Exit = "user"
	ExitEOF             Exit = "eof"
	ExitInterrupted     Exit = "interrupted"
	ExitBootstrapFailed Exit = "bootstrap_failed"
	ExitUnexpected      Exit = "unexpected"
)

// Code maps the exit reason to a process status.
func (e Exit) Code() int {
	switch e {
	case ExitUser, ExitEOF:
		return 0
	case ExitInterrupted:
		return 130
	}
	return 1
}

// Session is the process-local pairing of assistant and thread.
type Session struct {
	ID          string
	AssistantID string
	ThreadID    string
	StartedAt   time.Time
}

// Deps are the collaborators of a Runner. Events and Journal may be nil.
type Deps struct {
	Remote    Remote
	Poller    RunPoller
	Extractor ReplyExtractor
	Display   display.Display
	Events    *telemetry.Emitter
	Journal   *memory.Journal
}

type Runner struct {
	remote  Remote
	poll    RunPoller
	extract ReplyExtractor
	out     display.Display
	events  *telemetry.Emitter
	journal *memory.Journal

	spec    assistants.AssistantSpec
	runOpts assistants.RunOptions
	now     func() time.Time

	session *Session
	turns   int
	usage   metrics.UsageTotals
}

func New(cfg config.Config, d Deps) *Runner {
	return &Runner{
		remote:  d.Remote,
		poll:    d.Poller,
		extract: d.Extractor,
		out:     d.Display,
		events:  d.Events,
		journal: d.Journal,
		spec: assistants.AssistantSpec{
			Name:         cfg.Assistant.Name,
			Description:  cfg.Assistant.Description,
			Model:        cfg.Assistant.Model,
			Instructions: cfg.Assistant.Instructions,
			Tools:        cfg.Assistant.Tools,
		},
		runOpts: assistants.RunOptions{
			Instructions:           cfg.Run.Instructions,
			AdditionalInstructions: cfg.Run.AdditionalInstructions,
			ToolChoice:             cfg.Run.ToolChoice,
		},
		now: time.Now,
	}
}

// Session returns the bootstrapped session, or nil before Bootstrap succeeds.
func (r *Runner) Session() *Session { return r.session }

// Usage returns the number of completed runs and their summed token usage.
func (r *Runner) Usage() (int, assistants.Usage) { return r.usage.Snapshot() }

// Bootstrap creates the assistant and then the thread. On failure nothing
// else is called and the returned error wraps ErrBootstrap.
func (r *Runner) Bootstrap(ctx context.Context) (*Session, error) {
	if r.session != nil {
		return r.session, nil
	}

	a, err := r.remote.CreateAssistant(ctx, r.spec)
	if err != nil {
		return nil, r.bootstrapFailed(ctx, "assistant", err)
	}
	r.out.Progress("Assistant created successfully: %s", a.ID)

	th, err := r.remote.CreateThread(ctx)
	if err != nil {
		return nil, r.bootstrapFailed(ctx, "thread", err)
	}
	r.out.Progress("Thread created: %s", th.ID)

	s := &Session{
		ID:          "session-" + uuid.NewString(),
		AssistantID: a.ID,
		ThreadID:    th.ID,
		StartedAt:   r.now(),
	}
	r.session = s

	r.events.Emit(ctx, "session_started", map[string]any{
		"session_id":   s.ID,
		"assistant_id": s.AssistantID,
		"thread_id":    s.ThreadID,
		"model":        a.Model,
	})
	if err := r.journal.StartSession(context.WithoutCancel(ctx), memory.Session{
		ID:          s.ID,
		AssistantID: s.AssistantID,
		ThreadID:    s.ThreadID,
		StartedAt:   s.StartedAt,
	}); err != nil {
		r.out.Warn("journal: %v", err)
	}
	return s, nil
}

func (r *Runner) bootstrapFailed(ctx context.Context, what string, err error) error {
	r.events.Emit(ctx, "bootstrap_failed", map[string]any{
		"stage": what,
		"error": reason(err),
	})
	if ctx.Err() == nil {
		r.out.Error("Failed to create %s: %s", what, reason(err))
		r.out.Notice("Terminating program...")
	}
	return fmt.Errorf("%w: create %s: %w", ErrBootstrap, what, err)
}

// Run bootstraps if needed, then reads lines until the sentinel, closed
// input or cancellation. Blank lines are skipped. A panic inside the loop is
// reported and mapped to ExitUnexpected.
func (r *Runner) Run(ctx context.Context, lines <-chan string) (exit Exit, err error) {
	defer func() {
		if p := recover(); p != nil {
			r.out.Notice(fmt.Sprintf("An unexpected error occurred: %v", p))
			exit, err = ExitUnexpected, fmt.Errorf("unexpected panic: %v", p)
		}
		r.finish(ctx, exit)
	}()

	if _, err := r.Bootstrap(ctx); err != nil {
		if ctx.Err() != nil {
			r.out.Notice("Program interrupted by user.")
			return ExitInterrupted, nil
		}
		return ExitBootstrapFailed, err
	}

	for {
		r.out.Prompt()
		var (
			line string
			ok   bool
		)
		select {
		case <-ctx.Done():
			r.out.Notice("\nProgram interrupted by user.")
			return ExitInterrupted, nil
		case line, ok = <-lines:
		}
		if !ok {
			r.out.Notice("\nEnding conversation.")
			return ExitEOF, nil
		}

		text := strings.TrimSpace(line)
		if text == "" {
			continue
		}
		if strings.EqualFold(text, ExitSentinel) {
			r.out.Notice("Ending conversation.")
			return ExitUser, nil
		}

		if res := r.Turn(ctx, text); res.Outcome == OutcomeInterrupted {
			r.out.Notice("Program interrupted by user.")
			return ExitInterrupted, nil
		}
	}
}

// finish closes the session record. It runs for every exit path.
func (r *Runner) finish(ctx context.Context, exit Exit) {
	runs, total := r.usage.Snapshot()
	fields := map[string]any{
		"exit":          string(exit),
		"turns":         r.turns,
		"completed":     runs,
		"total_tokens":  total.TotalTokens,
		"prompt_tokens": total.PromptTokens,
	}
	if r.session == nil {
		r.events.Emit(ctx, "session_ended", fields)
		return
	}
	fields["session_id"] = r.session.ID
	r.events.Emit(ctx, "session_ended", fields)
	if runs > 0 {
		r.out.SessionUsage(runs, total)
	}
	if err := r.journal.EndSession(context.WithoutCancel(ctx), r.session.ID, string(exit), r.now()); err != nil {
		r.out.Warn("journal: %v", err)
	}
}

// reason is the human-facing text of a remote failure.
func reason(err error) string {
	var re *assistants.RemoteError
	if errors.As(err, &re) && re.Message != "" {
		return re.Message
	}
	return err.Error()
}
