package runner

import (
	"context"
	"errors"
	"fmt"

	"github.com/ribartra/ai-chatbots/internal/assistants"
	"github.com/ribartra/ai-chatbots/internal/extract"
	"github.com/ribartra/ai-chatbots/internal/poller"
	"github.com/ribartra/ai-chatbots/internal/telemetry"
	"github.com/ribartra/ai-chatbots/memory"
)

// Outcome classifies how a turn ended.
type Outcome string

const (
	OutcomeReply       Outcome = "reply"
	OutcomeNoReply     Outcome = "no_reply"
	OutcomePostFailed  Outcome = "post_failed"
	OutcomeStartFailed Outcome = "start_failed"
	OutcomeRunFailed   Outcome = "run_failed"
	OutcomePollError   Outcome = "poll_error"
	OutcomeTimedOut    Outcome = "timed_out"
	OutcomeFetchFailed Outcome = "fetch_failed"
	OutcomeInterrupted Outcome = "interrupted"
)

// TurnResult is what one user input produced.
type TurnResult struct {
	TurnID  string
	Outcome Outcome
	RunID   string
	Status  assistants.RunStatus
	Reply   string
	Usage   assistants.Usage
	Err     error
}

// ErrNoSession is returned in TurnResult.Err when Turn runs before Bootstrap.
var ErrNoSession = errors.New("no session: bootstrap first")

// Turn sends input to the thread and reports the assistant's answer. Every
// failure is displayed and contained in the result; the session continues.
func (r *Runner) Turn(ctx context.Context, input string) (res TurnResult) {
	ctx, turnID := telemetry.WithTurn(ctx)
	r.turns++
	res = TurnResult{TurnID: turnID}
	if r.session == nil {
		res.Outcome, res.Err = OutcomePostFailed, ErrNoSession
		return res
	}
	threadID := r.session.ThreadID

	r.events.EmitTurnStarted(ctx, input)
	defer func() { r.record(ctx, input, res) }()

	if _, err := r.remote.PostMessage(ctx, threadID, input); err != nil {
		if cancelled(ctx) {
			return r.interrupted(ctx, res)
		}
		r.out.Error("Error adding message to thread: %s", reason(err))
		res.Outcome, res.Err = OutcomePostFailed, err
		return res
	}
	r.out.Progress("Message added to thread successfully.")

	opts := r.runOpts
	opts.AssistantID = r.session.AssistantID
	run, err := r.remote.StartRun(ctx, threadID, opts)
	if err != nil {
		if cancelled(ctx) {
			return r.interrupted(ctx, res)
		}
		r.out.Error("Error initiating thread run: %s", reason(err))
		res.Outcome, res.Err = OutcomeStartFailed, err
		return res
	}
	res.RunID = run.ID
	r.out.Progress("Thread run initiated successfully.")
	r.events.Emit(ctx, "run_started", map[string]any{"run_id": run.ID, "status": string(run.Status)})

	pr := r.poll.Poll(ctx, threadID, run.ID)
	res.Status = pr.Status
	r.events.Emit(ctx, "run_finished", map[string]any{
		"run_id":     run.ID,
		"state":      string(pr.State),
		"status":     string(pr.Status),
		"attempts":   pr.Attempts,
		"elapsed_ms": pr.Elapsed.Milliseconds(),
	})

	switch pr.State {
	case poller.Completed:
	case poller.Failed, poller.Cancelled:
		r.out.Error("Run did not complete successfully: Status is %s", pr.Status)
		res.Outcome, res.Err = OutcomeRunFailed, pr.Err
		if res.Err == nil {
			res.Err = fmt.Errorf("run %s", pr.Status)
		}
		return res
	case poller.PollError:
		r.out.Error("Error fetching run status: %s", reason(pr.Err))
		res.Outcome, res.Err = OutcomePollError, pr.Err
		return res
	case poller.TimedOut:
		r.out.Error("Run did not finish within %s: last status %s", r.poll.Options().Bound(), pr.Status)
		res.Outcome, res.Err = OutcomeTimedOut, pr.Err
		return res
	default:
		return r.interrupted(ctx, res)
	}

	r.out.Progress("Run completed successfully.")
	res.Usage = pr.Run.Usage
	r.usage.Add(pr.Run.Usage)

	r.out.Progress("Fetching messages from the thread...")
	reply, err := r.extract.Latest(ctx, threadID, run.ID)
	switch {
	case errors.Is(err, extract.ErrNoAssistantReply):
		r.out.Progress("No assistant reply found for run %s.", run.ID)
		res.Outcome, res.Err = OutcomeNoReply, err
		return res
	case err != nil:
		if cancelled(ctx) {
			return r.interrupted(ctx, res)
		}
		r.out.Error("Failed to fetch messages: %s", reason(err))
		res.Outcome, res.Err = OutcomeFetchFailed, err
		return res
	}

	r.out.Reply(reply.Text)
	r.out.Usage(res.Usage)
	r.events.Emit(ctx, "reply_extracted", map[string]any{
		"run_id":      run.ID,
		"message_id":  reply.Message.ID,
		"reply_bytes": len(reply.Text),
	})
	res.Outcome, res.Reply = OutcomeReply, reply.Text
	return res
}

func (r *Runner) interrupted(ctx context.Context, res TurnResult) TurnResult {
	res.Outcome, res.Err = OutcomeInterrupted, ctx.Err()
	return res
}

// record journals the turn and emits turn_failed for unsuccessful outcomes.
func (r *Runner) record(ctx context.Context, input string, res TurnResult) {
	switch res.Outcome {
	case OutcomeReply, OutcomeNoReply:
	default:
		fields := map[string]any{"outcome": string(res.Outcome), "run_id": res.RunID}
		if res.Err != nil {
			fields["error"] = res.Err.Error()
		}
		r.events.Emit(ctx, "turn_failed", fields)
	}

	err := r.journal.RecordTurn(context.WithoutCancel(ctx), memory.Turn{
		ID:        res.TurnID,
		SessionID: r.session.ID,
		Index:     r.turns,
		RunID:     res.RunID,
		UserText:  input,
		ReplyText: res.Reply,
		Status:    string(res.Outcome),
		Usage:     res.Usage,
		CreatedAt: r.now(),
	})
	if err != nil {
		r.out.Warn("journal: %v", err)
	}
}

func cancelled(ctx context.Context) bool { return ctx.Err() != nil }
