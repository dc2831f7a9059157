// Package poller drives a run to a terminal state by fetching its status at a
// fixed interval.
//
// State machine:
//
//	Submitted -> Polling -> Completed | Failed | Cancelled | PollError | TimedOut | Interrupted
//
// A fetch error ends polling at once; it is never retried. Waiting between
// fetches is cancellable through the context.
package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ribartra/ai-chatbots/internal/assistants"
	"github.com/ribartra/ai-chatbots/internal/telemetry"
)

// DefaultInterval is the wait between two status fetches.
const DefaultInterval = 5 * time.Second

type State string

const (
	Submitted   State = "submitted"
	Polling     State = "polling"
	Completed   State = "completed"
	Failed      State = "failed"
	Cancelled   State = "cancelled"
	PollError   State = "poll_error"
	TimedOut    State = "timed_out"
	Interrupted State = "interrupted"
)

// ErrTimedOut is wrapped by Result.Err when a bound is exceeded.
var ErrTimedOut = errors.New("run did not reach a terminal status in time")

// RunFetcher retrieves the current state of a run.
type RunFetcher interface {
	FetchRun(ctx context.Context, threadID, runID string) (assistants.Run, error)
}

// Options bound polling. Zero MaxAttempts or MaxWait means no such bound.
type Options struct {
	Interval    time.Duration
	MaxAttempts int
	MaxWait     time.Duration
}

// Bound describes the configured limits for messages, e.g. "10m0s" or "3 attempts".
func (o Options) Bound() string {
	switch {
	case o.MaxWait > 0 && o.MaxAttempts > 0:
		return fmt.Sprintf("%s or %d attempts", o.MaxWait, o.MaxAttempts)
	case o.MaxWait > 0:
		return o.MaxWait.String()
	case o.MaxAttempts > 0:
		return fmt.Sprintf("%d attempts", o.MaxAttempts)
	}
	return "no bound"
}

// Result is the outcome of Poll. Run is set only for Completed; Status is the
// last observed status in every state that observed one.
type Result struct {
	State    State
	Run      *assistants.Run
	Status   assistants.RunStatus
	Attempts int
	Elapsed  time.Duration
	Err      error
}

// Poller polls one run at a time; it holds no per-run state.
type Poller struct {
	fetcher RunFetcher
	opts    Options
	events  *telemetry.Emitter
	sleep   func(ctx context.Context, d time.Duration) error
	now     func() time.Time
	observe func(attempt int, status assistants.RunStatus)
}

type Option func(*Poller)

// WithEmitter records a run_polled event per fetch.
func WithEmitter(e *telemetry.Emitter) Option { return func(p *Poller) { p.events = e } }

// WithSleep replaces the cancellable wait between fetches.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(p *Poller) { p.sleep = fn }
}

// WithClock replaces time.Now for elapsed-time accounting.
func WithClock(now func() time.Time) Option { return func(p *Poller) { p.now = now } }

// WithObserver is called after every successful fetch.
func WithObserver(fn func(attempt int, status assistants.RunStatus)) Option {
	return func(p *Poller) { p.observe = fn }
}

func New(f RunFetcher, opts Options, extra ...Option) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	p := &Poller{fetcher: f, opts: opts, sleep: Sleep, now: time.Now}
	for _, o := range extra {
		o(p)
	}
	return p
}

func (p *Poller) Options() Options { return p.opts }

// Poll fetches the run until it is terminal, a bound is hit, a fetch fails
// or ctx is done. A run that is terminal on the first fetch costs exactly one
// fetch and no wait.
func (p *Poller) Poll(ctx context.Context, threadID, runID string) Result {
	start := p.now()
	res := Result{State: Submitted}

	for {
		if err := ctx.Err(); err != nil {
			return p.finish(res, start, Interrupted, err)
		}

		res.State = Polling
		res.Attempts++
		run, err := p.fetcher.FetchRun(ctx, threadID, runID)
		if err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				return p.finish(res, start, Interrupted, ctx.Err())
			}
			return p.finish(res, start, PollError, err)
		}
		res.Status = run.Status
		p.events.Emit(ctx, "run_polled", map[string]any{
			"run_id":  runID,
			"attempt": res.Attempts,
			"status":  string(run.Status),
		})
		if p.observe != nil {
			p.observe(res.Attempts, run.Status)
		}

		if run.Status.Terminal() {
			switch run.Status {
			case assistants.StatusCompleted:
				res.Run = &run
				return p.finish(res, start, Completed, nil)
			case assistants.StatusCancelled:
				return p.finish(res, start, Cancelled, nil)
			default:
				return p.finish(res, start, Failed, runFailure(run))
			}
		}

		if p.opts.MaxAttempts > 0 && res.Attempts >= p.opts.MaxAttempts {
			return p.finish(res, start, TimedOut, p.timeout(res))
		}
		wait := p.opts.Interval
		if p.opts.MaxWait > 0 {
			remaining := p.opts.MaxWait - p.now().Sub(start)
			if remaining <= 0 {
				return p.finish(res, start, TimedOut, p.timeout(res))
			}
			// the last wait is shortened so the final fetch lands on the deadline
			wait = min(wait, remaining)
		}

		if err := p.sleep(ctx, wait); err != nil {
			return p.finish(res, start, Interrupted, err)
		}
	}
}

func (p *Poller) finish(res Result, start time.Time, st State, err error) Result {
	res.State = st
	res.Err = err
	res.Elapsed = p.now().Sub(start)
	return res
}

func (p *Poller) timeout(res Result) error {
	return fmt.Errorf("%w: %s exceeded after %d attempts (last status %s)", ErrTimedOut, p.opts.Bound(), res.Attempts, res.Status)
}

func runFailure(run assistants.Run) error {
	if run.LastError != nil && run.LastError.Message != "" {
		return fmt.Errorf("run %s: %s: %s", run.Status, run.LastError.Code, run.LastError.Message)
	}
	return fmt.Errorf("run %s", run.Status)
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
