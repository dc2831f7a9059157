package poller_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ribartra/ai-chatbots/internal/assistants"
	"github.com/ribartra/ai-chatbots/internal/poller"
	"github.com/ribartra/ai-chatbots/internal/telemetry"
)

type step struct {
	status assistants.RunStatus
	err    error
}

// fakeFetcher replays steps; the last one repeats.
type fakeFetcher struct {
	steps []step
	calls int
	seen  []string
}

func (f *fakeFetcher) FetchRun(_ context.Context, threadID, runID string) (assistants.Run, error) {
	f.calls++
	f.seen = append(f.seen, threadID+"/"+runID)
	s := f.steps[min(f.calls, len(f.steps))-1]
	if s.err != nil {
		return assistants.Run{}, s.err
	}
	return assistants.Run{ID: runID, ThreadID: threadID, Status: s.status}, nil
}

func statuses(ss ...assistants.RunStatus) []step {
	out := make([]step, len(ss))
	for i, s := range ss {
		out[i] = step{status: s}
	}
	return out
}

// fakeClock advances only when the fake sleeper waits.
type fakeClock struct {
	t      time.Time
	sleeps []time.Duration
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.sleeps = append(c.sleeps, d)
	c.t = c.t.Add(d)
	return nil
}

func newPoller(f poller.RunFetcher, opts poller.Options, clk *fakeClock, extra ...poller.Option) *poller.Poller {
	return poller.New(f, opts, append([]poller.Option{poller.WithSleep(clk.sleep), poller.WithClock(clk.now)}, extra...)...)
}

func TestPoll_TerminalStates(t *testing.T) {
	tests := []struct {
		name      string
		steps     []step
		wantState poller.State
		wantCalls int
	}{
		{"completed_after_two", statuses("queued", "in_progress", "completed"), poller.Completed, 3},
		{"failed", statuses("in_progress", "failed"), poller.Failed, 2},
		{"cancelled", statuses("cancelling", "cancelled"), poller.Cancelled, 2},
		{"expired_is_failed", statuses("expired"), poller.Failed, 1},
		{"incomplete_is_failed", statuses("in_progress", "incomplete"), poller.Failed, 2},
		{"requires_action_keeps_polling", statuses("requires_action", "requires_action", "completed"), poller.Completed, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeFetcher{steps: tt.steps}
			clk := &fakeClock{t: time.Unix(0, 0)}
			res := newPoller(f, poller.Options{Interval: 5 * time.Second}, clk).Poll(context.Background(), "thread_1", "run_1")

			if res.State != tt.wantState {
				t.Fatalf("state = %s, want %s (err=%v)", res.State, tt.wantState, res.Err)
			}
			if f.calls != tt.wantCalls || res.Attempts != tt.wantCalls {
				t.Fatalf("calls = %d attempts = %d, want %d", f.calls, res.Attempts, tt.wantCalls)
			}
			if len(clk.sleeps) != tt.wantCalls-1 {
				t.Fatalf("sleeps = %d, want %d", len(clk.sleeps), tt.wantCalls-1)
			}
			for _, d := range clk.sleeps {
				if d != 5*time.Second {
					t.Fatalf("waited %v, want 5s", d)
				}
			}
			if (res.Run != nil) != (tt.wantState == poller.Completed) {
				t.Fatalf("Run set = %v for state %s", res.Run != nil, res.State)
			}
			if tt.wantState == poller.Failed && res.Err == nil {
				t.Fatalf("failed result should carry an error")
			}
		})
	}
}

func TestPoll_FirstQueryTerminal_NoWait(t *testing.T) {
	f := &fakeFetcher{steps: statuses("completed")}
	clk := &fakeClock{t: time.Unix(0, 0)}
	res := newPoller(f, poller.Options{Interval: time.Second}, clk).Poll(context.Background(), "t", "r")

	if res.State != poller.Completed || f.calls != 1 || len(clk.sleeps) != 0 {
		t.Fatalf("state=%s calls=%d sleeps=%d", res.State, f.calls, len(clk.sleeps))
	}
	if res.Elapsed != 0 {
		t.Fatalf("elapsed = %v", res.Elapsed)
	}
}

func TestPoll_UsesThreadAndRunTogether(t *testing.T) {
	f := &fakeFetcher{steps: statuses("in_progress", "completed")}
	clk := &fakeClock{t: time.Unix(0, 0)}
	newPoller(f, poller.Options{}, clk).Poll(context.Background(), "thread_9", "run_9")
	for _, s := range f.seen {
		if s != "thread_9/run_9" {
			t.Fatalf("fetched %q", s)
		}
	}
}

func TestPoll_FetchErrorIsNotRetried(t *testing.T) {
	boom := errors.New("502 bad gateway")
	f := &fakeFetcher{steps: []step{{status: "in_progress"}, {err: boom}, {status: "completed"}}}
	clk := &fakeClock{t: time.Unix(0, 0)}
	res := newPoller(f, poller.Options{Interval: time.Second}, clk).Poll(context.Background(), "t", "r")

	if res.State != poller.PollError || !errors.Is(res.Err, boom) {
		t.Fatalf("state=%s err=%v", res.State, res.Err)
	}
	if f.calls != 2 {
		t.Fatalf("calls = %d, want 2", f.calls)
	}
	if res.Status != assistants.StatusInProgress {
		t.Fatalf("last status = %q", res.Status)
	}
}

func TestPoll_MaxAttempts(t *testing.T) {
	f := &fakeFetcher{steps: statuses("in_progress")}
	clk := &fakeClock{t: time.Unix(0, 0)}
	res := newPoller(f, poller.Options{Interval: time.Second, MaxAttempts: 3}, clk).Poll(context.Background(), "t", "r")

	if res.State != poller.TimedOut || !errors.Is(res.Err, poller.ErrTimedOut) {
		t.Fatalf("state=%s err=%v", res.State, res.Err)
	}
	if f.calls != 3 || len(clk.sleeps) != 2 {
		t.Fatalf("calls=%d sleeps=%d", f.calls, len(clk.sleeps))
	}
	if res.Status != assistants.StatusInProgress {
		t.Fatalf("status = %q", res.Status)
	}
	if !strings.Contains(res.Err.Error(), "3 attempts") {
		t.Fatalf("err = %v", res.Err)
	}
}

func TestPoll_MaxWait(t *testing.T) {
	f := &fakeFetcher{steps: statuses("queued")}
	clk := &fakeClock{t: time.Unix(0, 0)}
	opts := poller.Options{Interval: 5 * time.Second, MaxWait: 12 * time.Second}
	res := newPoller(f, opts, clk).Poll(context.Background(), "t", "r")

	if res.State != poller.TimedOut {
		t.Fatalf("state = %s", res.State)
	}
	// 5s + 5s + 2s (shortened), then a final fetch at the deadline
	want := []time.Duration{5 * time.Second, 5 * time.Second, 2 * time.Second}
	if len(clk.sleeps) != len(want) {
		t.Fatalf("sleeps = %v, want %v", clk.sleeps, want)
	}
	for i := range want {
		if clk.sleeps[i] != want[i] {
			t.Fatalf("sleeps = %v, want %v", clk.sleeps, want)
		}
	}
	if f.calls != 4 || res.Elapsed != 12*time.Second {
		t.Fatalf("calls=%d elapsed=%v", f.calls, res.Elapsed)
	}
}

func TestPoll_MaxWaitCompletesOnFinalFetch(t *testing.T) {
	f := &fakeFetcher{steps: statuses("in_progress", "in_progress", "completed")}
	clk := &fakeClock{t: time.Unix(0, 0)}
	res := newPoller(f, poller.Options{Interval: 5 * time.Second, MaxWait: 10 * time.Second}, clk).Poll(context.Background(), "t", "r")
	if res.State != poller.Completed {
		t.Fatalf("state = %s", res.State)
	}
}

func TestPoll_CancelDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := &fakeFetcher{steps: statuses("in_progress")}
	clk := &fakeClock{t: time.Unix(0, 0)}
	p := newPoller(f, poller.Options{Interval: time.Second}, clk,
		poller.WithObserver(func(attempt int, _ assistants.RunStatus) {
			if attempt == 2 {
				cancel()
			}
		}))

	res := p.Poll(ctx, "t", "r")
	if res.State != poller.Interrupted || !errors.Is(res.Err, context.Canceled) {
		t.Fatalf("state=%s err=%v", res.State, res.Err)
	}
	if f.calls != 2 {
		t.Fatalf("calls = %d", f.calls)
	}
}

func TestPoll_AlreadyCancelled_NoFetch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := &fakeFetcher{steps: statuses("completed")}
	res := newPoller(f, poller.Options{}, &fakeClock{}).Poll(ctx, "t", "r")
	if res.State != poller.Interrupted || f.calls != 0 {
		t.Fatalf("state=%s calls=%d", res.State, f.calls)
	}
}

func TestPoll_UnboundedWhenBothZero(t *testing.T) {
	steps := statuses("queued")
	for range 200 {
		steps = append(steps, step{status: "in_progress"})
	}
	steps = append(steps, step{status: "completed"})
	f := &fakeFetcher{steps: steps}
	clk := &fakeClock{t: time.Unix(0, 0)}
	res := newPoller(f, poller.Options{Interval: 5 * time.Second}, clk).Poll(context.Background(), "t", "r")
	if res.State != poller.Completed || res.Attempts != 202 {
		t.Fatalf("state=%s attempts=%d", res.State, res.Attempts)
	}
}

func TestSleep_Cancellable(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	start := time.Now()
	err := poller.Sleep(ctx, time.Minute)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatal("Sleep did not return promptly on cancel")
	}
	if err := poller.Sleep(context.Background(), time.Millisecond); err != nil {
		t.Fatalf("err = %v", err)
	}
}

func TestPoll_EmitsRunPolled(t *testing.T) {
	dir := t.TempDir()
	f := &fakeFetcher{steps: statuses("in_progress", "completed")}
	clk := &fakeClock{t: time.Unix(0, 0)}
	ctx := telemetry.WithTurnID(context.Background(), "turn-1")
	newPoller(f, poller.Options{}, clk, poller.WithEmitter(telemetry.NewEmitter(true, dir))).Poll(ctx, "t", "run_7")

	b, err := os.ReadFile(filepath.Join(dir, telemetry.EventsFile))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	if len(lines) != 2 || !strings.Contains(lines[1], `"status":"completed"`) || !strings.Contains(lines[0], `"turn_id":"turn-1"`) {
		t.Fatalf("events:\n%s", b)
	}
}

func TestOptions_Bound(t *testing.T) {
	cases := map[string]poller.Options{
		"10m0s":              {MaxWait: 10 * time.Minute},
		"3 attempts":         {MaxAttempts: 3},
		"1m0s or 4 attempts": {MaxWait: time.Minute, MaxAttempts: 4},
		"no bound":           {},
	}
	for want, o := range cases {
		if got := o.Bound(); got != want {
			t.Errorf("Bound() = %q, want %q", got, want)
		}
	}
}
