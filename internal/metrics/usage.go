package metrics

import (
	"sync"

	"github.com/ribartra/ai-chatbots/internal/assistants"
)

// UsageTotals accumulates token usage over completed runs.
type UsageTotals struct {
	mu    sync.Mutex
	runs  int
	total assistants.Usage
}

// Add records one completed run. Negative counts are clamped to zero.
func (u *UsageTotals) Add(x assistants.Usage) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.runs++
	u.total.PromptTokens += max(x.PromptTokens, 0)
	u.total.CompletionTokens += max(x.CompletionTokens, 0)
	u.total.TotalTokens += max(x.TotalTokens, 0)
}

// Snapshot returns the number of runs recorded and their summed usage.
func (u *UsageTotals) Snapshot() (int, assistants.Usage) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.runs, u.total
}
