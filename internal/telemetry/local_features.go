package telemetry

import (
	"context"

	"github.com/ribartra/ai-chatbots/internal/metrics"
)

// EmitTurnStarted records the start of a turn with size features of the user
// input. The raw text is never written.
func (e *Emitter) EmitTurnStarted(ctx context.Context, user string) {
	if !e.Enabled() {
		return
	}
	f := metrics.CountFeatures(user)
	e.Emit(ctx, "turn_started", map[string]any{
		"features_version": "1",
		"user": map[string]any{
			"bytes": f.Bytes,
			"runes": f.Runes,
			"words": f.Words,
			"lines": f.Lines,
		},
	})
}
