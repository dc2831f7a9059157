// Package runner drives a chat session against the Assistants backend.
//
// Bootstrap creates the assistant and then the thread; either failure ends
// the session before any further remote call. Each turn then runs:
//
//	post message -> start run -> poll to terminal -> extract reply (completed only)
//
// Invariants:
//   - a run id is only ever used with the thread id that spawned it.
//   - a failing turn is reported and the loop continues; only cancellation
//     of the context ends the session from inside a turn.
package runner
