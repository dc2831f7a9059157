// Package extract picks the assistant reply out of a thread's messages.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ribartra/ai-chatbots/internal/assistants"
)

// ErrNoAssistantReply means the listing held no assistant-authored message.
var ErrNoAssistantReply = errors.New("no assistant reply found")

// pageLimit is the largest page the backend serves.
const pageLimit = 100

// MessageLister lists messages of a thread.
type MessageLister interface {
	ListMessages(ctx context.Context, threadID string, q assistants.MessageQuery) (assistants.MessagePage, error)
}

// Reply is the extracted assistant message and its joined text.
type Reply struct {
	Message assistants.Message
	Text    string
}

// LastAssistant scans msgs in order and returns the last assistant message.
func LastAssistant(msgs []assistants.Message) (assistants.Message, bool) {
	var (
		found assistants.Message
		ok    bool
	)
	for _, m := range msgs {
		if m.Role == assistants.RoleAssistant {
			found, ok = m, true
		}
	}
	return found, ok
}

// Text joins the text parts of m with newlines. Non-text parts are skipped.
func Text(m assistants.Message) string {
	return strings.Join(m.TextParts(), "\n")
}

type Extractor struct {
	lister MessageLister
}

func New(l MessageLister) *Extractor {
	return &Extractor{lister: l}
}

// Latest returns the newest assistant message of the thread, restricted to
// messages produced by runID when it is set. Messages are listed oldest first
// so the last match is the newest.
func (x *Extractor) Latest(ctx context.Context, threadID, runID string) (Reply, error) {
	page, err := x.lister.ListMessages(ctx, threadID, assistants.MessageQuery{
		Order: assistants.OrderAsc,
		Limit: pageLimit,
		RunID: runID,
	})
	if err != nil {
		return Reply{}, fmt.Errorf("list messages: %w", err)
	}
	msgs := page.Messages
	// ascending order puts the newest message on the last page
	for page.HasMore && page.LastID != "" {
		page, err = x.lister.ListMessages(ctx, threadID, assistants.MessageQuery{
			Order: assistants.OrderAsc,
			Limit: pageLimit,
			RunID: runID,
			After: page.LastID,
		})
		if err != nil {
			return Reply{}, fmt.Errorf("list messages: %w", err)
		}
		msgs = append(msgs, page.Messages...)
	}

	m, ok := LastAssistant(msgs)
	if !ok {
		return Reply{}, ErrNoAssistantReply
	}
	return Reply{Message: m, Text: Text(m)}, nil
}
