// Package assistants is the typed client for the Assistants REST resources:
// assistants, threads, messages and runs.
//
// Each method performs exactly one HTTP round-trip and never retries. Errors
// are returned as *RemoteError.
package assistants

import (
	"context"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ribartra/ai-chatbots/tools"
)

// Operation names used in RemoteError.Op.
const (
	OpCreateAssistant = "create assistant"
	OpCreateThread    = "create thread"
	OpPostMessage     = "post message"
	OpStartRun        = "start run"
	OpFetchRun        = "fetch run"
	OpListMessages    = "list messages"
)

type Client struct {
	api *openai.Client
}

func New(api *openai.Client) *Client {
	return &Client{api: api}
}

func (c *Client) CreateAssistant(ctx context.Context, spec AssistantSpec) (Assistant, error) {
	reqTools, err := tools.Resolve(spec.Tools)
	if err != nil {
		return Assistant{}, &RemoteError{Op: OpCreateAssistant, Message: err.Error(), Err: err}
	}
	req := openai.AssistantRequest{
		Model:        spec.Model,
		Name:         optional(spec.Name),
		Description:  optional(spec.Description),
		Instructions: optional(spec.Instructions),
		Tools:        reqTools,
	}
	resp, err := c.api.CreateAssistant(ctx, req)
	if err != nil {
		return Assistant{}, wrapErr(OpCreateAssistant, err)
	}
	a := Assistant{ID: resp.ID, Model: resp.Model}
	if resp.Name != nil {
		a.Name = *resp.Name
	}
	for _, t := range resp.Tools {
		a.Tools = append(a.Tools, string(t.Type))
	}
	return a, nil
}

func (c *Client) CreateThread(ctx context.Context) (Thread, error) {
	resp, err := c.api.CreateThread(ctx, openai.ThreadRequest{})
	if err != nil {
		return Thread{}, wrapErr(OpCreateThread, err)
	}
	return Thread{ID: resp.ID}, nil
}

// PostMessage appends a user message to the thread.
func (c *Client) PostMessage(ctx context.Context, threadID, text string) (Message, error) {
	resp, err := c.api.CreateMessage(ctx, threadID, openai.MessageRequest{
		Role:    string(openai.ThreadMessageRoleUser),
		Content: text,
	})
	if err != nil {
		return Message{}, wrapErr(OpPostMessage, err)
	}
	return toMessage(resp), nil
}

func (c *Client) StartRun(ctx context.Context, threadID string, opts RunOptions) (Run, error) {
	req := openai.RunRequest{
		AssistantID:            opts.AssistantID,
		Instructions:           opts.Instructions,
		AdditionalInstructions: opts.AdditionalInstructions,
	}
	if opts.ToolChoice != "" {
		req.ToolChoice = toolChoice(opts.ToolChoice)
	}
	resp, err := c.api.CreateRun(ctx, threadID, req)
	if err != nil {
		return Run{}, wrapErr(OpStartRun, err)
	}
	return toRun(resp, threadID), nil
}

func (c *Client) FetchRun(ctx context.Context, threadID, runID string) (Run, error) {
	resp, err := c.api.RetrieveRun(ctx, threadID, runID)
	if err != nil {
		return Run{}, wrapErr(OpFetchRun, err)
	}
	return toRun(resp, threadID), nil
}

func (c *Client) ListMessages(ctx context.Context, threadID string, q MessageQuery) (MessagePage, error) {
	var limit *int
	if q.Limit > 0 {
		limit = &q.Limit
	}
	resp, err := c.api.ListMessage(ctx, threadID, limit, optional(q.Order), optional(q.After), nil, optional(q.RunID))
	if err != nil {
		return MessagePage{}, wrapErr(OpListMessages, err)
	}
	page := MessagePage{HasMore: resp.HasMore}
	if resp.LastID != nil {
		page.LastID = *resp.LastID
	}
	page.Messages = make([]Message, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		page.Messages = append(page.Messages, toMessage(m))
	}
	return page, nil
}

func toMessage(m openai.Message) Message {
	out := Message{
		ID:        m.ID,
		Role:      Role(m.Role),
		CreatedAt: time.Unix(int64(m.CreatedAt), 0).UTC(),
	}
	if m.RunID != nil {
		out.RunID = *m.RunID
	}
	for _, c := range m.Content {
		part := ContentPart{Type: c.Type}
		if c.Text != nil {
			part.Text = c.Text.Value
		}
		out.Parts = append(out.Parts, part)
	}
	return out
}

func toRun(r openai.Run, threadID string) Run {
	out := Run{
		ID:       r.ID,
		ThreadID: r.ThreadID,
		Status:   RunStatus(r.Status),
		Usage: Usage{
			PromptTokens:     max(r.Usage.PromptTokens, 0),
			CompletionTokens: max(r.Usage.CompletionTokens, 0),
			TotalTokens:      max(r.Usage.TotalTokens, 0),
		},
	}
	if out.ThreadID == "" {
		out.ThreadID = threadID
	}
	if r.LastError != nil {
		out.LastError = &RunError{Code: string(r.LastError.Code), Message: r.LastError.Message}
	}
	return out
}

// toolChoice passes the mode keywords through and turns anything else into a
// forced tool selection.
func toolChoice(v string) any {
	switch v {
	case "auto", "none", "required":
		return v
	}
	return map[string]string{"type": v}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
