package stubapi

import "encoding/json"

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Message string  `json:"message"`
	Type    string  `json:"type"`
	Code    *string `json:"code"`
}

type toolObject struct {
	Type string `json:"type"`
}

type AssistantRequest struct {
	Model        string       `json:"model"`
	Name         *string      `json:"name"`
	Description  *string      `json:"description"`
	Instructions *string      `json:"instructions"`
	Tools        []toolObject `json:"tools"`
}

type AssistantObject struct {
	ID           string       `json:"id"`
	Object       string       `json:"object"`
	CreatedAt    int64        `json:"created_at"`
	Name         *string      `json:"name"`
	Description  *string      `json:"description"`
	Model        string       `json:"model"`
	Instructions *string      `json:"instructions"`
	Tools        []toolObject `json:"tools"`
}

type threadObject struct {
	ID        string         `json:"id"`
	Object    string         `json:"object"`
	CreatedAt int64          `json:"created_at"`
	Metadata  map[string]any `json:"metadata"`
}

type messageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type textValue struct {
	Value       string `json:"value"`
	Annotations []any  `json:"annotations"`
}

type contentObject struct {
	Type string     `json:"type"`
	Text *textValue `json:"text,omitempty"`
}

type MessageObject struct {
	ID          string          `json:"id"`
	Object      string          `json:"object"`
	CreatedAt   int64           `json:"created_at"`
	ThreadID    string          `json:"thread_id"`
	Role        string          `json:"role"`
	Content     []contentObject `json:"content"`
	AssistantID *string         `json:"assistant_id"`
	RunID       *string         `json:"run_id"`
}

// Text joins the message's text parts.
func (m MessageObject) Text() string {
	var s string
	for _, c := range m.Content {
		if c.Text != nil {
			s += c.Text.Value
		}
	}
	return s
}

type messageList struct {
	Object  string          `json:"object"`
	Data    []MessageObject `json:"data"`
	FirstID *string         `json:"first_id"`
	LastID  *string         `json:"last_id"`
	HasMore bool            `json:"has_more"`
}

// RunRequest is the decoded body of a start run call.
type RunRequest struct {
	AssistantID            string          `json:"assistant_id"`
	Instructions           string          `json:"instructions,omitempty"`
	AdditionalInstructions string          `json:"additional_instructions,omitempty"`
	ToolChoice             json.RawMessage `json:"tool_choice,omitempty"`
}

type usageObject struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type lastErrorObject struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type runObject struct {
	ID          string           `json:"id"`
	Object      string           `json:"object"`
	CreatedAt   int64            `json:"created_at"`
	ThreadID    string           `json:"thread_id"`
	AssistantID string           `json:"assistant_id"`
	Status      string           `json:"status"`
	Model       string           `json:"model"`
	Tools       []toolObject     `json:"tools"`
	LastError   *lastErrorObject `json:"last_error"`
	Usage       *usageObject     `json:"usage"`
}

// In-memory state.

type assistant struct {
	req       AssistantRequest
	id        string
	createdAt int64
}

func (a *assistant) object() AssistantObject {
	tools := a.req.Tools
	if tools == nil {
		tools = []toolObject{}
	}
	return AssistantObject{
		ID:           a.id,
		Object:       "assistant",
		CreatedAt:    a.createdAt,
		Name:         a.req.Name,
		Description:  a.req.Description,
		Model:        a.req.Model,
		Instructions: a.req.Instructions,
		Tools:        tools,
	}
}

type thread struct {
	id        string
	createdAt int64
	messages  []*message
}

type message struct {
	id          string
	threadID    string
	role        string
	text        string
	createdAt   int64
	assistantID string
	runID       string
}

func (m *message) object() MessageObject {
	o := MessageObject{
		ID:        m.id,
		Object:    "thread.message",
		CreatedAt: m.createdAt,
		ThreadID:  m.threadID,
		Role:      m.role,
		Content:   []contentObject{{Type: "text", Text: &textValue{Value: m.text, Annotations: []any{}}}},
	}
	if m.assistantID != "" {
		o.AssistantID = &m.assistantID
	}
	if m.runID != "" {
		o.RunID = &m.runID
	}
	return o
}

type run struct {
	id          string
	threadID    string
	assistantID string
	model       string
	createdAt   int64
	status      string
	script      []string
	usage       *usageObject
	lastError   *lastErrorObject
}

func (r *run) object() runObject {
	return runObject{
		ID:          r.id,
		Object:      "thread.run",
		CreatedAt:   r.createdAt,
		ThreadID:    r.threadID,
		AssistantID: r.assistantID,
		Status:      r.status,
		Model:       r.model,
		Tools:       []toolObject{},
		LastError:   r.lastError,
		Usage:       r.usage,
	}
}
