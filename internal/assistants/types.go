package assistants

import "time"

// Role of a message author.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// RunStatus is the lifecycle state reported for a run.
type RunStatus string

const (
	StatusQueued         RunStatus = "queued"
	StatusInProgress     RunStatus = "in_progress"
	StatusRequiresAction RunStatus = "requires_action"
	StatusCancelling     RunStatus = "cancelling"
	StatusCompleted      RunStatus = "completed"
	StatusFailed         RunStatus = "failed"
	StatusCancelled      RunStatus = "cancelled"
	StatusExpired        RunStatus = "expired"
	StatusIncomplete     RunStatus = "incomplete"
)

// Terminal reports whether no further transitions happen after s.
func (s RunStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusExpired, StatusIncomplete:
		return true
	}
	return false
}

type Assistant struct {
	ID    string
	Name  string
	Model string
	Tools []string
}

type Thread struct {
	ID string
}

// ContentPart is one piece of message content. Only text parts carry Text.
type ContentPart struct {
	Type string
	Text string
}

type Message struct {
	ID        string
	Role      Role
	Parts     []ContentPart
	RunID     string
	CreatedAt time.Time
}

// TextParts returns the text of every text part, in order.
func (m Message) TextParts() []string {
	var out []string
	for _, p := range m.Parts {
		if p.Type == "text" {
			out = append(out, p.Text)
		}
	}
	return out
}

// Usage is token accounting for a completed run.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// RunError is the backend's explanation for a failed run.
type RunError struct {
	Code    string
	Message string
}

type Run struct {
	ID        string
	ThreadID  string
	Status    RunStatus
	Usage     Usage
	LastError *RunError
}

// AssistantSpec is what CreateAssistant sends.
type AssistantSpec struct {
	Name         string
	Description  string
	Model        string
	Instructions string
	Tools        []string
}

// RunOptions are the per-run fields. Empty strings are omitted from the request.
type RunOptions struct {
	AssistantID            string
	Instructions           string
	AdditionalInstructions string
	ToolChoice             string
}

// Sort orders accepted by ListMessages.
const (
	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// MessageQuery filters ListMessages. Zero values are omitted.
type MessageQuery struct {
	Order string
	Limit int
	After string
	RunID string
}

// MessagePage is one page of messages in the requested order.
type MessagePage struct {
	Messages []Message
	HasMore  bool
	LastID   string
}
