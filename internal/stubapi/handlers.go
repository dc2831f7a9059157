package stubapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// POST /v1/assistants
func (s *Server) createAssistant(c echo.Context) error {
	var req AssistantRequest
	if err := c.Bind(&req); err != nil {
		return apiError(c, http.StatusBadRequest, "invalid JSON body")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.begin(OpCreateAssistant); ok {
		return apiError(c, f.status, f.message)
	}
	if req.Model == "" {
		return apiError(c, http.StatusBadRequest, "Missing required parameter: 'model'.")
	}
	for _, t := range req.Tools {
		switch t.Type {
		case "code_interpreter", "file_search", "function":
		default:
			return apiError(c, http.StatusBadRequest, "Invalid value: '"+t.Type+"'.")
		}
	}

	a := &assistant{req: req, id: newID("asst_"), createdAt: s.now().Unix()}
	s.assistants[a.id] = a
	return c.JSON(http.StatusOK, a.object())
}

// POST /v1/threads
func (s *Server) createThread(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.begin(OpCreateThread); ok {
		return apiError(c, f.status, f.message)
	}

	t := &thread{id: newID("thread_"), createdAt: s.now().Unix()}
	s.threads[t.id] = t
	return c.JSON(http.StatusOK, threadObject{
		ID:        t.id,
		Object:    "thread",
		CreatedAt: t.createdAt,
		Metadata:  map[string]any{},
	})
}

// POST /v1/threads/:thread_id/messages
func (s *Server) postMessage(c echo.Context) error {
	threadID := c.Param("thread_id")
	var req messageRequest
	if err := c.Bind(&req); err != nil {
		return apiError(c, http.StatusBadRequest, "invalid JSON body")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.begin(OpPostMessage); ok {
		return apiError(c, f.status, f.message)
	}
	t, ok := s.threads[threadID]
	if !ok {
		return notFound(c, "thread", threadID)
	}
	if req.Role != "user" && req.Role != "assistant" {
		return apiError(c, http.StatusBadRequest, "Invalid value for 'role'.")
	}
	if req.Content == "" {
		return apiError(c, http.StatusBadRequest, "Missing required parameter: 'content'.")
	}

	m := &message{
		id:        newID("msg_"),
		threadID:  t.id,
		role:      req.Role,
		text:      req.Content,
		createdAt: s.now().Unix(),
	}
	t.messages = append(t.messages, m)
	return c.JSON(http.StatusOK, m.object())
}

// GET /v1/threads/:thread_id/messages
func (s *Server) listMessages(c echo.Context) error {
	threadID := c.Param("thread_id")
	order := c.QueryParam("order")
	if order == "" {
		order = "desc"
	}
	limit := 20
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			return apiError(c, http.StatusBadRequest, "Invalid 'limit': must be between 1 and 100.")
		}
		limit = n
	}
	after := c.QueryParam("after")
	runID := c.QueryParam("run_id")

	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.begin(OpListMessages); ok {
		return apiError(c, f.status, f.message)
	}
	t, ok := s.threads[threadID]
	if !ok {
		return notFound(c, "thread", threadID)
	}
	if order != "asc" && order != "desc" {
		return apiError(c, http.StatusBadRequest, "Invalid 'order': expected 'asc' or 'desc'.")
	}

	ordered := make([]*message, 0, len(t.messages))
	if order == "asc" {
		ordered = append(ordered, t.messages...)
	} else {
		for i := len(t.messages) - 1; i >= 0; i-- {
			ordered = append(ordered, t.messages[i])
		}
	}

	// cursor: skip up to and including the message with id == after
	if after != "" {
		for i, m := range ordered {
			if m.id == after {
				ordered = ordered[i+1:]
				break
			}
		}
	}

	data := make([]MessageObject, 0, limit)
	hasMore := false
	for _, m := range ordered {
		if runID != "" && m.runID != runID {
			continue
		}
		if len(data) == limit {
			hasMore = true
			break
		}
		data = append(data, m.object())
	}

	list := messageList{Object: "list", Data: data, HasMore: hasMore}
	if len(data) > 0 {
		first, last := data[0].ID, data[len(data)-1].ID
		list.FirstID, list.LastID = &first, &last
	}
	return c.JSON(http.StatusOK, list)
}

// POST /v1/threads/:thread_id/runs
func (s *Server) startRun(c echo.Context) error {
	threadID := c.Param("thread_id")
	var req RunRequest
	if err := c.Bind(&req); err != nil {
		return apiError(c, http.StatusBadRequest, "invalid JSON body")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.begin(OpStartRun); ok {
		return apiError(c, f.status, f.message)
	}
	s.lastRun = req
	t, ok := s.threads[threadID]
	if !ok {
		return notFound(c, "thread", threadID)
	}
	a, ok := s.assistants[req.AssistantID]
	if !ok {
		return notFound(c, "assistant", req.AssistantID)
	}

	r := &run{
		id:          newID("run_"),
		threadID:    t.id,
		assistantID: a.id,
		model:       a.req.Model,
		createdAt:   s.now().Unix(),
		status:      "queued",
		script:      append([]string(nil), s.script...),
	}
	s.runs[r.id] = r
	return c.JSON(http.StatusOK, r.object())
}

// GET /v1/threads/:thread_id/runs/:run_id
func (s *Server) fetchRun(c echo.Context) error {
	threadID := c.Param("thread_id")
	runID := c.Param("run_id")

	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.begin(OpFetchRun); ok {
		return apiError(c, f.status, f.message)
	}
	r, ok := s.runs[runID]
	if !ok || r.threadID != threadID {
		return notFound(c, "run", runID)
	}

	s.advance(r)
	return c.JSON(http.StatusOK, r.object())
}

// advance moves r to its next scripted status. The last status sticks. Callers hold s.mu.
func (s *Server) advance(r *run) {
	if isTerminal(r.status) || len(r.script) == 0 {
		return
	}
	next := r.script[0]
	if len(r.script) > 1 {
		r.script = r.script[1:]
	}
	r.status = next

	switch next {
	case "completed":
		s.complete(r)
	case "failed":
		r.lastError = &lastErrorObject{Code: "server_error", Message: "Sorry, something went wrong."}
	case "expired", "incomplete":
		r.lastError = &lastErrorObject{Code: "rate_limit_exceeded", Message: "The run did not finish in time."}
	}
}

// complete appends the assistant reply to the thread and records usage.
func (s *Server) complete(r *run) {
	t := s.threads[r.threadID]
	prompt := ""
	for i := len(t.messages) - 1; i >= 0; i-- {
		if t.messages[i].role == "user" {
			prompt = t.messages[i].text
			break
		}
	}

	reply := s.responder(prompt)
	if reply.Text != "" {
		t.messages = append(t.messages, &message{
			id:          newID("msg_"),
			threadID:    t.id,
			role:        "assistant",
			text:        reply.Text,
			createdAt:   s.now().Unix(),
			assistantID: r.assistantID,
			runID:       r.id,
		})
	}
	r.usage = &usageObject{
		PromptTokens:     reply.PromptTokens,
		CompletionTokens: reply.CompletionTokens,
		TotalTokens:      reply.PromptTokens + reply.CompletionTokens,
	}
}

func isTerminal(status string) bool {
	switch status {
	case "completed", "failed", "cancelled", "expired", "incomplete":
		return true
	}
	return false
}
