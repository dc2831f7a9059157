// Package stubapi is an in-memory Assistants backend served over HTTP.
//
// It implements the six resource routes the chat client uses, with scripted
// run status sequences, a pluggable reply function, per-operation failure
// injection and call counters. Tests mount it behind httptest; the -offline
// flag serves it on a loopback port.
package stubapi

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Operation names for FailNext and Calls.
const (
	OpCreateAssistant = "create_assistant"
	OpCreateThread    = "create_thread"
	OpPostMessage     = "post_message"
	OpListMessages    = "list_messages"
	OpStartRun        = "start_run"
	OpFetchRun        = "fetch_run"
)

// Reply is what the assistant says when a run completes.
type Reply struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}

// Responder produces the assistant reply for the latest user prompt.
type Responder func(prompt string) Reply

// EchoResponder repeats the prompt back, with a rough four-bytes-per-token estimate.
func EchoResponder(prompt string) Reply {
	text := "You said: " + prompt
	return Reply{
		Text:             text,
		PromptTokens:     max(len(prompt)/4, 1),
		CompletionTokens: max(len(text)/4, 1),
	}
}

type failure struct {
	status  int
	message string
}

// Server holds all stub state behind one mutex.
type Server struct {
	mu sync.Mutex
	e  *echo.Echo

	apiKey    string
	script    []string
	responder Responder
	now       func() time.Time

	assistants map[string]*assistant
	threads    map[string]*thread
	runs       map[string]*run
	failures   map[string][]failure
	calls      map[string]int
	lastRun    RunRequest
}

type Option func(*Server)

// WithAPIKey requires "Authorization: Bearer <key>" on every request.
func WithAPIKey(key string) Option { return func(s *Server) { s.apiKey = key } }

// WithRunScript sets the statuses returned by successive run fetches.
func WithRunScript(statuses ...string) Option {
	return func(s *Server) { s.script = append([]string(nil), statuses...) }
}

func WithResponder(r Responder) Option { return func(s *Server) { s.responder = r } }

func WithClock(now func() time.Time) Option { return func(s *Server) { s.now = now } }

func New(opts ...Option) *Server {
	s := &Server{
		script:     []string{"in_progress", "completed"},
		responder:  EchoResponder,
		now:        time.Now,
		assistants: map[string]*assistant{},
		threads:    map[string]*thread{},
		runs:       map[string]*run{},
		failures:   map[string][]failure{},
		calls:      map[string]int{},
	}
	for _, o := range opts {
		o(s)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(s.checkHeaders)

	v1 := e.Group("/v1")
	v1.POST("/assistants", s.createAssistant)
	v1.POST("/threads", s.createThread)
	v1.POST("/threads/:thread_id/messages", s.postMessage)
	v1.GET("/threads/:thread_id/messages", s.listMessages)
	v1.POST("/threads/:thread_id/runs", s.startRun)
	v1.GET("/threads/:thread_id/runs/:run_id", s.fetchRun)
	s.e = e
	return s
}

// Handler returns the HTTP handler serving the /v1 routes.
func (s *Server) Handler() http.Handler { return s.e }

// SetRunScript replaces the status script for runs started from now on.
func (s *Server) SetRunScript(statuses ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.script = append([]string(nil), statuses...)
}

// FailNext makes the next call of op fail with the given HTTP status and message.
// Repeated calls queue further failures.
func (s *Server) FailNext(op string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = append(s.failures[op], failure{status: status, message: message})
}

// Calls reports how many requests reached op, failed ones included.
func (s *Server) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// TotalCalls sums Calls over every operation.
func (s *Server) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

// LastRunRequest returns the body of the most recent start run request.
func (s *Server) LastRunRequest() RunRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}

// Assistant returns a created assistant by id.
func (s *Server) Assistant(id string) (AssistantObject, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assistants[id]
	if !ok {
		return AssistantObject{}, false
	}
	return a.object(), true
}

// ThreadMessages returns a snapshot of a thread's messages in insertion order.
func (s *Server) ThreadMessages(threadID string) []MessageObject {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[threadID]
	if !ok {
		return nil
	}
	out := make([]MessageObject, 0, len(t.messages))
	for _, m := range t.messages {
		out = append(out, m.object())
	}
	return out
}

// begin counts the call and pops an injected failure, if any. Callers hold s.mu.
func (s *Server) begin(op string) (failure, bool) {
	s.calls[op]++
	q := s.failures[op]
	if len(q) == 0 {
		return failure{}, false
	}
	s.failures[op] = q[1:]
	return q[0], true
}

func (s *Server) checkHeaders(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		if s.apiKey != "" && req.Header.Get("Authorization") != "Bearer "+s.apiKey {
			return apiError(c, http.StatusUnauthorized, "Incorrect API key provided.")
		}
		if !strings.HasPrefix(req.Header.Get("OpenAI-Beta"), "assistants=") {
			return apiError(c, http.StatusBadRequest, "You must provide the 'OpenAI-Beta' header to access the Assistants API.")
		}
		return next(c)
	}
}

func apiError(c echo.Context, status int, message string) error {
	return c.JSON(status, errorEnvelope{Error: errorBody{
		Message: message,
		Type:    "invalid_request_error",
	}})
}

func newID(prefix string) string {
	return prefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
}

func notFound(c echo.Context, kind, id string) error {
	return apiError(c, http.StatusNotFound, fmt.Sprintf("No %s found with id '%s'.", kind, id))
}
