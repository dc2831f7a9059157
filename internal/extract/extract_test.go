package extract_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ribartra/ai-chatbots/internal/assistants"
	"github.com/ribartra/ai-chatbots/internal/extract"
)

func msg(id string, role assistants.Role, parts ...string) assistants.Message {
	m := assistants.Message{ID: id, Role: role}
	for _, p := range parts {
		m.Parts = append(m.Parts, assistants.ContentPart{Type: "text", Text: p})
	}
	return m
}

func TestLastAssistant(t *testing.T) {
	tests := []struct {
		name   string
		msgs   []assistants.Message
		wantID string
		wantOK bool
	}{
		{"empty", nil, "", false},
		{"user_only", []assistants.Message{msg("u1", "user", "hi")}, "", false},
		{"single", []assistants.Message{msg("u1", "user", "hi"), msg("a1", "assistant", "hello")}, "a1", true},
		{"last_wins", []assistants.Message{
			msg("a1", "assistant", "first"),
			msg("u1", "user", "q"),
			msg("a2", "assistant", "second"),
			msg("u2", "user", "q2"),
		}, "a2", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := extract.LastAssistant(tt.msgs)
			if ok != tt.wantOK || got.ID != tt.wantID {
				t.Fatalf("got %q,%v want %q,%v", got.ID, ok, tt.wantID, tt.wantOK)
			}
		})
	}
}

func TestText_JoinsTextPartsOnly(t *testing.T) {
	m := msg("a1", "assistant", "line one", "line two")
	m.Parts = append(m.Parts, assistants.ContentPart{Type: "image_file"})
	if got := extract.Text(m); got != "line one\nline two" {
		t.Fatalf("Text = %q", got)
	}
}

type fakeLister struct {
	pages   []assistants.MessagePage
	err     error
	queries []assistants.MessageQuery
}

func (f *fakeLister) ListMessages(_ context.Context, _ string, q assistants.MessageQuery) (assistants.MessagePage, error) {
	f.queries = append(f.queries, q)
	if f.err != nil {
		return assistants.MessagePage{}, f.err
	}
	p := f.pages[0]
	f.pages = f.pages[1:]
	return p, nil
}

func TestLatest_SingleCallAscendingFilteredByRun(t *testing.T) {
	l := &fakeLister{pages: []assistants.MessagePage{{Messages: []assistants.Message{
		msg("a1", "assistant", "Sales rose 12%."),
	}}}}
	r, err := extract.New(l).Latest(context.Background(), "thread_1", "run_1")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if r.Text != "Sales rose 12%." || r.Message.ID != "a1" {
		t.Fatalf("reply = %+v", r)
	}
	if len(l.queries) != 1 {
		t.Fatalf("calls = %d, want 1", len(l.queries))
	}
	q := l.queries[0]
	if q.Order != assistants.OrderAsc || q.RunID != "run_1" || q.After != "" {
		t.Fatalf("query = %+v", q)
	}
}

func TestLatest_FollowsPages(t *testing.T) {
	l := &fakeLister{pages: []assistants.MessagePage{
		{Messages: []assistants.Message{msg("a1", "assistant", "old")}, HasMore: true, LastID: "a1"},
		{Messages: []assistants.Message{msg("a2", "assistant", "new")}},
	}}
	r, err := extract.New(l).Latest(context.Background(), "t", "")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if r.Message.ID != "a2" || len(l.queries) != 2 || l.queries[1].After != "a1" {
		t.Fatalf("reply=%+v queries=%+v", r, l.queries)
	}
}

func TestLatest_NoAssistantReply(t *testing.T) {
	l := &fakeLister{pages: []assistants.MessagePage{{Messages: []assistants.Message{msg("u1", "user", "hi")}}}}
	_, err := extract.New(l).Latest(context.Background(), "t", "r")
	if !errors.Is(err, extract.ErrNoAssistantReply) {
		t.Fatalf("err = %v", err)
	}
}

func TestLatest_ListError(t *testing.T) {
	boom := errors.New("boom")
	_, err := extract.New(&fakeLister{err: boom}).Latest(context.Background(), "t", "r")
	if !errors.Is(err, boom) || errors.Is(err, extract.ErrNoAssistantReply) {
		t.Fatalf("err = %v", err)
	}
}
