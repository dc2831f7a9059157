package metrics_test

import (
	"sync"
	"testing"

	"github.com/ribartra/ai-chatbots/internal/assistants"
	"github.com/ribartra/ai-chatbots/internal/metrics"
)

func TestCountFeatures_Table(t *testing.T) {
	type exp struct {
		bytes int
		runes int
		words int
		lines int
	}
	cases := []struct {
		name string
		in   string
		exp  exp
	}{
		{"Empty", "", exp{0, 0, 0, 0}},
		{"ASCII", "hello world", exp{11, 11, 2, 1}},
		{"Multibyte", "h\u00e9ll\u00f6 \u4e16\u754c", exp{14, 8, 2, 1}},
		{"Multiline_NoTrailing", "a\nb\ncd", exp{6, 6, 3, 3}},
		{"Multiline_Trailing", "a\nb\n", exp{4, 4, 2, 3}},
		{"OnlyWhitespace", " \t\n", exp{3, 3, 0, 2}},
		{"CRLF", "a\r\nb\r\nc", exp{7, 7, 3, 3}},
		{"EmSpace", "foo\u2003bar", exp{9, 7, 2, 1}},
		{"ZeroWidthSpace_NoSplit", "foo\u200Bbar", exp{9, 7, 1, 1}},
		{"Emoji_Astral", "\U0001F44D\U0001F44D", exp{8, 2, 1, 1}},
		{"Combining_Marks", "e\u0301", exp{3, 2, 1, 1}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := metrics.CountFeatures(tc.in)
			if f.Bytes != tc.exp.bytes || f.Runes != tc.exp.runes || f.Words != tc.exp.words || f.Lines != tc.exp.lines {
				t.Fatalf("%s: got %+v, want bytes=%d runes=%d words=%d lines=%d", tc.name, f, tc.exp.bytes, tc.exp.runes, tc.exp.words, tc.exp.lines)
			}
		})
	}
}

func TestUsageTotals(t *testing.T) {
	var u metrics.UsageTotals
	if n, got := u.Snapshot(); n != 0 || got != (assistants.Usage{}) {
		t.Fatalf("zero value: %d %+v", n, got)
	}

	u.Add(assistants.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15})
	u.Add(assistants.Usage{PromptTokens: 3, CompletionTokens: -1, TotalTokens: 2})

	n, got := u.Snapshot()
	want := assistants.Usage{PromptTokens: 13, CompletionTokens: 5, TotalTokens: 17}
	if n != 2 || got != want {
		t.Fatalf("got %d %+v, want 2 %+v", n, got, want)
	}
}

func TestUsageTotals_Concurrent(t *testing.T) {
	var u metrics.UsageTotals
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			u.Add(assistants.Usage{PromptTokens: 1, CompletionTokens: 1, TotalTokens: 2})
		}()
	}
	wg.Wait()
	if n, got := u.Snapshot(); n != 50 || got.TotalTokens != 100 {
		t.Fatalf("got %d %+v", n, got)
	}
}
