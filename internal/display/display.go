// Package display renders the conversation for a human.
//
// The strategy is chosen once at startup: Terminal shows prompts, replies and
// errors; Verbose additionally shows progress lines and token usage.
package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/ribartra/ai-chatbots/internal/assistants"
)

// Display is the output strategy used by the chat loop.
type Display interface {
	Banner(text string)
	Prompt()
	Reply(text string)
	Error(format string, args ...any)
	Warn(format string, args ...any)
	Notice(text string)
	Progress(format string, args ...any)
	Usage(u assistants.Usage)
	SessionUsage(runs int, u assistants.Usage)
}

type Option func(*terminal)

// WithMarkdown renders replies as markdown wrapped at width columns.
func WithMarkdown(width int) Option {
	return func(t *terminal) {
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle("dark"),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			fmt.Fprintf(t.errOut, "warning: markdown renderer unavailable: %v\n", err)
			return
		}
		t.md = r
	}
}

// New returns the verbose strategy when verbose is set, the terminal one otherwise.
func New(verbose bool, out, errOut io.Writer, opts ...Option) Display {
	t := newTerminal(out, errOut)
	for _, o := range opts {
		o(t)
	}
	if verbose {
		return &Verbose{terminal: t}
	}
	return t
}

type styles struct {
	you       lipgloss.Style
	assistant lipgloss.Style
	err       lipgloss.Style
	dim       lipgloss.Style
}

// terminal is the default strategy.
type terminal struct {
	out    io.Writer
	errOut io.Writer
	st     styles
	md     *glamour.TermRenderer
}

func newTerminal(out, errOut io.Writer) *terminal {
	r := lipgloss.NewRenderer(out)
	return &terminal{
		out:    out,
		errOut: errOut,
		st: styles{
			you:       r.NewStyle().Foreground(lipgloss.Color("39")).Bold(true),
			assistant: r.NewStyle().Foreground(lipgloss.Color("220")).Bold(true),
			err:       r.NewStyle().Foreground(lipgloss.Color("196")),
			dim:       r.NewStyle().Foreground(lipgloss.Color("240")),
		},
	}
}

func (t *terminal) Banner(text string) { fmt.Fprintln(t.out, text) }

func (t *terminal) Prompt() { fmt.Fprint(t.out, t.st.you.Render("You")+": ") }

func (t *terminal) Reply(text string) {
	if t.md != nil {
		if rendered, err := t.md.Render(text); err == nil {
			text = strings.Trim(rendered, "\n")
		}
	}
	fmt.Fprintf(t.out, "%s: %s\n", t.st.assistant.Render("Assistant"), text)
}

func (t *terminal) Error(format string, args ...any) {
	fmt.Fprintln(t.out, t.st.err.Render(fmt.Sprintf(format, args...)))
}

func (t *terminal) Warn(format string, args ...any) {
	fmt.Fprintf(t.errOut, "warning: "+format+"\n", args...)
}

func (t *terminal) Notice(text string) { fmt.Fprintln(t.out, text) }

func (t *terminal) Progress(string, ...any) {}

func (t *terminal) Usage(assistants.Usage) {}

func (t *terminal) SessionUsage(int, assistants.Usage) {}

// Verbose also prints progress and token usage.
type Verbose struct {
	*terminal
}

func (v *Verbose) Progress(format string, args ...any) {
	fmt.Fprintln(v.out, v.st.dim.Render(fmt.Sprintf(format, args...)))
}

func (v *Verbose) Usage(u assistants.Usage) {
	fmt.Fprintf(v.out, "Prompt tokens: %d\nCompletion tokens: %d\nTotal tokens: %d\n",
		u.PromptTokens, u.CompletionTokens, u.TotalTokens)
}

func (v *Verbose) SessionUsage(runs int, u assistants.Usage) {
	fmt.Fprintf(v.out, "Session usage over %d run(s): prompt=%d completion=%d total=%d\n",
		runs, u.PromptTokens, u.CompletionTokens, u.TotalTokens)
}
