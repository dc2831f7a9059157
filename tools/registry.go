package tools

import (
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Names of the server-side tools an assistant can be created with.
const (
	CodeInterpreter = "code_interpreter"
	FileSearch      = "file_search"
)

// ToolDefinition names a tool the backend executes on its own.
type ToolDefinition struct {
	Name        string
	Description string
	Type        openai.AssistantToolType
}

// Registry returns all tool definitions wired for the assistant
func Registry() []ToolDefinition {
	return []ToolDefinition{
		{
			Name:        CodeInterpreter,
			Description: "Runs Python in a sandbox on the backend; used for data analysis.",
			Type:        openai.AssistantToolTypeCodeInterpreter,
		},
		{
			Name:        FileSearch,
			Description: "Searches files attached to the assistant or thread.",
			Type:        openai.AssistantToolType(FileSearch),
		},
	}
}

// Lookup returns the definition registered under name.
func Lookup(name string) (ToolDefinition, bool) {
	for _, d := range Registry() {
		if d.Name == name {
			return d, true
		}
	}
	return ToolDefinition{}, false
}

// Resolve maps configured tool names to request tools, preserving order and
// dropping duplicates. Unknown names are reported together.
func Resolve(names []string) ([]openai.AssistantTool, error) {
	out := make([]openai.AssistantTool, 0, len(names))
	seen := make(map[string]bool, len(names))
	var unknown []string
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		d, ok := Lookup(n)
		if !ok {
			unknown = append(unknown, n)
			continue
		}
		out = append(out, openai.AssistantTool{Type: d.Type})
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("unknown tool(s): %s", strings.Join(unknown, ", "))
	}
	return out, nil
}
