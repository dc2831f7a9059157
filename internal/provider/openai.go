package provider

import (
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ribartra/ai-chatbots/internal/config"
)

// DefaultBaseURL is the public API root; go-openai appends resource paths to it.
const DefaultBaseURL = "https://api.openai.com/v1"

// NewOpenAIClient returns a client configured from cfg.
func NewOpenAIClient(cfg config.Config) *openai.Client {
	return NewOpenAIClientWithTransport(cfg, nil)
}

// NewOpenAIClientWithTransport is NewOpenAIClient with a custom round tripper
// underneath the header transport. A nil rt means http.DefaultTransport.
func NewOpenAIClientWithTransport(cfg config.Config, rt http.RoundTripper) *openai.Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	oc.OrgID = cfg.OrgID
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if rt == nil {
		rt = http.DefaultTransport
	}
	oc.HTTPClient = &http.Client{
		Transport: &headerTransport{base: rt, project: cfg.ProjectID},
		Timeout:   cfg.RequestTimeout,
	}
	return openai.NewClientWithConfig(oc)
}

// headerTransport adds headers go-openai does not set itself.
type headerTransport struct {
	base    http.RoundTripper
	project string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.project == "" {
		return t.base.RoundTrip(req)
	}
	r := req.Clone(req.Context())
	r.Header.Set("OpenAI-Project", t.project)
	return t.base.RoundTrip(r)
}
