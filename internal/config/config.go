// Package config loads the process configuration once at startup.
//
// Values come from three layers, highest precedence first: environment
// variables, a key/value file (JSON or YAML), built-in defaults. The result is
// an explicit Config value handed to constructors; nothing reads it globally.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ribartra/ai-chatbots/tools"
)

// DefaultPath is used when Load is called with an empty path.
const DefaultPath = "config.json"

// Config holds everything the chat session needs.
type Config struct {
	// Credentials
	APIKey    string
	OrgID     string
	ProjectID string
	BaseURL   string

	// Verbose selects the verbose output strategy (the TESTING key).
	Verbose        bool
	RenderMarkdown bool

	Assistant AssistantConfig
	Run       RunConfig
	Poll      PollConfig

	// RequestTimeout bounds a single HTTP round-trip; zero means no bound.
	RequestTimeout time.Duration

	// Journal
	JournalDriver string
	JournalDSN    string

	// Telemetry
	ObserveJSON  bool
	ArtifactsDir string
}

// AssistantConfig describes the assistant created at bootstrap.
type AssistantConfig struct {
	Name         string
	Description  string
	Model        string
	Instructions string
	Tools        []string
}

// RunConfig holds the optional per-run overrides. Empty means omitted.
type RunConfig struct {
	Instructions           string
	AdditionalInstructions string
	ToolChoice             string
}

// PollConfig bounds the run poller. Zero MaxAttempts or MaxWait disables that bound.
type PollConfig struct {
	Interval    time.Duration
	MaxAttempts int
	MaxWait     time.Duration
}

// Default returns the configuration used when no key is set.
func Default() Config {
	return Config{
		Assistant: AssistantConfig{
			Name:        "Sales Analysis Assistant",
			Description: "An assistant specialized in analyzing sales data and providing insights.",
			Model:       "gpt-3.5-turbo",
			Tools:       []string{tools.CodeInterpreter, tools.FileSearch},
		},
		Poll: PollConfig{
			Interval: 5 * time.Second,
			MaxWait:  10 * time.Minute,
		},
		JournalDriver: "sqlite3",
		ArtifactsDir:  ".agent",
	}
}

// Load builds a Config from defaults, the file at path and the environment.
// A missing file at DefaultPath is not an error; a missing explicit path is.
func Load(path string) (Config, error) {
	explicit := path != ""
	if path == "" {
		path = DefaultPath
	}

	file, err := openSource(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			file = emptySource{}
		} else {
			return Config{}, err
		}
	}

	cfg, err := build(layered{envSource{}, file})
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func build(src source) (Config, error) {
	cfg := Default()
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := src.Lookup(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := src.Lookup(key); ok {
			b, err := parseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	millis := func(key string, dst *time.Duration) {
		if v, ok := src.Lookup(key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: invalid milliseconds %q", key, v))
				return
			}
			*dst = time.Duration(n) * time.Millisecond
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := src.Lookup(key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: invalid integer %q", key, v))
				return
			}
			*dst = n
		}
	}

	str("OPENAI_API_KEY", &cfg.APIKey)
	str("OPENAI_ORG_ID", &cfg.OrgID)
	str("OPENAI_PROJECT_ID", &cfg.ProjectID)
	str("OPENAI_BASE_URL", &cfg.BaseURL)
	boolean("TESTING", &cfg.Verbose)
	boolean("RENDER_MARKDOWN", &cfg.RenderMarkdown)

	str("ASSISTANT_NAME", &cfg.Assistant.Name)
	str("ASSISTANT_DESCRIPTION", &cfg.Assistant.Description)
	str("ASSISTANT_MODEL", &cfg.Assistant.Model)
	str("ASSISTANT_INSTRUCTIONS", &cfg.Assistant.Instructions)
	if v, ok := src.Lookup("ASSISTANT_TOOLS"); ok {
		cfg.Assistant.Tools = splitList(v)
	}

	str("RUN_INSTRUCTIONS", &cfg.Run.Instructions)
	str("RUN_ADDITIONAL_INSTRUCTIONS", &cfg.Run.AdditionalInstructions)
	str("RUN_TOOL_CHOICE", &cfg.Run.ToolChoice)

	millis("POLL_INTERVAL_MS", &cfg.Poll.Interval)
	integer("POLL_MAX_ATTEMPTS", &cfg.Poll.MaxAttempts)
	millis("POLL_MAX_WAIT_MS", &cfg.Poll.MaxWait)
	millis("REQUEST_TIMEOUT_MS", &cfg.RequestTimeout)

	str("JOURNAL_DRIVER", &cfg.JournalDriver)
	str("JOURNAL_DSN", &cfg.JournalDSN)

	boolean("CHAT_OBSERVE_JSON", &cfg.ObserveJSON)
	str("CHAT_ARTIFACTS_DIR", &cfg.ArtifactsDir)

	return cfg, errors.Join(errs...)
}

// Validate reports configuration that cannot drive a session.
func (c Config) Validate() error {
	var errs []error
	if c.APIKey == "" {
		errs = append(errs, errors.New("OPENAI_API_KEY is required"))
	}
	if c.Assistant.Model == "" {
		errs = append(errs, errors.New("ASSISTANT_MODEL must not be empty"))
	}
	if _, err := tools.Resolve(c.Assistant.Tools); err != nil {
		errs = append(errs, fmt.Errorf("ASSISTANT_TOOLS: %w", err))
	}
	if c.Poll.Interval <= 0 {
		errs = append(errs, errors.New("POLL_INTERVAL_MS must be positive"))
	}
	if c.Poll.MaxAttempts < 0 {
		errs = append(errs, errors.New("POLL_MAX_ATTEMPTS must not be negative"))
	}
	if c.Poll.MaxWait < 0 {
		errs = append(errs, errors.New("POLL_MAX_WAIT_MS must not be negative"))
	}
	if c.RequestTimeout < 0 {
		errs = append(errs, errors.New("REQUEST_TIMEOUT_MS must not be negative"))
	}
	switch c.JournalDriver {
	case "", "sqlite3", "mysql":
	default:
		errs = append(errs, fmt.Errorf("JOURNAL_DRIVER %q is not supported", c.JournalDriver))
	}
	return errors.Join(errs...)
}

func parseBool(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "", "0", "false", "no", "off", "null":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", v)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
