package telemetry

import "github.com/ribartra/ai-chatbots/internal/config"

// FromConfig builds the session Emitter. Settings are read once at startup;
// later environment changes have no effect.
func FromConfig(c config.Config) *Emitter {
	return NewEmitter(c.ObserveJSON, c.ArtifactsDir)
}
