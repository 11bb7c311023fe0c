package logging

import (
	"os"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// StartupLogger collects process identity, the detector's collaborators, and
// feature flags, then emits a single structured zerolog event summarising how
// the process was configured. One event per cold start makes it easy to see
// which classifier backend and ffmpeg binary a given instance was using.
type StartupLogger struct {
	name         string
	version      string
	initDuration time.Duration

	collaborators map[string]string
	features      map[string]bool
	config        map[string]string
}

// NewStartupLogger creates a StartupLogger for the given entry point
// (e.g. "detect-web", "detect-lambda").
func NewStartupLogger(name string) *StartupLogger {
	return &StartupLogger{
		name:          name,
		collaborators: make(map[string]string),
		features:      make(map[string]bool),
		config:        make(map[string]string),
	}
}

// Version sets the build version reported in the event.
func (s *StartupLogger) Version(v string) *StartupLogger {
	s.version = v
	return s
}

// Collaborator registers an external dependency by label, such as the
// classifier backend or the decoder binary path.
func (s *StartupLogger) Collaborator(label, value string) *StartupLogger {
	s.collaborators[label] = value
	return s
}

// Feature registers a boolean feature flag (e.g. "metrics", "decoder").
func (s *StartupLogger) Feature(name string, enabled bool) *StartupLogger {
	s.features[name] = enabled
	return s
}

// Config registers a non-sensitive configuration key-value pair.
// Never pass API keys here.
func (s *StartupLogger) Config(key, value string) *StartupLogger {
	s.config[key] = value
	return s
}

// InitDuration records how long initialization took.
func (s *StartupLogger) InitDuration(d time.Duration) *StartupLogger {
	s.initDuration = d
	return s
}

// Log emits a single structured INFO log event with all collected information.
func (s *StartupLogger) Log() {
	evt := log.Info()

	process := zerolog.Dict().
		Str("name", s.name).
		Str("goVersion", runtime.Version()).
		Str("arch", runtime.GOARCH).
		Int("maxProcs", runtime.GOMAXPROCS(0)).
		Str("logLevel", zerolog.GlobalLevel().String())

	if s.version != "" {
		process = process.Str("version", s.version)
	}
	if fn := os.Getenv("AWS_LAMBDA_FUNCTION_NAME"); fn != "" {
		process = process.
			Str("functionName", fn).
			Str("memoryMB", os.Getenv("AWS_LAMBDA_FUNCTION_MEMORY_SIZE")).
			Str("region", os.Getenv("AWS_REGION"))
	}
	evt = evt.Dict("process", process)

	if len(s.collaborators) > 0 {
		evt = evt.Dict("collaborators", dictFromMap(s.collaborators))
	}

	if len(s.features) > 0 {
		d := zerolog.Dict()
		for k, v := range s.features {
			d = d.Bool(k, v)
		}
		evt = evt.Dict("features", d)
	}

	if len(s.config) > 0 {
		evt = evt.Dict("config", dictFromMap(s.config))
	}

	if s.initDuration > 0 {
		evt = evt.Dur("initDuration", s.initDuration)
	}

	evt.Msg("Startup complete")
}

// dictFromMap converts a map[string]string into a zerolog.Event (Dict).
func dictFromMap(m map[string]string) *zerolog.Event {
	d := zerolog.Dict()
	for k, v := range m {
		d = d.Str(k, v)
	}
	return d
}
