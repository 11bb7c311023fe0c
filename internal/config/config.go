// Package config loads the detector's runtime configuration from the
// environment. Every field has a default so the service starts with no
// environment at all; only the classifier location usually needs setting.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
)

// Version is stamped at build time with -ldflags "-X ...config.Version=...".
var Version = "0.0.1"

// Classifier backends.
const (
	BackendRemote = "remote"
	BackendGemini = "gemini"
)

type Config struct {
	Port      int    `env:"PORT"       envDefault:"3000"`
	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`

	UserAgent       string        `env:"USER_AGENT"`
	MaxDownloadSize int64         `env:"MAX_DOWNLOAD_SIZE" envDefault:"262144000"`
	DownloadTimeout time.Duration `env:"DOWNLOAD_TIMEOUT"  envDefault:"10s"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT"   envDefault:"5m"`

	FFmpegPath string `env:"FFMPEG_PATH" envDefault:"ffmpeg"`
	FrameSize  int    `env:"FRAME_SIZE"  envDefault:"299"`
	TempDir    string `env:"TEMP_DIR"`

	ClassifierBackend string        `env:"CLASSIFIER_BACKEND" envDefault:"remote"`
	ClassifierURL     string        `env:"CLASSIFIER_URL"     envDefault:"http://127.0.0.1:8501/v1/classify"`
	ClassifierTimeout time.Duration `env:"CLASSIFIER_TIMEOUT" envDefault:"30s"`

	GeminiAPIKey        string `env:"GEMINI_API_KEY"`
	GeminiModel         string `env:"GEMINI_MODEL"             envDefault:"gemini-3-flash-preview"`
	SSMGeminiAPIKeyParam string `env:"SSM_GEMINI_API_KEY_PARAM"`

	MetricsEnabled   bool   `env:"METRICS_ENABLED"   envDefault:"false"`
	MetricsNamespace string `env:"METRICS_NAMESPACE" envDefault:"MediaSensitivity"`
}

// Load parses the environment and validates the result.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "MediaSensitivityDetector/" + Version
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	switch c.ClassifierBackend {
	case BackendRemote, BackendGemini:
	default:
		return fmt.Errorf("CLASSIFIER_BACKEND must be %q or %q, got %q", BackendRemote, BackendGemini, c.ClassifierBackend)
	}
	if c.MaxDownloadSize <= 0 {
		return fmt.Errorf("MAX_DOWNLOAD_SIZE must be positive, got %d", c.MaxDownloadSize)
	}
	if c.FrameSize <= 0 {
		return fmt.Errorf("FRAME_SIZE must be positive, got %d", c.FrameSize)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT out of range: %d", c.Port)
	}
	return nil
}
