package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Port != 3000 {
		t.Errorf("Port = %d, want 3000", cfg.Port)
	}
	if cfg.MaxDownloadSize != 262144000 {
		t.Errorf("MaxDownloadSize = %d, want 262144000", cfg.MaxDownloadSize)
	}
	if cfg.DownloadTimeout != 10*time.Second {
		t.Errorf("DownloadTimeout = %v, want 10s", cfg.DownloadTimeout)
	}
	if cfg.FrameSize != 299 {
		t.Errorf("FrameSize = %d, want 299", cfg.FrameSize)
	}
	if cfg.ClassifierBackend != BackendRemote {
		t.Errorf("ClassifierBackend = %q, want %q", cfg.ClassifierBackend, BackendRemote)
	}
	if !strings.HasPrefix(cfg.UserAgent, "MediaSensitivityDetector/") {
		t.Errorf("UserAgent = %q, want MediaSensitivityDetector/ prefix", cfg.UserAgent)
	}
	if cfg.TempDir == "" {
		t.Error("TempDir should default to the OS temp dir")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("CLASSIFIER_BACKEND", "gemini")
	t.Setenv("DOWNLOAD_TIMEOUT", "3s")
	t.Setenv("USER_AGENT", "custom/1.0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.ClassifierBackend != BackendGemini {
		t.Errorf("ClassifierBackend = %q, want gemini", cfg.ClassifierBackend)
	}
	if cfg.DownloadTimeout != 3*time.Second {
		t.Errorf("DownloadTimeout = %v, want 3s", cfg.DownloadTimeout)
	}
	if cfg.UserAgent != "custom/1.0" {
		t.Errorf("UserAgent = %q, want custom/1.0", cfg.UserAgent)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"unknown backend", "CLASSIFIER_BACKEND", "onnx"},
		{"zero max size", "MAX_DOWNLOAD_SIZE", "0"},
		{"negative frame size", "FRAME_SIZE", "-1"},
		{"port out of range", "PORT", "70000"},
		{"unparsable duration", "DOWNLOAD_TIMEOUT", "soon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			if _, err := Load(); err == nil {
				t.Errorf("Load() with %s=%s: expected error, got nil", tt.key, tt.val)
			}
		})
	}
}
