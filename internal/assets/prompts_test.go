package assets

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestRenderClassifyPrompt(t *testing.T) {
	prompt := RenderClassifyPrompt([]string{"Sexy", "Hentai", "Porn", "Neutral", "Drawing"})

	for _, label := range []string{"- Sexy", "- Hentai", "- Porn", "- Neutral", "- Drawing"} {
		if !strings.Contains(prompt, label) {
			t.Errorf("prompt missing %q", label)
		}
	}
	if !strings.Contains(prompt, `"className"`) || !strings.Contains(prompt, `"probability"`) {
		t.Error("prompt does not describe the response shape")
	}
}

func TestRenderOpenAPI(t *testing.T) {
	doc := RenderOpenAPI("1.2.3")

	var parsed struct {
		OpenAPI string `json:"openapi"`
		Info    struct {
			Title   string `json:"title"`
			Version string `json:"version"`
		} `json:"info"`
		Paths map[string]json.RawMessage `json:"paths"`
	}
	if err := json.Unmarshal(doc, &parsed); err != nil {
		t.Fatalf("OpenAPI document is not valid JSON: %v", err)
	}
	if parsed.Info.Title != "Media Sensitivity Detector" {
		t.Errorf("title = %q", parsed.Info.Title)
	}
	if parsed.Info.Version != "1.2.3" {
		t.Errorf("version = %q, want 1.2.3", parsed.Info.Version)
	}
	for _, p := range []string{"/healthz", "/api/v1/detect"} {
		if _, ok := parsed.Paths[p]; !ok {
			t.Errorf("paths missing %s", p)
		}
	}
}
