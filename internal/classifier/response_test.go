package classifier

import "testing"

func TestParseClasses(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantPorn float64
	}{
		{
			name:     "bare array",
			raw:      `[{"className":"Porn","probability":0.8},{"className":"Neutral","probability":0.2}]`,
			wantPorn: 0.8,
		},
		{
			name:     "fenced array",
			raw:      "```json\n[{\"className\":\"Porn\",\"probability\":0.35}]\n```",
			wantPorn: 0.35,
		},
		{
			name:     "object map with prose",
			raw:      "Here is my assessment: {\"Porn\": 0.1, \"Drawing\": 0.9} Hope that helps.",
			wantPorn: 0.1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classes, err := parseClasses(tt.raw)
			if err != nil {
				t.Fatalf("parseClasses() error: %v", err)
			}
			p, err := PredictionFromClasses(classes)
			if err != nil {
				t.Fatalf("PredictionFromClasses() error: %v", err)
			}
			if p.Prob(Porn) != tt.wantPorn {
				t.Errorf("P(Porn) = %v, want %v", p.Prob(Porn), tt.wantPorn)
			}
		})
	}
}

func TestParseClasses_Errors(t *testing.T) {
	for _, raw := range []string{
		"",
		"I cannot classify this image.",
		`[{"className": "Porn", "probability": "high"}]`,
		`{"Porn": 0.5`,
	} {
		if _, err := parseClasses(raw); err == nil {
			t.Errorf("parseClasses(%q): expected error", raw)
		}
	}
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n[1]\n```", "[1]"},
		{"  {\"a\":1}  ", `{"a":1}`},
		{"```{}```", "```{}```"},
	}
	for _, tt := range tests {
		if got := stripFences(tt.in); got != tt.want {
			t.Errorf("stripFences(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
