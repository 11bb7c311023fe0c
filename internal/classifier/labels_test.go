package classifier

import (
	"math"
	"testing"
)

func TestParseLabel(t *testing.T) {
	tests := []struct {
		in     string
		want   Label
		wantOK bool
	}{
		{"Sexy", Sexy, true},
		{"hentai", Hentai, true},
		{"PORN", Porn, true},
		{" Neutral ", Neutral, true},
		{"Drawing", Drawing, true},
		{"Drawings", Drawing, true},
		{"violence", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParseLabel(tt.in)
		if ok != tt.wantOK || (ok && got != tt.want) {
			t.Errorf("ParseLabel(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestLabelString(t *testing.T) {
	if Porn.String() != "Porn" {
		t.Errorf("Porn.String() = %q", Porn.String())
	}
	if got := Label(42).String(); got != "Label(42)" {
		t.Errorf("Label(42).String() = %q", got)
	}
	if n := len(Labels()); n != 5 {
		t.Errorf("len(Labels()) = %d, want 5", n)
	}
}

func TestPredictionFromClasses(t *testing.T) {
	p, err := PredictionFromClasses([]ClassProbability{
		{ClassName: "Porn", Probability: 0.9},
		{ClassName: "Sexy", Probability: 0.06},
		{ClassName: "Unknown", Probability: 0.5},
		{ClassName: "Neutral", Probability: 0.04},
	})
	if err != nil {
		t.Fatalf("PredictionFromClasses() error: %v", err)
	}
	if p.Prob(Porn) != 0.9 || p.Prob(Sexy) != 0.06 || p.Prob(Neutral) != 0.04 {
		t.Errorf("unexpected prediction %v", p)
	}
	if p.Prob(Hentai) != 0 || p.Prob(Drawing) != 0 {
		t.Errorf("missing labels should be zero, got %v", p)
	}
	if p.Prob(Label(-1)) != 0 {
		t.Error("out-of-range label should read as zero")
	}
}

func TestPredictionFromClasses_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		classes []ClassProbability
	}{
		{"empty", nil},
		{"only unknown", []ClassProbability{{ClassName: "Cat", Probability: 1}}},
		{"above one", []ClassProbability{{ClassName: "Porn", Probability: 1.5}}},
		{"negative", []ClassProbability{{ClassName: "Sexy", Probability: -0.1}}},
		{"nan", []ClassProbability{{ClassName: "Hentai", Probability: math.NaN()}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := PredictionFromClasses(tt.classes); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestPredictionClasses(t *testing.T) {
	var p Prediction
	p[Drawing] = 0.7
	p[Neutral] = 0.2
	p[Sexy] = 0.1

	classes := p.Classes()
	if len(classes) != 5 {
		t.Fatalf("len = %d, want 5", len(classes))
	}
	if classes[0].ClassName != "Drawing" || classes[1].ClassName != "Neutral" || classes[2].ClassName != "Sexy" {
		t.Errorf("classes not sorted by probability: %+v", classes)
	}
}
