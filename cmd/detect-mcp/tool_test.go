package main

import (
	"context"
	"errors"
	"testing"

	"github.com/fpang/media-sensitivity-detector/internal/detect"
)

type fakeDetector struct {
	res    detect.Result
	err    error
	gotURL string
	gotP   detect.Params
}

func (f *fakeDetector) DetectURL(ctx context.Context, rawURL string, p detect.Params) (detect.Result, error) {
	f.gotURL, f.gotP = rawURL, p
	return f.res, f.err
}

func TestDetectTool(t *testing.T) {
	low := 0.2
	tests := []struct {
		name    string
		in      DetectInput
		fake    *fakeDetector
		want    DetectOutput
		wantP   detect.Params
		wantErr bool
	}{
		{
			name:  "defaults",
			in:    DetectInput{URL: "https://example.test/a.png"},
			fake:  &fakeDetector{res: detect.Result{Sensitive: true}},
			want:  DetectOutput{Sensitive: true},
			wantP: detect.DefaultParams(),
		},
		{
			name: "overrides",
			in:   DetectInput{URL: "s3://bucket/v.mp4", SensitiveThreshold: &low, EnableDetectionForVideos: true},
			fake: &fakeDetector{res: detect.Result{Sensitive: true, Porn: true}},
			want: DetectOutput{Sensitive: true, Porn: true},
			wantP: detect.Params{
				SensitiveThreshold:        0.2,
				SensitiveThresholdForPorn: detect.DefaultSensitiveThresholdForPorn,
				AnalyzeVideo:              true,
			},
		},
		{
			name:    "missing url",
			in:      DetectInput{},
			fake:    &fakeDetector{},
			wantErr: true,
		},
		{
			name:    "download failure",
			in:      DetectInput{URL: "https://example.test/gone.png"},
			fake:    &fakeDetector{err: errors.New("not found")},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, out, err := detectTool(tt.fake)(context.Background(), nil, tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if out != tt.want {
				t.Errorf("output = %+v, want %+v", out, tt.want)
			}
			if tt.fake.gotP != tt.wantP {
				t.Errorf("params = %+v, want %+v", tt.fake.gotP, tt.wantP)
			}
		})
	}
}

func TestNewServer(t *testing.T) {
	if newServer(&fakeDetector{}) == nil {
		t.Fatal("newServer() returned nil")
	}
}
