package lambdaboot

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"

	"github.com/fpang/media-sensitivity-detector/internal/config"
)

type fakeSSM struct {
	value   string
	err     error
	calls   int
	gotName string
	decrypt bool
}

func (f *fakeSSM) GetParameter(ctx context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.calls++
	f.gotName = aws.ToString(in.Name)
	f.decrypt = aws.ToBool(in.WithDecryption)
	if f.err != nil {
		return nil, f.err
	}
	return &ssm.GetParameterOutput{Parameter: &ssmtypes.Parameter{Value: aws.String(f.value)}}, nil
}

func TestLoadGeminiKey(t *testing.T) {
	tests := []struct {
		name      string
		cfg       config.Config
		ssm       *fakeSSM
		wantKey   string
		wantCalls int
		wantErr   bool
	}{
		{
			name:      "fetched from SSM",
			cfg:       config.Config{SSMGeminiAPIKeyParam: "/detector/gemini-key"},
			ssm:       &fakeSSM{value: "from-ssm"},
			wantKey:   "from-ssm",
			wantCalls: 1,
		},
		{
			name:      "environment wins",
			cfg:       config.Config{GeminiAPIKey: "from-env", SSMGeminiAPIKeyParam: "/detector/gemini-key"},
			ssm:       &fakeSSM{value: "from-ssm"},
			wantKey:   "from-env",
			wantCalls: 0,
		},
		{
			name:      "no parameter configured",
			cfg:       config.Config{},
			ssm:       &fakeSSM{value: "from-ssm"},
			wantKey:   "",
			wantCalls: 0,
		},
		{
			name:      "SSM failure",
			cfg:       config.Config{SSMGeminiAPIKeyParam: "/detector/gemini-key"},
			ssm:       &fakeSSM{err: errors.New("access denied")},
			wantCalls: 1,
			wantErr:   true,
		},
		{
			name:      "empty parameter",
			cfg:       config.Config{SSMGeminiAPIKeyParam: "/detector/gemini-key"},
			ssm:       &fakeSSM{value: ""},
			wantCalls: 1,
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			err := LoadGeminiKey(context.Background(), &cfg, tt.ssm)
			if (err != nil) != tt.wantErr {
				t.Fatalf("LoadGeminiKey() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.ssm.calls != tt.wantCalls {
				t.Errorf("SSM calls = %d, want %d", tt.ssm.calls, tt.wantCalls)
			}
			if !tt.wantErr && cfg.GeminiAPIKey != tt.wantKey {
				t.Errorf("GeminiAPIKey = %q, want %q", cfg.GeminiAPIKey, tt.wantKey)
			}
			if tt.ssm.calls > 0 && (tt.ssm.gotName != "/detector/gemini-key" || !tt.ssm.decrypt) {
				t.Errorf("GetParameter(name=%q, decrypt=%v)", tt.ssm.gotName, tt.ssm.decrypt)
			}
		})
	}
}
