// Package lambdaboot holds the cold-start steps the Lambda entry point runs
// before serving: AWS config, secrets from SSM Parameter Store, and the
// startup log event.
package lambdaboot

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"

	"github.com/fpang/media-sensitivity-detector/internal/config"
	"github.com/fpang/media-sensitivity-detector/internal/logging"
)

// ParameterGetter is the subset of the SSM client used here.
type ParameterGetter interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// InitAWS loads the default AWS config and returns an SSM client built
// from it.
func InitAWS(ctx context.Context) (aws.Config, *ssm.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return aws.Config{}, nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	log.Debug().Str("region", cfg.Region).Msg("AWS config loaded")
	return cfg, ssm.NewFromConfig(cfg), nil
}

// NeedsGeminiKey reports whether cfg expects its Gemini key from SSM.
func NeedsGeminiKey(cfg *config.Config) bool {
	return cfg.GeminiAPIKey == "" && cfg.SSMGeminiAPIKeyParam != ""
}

// LoadGeminiKey fills cfg.GeminiAPIKey from the SSM parameter named by
// cfg.SSMGeminiAPIKeyParam. A key already present in the environment wins
// and SSM is not called.
func LoadGeminiKey(ctx context.Context, cfg *config.Config, getter ParameterGetter) error {
	if !NeedsGeminiKey(cfg) {
		return nil
	}

	start := time.Now()
	result, err := getter.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(cfg.SSMGeminiAPIKeyParam),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("failed to read %s from SSM: %w", cfg.SSMGeminiAPIKeyParam, err)
	}
	if result.Parameter == nil || aws.ToString(result.Parameter.Value) == "" {
		return fmt.Errorf("SSM parameter %s is empty", cfg.SSMGeminiAPIKeyParam)
	}

	cfg.GeminiAPIKey = aws.ToString(result.Parameter.Value)
	log.Debug().
		Str("param", cfg.SSMGeminiAPIKeyParam).
		Dur("elapsed", time.Since(start)).
		Msg("Gemini API key loaded from SSM")
	return nil
}

// StartupLog is a convenience wrapper for the startup logger.
func StartupLog(name string, initStart time.Time) *logging.StartupLogger {
	return logging.NewStartupLogger(name).InitDuration(time.Since(initStart))
}
