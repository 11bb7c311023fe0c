// Package main is the Lambda entry point for the sensitivity detection API.
//
// The function sits behind an API Gateway HTTP API (payload v2) or a
// function URL; httpadapter turns each event into a request for the same
// handler detect-web serves. When SSM_GEMINI_API_KEY_PARAM is set and
// GEMINI_API_KEY is not, the key is read from Parameter Store at cold start.
package main

import (
	"context"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"github.com/rs/zerolog/log"

	"github.com/fpang/media-sensitivity-detector/internal/app"
	"github.com/fpang/media-sensitivity-detector/internal/config"
	"github.com/fpang/media-sensitivity-detector/internal/lambdaboot"
	"github.com/fpang/media-sensitivity-detector/internal/logging"
)

var adapter *httpadapter.HandlerAdapterV2

func init() {
	initStart := time.Now()
	logging.Init()
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	if lambdaboot.NeedsGeminiKey(cfg) {
		_, ssmClient, err := lambdaboot.InitAWS(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize AWS clients")
		}
		if err := lambdaboot.LoadGeminiKey(ctx, cfg, ssmClient); err != nil {
			log.Fatal().Err(err).Msg("Failed to load Gemini API key")
		}
	}

	a, err := app.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build detector")
	}
	_ = a.Load(ctx)

	adapter = httpadapter.NewV2(a.Handler())

	a.Describe(lambdaboot.StartupLog("detect-lambda", initStart)).
		Feature("ssmGeminiKey", cfg.SSMGeminiAPIKeyParam != "").
		Log()
}

func main() {
	lambda.Start(adapter.ProxyWithContext)
}
