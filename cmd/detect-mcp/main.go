// Command detect-mcp exposes sensitivity detection as an MCP tool over
// stdio, so assistants and agents can vet media before showing it.
package main

import (
	"context"
	"os"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"

	"github.com/fpang/media-sensitivity-detector/internal/app"
	"github.com/fpang/media-sensitivity-detector/internal/config"
	"github.com/fpang/media-sensitivity-detector/internal/logging"
)

func main() {
	initStart := time.Now()
	// stdout carries the protocol; logs stay on stderr as JSON.
	logging.Configure(os.Getenv("LOG_LEVEL"), "json", os.Stderr)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	a, err := app.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build detector")
	}

	ctx := context.Background()
	_ = a.Load(ctx)

	server := newServer(a)
	a.Describe(logging.NewStartupLogger("detect-mcp")).
		InitDuration(time.Since(initStart)).
		Log()

	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil {
		log.Fatal().Err(err).Msg("MCP server stopped")
	}
}
