// Command detect-web serves the sensitivity detection API over HTTP.
//
// Configuration comes from the environment (see internal/config); --port and
// --log-level override PORT and LOG_LEVEL.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	_ "go.uber.org/automaxprocs"

	"github.com/fpang/media-sensitivity-detector/internal/app"
	"github.com/fpang/media-sensitivity-detector/internal/config"
	"github.com/fpang/media-sensitivity-detector/internal/logging"
)

var (
	portFlag     int
	logLevelFlag string
)

var rootCmd = &cobra.Command{
	Use:   "detect-web",
	Short: "Serve the media sensitivity detection API",
	Long: `detect-web downloads the image or video named by a URL, classifies it,
and reports whether it is sensitive or pornographic.

Endpoints:
  GET /healthz
  GET /api/v1/detect?url=...&sensitiveThreshold=0.5&sensitiveThresholdForPorn=0.75&enableDetectionForVideos=false
  GET /doc

Examples:
  detect-web
  detect-web --port 8080 --log-level debug
  CLASSIFIER_BACKEND=gemini GEMINI_API_KEY=... detect-web`,
	Version:      config.Version,
	SilenceUsage: true,
	RunE:         runMain,
}

func init() {
	rootCmd.Flags().IntVar(&portFlag, "port", 0, "Port to listen on (default $PORT or 3000)")
	rootCmd.Flags().StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn, error")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMain(cmd *cobra.Command, args []string) error {
	initStart := time.Now()
	logging.Init()

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("Invalid configuration")
		return err
	}
	if portFlag > 0 {
		cfg.Port = portFlag
	}
	if logLevelFlag != "" {
		cfg.LogLevel = logLevelFlag
		logging.SetLevel(logLevelFlag)
	}

	a, err := app.New(cfg)
	if err != nil {
		log.Error().Err(err).Msg("Failed to build detector")
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// A classifier that fails to load is not fatal; requests fail soft.
	_ = a.Load(ctx)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Info().Msg("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	a.Describe(logging.NewStartupLogger("detect-web")).
		Config("port", fmt.Sprint(cfg.Port)).
		InitDuration(time.Since(initStart)).
		Log()

	log.Info().Int("port", cfg.Port).Msg("Starting web server")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("Server failed")
		return err
	}
	return nil
}
