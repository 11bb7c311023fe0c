// Package app assembles the detector from configuration. Every entry point
// builds one App and then exposes it its own way.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os/exec"

	"github.com/rs/zerolog/log"

	"github.com/fpang/media-sensitivity-detector/internal/api"
	"github.com/fpang/media-sensitivity-detector/internal/classifier"
	"github.com/fpang/media-sensitivity-detector/internal/config"
	"github.com/fpang/media-sensitivity-detector/internal/detect"
	"github.com/fpang/media-sensitivity-detector/internal/fetch"
	"github.com/fpang/media-sensitivity-detector/internal/filehandler"
	"github.com/fpang/media-sensitivity-detector/internal/logging"
	"github.com/fpang/media-sensitivity-detector/internal/metrics"
)

// App is a fully wired detector.
type App struct {
	Config     *config.Config
	Metrics    *metrics.Emitter
	Classifier *classifier.Service
	Downloader *fetch.Downloader
	Detector   *detect.Detector
}

// New wires the collaborators described by cfg. Nothing is contacted yet;
// call Load to initialize the classifier.
func New(cfg *config.Config) (*App, error) {
	backend, err := NewBackend(cfg)
	if err != nil {
		return nil, err
	}

	m := metrics.NewEmitter(cfg.MetricsNamespace, cfg.MetricsEnabled)
	svc := classifier.NewService(backend, m, cfg.ClassifierTimeout)

	return &App{
		Config:     cfg,
		Metrics:    m,
		Classifier: svc,
		Downloader: fetch.NewDownloader(fetch.Options{
			UserAgent: cfg.UserAgent,
			MaxSize:   cfg.MaxDownloadSize,
			Timeout:   cfg.DownloadTimeout,
			TempDir:   cfg.TempDir,
		}),
		Detector: detect.New(svc, detect.Options{
			FFmpegPath: cfg.FFmpegPath,
			FrameSize:  cfg.FrameSize,
			TempDir:    cfg.TempDir,
			Metrics:    m,
		}),
	}, nil
}

// NewBackend returns the classifier backend selected by
// cfg.ClassifierBackend.
func NewBackend(cfg *config.Config) (classifier.Backend, error) {
	switch cfg.ClassifierBackend {
	case config.BackendRemote:
		return classifier.NewRemoteBackend(cfg.ClassifierURL, &http.Client{}), nil
	case config.BackendGemini:
		return classifier.NewGeminiBackend(cfg.GeminiAPIKey, cfg.GeminiModel, ""), nil
	default:
		return nil, fmt.Errorf("unknown classifier backend %q", cfg.ClassifierBackend)
	}
}

// Load initializes the classifier. A failure is logged and returned, but
// the App stays usable: detections then report not sensitive.
func (a *App) Load(ctx context.Context) error {
	if err := a.Classifier.Load(ctx); err != nil {
		log.Warn().Err(err).Msg("Classifier unavailable; detections will fail soft")
		return err
	}
	return nil
}

// Handler returns the HTTP API.
func (a *App) Handler() http.Handler {
	return api.NewHandler(a.Downloader, a.Detector, api.Options{
		RequestTimeout: a.Config.RequestTimeout,
		Version:        config.Version,
	})
}

// DetectURL downloads rawURL and runs a detection on it.
func (a *App) DetectURL(ctx context.Context, rawURL string, p detect.Params) (detect.Result, error) {
	asset, err := a.Downloader.Fetch(ctx, rawURL)
	if err != nil {
		return detect.Result{}, err
	}
	defer asset.Cleanup()
	return a.DetectFile(ctx, asset.Path, p)
}

// DetectFile runs a detection on a local file.
func (a *App) DetectFile(ctx context.Context, path string, p detect.Params) (detect.Result, error) {
	ft, err := filehandler.DetectType(path)
	if err != nil {
		return detect.Result{}, err
	}
	log.Debug().
		Str("operation", "fileInfo:detectType").
		Str("mime", ft.MIME).
		Str("ext", ft.Ext).
		Msg("Detected file type")
	return a.Detector.Detect(ctx, path, ft.MIME, p)
}

// Describe adds this App's collaborators, features and non-secret config to
// a startup event.
func (a *App) Describe(s *logging.StartupLogger) *logging.StartupLogger {
	_, ffmpegErr := exec.LookPath(a.Config.FFmpegPath)

	return s.
		Version(config.Version).
		Collaborator("classifier", a.Config.ClassifierBackend).
		Collaborator("ffmpeg", a.Config.FFmpegPath).
		Feature("decoder", ffmpegErr == nil).
		Feature("metrics", a.Metrics.Enabled()).
		Config("maxDownloadSize", fmt.Sprint(a.Config.MaxDownloadSize)).
		Config("downloadTimeout", a.Config.DownloadTimeout.String()).
		Config("requestTimeout", a.Config.RequestTimeout.String()).
		Config("frameSize", fmt.Sprint(a.Config.FrameSize)).
		Config("tempDir", a.Config.TempDir)
}
