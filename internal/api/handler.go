// Package api serves the detector over HTTP: a health probe, the detect
// endpoint, and the OpenAPI document describing both.
package api

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/fpang/media-sensitivity-detector/internal/assets"
	"github.com/fpang/media-sensitivity-detector/internal/detect"
	"github.com/fpang/media-sensitivity-detector/internal/fetch"
	"github.com/fpang/media-sensitivity-detector/internal/filehandler"
)

// Fetcher materializes a URL as a local file. *fetch.Downloader is the
// production implementation.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetch.Asset, error)
}

// Detector produces a verdict for a local file. *detect.Detector is the
// production implementation.
type Detector interface {
	Detect(ctx context.Context, path, mime string, p detect.Params) (detect.Result, error)
}

// Options configures the handler.
type Options struct {
	// RequestTimeout bounds one detect request end to end. Zero means none.
	RequestTimeout time.Duration
	Version        string
}

type server struct {
	fetcher  Fetcher
	detector Detector
	opts     Options
}

// DetectResponse is the body of a successful detect request.
type DetectResponse struct {
	Sensitive bool `json:"sensitive"`
	Porn      bool `json:"porn"`
}

// NewHandler returns the service's http.Handler with request ids and access
// logging applied.
func NewHandler(f Fetcher, d Detector, opts Options) http.Handler {
	s := &server{fetcher: f, detector: d, opts: opts}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/v1/detect", s.handleDetect)
	mux.HandleFunc("GET /doc", s.handleDoc)

	return withRequestID(withLogging(mux))
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleDoc(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(assets.RenderOpenAPI(s.opts.Version))
}

func (s *server) handleDetect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)

	target, params, err := ParseDetectQuery(r.URL.Query())
	if err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}

	if s.opts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.RequestTimeout)
		defer cancel()
	}

	asset, err := s.fetcher.Fetch(ctx, target)
	if err != nil {
		s.fail(w, r, "download:fetch", err)
		return
	}
	defer asset.Cleanup()

	ft, err := filehandler.DetectType(asset.Path)
	if err != nil {
		s.fail(w, r, "fileInfo:detectType", err)
		return
	}
	logger.Debug().
		Str("operation", "fileInfo:detectType").
		Str("mime", ft.MIME).
		Str("ext", ft.Ext).
		Int64("size", asset.Size).
		Msg("Detected file type")

	res, err := s.detector.Detect(ctx, asset.Path, ft.MIME, params)
	if err != nil {
		s.fail(w, r, "detect:sensitivity", err)
		return
	}

	respondJSON(w, http.StatusOK, DetectResponse{Sensitive: res.Sensitive, Porn: res.Porn})
}

// fail maps err to a status. Download failures carry their own; anything
// else is a 500 with a generic message.
func (s *server) fail(w http.ResponseWriter, r *http.Request, operation string, err error) {
	status, message := http.StatusInternalServerError, "Internal server error"
	var se *fetch.StatusError
	if errors.As(err, &se) {
		status, message = se.Code, se.Message
	}

	evt := zerolog.Ctx(r.Context()).Error()
	if status < http.StatusInternalServerError {
		evt = zerolog.Ctx(r.Context()).Warn()
	}
	evt.Err(err).
		Str("operation", operation).
		Int("status", status).
		Msg("Detect request failed")

	httpError(w, status, message)
}

// ParseDetectQuery validates the detect endpoint's query string and applies
// the defaults.
func ParseDetectQuery(q url.Values) (string, detect.Params, error) {
	p := detect.DefaultParams()

	target := q.Get("url")
	if target == "" {
		return "", p, errors.New("url is required")
	}
	if u, err := url.Parse(target); err != nil || u.Scheme == "" || u.Host == "" {
		return "", p, errors.New("malformed url")
	}

	var err error
	if p.SensitiveThreshold, err = floatParam(q, "sensitiveThreshold", p.SensitiveThreshold); err != nil {
		return "", p, err
	}
	if p.SensitiveThresholdForPorn, err = floatParam(q, "sensitiveThresholdForPorn", p.SensitiveThresholdForPorn); err != nil {
		return "", p, err
	}
	if v := q.Get("enableDetectionForVideos"); v != "" {
		if p.AnalyzeVideo, err = strconv.ParseBool(v); err != nil {
			return "", p, fmt.Errorf("enableDetectionForVideos must be a boolean, got %q", v)
		}
	}
	if p.FrameRatio, err = ratioParam(q, "videoSensitiveRatio"); err != nil {
		return "", p, err
	}
	if p.PornFrameRatio, err = ratioParam(q, "videoPornRatio"); err != nil {
		return "", p, err
	}
	return target, p, nil
}

func floatParam(q url.Values, name string, def float64) (float64, error) {
	v := q.Get(name)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%s must be a number, got %q", name, v)
	}
	return f, nil
}

func ratioParam(q url.Values, name string) (*float64, error) {
	if q.Get(name) == "" {
		return nil, nil
	}
	f, err := floatParam(q, name, 0)
	if err != nil {
		return nil, err
	}
	if f < 0 || f > 1 {
		return nil, fmt.Errorf("%s must be between 0 and 1, got %v", name, f)
	}
	return &f, nil
}
