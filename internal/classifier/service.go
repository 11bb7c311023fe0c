package classifier

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/media-sensitivity-detector/internal/metrics"
)

// Backend scores PNG images. Load is called once before the first Classify.
type Backend interface {
	Name() string
	Load(ctx context.Context) error
	Classify(ctx context.Context, png []byte) (Prediction, error)
}

// Service is the process-wide classifier. It loads its backend exactly
// once and turns every backend failure into "no prediction", so a model
// outage degrades results instead of failing requests. Safe for
// concurrent use.
type Service struct {
	backend Backend
	metrics *metrics.Emitter
	timeout time.Duration

	loadOnce sync.Once
	loadErr  error
}

// NewService wraps backend. timeout bounds each Classify call; zero means
// no bound beyond the caller's context. m may be nil.
func NewService(backend Backend, m *metrics.Emitter, timeout time.Duration) *Service {
	if m == nil {
		m = metrics.Disabled()
	}
	return &Service{backend: backend, metrics: m, timeout: timeout}
}

// Load initializes the backend. Only the first call does any work; later
// calls return the first result.
func (s *Service) Load(ctx context.Context) error {
	s.loadOnce.Do(func() {
		start := time.Now()
		log.Info().
			Str("operation", "ai:init").
			Str("backend", s.backend.Name()).
			Msg("Loading classifier")

		if err := s.backend.Load(ctx); err != nil {
			s.loadErr = fmt.Errorf("load %s classifier: %w", s.backend.Name(), err)
			log.Error().Err(err).
				Str("operation", "ai:init").
				Str("backend", s.backend.Name()).
				Msg("Classifier failed to load")
			return
		}

		log.Info().
			Str("operation", "ai:init").
			Str("backend", s.backend.Name()).
			Dur("duration", time.Since(start)).
			Msg("Classifier loaded")
	})
	return s.loadErr
}

// Classify scores png. The bool is false when no prediction could be made for any
// reason; the reason is logged, never returned.
func (s *Service) Classify(ctx context.Context, png []byte) (Prediction, bool) {
	if err := s.Load(ctx); err != nil {
		log.Warn().Err(err).
			Str("operation", "ai:detectSensitive").
			Msg("Classifier unavailable, skipping image")
		return Prediction{}, false
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	rec := s.metrics.Recorder().Dimension("Backend", s.backend.Name())
	defer rec.Flush()

	start := time.Now()
	pred, err := s.backend.Classify(ctx, png)
	elapsed := time.Since(start)
	rec.Count("ClassifierCalls").Duration("ClassifierLatencyMs", elapsed)

	if err != nil {
		rec.Count("ClassifierErrors")
		log.Warn().Err(err).
			Str("operation", "ai:detectSensitive").
			Str("backend", s.backend.Name()).
			Int("imageBytes", len(png)).
			Dur("duration", elapsed).
			Msg("Classification failed")
		return Prediction{}, false
	}

	log.Debug().
		Str("operation", "ai:detectSensitive").
		Float64("sexy", pred.Prob(Sexy)).
		Float64("hentai", pred.Prob(Hentai)).
		Float64("porn", pred.Prob(Porn)).
		Float64("neutral", pred.Prob(Neutral)).
		Float64("drawing", pred.Prob(Drawing)).
		Dur("duration", elapsed).
		Msg("Classification complete")
	return pred, true
}
