package detect

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/fpang/media-sensitivity-detector/internal/filehandler"
	"github.com/fpang/media-sensitivity-detector/internal/metrics"
)

// Default thresholds.
const (
	DefaultSensitiveThreshold        = 0.5
	DefaultSensitiveThresholdForPorn = 0.75
)

// Which pipeline handled an asset.
const (
	PathImage = "image"
	PathVideo = "video"
	PathNone  = "none"
)

// Params are the per-request knobs.
type Params struct {
	// SensitiveThreshold and SensitiveThresholdForPorn are per-image
	// probability cutoffs.
	SensitiveThreshold        float64
	SensitiveThresholdForPorn float64

	// AnalyzeVideo enables the frame-decoding path.
	AnalyzeVideo bool

	// FrameRatio and PornFrameRatio are the fractions of judged frames
	// that must be sensitive (porn) for a video to be. Nil means the
	// matching threshold is reused.
	FrameRatio     *float64
	PornFrameRatio *float64
}

// DefaultParams returns the thresholds used when a request sets none.
func DefaultParams() Params {
	return Params{
		SensitiveThreshold:        DefaultSensitiveThreshold,
		SensitiveThresholdForPorn: DefaultSensitiveThresholdForPorn,
	}
}

func (p Params) frameRatios() (sensitive, porn float64) {
	sensitive, porn = p.SensitiveThreshold, p.SensitiveThresholdForPorn
	if p.FrameRatio != nil {
		sensitive = *p.FrameRatio
	}
	if p.PornFrameRatio != nil {
		porn = *p.PornFrameRatio
	}
	return sensitive, porn
}

// Stats describes the work done for one detection.
type Stats struct {
	TotalFrames     int
	SampledFrames   int
	JudgedFrames    int
	SensitiveFrames int
	PornFrames      int
}

// Result is the verdict for one asset.
type Result struct {
	Sensitive bool
	Porn      bool

	// Path is PathImage, PathVideo, or PathNone.
	Path  string
	Stats Stats
}

// Options configures a Detector.
type Options struct {
	FFmpegPath string
	FrameSize  int
	TempDir    string

	// DeleteConcurrency bounds in-flight frame deletions. Zero means 4.
	DeleteConcurrency int

	Metrics *metrics.Emitter
}

// Detector runs detections. It holds no per-request state and is safe for
// concurrent use; every video gets its own decode session.
type Detector struct {
	classifier Classifier
	opts       Options
}

// New creates a Detector that classifies with c.
func New(c Classifier, opts Options) *Detector {
	if opts.FrameSize <= 0 {
		opts.FrameSize = filehandler.DefaultFrameSize
	}
	if opts.DeleteConcurrency <= 0 {
		opts.DeleteConcurrency = 4
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Disabled()
	}
	return &Detector{classifier: c, opts: opts}
}

// Detect classifies the file at path, whose sniffed type is mime. Files
// that are neither a convertible image nor (with AnalyzeVideo) video-like
// come back not sensitive without touching the classifier. Classifier
// failures never produce an error; decoder and image decoding failures do.
func (d *Detector) Detect(ctx context.Context, path, mime string, p Params) (Result, error) {
	start := time.Now()
	log.Info().
		Str("operation", "detect:sensitivity").
		Str("mime", mime).
		Float64("sensitiveThreshold", p.SensitiveThreshold).
		Float64("sensitiveThresholdForPorn", p.SensitiveThresholdForPorn).
		Bool("analyzeVideo", p.AnalyzeVideo).
		Msg("Starting sensitivity detection")

	var (
		res Result
		err error
	)
	switch {
	case filehandler.IsMimeImage(mime, filehandler.CategoryConvertibleImageWithBMP):
		res, err = d.detectImage(ctx, path, mime, p)
	case p.AnalyzeVideo && filehandler.IsVideoLike(mime):
		res, err = d.detectVideo(ctx, path, mime, p)
	default:
		res = Result{Path: PathNone}
	}
	if err != nil {
		return Result{}, err
	}

	elapsed := time.Since(start)
	d.opts.Metrics.Recorder().
		Dimension("Path", res.Path).
		Duration("DetectionLatencyMs", elapsed).
		Metric("FramesDecoded", float64(res.Stats.TotalFrames), metrics.UnitCount).
		Metric("FramesSampled", float64(res.Stats.SampledFrames), metrics.UnitCount).
		Metric("FramesJudged", float64(res.Stats.JudgedFrames), metrics.UnitCount).
		Property("mime", mime).
		Flush()

	log.Info().
		Str("operation", "detect:sensitivity").
		Str("mime", mime).
		Str("path", res.Path).
		Bool("sensitive", res.Sensitive).
		Bool("porn", res.Porn).
		Dur("duration", elapsed).
		Msg("Sensitivity detection completed")
	return res, nil
}

func (d *Detector) detectImage(ctx context.Context, path, mime string, p Params) (Result, error) {
	log.Debug().
		Str("operation", "detect:sensitivity").
		Str("mime", mime).
		Msg("Processing as image")

	png, err := filehandler.PrepareImage(ctx, path, mime, filehandler.ImageOptions{
		Size: d.opts.FrameSize,
	})
	if err != nil {
		return Result{}, fmt.Errorf("failed to prepare image: %w", err)
	}

	res := Result{Path: PathImage, Stats: Stats{TotalFrames: 1, SampledFrames: 1}}
	j, ok := JudgeImage(ctx, d.classifier, png, p.SensitiveThreshold, p.SensitiveThresholdForPorn)
	if !ok {
		return res, nil
	}
	res.Sensitive, res.Porn = j.Sensitive, j.Porn
	res.Stats.JudgedFrames = 1
	if j.Sensitive {
		res.Stats.SensitiveFrames = 1
	}
	if j.Porn {
		res.Stats.PornFrames = 1
	}
	return res, nil
}

func (d *Detector) detectVideo(ctx context.Context, path, mime string, p Params) (Result, error) {
	log.Info().
		Str("operation", "detect:video").
		Str("mime", mime).
		Msg("Processing as video")

	session, err := filehandler.StartDecodeSession(ctx, path, filehandler.SessionOptions{
		FFmpegPath: d.opts.FFmpegPath,
		FrameSize:  d.opts.FrameSize,
		TempDir:    d.opts.TempDir,
	})
	if err != nil {
		return Result{}, err
	}
	defer session.Close()

	frames, err := session.Frames()
	if err != nil {
		return Result{}, err
	}
	defer frames.Close()

	// Deletions run alongside classification and are all joined before
	// the sequence and session are closed.
	var deletions errgroup.Group
	deletions.SetLimit(d.opts.DeleteConcurrency)
	defer func() {
		if werr := deletions.Wait(); werr != nil {
			log.Warn().Err(werr).Str("operation", "detect:video").Msg("Failed to delete frame")
		}
	}()

	sampler := NewSampler()
	var tally Tally
	sampled := 0

	for {
		framePath, ok, err := frames.Next(ctx)
		if err != nil {
			log.Error().Err(err).
				Str("operation", "detect:video").
				Str("mime", mime).
				Msg("Video processing failed")
			return Result{}, err
		}
		if !ok {
			break
		}

		if sampler.Take() {
			sampled++
			if j, judged := d.judgeFrame(ctx, framePath, p); judged {
				tally.Add(j)
			}
		}

		deletions.Go(func() error {
			if err := os.Remove(framePath); err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			return nil
		})
	}

	// The decoder is killed when ctx ends, so a sequence that ran dry may
	// only be a truncated one.
	if err := ctx.Err(); err != nil {
		log.Error().Err(err).
			Str("operation", "detect:video").
			Str("mime", mime).
			Int("framesSeen", sampler.Seen()).
			Msg("Video processing cancelled")
		return Result{}, err
	}

	sensitiveRatio, pornRatio := p.frameRatios()
	v := tally.Verdict(sensitiveRatio, pornRatio)

	if state, exitErr := session.State(); state == filehandler.DecoderExitedError {
		log.Warn().Err(exitErr).
			Str("operation", "detect:video").
			Int("framesRecovered", sampler.Seen()).
			Msg("Decoder failed; judging the frames it produced")
	}

	log.Info().
		Str("operation", "detect:video").
		Int("totalFrames", sampler.Seen()).
		Int("sampledFrames", sampled).
		Int("analyzedFrames", tally.Judged).
		Int("sensitiveFrames", tally.Sensitive).
		Int("pornFrames", tally.Porn).
		Bool("sensitive", v.Sensitive).
		Bool("porn", v.Porn).
		Msg("Video frame analysis completed")

	return Result{
		Sensitive: v.Sensitive,
		Porn:      v.Porn,
		Path:      PathVideo,
		Stats: Stats{
			TotalFrames:     sampler.Seen(),
			SampledFrames:   sampled,
			JudgedFrames:    tally.Judged,
			SensitiveFrames: tally.Sensitive,
			PornFrames:      tally.Porn,
		},
	}, nil
}

// judgeFrame classifies one decoded frame. Frames are already PNGs at the
// classifier's input size.
func (d *Detector) judgeFrame(ctx context.Context, framePath string, p Params) (Judgment, bool) {
	png, err := os.ReadFile(framePath)
	if err != nil {
		log.Warn().Err(err).
			Str("operation", "detect:video").
			Str("frame", framePath).
			Msg("Failed to read frame, skipping")
		return Judgment{}, false
	}
	return JudgeImage(ctx, d.classifier, png, p.SensitiveThreshold, p.SensitiveThresholdForPorn)
}
