package detect

import (
	"context"
	"math"

	"github.com/fpang/media-sensitivity-detector/internal/classifier"
)

// Classifier scores a PNG image. The bool is false when no prediction is
// available; *classifier.Service is the production implementation.
type Classifier interface {
	Classify(ctx context.Context, png []byte) (classifier.Prediction, bool)
}

// Judgment is the verdict for one image or frame.
type Judgment struct {
	Sensitive bool
	Porn      bool
}

// Judge applies the probability cutoffs to a prediction. An image is
// sensitive when any of Sexy, Hentai, or Porn exceeds sensitiveThreshold,
// and porn when Porn exceeds pornThreshold.
func Judge(p classifier.Prediction, sensitiveThreshold, pornThreshold float64) Judgment {
	explicit := math.Max(p.Prob(classifier.Sexy), math.Max(p.Prob(classifier.Hentai), p.Prob(classifier.Porn)))
	return Judgment{
		Sensitive: explicit > sensitiveThreshold,
		Porn:      p.Prob(classifier.Porn) > pornThreshold,
	}
}

// JudgeImage classifies png once and judges the result. The bool is false
// when the classifier produced nothing; such an image counts toward
// neither verdict.
func JudgeImage(ctx context.Context, c Classifier, png []byte, sensitiveThreshold, pornThreshold float64) (Judgment, bool) {
	pred, ok := c.Classify(ctx, png)
	if !ok {
		return Judgment{}, false
	}
	return Judge(pred, sensitiveThreshold, pornThreshold), true
}
