// Package classifier scores images against a fixed set of NSFW classes.
// The scoring itself is done by a Backend (a remote model server or
// Gemini); Service wraps a Backend so that callers never see an error, only
// "no prediction".
package classifier

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// Label is one of the classes every prediction scores.
type Label int

const (
	Sexy Label = iota
	Hentai
	Porn
	Neutral
	Drawing

	numLabels
)

var labelNames = [numLabels]string{
	Sexy:    "Sexy",
	Hentai:  "Hentai",
	Porn:    "Porn",
	Neutral: "Neutral",
	Drawing: "Drawing",
}

// labelsByName maps lower-cased class names, including the spellings some
// model servers use, to labels.
var labelsByName = map[string]Label{
	"sexy":     Sexy,
	"hentai":   Hentai,
	"porn":     Porn,
	"neutral":  Neutral,
	"drawing":  Drawing,
	"drawings": Drawing,
}

func (l Label) String() string {
	if l < 0 || l >= numLabels {
		return fmt.Sprintf("Label(%d)", int(l))
	}
	return labelNames[l]
}

// ParseLabel maps a class name to a Label, ignoring case.
func ParseLabel(name string) (Label, bool) {
	l, ok := labelsByName[strings.ToLower(strings.TrimSpace(name))]
	return l, ok
}

// Labels returns every label in declaration order.
func Labels() []Label {
	out := make([]Label, numLabels)
	for i := range out {
		out[i] = Label(i)
	}
	return out
}

// LabelNames returns the display names of every label.
func LabelNames() []string {
	return labelNames[:]
}

// Prediction holds one probability per label.
type Prediction [numLabels]float64

// Prob returns the probability of l.
func (p Prediction) Prob(l Label) float64 {
	if l < 0 || l >= numLabels {
		return 0
	}
	return p[l]
}

// ClassProbability is the wire shape model servers use for one class.
type ClassProbability struct {
	ClassName   string  `json:"className"`
	Probability float64 `json:"probability"`
}

// Classes converts p back to the wire shape, highest probability first.
func (p Prediction) Classes() []ClassProbability {
	out := make([]ClassProbability, 0, numLabels)
	for _, l := range Labels() {
		out = append(out, ClassProbability{ClassName: l.String(), Probability: p[l]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Probability > out[j].Probability })
	return out
}

var errNoKnownClasses = errors.New("response contains no known classes")

// PredictionFromClasses builds a Prediction from wire classes. Unknown class
// names are skipped; missing labels stay at zero. Probabilities must be
// numbers in [0, 1].
func PredictionFromClasses(classes []ClassProbability) (Prediction, error) {
	var p Prediction
	known := 0
	for _, c := range classes {
		l, ok := ParseLabel(c.ClassName)
		if !ok {
			continue
		}
		if math.IsNaN(c.Probability) || c.Probability < 0 || c.Probability > 1 {
			return Prediction{}, fmt.Errorf("probability for %s out of range: %v", c.ClassName, c.Probability)
		}
		p[l] = c.Probability
		known++
	}
	if known == 0 {
		return Prediction{}, errNoKnownClasses
	}
	return p, nil
}
