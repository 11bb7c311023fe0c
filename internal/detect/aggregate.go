package detect

import "math"

// ratioEpsilon absorbs float error in judged*ratio, so that 10 frames at
// 0.7 need 7 votes rather than 8.
const ratioEpsilon = 1e-9

// Tally counts judged frames of one video.
type Tally struct {
	Judged    int
	Sensitive int
	Porn      int
}

// Add records one judged frame.
func (t *Tally) Add(j Judgment) {
	t.Judged++
	if j.Sensitive {
		t.Sensitive++
	}
	if j.Porn {
		t.Porn++
	}
}

// Verdict folds the tally. Each verdict holds when at least
// ceil(Judged*ratio) frames carried it. With nothing judged both are
// false.
func (t Tally) Verdict(sensitiveRatio, pornRatio float64) Judgment {
	if t.Judged == 0 {
		return Judgment{}
	}
	return Judgment{
		Sensitive: t.Sensitive >= required(t.Judged, sensitiveRatio),
		Porn:      t.Porn >= required(t.Judged, pornRatio),
	}
}

func required(judged int, ratio float64) int {
	return int(math.Ceil(float64(judged)*ratio - ratioEpsilon))
}
