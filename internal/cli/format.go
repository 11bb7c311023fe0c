package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/fpang/media-sensitivity-detector/internal/detect"
)

// Verdict is the machine-readable CLI output.
type Verdict struct {
	Source    string `json:"source"`
	Sensitive bool   `json:"sensitive"`
	Porn      bool   `json:"porn"`
	Path      string `json:"path"`

	TotalFrames     int `json:"totalFrames,omitempty"`
	SampledFrames   int `json:"sampledFrames,omitempty"`
	JudgedFrames    int `json:"judgedFrames"`
	SensitiveFrames int `json:"sensitiveFrames"`
	PornFrames      int `json:"pornFrames"`

	DurationMs int64 `json:"durationMs"`
}

// NewVerdict flattens a detection result.
func NewVerdict(src Source, res detect.Result, elapsed time.Duration) Verdict {
	return Verdict{
		Source:          src.String(),
		Sensitive:       res.Sensitive,
		Porn:            res.Porn,
		Path:            res.Path,
		TotalFrames:     res.Stats.TotalFrames,
		SampledFrames:   res.Stats.SampledFrames,
		JudgedFrames:    res.Stats.JudgedFrames,
		SensitiveFrames: res.Stats.SensitiveFrames,
		PornFrames:      res.Stats.PornFrames,
		DurationMs:      elapsed.Milliseconds(),
	}
}

// FormatVerdict renders v for a terminal.
func FormatVerdict(v Verdict) string {
	var b strings.Builder

	label := "not sensitive"
	switch {
	case v.Porn && v.Sensitive:
		label = "SENSITIVE (porn)"
	case v.Porn:
		label = "porn"
	case v.Sensitive:
		label = "SENSITIVE"
	}

	fmt.Fprintf(&b, "%s\n", v.Source)
	fmt.Fprintf(&b, "  verdict:   %s\n", label)
	switch v.Path {
	case detect.PathVideo:
		fmt.Fprintf(&b, "  frames:    %d decoded, %d sampled, %d judged\n", v.TotalFrames, v.SampledFrames, v.JudgedFrames)
		fmt.Fprintf(&b, "  flagged:   %d sensitive, %d porn\n", v.SensitiveFrames, v.PornFrames)
	case detect.PathImage:
		if v.JudgedFrames == 0 {
			fmt.Fprintf(&b, "  note:      classifier unavailable\n")
		}
	default:
		fmt.Fprintf(&b, "  note:      not an image or analyzable video\n")
	}
	fmt.Fprintf(&b, "  took:      %s\n", FormatDurationShort(time.Duration(v.DurationMs)*time.Millisecond))
	return b.String()
}

// FormatDurationShort formats a duration as 850ms, 4.2s or M:SS.
func FormatDurationShort(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}

	totalSeconds := int(d.Seconds())
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}
