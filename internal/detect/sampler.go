// Package detect turns a local media file into a sensitivity verdict. Still
// images are classified once. Videos are decoded into frames by ffmpeg, a
// growing-gap subset of those frames is classified, and the per-frame
// judgments are folded into one result.
package detect

// Sampler decides which frames of a stream to examine. Positions are
// 0-based and the gaps between examined positions follow the Fibonacci
// numbers: 0, 1, 2, 4, 7, 12, 20, 33, ... The opening frames are covered
// densely and an N-frame video costs O(log N) classifications.
//
// The choice depends only on a frame's position, never on timing, so the
// same stream always yields the same sample.
type Sampler struct {
	seen   int
	target int
	gap    int
	next   int
}

// NewSampler returns a Sampler positioned before frame 0.
func NewSampler() *Sampler {
	return &Sampler{gap: 1, next: 1}
}

// Take consumes one frame position and reports whether that frame should
// be examined.
func (s *Sampler) Take() bool {
	pos := s.seen
	s.seen++
	if pos != s.target {
		return false
	}
	s.target += s.gap
	s.gap, s.next = s.next, s.gap+s.next
	return true
}

// Seen is the number of frame positions consumed so far.
func (s *Sampler) Seen() int { return s.seen }

// SampledPositions returns the positions a Sampler examines in an n-frame
// stream.
func SampledPositions(n int) []int {
	s := NewSampler()
	var out []int
	for i := 0; i < n; i++ {
		if s.Take() {
			out = append(out, i)
		}
	}
	return out
}
