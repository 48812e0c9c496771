package audio

import (
	"fmt"
	"math"
	"time"
)

// Segment bounds a source to a fixed number of samples
// Elapsed time is counted in whole samples so long sequences do not drift
type Segment struct {
	src   Source
	total int
	pos   int
	done  bool
}

// SamplesFor converts a duration to the nearest whole sample count at rate
func SamplesFor(d time.Duration, rate int) int {
	return int(math.Round(d.Seconds() * float64(rate)))
}

// NewSegment bounds src to round(d * rate) samples
func NewSegment(src Source, d time.Duration) (*Segment, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: nil source", ErrInvalidArgument)
	}
	if d < 0 {
		return nil, fmt.Errorf("%w: negative duration %v", ErrInvalidArgument, d)
	}
	return NewSegmentSamples(src, SamplesFor(d, src.SampleRate()))
}

// NewSegmentSamples bounds src to exactly n samples
func NewSegmentSamples(src Source, n int) (*Segment, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: nil source", ErrInvalidArgument)
	}
	if n < 0 {
		return nil, fmt.Errorf("%w: negative sample count %d", ErrInvalidArgument, n)
	}
	return &Segment{src: src, total: n}, nil
}

// Next implements Source
func (s *Segment) Next() (float64, bool) {
	if s.done || s.pos >= s.total {
		s.done = true
		return 0, false
	}
	v, ok := s.src.Next()
	if !ok {
		s.done = true
		return 0, false
	}
	s.pos++
	return v, true
}

func (s *Segment) Channels() int   { return s.src.Channels() }
func (s *Segment) SampleRate() int { return s.src.SampleRate() }

// Remaining implements Source; a segment is always bounded
func (s *Segment) Remaining() (time.Duration, bool) {
	if s.done {
		return 0, true
	}
	return samplesToDuration(s.total-s.pos, s.src.SampleRate()), true
}

// Elapsed returns the emitted duration
func (s *Segment) Elapsed() time.Duration {
	return samplesToDuration(s.pos, s.src.SampleRate())
}

// Len returns the total sample budget
func (s *Segment) Len() int { return s.total }

// Position returns the number of samples emitted
func (s *Segment) Position() int { return s.pos }

// Done reports whether the segment signalled end-of-stream
func (s *Segment) Done() bool { return s.done }
