package audio

import (
	"context"
	"time"

	"github.com/gopxl/beep"
)

// Source is the pull interface consumed by output sinks
// Next returns false once a bounded source is drained; unbounded sources never return false
type Source interface {
	Next() (float64, bool)
	Channels() int
	SampleRate() int
	// Remaining reports the time left in a bounded source; ok is false when unbounded
	Remaining() (d time.Duration, ok bool)
}

// Sink consumes a source until it ends or ctx is cancelled
type Sink interface {
	Play(ctx context.Context, src Source) error
}

// streamer adapts a mono Source to beep's stereo Streamer
type streamer struct {
	src Source
}

// Streamer wraps src for use with beep; the stream ends when src ends
func Streamer(src Source) beep.Streamer {
	return &streamer{src: src}
}

func (s *streamer) Stream(samples [][2]float64) (n int, ok bool) {
	for i := range samples {
		v, more := s.src.Next()
		if !more {
			return i, i > 0
		}
		samples[i][0] = v
		samples[i][1] = v
	}
	return len(samples), true
}

func (s *streamer) Err() error { return nil }

// ReadSamples fills buf from src and returns the number of samples written
func ReadSamples(src Source, buf []float64) int {
	for i := range buf {
		v, ok := src.Next()
		if !ok {
			return i
		}
		buf[i] = v
	}
	return len(buf)
}

// samplesToDuration converts a sample count at rate to wall time
func samplesToDuration(n, rate int) time.Duration {
	return time.Duration(n) * time.Second / time.Duration(rate)
}

// silence is a zero source used for rests
type silence struct {
	rate int
}

func (s silence) Next() (float64, bool)            { return 0, true }
func (s silence) Channels() int                    { return 1 }
func (s silence) SampleRate() int                  { return s.rate }
func (s silence) Remaining() (time.Duration, bool) { return 0, false }
