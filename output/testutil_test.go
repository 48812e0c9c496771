package output

import (
	"math"
	"testing"
	"time"

	"github.com/lixenwraith/wavetone/audio"
)

// constSource returns a bounded source holding 1.0 for d at rate
// A cosine table at 0 Hz stays on its first sample
func constSource(t *testing.T, rate int, d time.Duration) *audio.Segment {
	t.Helper()
	table, err := audio.NewWavetable(16, func(n, size int) float64 {
		return math.Cos(2 * math.Pi * float64(n) / float64(size))
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	osc, err := audio.NewOscillator(rate, table)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	seg, err := audio.NewSegment(osc, d)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	return seg
}

// endlessSource returns an unbounded source at rate
func endlessSource(t *testing.T, rate int) *audio.Oscillator {
	t.Helper()
	table, err := audio.NewSineTable(16)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	osc, err := audio.NewOscillator(rate, table)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := osc.SetFrequency(440); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	return osc
}

func testOptions(rate int) Options {
	return Options{SampleRate: rate, Volume: 1}
}

// mutedOptions keeps tests that reach a real device silent
func mutedOptions(rate int) Options {
	return Options{SampleRate: rate, Volume: 0}
}

// awaitPlay waits for a Play running in the background to return
func awaitPlay(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("Play did not return")
		return nil
	}
}
