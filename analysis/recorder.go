package analysis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/lixenwraith/wavetone/audio"
)

// Measurement is the analysis of one played source
type Measurement struct {
	Index     int
	Samples   int // Length of the source
	Analyzed  int // Samples that went into the window
	Peak      Peak
	Silent    bool
	Tolerance float64 // Hz; the wider of one bin and the resolution of the analyzed length
}

// Matches reports whether the measured pitch is within tolerance of want
func (m Measurement) Matches(want float64) bool {
	if m.Silent {
		return want == 0
	}
	return math.Abs(m.Peak.Frequency-want) <= m.Tolerance
}

// Recorder is an audio.Sink that measures the pitch of every source it is handed
// Sources are drained at render speed; only the first window of each is analyzed
type Recorder struct {
	mu       sync.Mutex
	analyzer *Analyzer
	window   []float64
	results  []Measurement
}

// NewRecorder creates a recorder analyzing size samples per source
func NewRecorder(size int) (*Recorder, error) {
	a, err := NewAnalyzer(size)
	if err != nil {
		return nil, err
	}
	return &Recorder{analyzer: a, window: make([]float64, size)}, nil
}

// Play implements audio.Sink
func (r *Recorder) Play(ctx context.Context, src audio.Source) error {
	if _, bounded := src.Remaining(); !bounded {
		return fmt.Errorf("%w: analysis needs a bounded source", audio.ErrInvalidArgument)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	n := audio.ReadSamples(src, r.window)
	total := n
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, ok := src.Next(); !ok {
			break
		}
		total++
	}

	m := Measurement{Index: len(r.results), Samples: total, Analyzed: n, Silent: n == 0}
	if n > 0 {
		peak, err := r.analyzer.Peak(r.window[:n], src.SampleRate())
		switch {
		case errors.Is(err, ErrSilent):
			m.Silent = true
		case err != nil:
			return err
		}
		m.Peak = peak
		m.Tolerance = max(peak.Resolution, float64(src.SampleRate())/float64(n))
	}
	r.results = append(r.results, m)
	return nil
}

// Results returns a copy of the measurements in play order
func (r *Recorder) Results() []Measurement {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Measurement, len(r.results))
	copy(out, r.results)
	return out
}
