package audio

import (
	"fmt"
	"math"

	"github.com/lixenwraith/wavetone/constant"
)

// Generator returns the amplitude of sample n in a table of the given size
type Generator func(n, size int) float64

// Sine fills one cycle of sin(2πn/N)
func Sine(n, size int) float64 {
	return math.Sin(2 * math.Pi * float64(n) / float64(size))
}

// Wavetable holds exactly one period of a waveform
// Sample N wraps to sample 0. Immutable after construction, safe to share
type Wavetable struct {
	samples []float64
}

// NewWavetable populates a table of size samples from gen
func NewWavetable(size int, gen Generator) (*Wavetable, error) {
	if size < constant.MinWavetableSize {
		return nil, fmt.Errorf("%w: wavetable size %d, need at least %d", ErrInvalidArgument, size, constant.MinWavetableSize)
	}
	if gen == nil {
		return nil, fmt.Errorf("%w: nil wavetable generator", ErrInvalidArgument)
	}

	samples := make([]float64, size)
	for n := range samples {
		samples[n] = gen(n, size)
	}
	return &Wavetable{samples: samples}, nil
}

// NewSineTable builds an unshared sine table
func NewSineTable(size int) (*Wavetable, error) {
	return NewWavetable(size, Sine)
}

// Len returns the number of samples in one cycle
func (w *Wavetable) Len() int {
	return len(w.samples)
}

// At returns the sample at logical index i, wrapping in both directions
func (w *Wavetable) At(i int) float64 {
	n := len(w.samples)
	i %= n
	if i < 0 {
		i += n
	}
	return w.samples[i]
}

// Samples returns a copy of the cycle
func (w *Wavetable) Samples() []float64 {
	out := make([]float64, len(w.samples))
	copy(out, w.samples)
	return out
}
