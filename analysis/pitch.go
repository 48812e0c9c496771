// Package analysis measures the pitch of rendered audio with an FFT
package analysis

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/ktye/fft"

	"github.com/lixenwraith/wavetone/audio"
	"github.com/lixenwraith/wavetone/constant"
)

// ErrSilent is returned when the analyzed window carries no signal
var ErrSilent = errors.New("no signal")

// silenceFloor is the peak magnitude, relative to the window length, below which a window counts as silent
const silenceFloor = 1e-6

// Peak is the dominant frequency of one window
type Peak struct {
	Frequency  float64 // Interpolated, Hz
	Bin        int
	Magnitude  float64
	Resolution float64 // Hz per bin
}

// Analyzer holds an FFT plan and a Hann window for one size
// Not safe for concurrent use
type Analyzer struct {
	plan fft.FFT
	env  []float64
	buf  []complex128
}

// NewAnalyzer prepares an analyzer for size samples; size must be a power of two
func NewAnalyzer(size int) (*Analyzer, error) {
	if size < 2 || size&(size-1) != 0 {
		return nil, fmt.Errorf("%w: fft size %d is not a power of two", audio.ErrInvalidArgument, size)
	}
	plan, err := fft.New(size)
	if err != nil {
		return nil, fmt.Errorf("fft plan: %w", err)
	}
	env := make([]float64, size)
	for i := range env {
		env[i] = (1 - math.Cos(2*math.Pi*float64(i)/float64(size))) / 2
	}
	return &Analyzer{
		plan: plan,
		env:  env,
		buf:  make([]complex128, size),
	}, nil
}

// Size returns the FFT length
func (a *Analyzer) Size() int { return len(a.env) }

// Peak finds the dominant frequency of samples recorded at rate
// Shorter input is zero padded, longer input is truncated to Size
func (a *Analyzer) Peak(samples []float64, rate int) (Peak, error) {
	if rate <= 0 {
		return Peak{}, fmt.Errorf("%w: sample rate %d", audio.ErrInvalidArgument, rate)
	}
	if len(samples) == 0 {
		return Peak{}, fmt.Errorf("%w: no samples", audio.ErrInvalidArgument)
	}

	size := len(a.env)
	n := min(len(samples), size)
	for i := range a.buf {
		a.buf[i] = 0
	}
	// Window spans only the filled part of the buffer
	for i := 0; i < n; i++ {
		w := (1 - math.Cos(2*math.Pi*float64(i)/float64(n))) / 2
		if n == size {
			w = a.env[i]
		}
		a.buf[i] = complex(samples[i]*w, 0)
	}

	bins := a.plan.Transform(a.buf)

	half := size / 2
	mags := make([]float64, half+1)
	best := 1
	for k := 1; k <= half; k++ {
		mags[k] = cmplx.Abs(bins[k])
		if mags[k] > mags[best] {
			best = k
		}
	}

	resolution := float64(rate) / float64(size)
	if mags[best] < silenceFloor*float64(n) {
		return Peak{Resolution: resolution}, ErrSilent
	}

	// Parabolic interpolation between neighbouring bins
	offset := 0.0
	if best > 1 && best < half {
		l, c, r := mags[best-1], mags[best], mags[best+1]
		if den := l - 2*c + r; den != 0 {
			offset = 0.5 * (l - r) / den
		}
	}

	return Peak{
		Frequency:  (float64(best) + offset) * resolution,
		Bin:        best,
		Magnitude:  mags[best],
		Resolution: resolution,
	}, nil
}

// Source reads up to Size samples from src and returns their peak
func (a *Analyzer) Source(src audio.Source) (Peak, error) {
	samples := make([]float64, len(a.env))
	n := audio.ReadSamples(src, samples)
	return a.Peak(samples[:n], src.SampleRate())
}

// DominantFrequency analyzes samples with the default window size
func DominantFrequency(samples []float64, rate int) (Peak, error) {
	a, err := NewAnalyzer(constant.AnalysisWindow)
	if err != nil {
		return Peak{}, err
	}
	return a.Peak(samples, rate)
}
