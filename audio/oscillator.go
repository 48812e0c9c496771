package audio

import (
	"fmt"
	"math"
	"time"
)

// Oscillator steps through a wavetable at a frequency-dependent rate
// Not safe for concurrent use: confine it to the goroutine that renders samples
type Oscillator struct {
	sampleRate int
	table      *Wavetable
	size       float64

	phase     float64 // Table index, 0 <= phase < size
	increment float64 // Table indices per sample
	freq      float64
}

// NewOscillator creates a silent oscillator at phase 0
func NewOscillator(sampleRate int, table *Wavetable) (*Oscillator, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d", ErrInvalidArgument, sampleRate)
	}
	if table == nil {
		return nil, fmt.Errorf("%w: nil wavetable", ErrInvalidArgument)
	}
	return &Oscillator{
		sampleRate: sampleRate,
		table:      table,
		size:       float64(table.Len()),
	}, nil
}

// SetFrequency recomputes the phase increment
// 0 Hz freezes the phase; negative frequencies are rejected, phase only moves forward
func (o *Oscillator) SetFrequency(freq float64) error {
	if freq < 0 || math.IsNaN(freq) || math.IsInf(freq, 0) {
		return fmt.Errorf("%w: frequency %v", ErrInvalidArgument, freq)
	}
	// Divide first; freq*size alone overflows near MaxFloat64
	inc := freq / float64(o.sampleRate) * o.size
	if math.IsInf(inc, 0) {
		return fmt.Errorf("%w: frequency %v overflows the phase increment", ErrInvalidArgument, freq)
	}
	o.freq = freq
	o.increment = inc
	return nil
}

// NextSample returns the interpolated sample at the current phase, then advances
func (o *Oscillator) NextSample() float64 {
	s := o.lerp()
	o.phase = wrapPhase(o.phase+o.increment, o.size)
	return s
}

// lerp linearly interpolates between the two table samples around phase
func (o *Oscillator) lerp() float64 {
	i0 := int(o.phase)
	i1 := i0 + 1
	if i1 == len(o.table.samples) {
		i1 = 0
	}
	frac := o.phase - float64(i0)
	return (1-frac)*o.table.samples[i0] + frac*o.table.samples[i1]
}

// wrapPhase reduces p into [0, n) with floored modulo
func wrapPhase(p, n float64) float64 {
	p = math.Mod(p, n)
	if p < 0 {
		p += n
	}
	// Adding n to a tiny negative remainder can round up to n
	if p >= n {
		p = 0
	}
	return p
}

// Reset rewinds the phase to the start of the cycle
func (o *Oscillator) Reset() {
	o.phase = 0
}

func (o *Oscillator) Phase() float64     { return o.phase }
func (o *Oscillator) Increment() float64 { return o.increment }
func (o *Oscillator) Frequency() float64 { return o.freq }
func (o *Oscillator) Table() *Wavetable  { return o.table }

// SampleRate implements Source
func (o *Oscillator) SampleRate() int { return o.sampleRate }

// Channels implements Source, the oscillator is mono
func (o *Oscillator) Channels() int { return 1 }

// Next implements Source; the oscillator never ends
func (o *Oscillator) Next() (float64, bool) {
	return o.NextSample(), true
}

// Remaining implements Source; an oscillator is unbounded
func (o *Oscillator) Remaining() (time.Duration, bool) {
	return 0, false
}

// Stream implements beep.Streamer, duplicating the mono sample to both channels
func (o *Oscillator) Stream(samples [][2]float64) (n int, ok bool) {
	for i := range samples {
		v := o.NextSample()
		samples[i][0] = v
		samples[i][1] = v
	}
	return len(samples), true
}

func (o *Oscillator) Err() error { return nil }
