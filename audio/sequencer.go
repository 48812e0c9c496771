package audio

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/lixenwraith/wavetone/constant"
)

// State is the per-note playback state
type State int32

const (
	StateIdle State = iota
	StateSounding
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSounding:
		return "sounding"
	default:
		return "unknown"
	}
}

// Step is one note of a sequence
type Step struct {
	Note     string
	Duration time.Duration // 0 = sequencer default
	Rest     bool
}

func (s Step) String() string {
	name := s.Note
	if s.Rest {
		name = "rest"
	}
	if s.Duration > 0 {
		return fmt.Sprintf("%s:%s", name, s.Duration)
	}
	return name
}

// Transition is reported on every Idle/Sounding change
type Transition struct {
	Index     int
	Step      Step
	Frequency float64
	State     State
}

// SequencerConfig configures a Sequencer
type SequencerConfig struct {
	SampleRate      int
	Table           *Wavetable // nil = shared sine table of constant.WavetableSize
	Tuning          TuningStandard
	DefaultDuration time.Duration // 0 = constant.DefaultNoteDuration

	// OnWarning receives non-fatal problems such as ErrUnknownNote
	OnWarning func(error)
	// OnTransition observes state changes; called on the rendering goroutine
	OnTransition func(Transition)
}

// Sequencer drives one shared oscillator through a sequence of notes
// Monophonic: exactly one note sounds at a time
type Sequencer struct {
	cfg      SequencerConfig
	osc      *Oscillator
	registry *NoteRegistry
	state    atomic.Int32
}

// NewSequencer validates cfg and builds the shared oscillator
func NewSequencer(cfg SequencerConfig) (*Sequencer, error) {
	if cfg.Table == nil {
		table, err := SineTable(constant.WavetableSize)
		if err != nil {
			return nil, err
		}
		cfg.Table = table
	}
	if cfg.DefaultDuration < 0 {
		return nil, fmt.Errorf("%w: default duration %v", ErrInvalidArgument, cfg.DefaultDuration)
	}
	if cfg.DefaultDuration == 0 {
		cfg.DefaultDuration = constant.DefaultNoteDuration
	}

	registry, err := RegistryFor(cfg.Tuning)
	if err != nil {
		return nil, err
	}
	osc, err := NewOscillator(cfg.SampleRate, cfg.Table)
	if err != nil {
		return nil, err
	}

	return &Sequencer{
		cfg:      cfg,
		osc:      osc,
		registry: registry,
	}, nil
}

// State returns the current note state, safe from any goroutine
func (s *Sequencer) State() State {
	return State(s.state.Load())
}

// Oscillator returns the shared oscillator
func (s *Sequencer) Oscillator() *Oscillator {
	return s.osc
}

// SampleRate returns the rendering rate
func (s *Sequencer) SampleRate() int {
	return s.cfg.SampleRate
}

// duration resolves the effective length of a step
func (s *Sequencer) duration(step Step) (time.Duration, error) {
	d := step.Duration
	if d == 0 {
		d = s.cfg.DefaultDuration
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: duration %v for %s", ErrInvalidArgument, d, step)
	}
	return d, nil
}

// Validate checks every step before anything is played
func (s *Sequencer) Validate(steps []Step) error {
	for i, step := range steps {
		if _, err := s.duration(step); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
	}
	return nil
}

// Total returns the number of samples the sequence emits
func (s *Sequencer) Total(steps []Step) (int, error) {
	total := 0
	for i, step := range steps {
		d, err := s.duration(step)
		if err != nil {
			return 0, fmt.Errorf("step %d: %w", i, err)
		}
		total += SamplesFor(d, s.cfg.SampleRate)
	}
	return total, nil
}

// prepare moves Idle->Sounding setup: resolve, reconfigure oscillator, bound it
func (s *Sequencer) prepare(step Step) (*Segment, float64, error) {
	d, err := s.duration(step)
	if err != nil {
		return nil, 0, err
	}

	if step.Rest {
		seg, err := NewSegment(silence{rate: s.cfg.SampleRate}, d)
		return seg, 0, err
	}

	freq, ok := s.registry.Lookup(step.Note)
	if !ok {
		freq = constant.FallbackFrequency
		s.warn(fmt.Errorf("%w: %q, playing %.2f Hz", ErrUnknownNote, step.Note, freq))
	}
	if err := s.osc.SetFrequency(freq); err != nil {
		return nil, 0, err
	}
	seg, err := NewSegment(s.osc, d)
	return seg, freq, err
}

func (s *Sequencer) warn(err error) {
	if s.cfg.OnWarning != nil {
		s.cfg.OnWarning(err)
	}
}

func (s *Sequencer) transition(index int, step Step, freq float64, st State) {
	s.state.Store(int32(st))
	if s.cfg.OnTransition != nil {
		s.cfg.OnTransition(Transition{Index: index, Step: step, Frequency: freq, State: st})
	}
}

// Play hands each note to sink as its own bounded segment
// A sink failure aborts the remaining steps and is returned wrapped in ErrOutputSink
func (s *Sequencer) Play(ctx context.Context, sink Sink, steps []Step) error {
	if sink == nil {
		return fmt.Errorf("%w: nil sink", ErrInvalidArgument)
	}
	if err := s.Validate(steps); err != nil {
		return err
	}

	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}

		seg, freq, err := s.prepare(step)
		if err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}

		s.transition(i, step, freq, StateSounding)
		err = sink.Play(ctx, seg)
		s.transition(i, step, freq, StateIdle)

		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				return err
			}
			return fmt.Errorf("%w: step %d (%s): %w", ErrOutputSink, i, step, err)
		}
	}
	return nil
}

// SequenceSource renders a whole sequence as one continuous bounded source
type SequenceSource struct {
	seq     *Sequencer
	steps   []Step
	next    int // Index of the next step to start
	current *Segment
	freq    float64
	total   int
	emitted int
}

// Source returns the sequence as a single source with sample-accurate note boundaries
// It shares the sequencer's oscillator; do not use it concurrently with Play
func (s *Sequencer) Source(steps []Step) (*SequenceSource, error) {
	total, err := s.Total(steps)
	if err != nil {
		return nil, err
	}
	return &SequenceSource{seq: s, steps: steps, total: total}, nil
}

// Next implements Source
func (ss *SequenceSource) Next() (float64, bool) {
	for {
		if ss.current != nil {
			if v, ok := ss.current.Next(); ok {
				ss.emitted++
				return v, true
			}
			ss.seq.transition(ss.next-1, ss.steps[ss.next-1], ss.freq, StateIdle)
			ss.current = nil
		}

		if ss.next >= len(ss.steps) {
			return 0, false
		}

		step := ss.steps[ss.next]
		seg, freq, err := ss.seq.prepare(step)
		if err != nil {
			// Durations were validated up front; anything else ends the stream
			ss.seq.warn(fmt.Errorf("step %d: %w", ss.next, err))
			ss.next = len(ss.steps)
			return 0, false
		}
		ss.current = seg
		ss.freq = freq
		ss.next++
		ss.seq.transition(ss.next-1, step, freq, StateSounding)
	}
}

func (ss *SequenceSource) Channels() int   { return 1 }
func (ss *SequenceSource) SampleRate() int { return ss.seq.cfg.SampleRate }

// Remaining implements Source
func (ss *SequenceSource) Remaining() (time.Duration, bool) {
	return samplesToDuration(ss.total-ss.emitted, ss.seq.cfg.SampleRate), true
}

// Len returns the total number of samples in the sequence
func (ss *SequenceSource) Len() int { return ss.total }

// Index returns the step currently rendering, or -1 before the first sample
func (ss *SequenceSource) Index() int { return ss.next - 1 }
