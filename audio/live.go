package audio

import (
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/lixenwraith/wavetone/constant"
)

// NoteEvent is an immutable request to sound one note
type NoteEvent struct {
	Note      string
	Frequency float64
	Duration  time.Duration // 0 = Live default
}

// Live is an unbounded source driven by note events from other goroutines
// Trigger may be called from any goroutine; Next must only be called by the sink
type Live struct {
	osc         *Oscillator
	events      chan NoteEvent
	noteSamples int
	remaining   int

	state    atomic.Int32
	current  atomic.Pointer[NoteEvent]
	dropped  atomic.Uint64
	rejected atomic.Uint64
}

// NewLive wraps osc; each note sounds for noteDuration unless the event overrides it
func NewLive(osc *Oscillator, noteDuration time.Duration) (*Live, error) {
	if osc == nil {
		return nil, fmt.Errorf("%w: nil oscillator", ErrInvalidArgument)
	}
	if noteDuration <= 0 {
		return nil, fmt.Errorf("%w: note duration %v", ErrInvalidArgument, noteDuration)
	}
	return &Live{
		osc:         osc,
		events:      make(chan NoteEvent, constant.LiveEventQueue),
		noteSamples: SamplesFor(noteDuration, osc.SampleRate()),
	}, nil
}

// Trigger queues ev for the rendering goroutine
// Returns false if the event is invalid or the queue is full
func (l *Live) Trigger(ev NoteEvent) bool {
	if !(ev.Frequency >= 0) || math.IsInf(ev.Frequency, 0) || ev.Duration < 0 {
		l.rejected.Add(1)
		return false
	}
	select {
	case l.events <- ev:
		return true
	default:
		l.dropped.Add(1)
		return false
	}
}

// Next implements Source; emits 0 while idle and never ends
func (l *Live) Next() (float64, bool) {
	l.drain()

	if l.remaining <= 0 {
		return 0, true
	}
	v := l.osc.NextSample()
	l.remaining--
	if l.remaining == 0 {
		l.state.Store(int32(StateIdle))
	}
	return v, true
}

// drain applies pending events; the latest one wins
func (l *Live) drain() {
	for {
		select {
		case ev := <-l.events:
			l.apply(ev)
		default:
			return
		}
	}
}

func (l *Live) apply(ev NoteEvent) {
	if err := l.osc.SetFrequency(ev.Frequency); err != nil {
		l.rejected.Add(1)
		return
	}
	n := l.noteSamples
	if ev.Duration > 0 {
		n = SamplesFor(ev.Duration, l.osc.SampleRate())
	}
	l.remaining = n
	l.current.Store(&ev)
	if n > 0 {
		l.state.Store(int32(StateSounding))
	} else {
		l.state.Store(int32(StateIdle))
	}
}

func (l *Live) Channels() int   { return 1 }
func (l *Live) SampleRate() int { return l.osc.SampleRate() }

// Remaining implements Source; live input is unbounded
func (l *Live) Remaining() (time.Duration, bool) { return 0, false }

// State returns whether a note is sounding, safe from any goroutine
func (l *Live) State() State { return State(l.state.Load()) }

// Current returns the last applied note event, nil before the first note
func (l *Live) Current() *NoteEvent { return l.current.Load() }

// Dropped returns the number of events rejected because the queue was full
func (l *Live) Dropped() uint64 { return l.dropped.Load() }

// Rejected returns the number of events refused as invalid
func (l *Live) Rejected() uint64 { return l.rejected.Load() }
