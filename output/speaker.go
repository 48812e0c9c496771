package output

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"

	"github.com/lixenwraith/wavetone/audio"
	"github.com/lixenwraith/wavetone/constant"
)

// speaker is process-global; one sink may own it at a time
var (
	speakerMu    sync.Mutex
	speakerOwner *SpeakerSink
)

// SpeakerSink plays through the beep speaker
type SpeakerSink struct {
	mu          sync.Mutex // Serializes Play
	opts        Options
	rate        beep.SampleRate
	initialized atomic.Bool
	stop        chan struct{} // Closed by Close to release a blocked Play
}

func openSpeaker(opts Options) (Sink, error) {
	return NewSpeakerSink(opts)
}

// NewSpeakerSink initializes the speaker at opts.SampleRate
func NewSpeakerSink(opts Options) (*SpeakerSink, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	speakerMu.Lock()
	defer speakerMu.Unlock()

	if speakerOwner != nil {
		return nil, fmt.Errorf("speaker already in use by another sink")
	}

	sr := beep.SampleRate(opts.SampleRate)
	if err := speaker.Init(sr, sr.N(constant.SpeakerBufferDuration)); err != nil {
		return nil, fmt.Errorf("speaker init: %w", err)
	}

	s := &SpeakerSink{
		opts: opts,
		rate: sr,
		stop: make(chan struct{}),
	}
	s.initialized.Store(true)
	speakerOwner = s
	return s, nil
}

func (s *SpeakerSink) Name() string { return string(BackendSpeaker) }

// Play implements audio.Sink; blocks until the source ends and the speaker buffer drains
func (s *SpeakerSink) Play(ctx context.Context, src audio.Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized.Load() {
		return fmt.Errorf("%w: speaker closed", ErrPipeClosed)
	}

	var stream beep.Streamer = audio.Streamer(src)
	if srcRate := beep.SampleRate(src.SampleRate()); srcRate != s.rate {
		stream = beep.Resample(resampleQuality, srcRate, s.rate, stream)
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(withVolume(stream, s.opts.Volume), beep.Callback(func() {
		close(done)
	})))

	select {
	case <-done:
	case <-s.stop:
		return fmt.Errorf("%w: speaker closed", ErrPipeClosed)
	case <-ctx.Done():
		speaker.Clear()
		return ctx.Err()
	}

	// The last buffer is still queued in the device when the stream ends
	drain := time.NewTimer(constant.SpeakerBufferDuration)
	defer drain.Stop()
	select {
	case <-drain.C:
		return nil
	case <-ctx.Done():
		speaker.Clear()
		return ctx.Err()
	}
}

// Close stops playback and releases the speaker
func (s *SpeakerSink) Close() error {
	speakerMu.Lock()
	defer speakerMu.Unlock()

	if !s.initialized.CompareAndSwap(true, false) {
		return nil
	}
	close(s.stop)
	speaker.Clear()
	speaker.Close()
	if speakerOwner == s {
		speakerOwner = nil
	}
	return nil
}
