package output

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"

	"github.com/lixenwraith/wavetone/audio"
	"github.com/lixenwraith/wavetone/constant"
)

// WAVSink renders every played source into one WAV file, written on Close
type WAVSink struct {
	mu     sync.Mutex
	opts   Options
	format beep.Format
	buffer *beep.Buffer
	closed bool
}

// NewWAVSink prepares a 16-bit mono file at opts.Path
func NewWAVSink(opts Options) (*WAVSink, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.Path == "" {
		return nil, fmt.Errorf("%w: wav backend needs an output path", audio.ErrInvalidArgument)
	}

	format := beep.Format{
		SampleRate:  beep.SampleRate(opts.SampleRate),
		NumChannels: constant.AudioChannels,
		Precision:   constant.AudioBitDepth / 8,
	}
	return &WAVSink{
		opts:   opts,
		format: format,
		buffer: beep.NewBuffer(format),
	}, nil
}

func (w *WAVSink) Name() string { return string(BackendWAV) }

// ctxStreamer ends the stream once ctx is cancelled
type ctxStreamer struct {
	ctx context.Context
	s   beep.Streamer
}

func (c ctxStreamer) Stream(samples [][2]float64) (int, bool) {
	if c.ctx.Err() != nil {
		return 0, false
	}
	return c.s.Stream(samples)
}

func (c ctxStreamer) Err() error { return c.s.Err() }

// Play implements audio.Sink; renders as fast as the source produces
// Unbounded sources are rejected since the file would never end
func (w *WAVSink) Play(ctx context.Context, src audio.Source) error {
	if _, bounded := src.Remaining(); !bounded {
		return fmt.Errorf("%w: wav output needs a bounded source", audio.ErrInvalidArgument)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("%w: wav sink closed", ErrPipeClosed)
	}

	var stream beep.Streamer = audio.Streamer(src)
	if srcRate := beep.SampleRate(src.SampleRate()); srcRate != w.format.SampleRate {
		stream = beep.Resample(resampleQuality, srcRate, w.format.SampleRate, stream)
	}
	w.buffer.Append(ctxStreamer{ctx: ctx, s: withVolume(stream, w.opts.Volume)})
	return ctx.Err()
}

// Len returns the number of samples rendered so far
func (w *WAVSink) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buffer.Len()
}

// Close encodes the rendered audio to the output file
func (w *WAVSink) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true

	f, err := os.Create(w.opts.Path)
	if err != nil {
		return fmt.Errorf("create %s: %w", w.opts.Path, err)
	}
	if err := wav.Encode(f, w.buffer.Streamer(0, w.buffer.Len()), w.format); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", w.opts.Path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	log.Printf("output: wrote %d samples to %s", w.buffer.Len(), w.opts.Path)
	return nil
}
