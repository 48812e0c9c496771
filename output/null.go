package output

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/lixenwraith/wavetone/audio"
)

// NullSink discards audio; it backs silent mode and tests
type NullSink struct {
	opts  Options
	paced bool

	plays   atomic.Uint64
	samples atomic.Uint64
	closed  atomic.Bool
}

// NewNullSink drains sources as fast as they render
func NewNullSink(opts Options) *NullSink {
	return &NullSink{opts: opts}
}

// NewPacedNullSink consumes sources in real time, one block per buffer period
// Used when no device is available so timing stays the same as real playback
func NewPacedNullSink(opts Options) *NullSink {
	return &NullSink{opts: opts, paced: true}
}

func (n *NullSink) Name() string { return string(BackendNull) }

// Play implements audio.Sink
func (n *NullSink) Play(ctx context.Context, src audio.Source) error {
	if n.closed.Load() {
		return ErrPipeClosed
	}
	n.plays.Add(1)

	block := blockSize(n.opts.SampleRate)
	reader := newFrameReader(src, n.opts.SampleRate, n.opts.Volume, block)
	buf := make([]float64, block)

	var ticker *time.Ticker
	if n.paced {
		ticker = time.NewTicker(time.Duration(block) * time.Second / time.Duration(n.opts.SampleRate))
		defer ticker.Stop()
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		got := reader.read(buf)
		n.samples.Add(uint64(got))
		if got < len(buf) {
			return nil
		}
		if ticker != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}
	}
}

// Close implements Sink
func (n *NullSink) Close() error {
	n.closed.Store(true)
	return nil
}

// Samples returns the number of samples consumed across all plays
func (n *NullSink) Samples() uint64 { return n.samples.Load() }

// Plays returns the number of Play calls
func (n *NullSink) Plays() uint64 { return n.plays.Load() }
