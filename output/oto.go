package output

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/lixenwraith/wavetone/audio"
	"github.com/lixenwraith/wavetone/constant"
)

// oto allows one context per process; later sinks resample to its rate
var (
	otoOnce sync.Once
	otoCtx  *oto.Context
	otoRate int
	otoErr  error
)

func otoContext(rate int) (*oto.Context, int, error) {
	otoOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   rate,
			ChannelCount: constant.AudioChannels,
			Format:       oto.FormatFloat32LE,
			BufferSize:   constant.AudioBufferDuration,
		}
		ctx, ready, err := oto.NewContext(op)
		if err != nil {
			otoErr = err
			return
		}
		<-ready
		otoCtx = ctx
		otoRate = rate
	})
	return otoCtx, otoRate, otoErr
}

// OtoSink plays through an oto context as float32 mono
type OtoSink struct {
	mu     sync.Mutex // Serializes Play
	opts   Options
	ctx    *oto.Context
	closed atomic.Bool
}

func openOto(opts Options) (Sink, error) {
	return NewOtoSink(opts)
}

// NewOtoSink opens the process oto context
func NewOtoSink(opts Options) (*OtoSink, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	ctx, rate, err := otoContext(opts.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("oto context: %w", err)
	}
	opts.SampleRate = rate
	return &OtoSink{opts: opts, ctx: ctx}, nil
}

func (s *OtoSink) Name() string { return string(BackendOto) }

// otoReader serves float32 LE bytes pulled from a source; EOF once it ends
type otoReader struct {
	frames *frameReader
	buf    []float64
}

func (r *otoReader) Read(p []byte) (int, error) {
	want := len(p) / 4
	if want == 0 {
		return 0, nil
	}
	if want > len(r.buf) {
		want = len(r.buf)
	}
	n := r.frames.read(r.buf[:want])
	if n == 0 {
		return 0, io.EOF
	}
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(float32(r.buf[i])))
	}
	return n * 4, nil
}

// Play implements audio.Sink; polls the player until its buffer has drained
func (s *OtoSink) Play(ctx context.Context, src audio.Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return fmt.Errorf("%w: oto sink closed", ErrPipeClosed)
	}

	block := blockSize(s.opts.SampleRate)
	reader := &otoReader{
		frames: newFrameReader(src, s.opts.SampleRate, s.opts.Volume, block),
		buf:    make([]float64, block),
	}

	player := s.ctx.NewPlayer(reader)
	defer player.Close()
	player.Play()

	ticker := time.NewTicker(constant.AudioPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			player.Pause()
			return ctx.Err()
		case <-ticker.C:
			if err := player.Err(); err != nil {
				return fmt.Errorf("%w: %v", ErrPipeClosed, err)
			}
			if s.closed.Load() {
				player.Pause()
				return fmt.Errorf("%w: oto sink closed", ErrPipeClosed)
			}
			if !player.IsPlaying() {
				return nil
			}
		}
	}
}

// Close implements Sink; the oto context itself lives for the process
func (s *OtoSink) Close() error {
	s.closed.Store(true)
	return nil
}
