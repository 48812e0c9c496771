//go:build portaudio

package output

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"

	"github.com/lixenwraith/wavetone/audio"
	"github.com/lixenwraith/wavetone/constant"
)

func init() {
	register(BackendPortAudio, openPortAudio)
}

// PortAudioSink writes blocking float32 buffers to the default output device
type PortAudioSink struct {
	mu     sync.Mutex // Serializes Play
	opts   Options
	stream *portaudio.Stream
	out    []float32
	closed atomic.Bool
}

func openPortAudio(opts Options) (Sink, error) {
	return NewPortAudioSink(opts)
}

// NewPortAudioSink initializes portaudio and opens a mono output stream
func NewPortAudioSink(opts Options) (*PortAudioSink, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init: %w", err)
	}

	s := &PortAudioSink{
		opts: opts,
		out:  make([]float32, blockSize(opts.SampleRate)),
	}
	stream, err := portaudio.OpenDefaultStream(0, constant.AudioChannels, float64(opts.SampleRate), len(s.out), &s.out)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("portaudio open: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("portaudio start: %w", err)
	}
	s.stream = stream
	return s, nil
}

func (s *PortAudioSink) Name() string { return string(BackendPortAudio) }

// Play implements audio.Sink
func (s *PortAudioSink) Play(ctx context.Context, src audio.Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return fmt.Errorf("%w: portaudio sink closed", ErrPipeClosed)
	}

	reader := newFrameReader(src, s.opts.SampleRate, s.opts.Volume, len(s.out))
	buf := make([]float64, len(s.out))

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := reader.read(buf)
		if n == 0 {
			return nil
		}
		for i := range s.out {
			if i < n {
				s.out[i] = float32(buf[i])
			} else {
				s.out[i] = 0
			}
		}
		if err := s.stream.Write(); err != nil {
			return fmt.Errorf("%w: %v", ErrPipeClosed, err)
		}
	}
}

// Close stops the stream and terminates portaudio
func (s *PortAudioSink) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.stream.Stop(); err != nil {
		s.stream.Close()
		portaudio.Terminate()
		return err
	}
	if err := s.stream.Close(); err != nil {
		portaudio.Terminate()
		return err
	}
	return portaudio.Terminate()
}
