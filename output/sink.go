package output

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"

	"github.com/lixenwraith/wavetone/audio"
	"github.com/lixenwraith/wavetone/constant"
)

// Sentinel errors
var (
	ErrNoAudioBackend = errors.New("no compatible audio backend found")
	ErrPipeClosed     = errors.New("audio pipe closed")
	ErrUnknownBackend = errors.New("unknown output backend")
)

// Sink is an audio.Sink that owns a device
type Sink interface {
	audio.Sink
	// Name identifies the backend in logs
	Name() string
	// Close releases the device; safe to call more than once
	Close() error
}

// Backend selects a sink implementation
type Backend string

const (
	BackendAuto      Backend = "auto"
	BackendSpeaker   Backend = "speaker"
	BackendOto       Backend = "oto"
	BackendPipe      Backend = "pipe"
	BackendPortAudio Backend = "portaudio"
	BackendWAV       Backend = "wav"
	BackendNull      Backend = "null"
)

const resampleQuality = 4

// autoOrder is the probing order for BackendAuto
var autoOrder = []Backend{BackendPortAudio, BackendSpeaker, BackendOto, BackendPipe}

// ParseBackend accepts a backend name, case insensitive; empty selects auto
func ParseBackend(s string) (Backend, error) {
	b := Backend(strings.ToLower(strings.TrimSpace(s)))
	if b == "" {
		return BackendAuto, nil
	}
	if b == BackendAuto || b == BackendWAV || b == BackendNull {
		return b, nil
	}
	if _, ok := lookupOpener(b); ok {
		return b, nil
	}
	if b == BackendPortAudio {
		return "", fmt.Errorf("%w: %s (binary built without the portaudio tag)", ErrUnknownBackend, s)
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownBackend, s)
}

// Options configures a sink
type Options struct {
	SampleRate int
	// Volume is a master gain in [0, 1]
	Volume float64
	// Path is the output file for the wav backend
	Path string
}

// DefaultOptions returns options for the default rate at full volume
func DefaultOptions() Options {
	return Options{
		SampleRate: constant.AudioSampleRate,
		Volume:     1,
	}
}

func (o Options) validate() error {
	if o.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", audio.ErrInvalidArgument, o.SampleRate)
	}
	if o.Volume < 0 || o.Volume > 1 || math.IsNaN(o.Volume) {
		return fmt.Errorf("%w: volume %v outside [0, 1]", audio.ErrInvalidArgument, o.Volume)
	}
	return nil
}

type opener func(Options) (Sink, error)

var (
	openersMu sync.RWMutex
	openers   = map[Backend]opener{
		BackendSpeaker: openSpeaker,
		BackendOto:     openOto,
		BackendPipe:    openPipe,
	}
)

// register adds a device backend; used by build-tagged sinks
func register(b Backend, open opener) {
	openersMu.Lock()
	defer openersMu.Unlock()
	openers[b] = open
}

func lookupOpener(b Backend) (opener, bool) {
	openersMu.RLock()
	defer openersMu.RUnlock()
	open, ok := openers[b]
	return open, ok
}

// Open creates the sink for backend
// BackendAuto returns the first device that opens, or ErrNoAudioBackend
func Open(b Backend, opts Options) (Sink, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	switch b {
	case BackendNull:
		return NewNullSink(opts), nil
	case BackendWAV:
		return NewWAVSink(opts)
	case BackendAuto, "":
		var errs []error
		for _, candidate := range autoOrder {
			open, ok := lookupOpener(candidate)
			if !ok {
				continue
			}
			sink, err := open(opts)
			if err == nil {
				return sink, nil
			}
			errs = append(errs, fmt.Errorf("%s: %w", candidate, err))
		}
		return nil, fmt.Errorf("%w: %w", ErrNoAudioBackend, errors.Join(errs...))
	}

	open, ok := lookupOpener(b)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, string(b))
	}
	return open(opts)
}

// withVolume applies the master gain; full volume is an exact passthrough
func withVolume(s beep.Streamer, volume float64) beep.Streamer {
	if volume >= 1 {
		return s
	}
	return &effects.Volume{
		Streamer: s,
		Base:     2,
		Volume:   math.Log2(volume),
		Silent:   volume <= 0,
	}
}

// frameReader pulls mono blocks out of a source through the beep gain stage
type frameReader struct {
	stream beep.Streamer
	frames [][2]float64
	done   bool
}

// newFrameReader converts src to rate when the rates differ
func newFrameReader(src audio.Source, rate int, volume float64, block int) *frameReader {
	var s beep.Streamer = audio.Streamer(src)
	if src.SampleRate() != rate {
		s = beep.Resample(resampleQuality, beep.SampleRate(src.SampleRate()), beep.SampleRate(rate), s)
	}
	return &frameReader{
		stream: withVolume(s, volume),
		frames: make([][2]float64, block),
	}
}

// read fills buf with up to len(buf) samples; returns 0 once the source ends
func (r *frameReader) read(buf []float64) int {
	if r.done {
		return 0
	}
	if len(buf) > len(r.frames) {
		buf = buf[:len(r.frames)]
	}
	n, ok := r.stream.Stream(r.frames[:len(buf)])
	for i := 0; i < n; i++ {
		buf[i] = r.frames[i][0]
	}
	if !ok || n < len(buf) {
		r.done = true
	}
	return n
}

// blockSize returns the samples per AudioBufferDuration at rate
func blockSize(rate int) int {
	n := rate * int(constant.AudioBufferDuration.Milliseconds()) / 1000
	if n < 1 {
		return 1
	}
	return n
}
