package output

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lixenwraith/wavetone/audio"
	"github.com/lixenwraith/wavetone/constant"
)

// PipeSink streams s16le mono PCM to an external player's stdin, an OSS device or any writer
type PipeSink struct {
	opts   Options
	name   string
	player *PlayerConfig

	cmd    *exec.Cmd
	output io.WriteCloser // Player stdin, OSS device or wrapped writer

	exited  chan struct{}
	exitErr error // Valid after exited is closed

	mu      sync.Mutex // Serializes Play
	closed  atomic.Bool
	written atomic.Uint64
	wg      sync.WaitGroup
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// NewWriterSink writes raw PCM to w; closing the sink does not close w
func NewWriterSink(w io.Writer, opts Options) (*PipeSink, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return newPipeSink("raw", nopWriteCloser{w}, opts), nil
}

func newPipeSink(name string, w io.WriteCloser, opts Options) *PipeSink {
	return &PipeSink{
		opts:   opts,
		name:   name,
		output: w,
		exited: make(chan struct{}),
	}
}

// openPipe starts the detected player; Path "-" writes raw PCM to stdout instead
func openPipe(opts Options) (Sink, error) {
	if opts.Path == "-" {
		return NewWriterSink(os.Stdout, opts)
	}

	player, err := DetectPlayer(opts.SampleRate)
	if err != nil {
		return nil, err
	}
	return StartPlayer(player, opts)
}

// StartPlayer launches player and returns a sink feeding its stdin
func StartPlayer(player *PlayerConfig, opts Options) (*PipeSink, error) {
	if player == nil {
		return nil, fmt.Errorf("%w: nil player", audio.ErrInvalidArgument)
	}

	if player.Type == PlayerOSS {
		// Direct file write for OSS
		f, err := os.OpenFile(player.Path, os.O_WRONLY, 0)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", player.Path, err)
		}
		ps := newPipeSink(player.Name, f, opts)
		ps.player = player
		return ps, nil
	}

	cmd := exec.Command(player.Path, player.Args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("%s stdin: %w", player.Name, err)
	}
	if err := cmd.Start(); err != nil {
		stdin.Close()
		return nil, fmt.Errorf("start %s: %w", player.Name, err)
	}

	ps := newPipeSink(player.Name, stdin, opts)
	ps.player = player
	ps.cmd = cmd

	ps.wg.Add(1)
	go ps.monitorProcess()

	log.Printf("output: started %s %v", player.Path, player.Args)
	return ps, nil
}

// monitorProcess watches for player exit
func (ps *PipeSink) monitorProcess() {
	defer ps.wg.Done()
	ps.exitErr = ps.cmd.Wait()
	close(ps.exited)
	if ps.exitErr != nil && !ps.closed.Load() {
		log.Printf("output: %s exited: %v", ps.name, ps.exitErr)
	}
}

func (ps *PipeSink) Name() string { return string(BackendPipe) + ":" + ps.name }

// Player returns the external player, nil for writer sinks
func (ps *PipeSink) Player() *PlayerConfig { return ps.player }

// Play implements audio.Sink; writes block on the player so playback runs in real time
func (ps *PipeSink) Play(ctx context.Context, src audio.Source) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.closed.Load() {
		return ErrPipeClosed
	}

	block := blockSize(ps.opts.SampleRate)
	reader := newFrameReader(src, ps.opts.SampleRate, ps.opts.Volume, block)
	buf := make([]float64, block)
	out := make([]byte, block*constant.AudioBytesPerFrame)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		select {
		case <-ps.exited:
			return fmt.Errorf("%w: player exited: %v", ErrPipeClosed, ps.exitErr)
		default:
		}

		n := reader.read(buf)
		if n == 0 {
			return nil
		}
		floatToBytes(buf[:n], out)

		if _, err := ps.output.Write(out[:n*constant.AudioBytesPerFrame]); err != nil {
			return fmt.Errorf("%w: %v", ErrPipeClosed, err)
		}
		ps.written.Add(uint64(n))
	}
}

// Written returns the number of samples written
func (ps *PipeSink) Written() uint64 { return ps.written.Load() }

// Close ends the stream and lets the player drain its buffer
func (ps *PipeSink) Close() error {
	if !ps.closed.CompareAndSwap(false, true) {
		return nil
	}

	// Unblocks a Play stuck writing to a stalled player
	err := ps.output.Close()

	if ps.cmd != nil && ps.cmd.Process != nil {
		select {
		case <-ps.exited:
		case <-time.After(constant.AudioDrainTimeout):
			ps.cmd.Process.Kill()
		}
	}
	ps.wg.Wait()

	if errors.Is(err, os.ErrClosed) {
		return nil
	}
	return err
}

// floatToBytes converts float64 mono to int16 LE bytes, hard clipping to [-1, 1]
func floatToBytes(in []float64, out []byte) {
	for i, v := range in {
		if v > 1.0 {
			v = 1.0
		} else if v < -1.0 {
			v = -1.0
		}

		i16 := int16(v * 32767)
		binary.LittleEndian.PutUint16(out[i*2:], uint16(i16))
	}
}
