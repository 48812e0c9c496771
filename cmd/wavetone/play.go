package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lixenwraith/wavetone/analysis"
	"github.com/lixenwraith/wavetone/audio"
	"github.com/lixenwraith/wavetone/config"
	"github.com/lixenwraith/wavetone/constant"
	"github.com/lixenwraith/wavetone/keyboard"
	"github.com/lixenwraith/wavetone/output"
	"github.com/lixenwraith/wavetone/service"
)

// errPitchMismatch is returned by analyze mode when a rendered note is off pitch
var errPitchMismatch = errors.New("rendered pitch does not match")

func newSequencer(cfg *config.Config, warnings io.Writer) (*audio.Sequencer, error) {
	table, err := audio.SineTable(cfg.TableSize)
	if err != nil {
		return nil, err
	}
	return audio.NewSequencer(audio.SequencerConfig{
		SampleRate:      cfg.SampleRate,
		Table:           table,
		Tuning:          cfg.TuningStandard(),
		DefaultDuration: cfg.NoteDuration(),
		OnWarning: func(err error) {
			log.Printf("warning: %v", err)
			if warnings != nil {
				fmt.Fprintf(warnings, "wavetone: warning: %v\n", err)
			}
		},
		OnTransition: func(tr audio.Transition) {
			log.Printf("step %d %s: %s %.2f Hz", tr.Index, tr.Step, tr.State, tr.Frequency)
		},
	})
}

// startOutput brings up the output service, plus extra services depending on it, through a hub
func startOutput(cfg *config.Config, extra ...service.Service) (*service.Hub, error) {
	hub := service.NewHub()

	svcs := append([]service.Service{output.NewService(cfg.BackendName(), cfg.OutputOptions())}, extra...)
	for _, svc := range svcs {
		if err := hub.Register(svc); err != nil {
			return nil, err
		}
	}
	if err := hub.InitAll(); err != nil {
		return nil, err
	}
	if err := hub.StartAll(); err != nil {
		return nil, err
	}
	log.Printf("services started: %v", hub.Names())
	return hub, nil
}

// runPlay plays steps on the configured output
func runPlay(ctx context.Context, cfg *config.Config, steps []audio.Step, stderr io.Writer) error {
	seq, err := newSequencer(cfg, stderr)
	if err != nil {
		return err
	}
	if err := seq.Validate(steps); err != nil {
		return err
	}

	hub, err := startOutput(cfg)
	if err != nil {
		return err
	}
	defer hub.StopAll()
	out := service.MustGet[*output.Service](hub, output.ServiceName)

	if out.IsSilent() {
		fmt.Fprintln(stderr, "wavetone: no audio device available, playing silently")
	}
	sink := out.Sink()

	if err := playSequence(ctx, seq, sink, steps); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil // Interrupted
		}
		return err
	}

	// Sinks that finish on Close (wav) report their error here
	return out.Stop()
}

// playSequence hands the whole sequence to sink as one continuous source
// Device sinks drain their buffer once at the end instead of after every note
func playSequence(ctx context.Context, seq *audio.Sequencer, sink audio.Sink, steps []audio.Step) error {
	src, err := seq.Source(steps)
	if err != nil {
		return err
	}
	if err := sink.Play(ctx, src); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return err
		}
		if i := src.Index(); i >= 0 {
			return fmt.Errorf("%w: step %d (%s): %w", audio.ErrOutputSink, i, steps[i], err)
		}
		return fmt.Errorf("%w: %w", audio.ErrOutputSink, err)
	}
	return nil
}

// runAnalyze renders steps at full speed and prints the measured pitch of each note
func runAnalyze(ctx context.Context, cfg *config.Config, steps []audio.Step, stdout, stderr io.Writer) error {
	seq, err := newSequencer(cfg, stderr)
	if err != nil {
		return err
	}
	rec, err := analysis.NewRecorder(constant.AnalysisWindow)
	if err != nil {
		return err
	}
	if err := seq.Play(ctx, rec, steps); err != nil {
		return err
	}

	registry, err := audio.RegistryFor(cfg.TuningStandard())
	if err != nil {
		return err
	}

	mismatches := 0
	fmt.Fprintf(stdout, "%-4s %-8s %10s %10s %8s\n", "#", "note", "expected", "measured", "cents")
	for _, m := range rec.Results() {
		step := steps[m.Index]
		if step.Rest {
			fmt.Fprintf(stdout, "%-4d %-8s %10s %10s %8s\n", m.Index, "rest", "-", "-", "-")
			continue
		}

		want := registry.Frequency(step.Note)
		if m.Silent {
			fmt.Fprintf(stdout, "%-4d %-8s %10.2f %10s %8s\n", m.Index, step.Note, want, "silent", "-")
			mismatches++
			continue
		}

		cents := 1200 * math.Log2(m.Peak.Frequency/want)
		mark := ""
		if !m.Matches(want) {
			mark = " !"
			mismatches++
		}
		fmt.Fprintf(stdout, "%-4d %-8s %10.2f %10.2f %+8.1f%s\n", m.Index, step.Note, want, m.Peak.Frequency, cents, mark)
	}

	if mismatches > 0 {
		return fmt.Errorf("%w: %d of %d notes", errPitchMismatch, mismatches, len(steps))
	}
	return nil
}

// runLive plays notes from the keyboard until the user quits
// The keyboard and the sink run under one errgroup; either ending stops the other
func runLive(ctx context.Context, cfg *config.Config, noteDuration time.Duration) error {
	if cfg.BackendName() == output.BackendWAV {
		return fmt.Errorf("%w: live mode cannot render to a wav file", audio.ErrInvalidArgument)
	}

	table, err := audio.SineTable(cfg.TableSize)
	if err != nil {
		return err
	}
	osc, err := audio.NewOscillator(cfg.SampleRate, table)
	if err != nil {
		return err
	}
	live, err := audio.NewLive(osc, noteDuration)
	if err != nil {
		return err
	}
	sess, err := keyboard.NewSession(nil, cfg.TuningStandard())
	if err != nil {
		return err
	}

	restoreTerminal = sess.Fini
	defer func() { restoreTerminal = nil }()

	hub, err := startOutput(cfg, sess)
	if err != nil {
		return err
	}
	defer hub.StopAll()
	out := service.MustGet[*output.Service](hub, output.ServiceName)
	if out.IsSilent() {
		log.Printf("live: no audio device, keys will be silent")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(guard("KEYBOARD CRASHED", func() error {
		defer cancel()
		err := sess.Run(gctx, live)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}))

	g.Go(guard("AUDIO CRASHED", func() error {
		err := out.Sink().Play(gctx, live)
		if err == nil || errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("%w: %w", audio.ErrOutputSink, err)
	}))

	err = g.Wait()
	sess.Fini()
	if n := live.Dropped(); n > 0 {
		log.Printf("live: %d note events dropped", n)
	}
	log.Printf("live: %d notes played", sess.Played())
	return err
}

// guard recovers a goroutine panic the same way main does
func guard(what string, fn func() error) func() error {
	return func() error {
		defer func() {
			if r := recover(); r != nil {
				crash(what, r)
			}
		}()
		return fn()
	}
}
