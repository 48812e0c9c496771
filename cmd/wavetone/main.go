package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/lixenwraith/wavetone/audio"
	"github.com/lixenwraith/wavetone/config"
	"github.com/lixenwraith/wavetone/constant"
	"github.com/lixenwraith/wavetone/song"
)

// options holds the parsed command line; set records which flags were given explicitly
type options struct {
	tuning     int
	duration   float64
	rate       int
	table      int
	backend    string
	out        string
	volume     int
	songPath   string
	live       bool
	analyze    bool
	configPath string
	debug      bool

	notes []string
	set   map[string]bool
}

func parseFlags(args []string, output io.Writer) (*options, error) {
	o := &options{set: make(map[string]bool)}

	fs := flag.NewFlagSet("wavetone", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.IntVar(&o.tuning, "tuning", constant.DefaultTuning, "A4 reference in Hz: 440 or 432")
	fs.Float64Var(&o.duration, "duration", constant.DefaultNoteDuration.Seconds(), "Default note length in seconds")
	fs.IntVar(&o.rate, "rate", constant.AudioSampleRate, "Sample rate in Hz")
	fs.IntVar(&o.table, "table", constant.WavetableSize, "Wavetable size in samples")
	fs.StringVar(&o.backend, "backend", "auto", "Output: auto, speaker, oto, pipe, portaudio, wav, null")
	fs.StringVar(&o.out, "out", "", "Output file for the wav backend, or - for raw PCM on stdout with the pipe backend")
	fs.IntVar(&o.volume, "volume", 100, "Volume in percent, 0-100")
	fs.StringVar(&o.songPath, "song", "", "Song file (.yaml or .lua)")
	fs.BoolVar(&o.live, "live", false, "Play notes from the keyboard")
	fs.BoolVar(&o.analyze, "analyze", false, "Render the notes and report their measured pitch instead of playing")
	fs.StringVar(&o.configPath, "config", "", "YAML configuration file")
	fs.BoolVar(&o.debug, "debug", false, "Write a debug log to "+logDir+"/"+logFileName)
	fs.Usage = func() {
		fmt.Fprintf(output, "Usage: wavetone [flags] [NOTE[:SECONDS] ...]\n\n")
		fmt.Fprintf(output, "Plays A4 for %s when no notes are given.\n\nFlags:\n", constant.DefaultPlayDuration)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) { o.set[f.Name] = true })
	o.notes = fs.Args()

	if o.live && o.analyze {
		return nil, fmt.Errorf("%w: -live and -analyze are exclusive", audio.ErrInvalidArgument)
	}
	if o.songPath != "" && len(o.notes) > 0 {
		return nil, fmt.Errorf("%w: -song cannot be combined with note arguments", audio.ErrInvalidArgument)
	}
	return o, nil
}

// applyFlags overlays explicitly given flags, the last step of config precedence
func applyFlags(cfg *config.Config, o *options) {
	if o.set["tuning"] {
		cfg.Tuning = o.tuning
	}
	if o.set["duration"] {
		cfg.Duration = o.duration
	}
	if o.set["rate"] {
		cfg.SampleRate = o.rate
	}
	if o.set["table"] {
		cfg.TableSize = o.table
	}
	if o.set["backend"] {
		cfg.Backend = o.backend
	}
	if o.set["out"] {
		cfg.Output = o.out
	}
	if o.set["volume"] {
		cfg.Volume = o.volume
	}
	if o.set["debug"] {
		cfg.Debug = o.debug
	}
}

// loadSong picks the notes to play: a song file, the note arguments, or A4 for the default play time
func loadSong(o *options) (*song.Song, error) {
	switch {
	case o.songPath != "":
		return song.Load(o.songPath)
	case len(o.notes) > 0:
		return song.ParseArgs(o.notes)
	default:
		return &song.Song{Steps: []audio.Step{{Note: "A", Duration: constant.DefaultPlayDuration}}}, nil
	}
}

// applySong lets song level settings replace configured ones unless a flag fixed them
func applySong(cfg *config.Config, s *song.Song, o *options) {
	if s.Tuning != 0 && !o.set["tuning"] {
		cfg.Tuning = int(s.Tuning)
	}
	if s.Duration > 0 && !o.set["duration"] {
		cfg.Duration = s.Duration.Seconds()
	}
}

func main() {
	// Panic recovery: restore the terminal before the trace is printed
	defer func() {
		if r := recover(); r != nil {
			crash("WAVETONE CRASHED", r)
		}
	}()

	o, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "wavetone: %v\n", err)
		os.Exit(2)
	}

	if err := run(o); err != nil {
		fmt.Fprintf(os.Stderr, "wavetone: %v\n", err)
		os.Exit(1)
	}
}

func run(o *options) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	applyFlags(cfg, o)

	var s *song.Song
	if !o.live {
		if s, err = loadSong(o); err != nil {
			return err
		}
		applySong(cfg, s, o)
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	if logFile := setupLogging(cfg.Debug); logFile != nil {
		defer logFile.Close()
	}
	log.Printf("config: rate=%d table=%d tuning=%d duration=%vs backend=%s volume=%d",
		cfg.SampleRate, cfg.TableSize, cfg.Tuning, cfg.Duration, cfg.Backend, cfg.Volume)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case o.live:
		noteDuration := constant.LiveNoteDuration
		if o.set["duration"] {
			noteDuration = cfg.NoteDuration()
		}
		return runLive(ctx, cfg, noteDuration)
	case o.analyze:
		return runAnalyze(ctx, cfg, s.Steps, os.Stdout, os.Stderr)
	default:
		log.Printf("playing %d notes, %s", len(s.Steps), s.Total(cfg.NoteDuration()).Round(time.Millisecond))
		return runPlay(ctx, cfg, s.Steps, os.Stderr)
	}
}

// restoreTerminal is set while the live screen owns the terminal
var restoreTerminal func()

// crash restores the terminal and exits with the panic and its stack on stderr
func crash(what string, r any) {
	if restoreTerminal != nil {
		restoreTerminal()
	}
	// \r\n keeps the trace readable if raw mode is still on
	fmt.Fprintf(os.Stderr, "\r\n\x1b[31m%s: %v\x1b[0m\r\n", what, r)
	fmt.Fprintf(os.Stderr, "Stack Trace:\r\n%s\r\n", debug.Stack())
	os.Exit(1)
}
