package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lixenwraith/wavetone/audio"
	"github.com/lixenwraith/wavetone/config"
	"github.com/lixenwraith/wavetone/constant"
	"github.com/lixenwraith/wavetone/output"
	"github.com/lixenwraith/wavetone/service"
	"github.com/lixenwraith/wavetone/song"
)

func mustParse(t *testing.T, args ...string) *options {
	t.Helper()
	o, err := parseFlags(args, io.Discard)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	return o
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.SampleRate = 8000
	cfg.Backend = "null"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	return cfg
}

// TestParseFlags verifies notes and explicitly set flags are recorded
func TestParseFlags(t *testing.T) {
	o := mustParse(t, "-tuning", "432", "-volume", "50", "A", "C#:0.25")

	if len(o.notes) != 2 || o.notes[1] != "C#:0.25" {
		t.Errorf("Expected two notes, got %v", o.notes)
	}
	if !o.set["tuning"] || !o.set["volume"] {
		t.Errorf("Expected tuning and volume to be marked set, got %v", o.set)
	}
	if o.set["rate"] {
		t.Error("Expected rate to be unset")
	}

	tests := []struct {
		name string
		args []string
	}{
		{"live and analyze", []string{"-live", "-analyze"}},
		{"song with notes", []string{"-song", "x.yaml", "A"}},
		{"unknown flag", []string{"-nope"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseFlags(tt.args, io.Discard); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

// TestConfigPrecedence verifies flags override file and environment values
func TestConfigPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wavetone.yaml")
	if err := os.WriteFile(path, []byte("sample_rate: 22050\nvolume: 40\ntuning: 432\n"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	t.Setenv(config.EnvVolume, "60")

	o := mustParse(t, "-config", path, "-tuning", "440")
	cfg, err := config.Load(o.configPath)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	applyFlags(cfg, o)

	if cfg.SampleRate != 22050 {
		t.Errorf("Expected file sample rate 22050, got %d", cfg.SampleRate)
	}
	if cfg.Volume != 60 {
		t.Errorf("Expected env volume 60, got %d", cfg.Volume)
	}
	if cfg.Tuning != 440 {
		t.Errorf("Expected flag tuning 440, got %d", cfg.Tuning)
	}
}

// TestLoadSongDefault verifies no arguments play A4 for the default time
func TestLoadSongDefault(t *testing.T) {
	s, err := loadSong(mustParse(t))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(s.Steps) != 1 {
		t.Fatalf("Expected 1 step, got %d", len(s.Steps))
	}
	if s.Steps[0].Note != "A" || s.Steps[0].Duration != constant.DefaultPlayDuration {
		t.Errorf("Expected A for %v, got %s", constant.DefaultPlayDuration, s.Steps[0])
	}
}

// TestApplySong verifies song settings apply unless a flag fixed them
func TestApplySong(t *testing.T) {
	s := &song.Song{Tuning: audio.Tuning432, Duration: 250 * time.Millisecond}

	cfg := config.Default()
	applySong(cfg, s, mustParse(t))
	if cfg.Tuning != 432 || cfg.Duration != 0.25 {
		t.Errorf("Expected song tuning 432 and 0.25s, got %d and %v", cfg.Tuning, cfg.Duration)
	}

	cfg = config.Default()
	applySong(cfg, s, mustParse(t, "-tuning", "440", "-duration", "1"))
	if cfg.Tuning != constant.DefaultTuning || cfg.Duration != constant.DefaultNoteDuration.Seconds() {
		t.Errorf("Expected flags to keep config values, got %d and %v", cfg.Tuning, cfg.Duration)
	}
}

// TestRunPlayNull verifies a sequence plays through the null backend
func TestRunPlayNull(t *testing.T) {
	cfg := testConfig(t)
	var stderr bytes.Buffer

	steps := []audio.Step{{Note: "A", Duration: 10 * time.Millisecond}, {Note: "H2", Duration: 10 * time.Millisecond}}
	if err := runPlay(context.Background(), cfg, steps, &stderr); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.Contains(stderr.String(), "unknown note") {
		t.Errorf("Expected unknown note warning, got %q", stderr.String())
	}
}

// TestRunPlayWAV verifies the wav backend writes one gapless file
func TestRunPlayWAV(t *testing.T) {
	cfg := testConfig(t)
	cfg.Backend = "wav"
	cfg.Output = filepath.Join(t.TempDir(), "out.wav")

	steps := []audio.Step{
		{Note: "A", Duration: 50 * time.Millisecond},
		{Rest: true, Duration: 25 * time.Millisecond},
		{Note: "C5", Duration: 25 * time.Millisecond},
	}
	if err := runPlay(context.Background(), cfg, steps, io.Discard); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	info, err := os.Stat(cfg.Output)
	if err != nil {
		t.Fatalf("Expected wav file: %v", err)
	}
	// 100ms at 8000 Hz, 16-bit mono, 44 byte header
	if want := int64(44 + 800*2); info.Size() != want {
		t.Errorf("Expected %d bytes, got %d", want, info.Size())
	}
}

// TestRunAnalyze verifies rendered notes are reported at their expected pitch
func TestRunAnalyze(t *testing.T) {
	cfg := testConfig(t)
	var stdout bytes.Buffer

	steps := []audio.Step{
		{Note: "A4", Duration: 500 * time.Millisecond},
		{Rest: true, Duration: 100 * time.Millisecond},
		{Note: "E5", Duration: 500 * time.Millisecond},
	}
	if err := runAnalyze(context.Background(), cfg, steps, &stdout, io.Discard); err != nil {
		t.Fatalf("Unexpected error: %v\n%s", err, stdout.String())
	}

	out := stdout.String()
	for _, want := range []string{"A4", "440.00", "rest", "E5", "659.26"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected report to contain %q, got:\n%s", want, out)
		}
	}
	if strings.Contains(out, " !") {
		t.Errorf("Expected no mismatches, got:\n%s", out)
	}
}

// TestRunLiveRejectsWAV verifies live mode cannot target a file
func TestRunLiveRejectsWAV(t *testing.T) {
	cfg := testConfig(t)
	cfg.Backend = "wav"
	cfg.Output = filepath.Join(t.TempDir(), "live.wav")

	err := runLive(context.Background(), cfg, constant.LiveNoteDuration)
	if !errors.Is(err, audio.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument, got %v", err)
	}
}

// TestStartOutputHub verifies the output service is reachable through the hub
func TestStartOutputHub(t *testing.T) {
	cfg := testConfig(t)

	hub, err := startOutput(cfg)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	defer hub.StopAll()

	names := hub.Names()
	if len(names) != 1 || names[0] != output.ServiceName {
		t.Errorf("Expected [%s], got %v", output.ServiceName, names)
	}

	out := service.MustGet[*output.Service](hub, output.ServiceName)
	if out.Sink() == nil {
		t.Fatal("Expected an open sink after start")
	}
	if out.Sink().Name() != string(output.BackendNull) {
		t.Errorf("Expected null sink, got %s", out.Sink().Name())
	}
	if out.IsSilent() {
		t.Error("Expected null backend not to count as silent mode")
	}
}

// failingSink consumes n samples, then reports a device error
type failingSink struct {
	n int
}

var errDeviceGone = errors.New("device gone")

func (f *failingSink) Play(ctx context.Context, src audio.Source) error {
	audio.ReadSamples(src, make([]float64, f.n))
	return errDeviceGone
}

// TestPlaySequenceSingleSource verifies a multi-note sequence reaches the sink as one gapless source
func TestPlaySequenceSingleSource(t *testing.T) {
	cfg := testConfig(t)
	seq, err := newSequencer(cfg, io.Discard)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	sink := output.NewNullSink(cfg.OutputOptions())

	steps := []audio.Step{
		{Note: "A", Duration: 10 * time.Millisecond},
		{Rest: true, Duration: 10 * time.Millisecond},
		{Note: "C5", Duration: 10 * time.Millisecond},
	}
	if err := playSequence(context.Background(), seq, sink, steps); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if sink.Plays() != 1 {
		t.Errorf("Expected 1 Play call, got %d", sink.Plays())
	}
	if sink.Samples() != 240 {
		t.Errorf("Expected 240 samples, got %d", sink.Samples())
	}
}

// TestPlaySequenceSinkFailure verifies a sink error names the step that was sounding
func TestPlaySequenceSinkFailure(t *testing.T) {
	cfg := testConfig(t)
	seq, err := newSequencer(cfg, io.Discard)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	steps := []audio.Step{
		{Note: "A", Duration: 10 * time.Millisecond},
		{Note: "C5", Duration: 10 * time.Millisecond},
	}
	err = playSequence(context.Background(), seq, &failingSink{n: 100}, steps)
	if !errors.Is(err, audio.ErrOutputSink) || !errors.Is(err, errDeviceGone) {
		t.Fatalf("Expected ErrOutputSink wrapping the device error, got %v", err)
	}
	if !strings.Contains(err.Error(), "step 1") {
		t.Errorf("Expected failure at step 1, got %v", err)
	}
}
