package keyboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/lixenwraith/wavetone/audio"
)

func newTestSession(t *testing.T) (*Session, tcell.SimulationScreen) {
	t.Helper()
	screen := tcell.NewSimulationScreen("UTF-8")
	if err := screen.Init(); err != nil {
		t.Fatalf("Failed to init simulation screen: %v", err)
	}
	screen.SetSize(80, 24)

	s, err := NewSession(screen, audio.Tuning440)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	t.Cleanup(s.Fini)
	return s, screen
}

func newTestLive(t *testing.T) *audio.Live {
	t.Helper()
	table, err := audio.NewSineTable(64)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	osc, err := audio.NewOscillator(8000, table)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	live, err := audio.NewLive(osc, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	return live
}

// runSession runs s until it returns or the test deadline passes
func runSession(t *testing.T, ctx context.Context, s *Session, live *audio.Live) error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, live) }()

	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("Session did not return")
		return nil
	}
}

// TestSessionTriggersNotes verifies key presses reach the live source in order
func TestSessionTriggersNotes(t *testing.T) {
	s, screen := newTestSession(t)
	live := newTestLive(t)

	screen.InjectKey(tcell.KeyRune, 'h', tcell.ModNone)
	screen.InjectKey(tcell.KeyRune, 'x', tcell.ModNone)
	screen.InjectKey(tcell.KeyRune, 'h', tcell.ModNone)
	screen.InjectKey(tcell.KeyRune, 'q', tcell.ModNone)
	screen.InjectKey(tcell.KeyEscape, 0, tcell.ModNone)

	if err := runSession(t, context.Background(), s, live); err != nil {
		t.Fatalf("Expected nil on quit, got %v", err)
	}

	if s.Played() != 2 {
		t.Errorf("Expected 2 notes played, got %d", s.Played())
	}
	if s.Last() != "A5" {
		t.Errorf("Expected last note A5, got %s", s.Last())
	}
	if s.Octave() != 5 {
		t.Errorf("Expected octave 5, got %d", s.Octave())
	}

	// Rendering goroutine applies the queued events; the latest wins
	live.Next()
	cur := live.Current()
	if cur == nil {
		t.Fatal("Expected a current note")
	}
	if cur.Note != "A5" || cur.Frequency != 880 {
		t.Errorf("Expected A5 at 880 Hz, got %s at %v", cur.Note, cur.Frequency)
	}
	if live.State() != audio.StateSounding {
		t.Errorf("Expected Sounding, got %v", live.State())
	}
}

// TestSessionQuitKeys verifies each quit binding ends the session
func TestSessionQuitKeys(t *testing.T) {
	tests := []struct {
		name string
		key  tcell.Key
		r    rune
		mod  tcell.ModMask
	}{
		{"escape", tcell.KeyEscape, 0, tcell.ModNone},
		{"ctrl-c", tcell.KeyCtrlC, 0, tcell.ModNone},
		{"ctrl-q", tcell.KeyRune, 'q', tcell.ModCtrl},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, screen := newTestSession(t)
			screen.InjectKey(tt.key, tt.r, tt.mod)
			if err := runSession(t, context.Background(), s, newTestLive(t)); err != nil {
				t.Errorf("Expected nil, got %v", err)
			}
			if s.Played() != 0 {
				t.Errorf("Expected no notes, got %d", s.Played())
			}
		})
	}
}

// TestSessionContextCancel verifies Run returns when its context ends
func TestSessionContextCancel(t *testing.T) {
	s, _ := newTestSession(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := runSession(t, ctx, s, newTestLive(t))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected DeadlineExceeded, got %v", err)
	}
}

// TestSessionService verifies the service contract without a terminal
func TestSessionService(t *testing.T) {
	s, _ := newTestSession(t)

	if s.Name() != "keyboard" {
		t.Errorf("Expected name keyboard, got %s", s.Name())
	}
	if deps := s.Dependencies(); len(deps) != 1 || deps[0] != "output" {
		t.Errorf("Expected dependency on output, got %v", deps)
	}
	if err := s.Init(); err != nil {
		t.Errorf("Expected Init to keep the provided screen, got %v", err)
	}
	if err := s.Start(); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	// Idempotent
	if err := s.Stop(); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}

	if err := s.Run(context.Background(), nil); !errors.Is(err, audio.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for nil live, got %v", err)
	}
}

// TestNewSessionRejectsTuning verifies unsupported standards fail
func TestNewSessionRejectsTuning(t *testing.T) {
	if _, err := NewSession(nil, audio.TuningStandard(415)); !errors.Is(err, audio.ErrUnsupportedStandard) {
		t.Errorf("Expected ErrUnsupportedStandard, got %v", err)
	}

	s, err := NewSession(nil, audio.Tuning432)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := s.Start(); err == nil {
		t.Error("Expected error starting without a screen")
	}
	if err := s.Stop(); err != nil {
		t.Errorf("Expected Stop without a screen to succeed, got %v", err)
	}
}

// TestSessionOctaveConcurrentRead verifies Octave may be read while Run shifts the keyboard
func TestSessionOctaveConcurrentRead(t *testing.T) {
	s, screen := newTestSession(t)

	screen.InjectKey(tcell.KeyRune, 'x', tcell.ModNone)
	screen.InjectKey(tcell.KeyRune, 'x', tcell.ModNone)
	screen.InjectKey(tcell.KeyRune, 'z', tcell.ModNone)
	screen.InjectKey(tcell.KeyEscape, 0, tcell.ModNone)

	live := newTestLive(t)
	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background(), live) }()

	deadline := time.After(2 * time.Second)
	for {
		if o := s.Octave(); o < 4 || o > 6 {
			t.Fatalf("Expected octave between 4 and 6, got %d", o)
		}
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("Expected nil on quit, got %v", err)
			}
			if s.Octave() != 5 {
				t.Errorf("Expected octave 5, got %d", s.Octave())
			}
			return
		case <-deadline:
			t.Fatal("Session did not return")
		default:
		}
	}
}
