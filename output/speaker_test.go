package output

import (
	"context"
	"errors"
	"testing"
	"time"
)

// TestSpeakerSinkWithoutInit verifies an uninitialized sink refuses Play and closes cleanly
func TestSpeakerSinkWithoutInit(t *testing.T) {
	s := &SpeakerSink{}

	defer func() {
		if r := recover(); r != nil {
			t.Errorf("Speaker sink panicked without initialization: %v", r)
		}
	}()

	if err := s.Play(context.Background(), constSource(t, 8000, 10*time.Millisecond)); !errors.Is(err, ErrPipeClosed) {
		t.Errorf("Expected ErrPipeClosed, got %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Expected Close without init to succeed, got %v", err)
	}
}

// TestSpeakerSinkInvalidOptions verifies options are checked before the device is touched
func TestSpeakerSinkInvalidOptions(t *testing.T) {
	if _, err := NewSpeakerSink(Options{SampleRate: 0, Volume: 1}); err == nil {
		t.Error("Expected error for zero sample rate")
	}
}

// TestSpeakerSinkLifecycle verifies ownership, Close releasing Play, and use after Close
func TestSpeakerSinkLifecycle(t *testing.T) {
	// Speaker initialization may fail in CI/test environments without audio devices
	s, err := NewSpeakerSink(mutedOptions(22050))
	if err != nil {
		t.Logf("Speaker initialization failed (expected in test environment): %v", err)
		return
	}
	defer s.Close()

	// The speaker is process-global; a second sink must not take it over
	if second, err := NewSpeakerSink(mutedOptions(22050)); err == nil {
		second.Close()
		t.Fatal("Expected second speaker sink to be refused while the first is open")
	}

	if err := s.Play(context.Background(), constSource(t, 22050, 20*time.Millisecond)); err != nil {
		t.Errorf("Unexpected error playing a short source: %v", err)
	}

	// An endless source only returns once the sink is closed
	done := make(chan error, 1)
	go func() { done <- s.Play(context.Background(), endlessSource(t, 22050)) }()
	time.Sleep(50 * time.Millisecond)

	if err := s.Close(); err != nil {
		t.Errorf("Unexpected error on Close: %v", err)
	}
	if err := awaitPlay(t, done); !errors.Is(err, ErrPipeClosed) {
		t.Errorf("Expected blocked Play to return ErrPipeClosed, got %v", err)
	}

	// Idempotent
	if err := s.Close(); err != nil {
		t.Errorf("Expected second Close to succeed, got %v", err)
	}
	if err := s.Play(context.Background(), constSource(t, 22050, 10*time.Millisecond)); !errors.Is(err, ErrPipeClosed) {
		t.Errorf("Expected ErrPipeClosed after Close, got %v", err)
	}

	speakerMu.Lock()
	owner := speakerOwner
	speakerMu.Unlock()
	if owner != nil {
		t.Error("Expected Close to release speaker ownership")
	}
}

// TestSpeakerSinkCancel verifies context cancellation ends Play
func TestSpeakerSinkCancel(t *testing.T) {
	s, err := NewSpeakerSink(mutedOptions(22050))
	if err != nil {
		t.Logf("Speaker initialization failed (expected in test environment): %v", err)
		return
	}
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := s.Play(ctx, endlessSource(t, 22050)); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected DeadlineExceeded, got %v", err)
	}
}
