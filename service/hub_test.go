package service

import (
	"errors"
	"reflect"
	"testing"
)

// fakeService records lifecycle calls into a shared log
type fakeService struct {
	name     string
	deps     []string
	log      *[]string
	initErr  error
	startErr error
}

func (f *fakeService) Name() string           { return f.name }
func (f *fakeService) Dependencies() []string { return f.deps }

func (f *fakeService) Init(args ...any) error {
	*f.log = append(*f.log, "init:"+f.name)
	return f.initErr
}

func (f *fakeService) Start() error {
	*f.log = append(*f.log, "start:"+f.name)
	return f.startErr
}

func (f *fakeService) Stop() error {
	*f.log = append(*f.log, "stop:"+f.name)
	return nil
}

// TestHubLifecycleOrder verifies dependencies init first and stop last
func TestHubLifecycleOrder(t *testing.T) {
	var calls []string
	h := NewHub()
	h.Register(&fakeService{name: "keyboard", deps: []string{"output"}, log: &calls})
	h.Register(&fakeService{name: "output", log: &calls})

	if err := h.InitAll(); err != nil {
		t.Fatalf("Unexpected init error: %v", err)
	}
	if err := h.StartAll(); err != nil {
		t.Fatalf("Unexpected start error: %v", err)
	}
	h.StopAll()

	expected := []string{
		"init:output", "init:keyboard",
		"start:output", "start:keyboard",
		"stop:keyboard", "stop:output",
	}
	if !reflect.DeepEqual(calls, expected) {
		t.Errorf("Expected %v, got %v", expected, calls)
	}

	// Second stop is a no-op
	calls = nil
	h.StopAll()
	if len(calls) != 0 {
		t.Errorf("Expected no calls on second StopAll, got %v", calls)
	}
}

// TestHubInitRollback verifies a failed Init stops services already initialized
func TestHubInitRollback(t *testing.T) {
	var calls []string
	boom := errors.New("boom")
	h := NewHub()
	h.Register(&fakeService{name: "a", log: &calls})
	h.Register(&fakeService{name: "b", deps: []string{"a"}, log: &calls, initErr: boom})

	err := h.InitAll()
	if !errors.Is(err, boom) {
		t.Fatalf("Expected wrapped init error, got %v", err)
	}

	expected := []string{"init:a", "init:b", "stop:a"}
	if !reflect.DeepEqual(calls, expected) {
		t.Errorf("Expected %v, got %v", expected, calls)
	}
}

// TestHubStartRollback verifies a failed Start stops every initialized service
func TestHubStartRollback(t *testing.T) {
	var calls []string
	boom := errors.New("boom")
	h := NewHub()
	h.Register(&fakeService{name: "a", log: &calls})
	h.Register(&fakeService{name: "b", deps: []string{"a"}, log: &calls, startErr: boom})

	if err := h.InitAll(); err != nil {
		t.Fatalf("Unexpected init error: %v", err)
	}
	calls = nil

	if err := h.StartAll(); !errors.Is(err, boom) {
		t.Fatalf("Expected wrapped start error, got %v", err)
	}
	expected := []string{"start:a", "start:b", "stop:b", "stop:a"}
	if !reflect.DeepEqual(calls, expected) {
		t.Errorf("Expected %v, got %v", expected, calls)
	}
}

// TestHubDependencyErrors verifies missing and circular dependencies are rejected
func TestHubDependencyErrors(t *testing.T) {
	var calls []string

	h := NewHub()
	h.Register(&fakeService{name: "a", deps: []string{"missing"}, log: &calls})
	if err := h.InitAll(); err == nil {
		t.Error("Expected error for unregistered dependency")
	}

	h = NewHub()
	h.Register(&fakeService{name: "a", deps: []string{"b"}, log: &calls})
	h.Register(&fakeService{name: "b", deps: []string{"a"}, log: &calls})
	if err := h.InitAll(); err == nil {
		t.Error("Expected error for circular dependency")
	}

	if len(calls) != 0 {
		t.Errorf("Expected no lifecycle calls, got %v", calls)
	}
}

// TestHubRegisterDuplicate verifies names are unique
func TestHubRegisterDuplicate(t *testing.T) {
	var calls []string
	h := NewHub()
	if err := h.Register(&fakeService{name: "output", log: &calls}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := h.Register(&fakeService{name: "output", log: &calls}); err == nil {
		t.Error("Expected error for duplicate registration")
	}

	if got := MustGet[*fakeService](h, "output"); got.name != "output" {
		t.Errorf("Expected output service, got %s", got.name)
	}
	if names := h.Names(); !reflect.DeepEqual(names, []string{"output"}) {
		t.Errorf("Expected [output], got %v", names)
	}
}
