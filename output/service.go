package output

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/lixenwraith/wavetone/audio"
)

// ServiceName is the hub name of the output service
const ServiceName = "output"

// Service wraps sink selection as a service.Service
// Device backends that fail to open degrade to a paced null sink (silent mode)
type Service struct {
	backend Backend
	opts    Options

	mu     sync.Mutex
	sink   Sink
	silent atomic.Bool
}

// NewService creates an output service for backend
func NewService(backend Backend, opts Options) *Service {
	return &Service{backend: backend, opts: opts}
}

// Name implements Service
func (s *Service) Name() string {
	return ServiceName
}

// Dependencies implements Service
func (s *Service) Dependencies() []string {
	return nil
}

// Init implements Service
// args[0]: Backend - overrides the constructor backend
// Opens the sink; device failures switch to silent mode instead of failing
func (s *Service) Init(args ...any) error {
	if len(args) > 0 {
		if b, ok := args[0].(Backend); ok {
			s.backend = b
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sink != nil {
		return nil
	}

	sink, err := Open(s.backend, s.opts)
	if err == nil {
		s.sink = sink
		log.Printf("output: using %s at %d Hz", sink.Name(), s.opts.SampleRate)
		return nil
	}

	if !s.degradable(err) {
		return err
	}

	log.Printf("output: %s unavailable, running silent: %v", s.backend, err)
	s.sink = NewPacedNullSink(s.opts)
	s.silent.Store(true)
	return nil
}

// degradable reports whether err is a device failure rather than a usage error
func (s *Service) degradable(err error) bool {
	switch s.backend {
	case BackendWAV, BackendNull:
		return false
	}
	return !errors.Is(err, ErrUnknownBackend) && !errors.Is(err, audio.ErrInvalidArgument)
}

// Start implements Service; sinks need no background work before the first Play
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sink == nil {
		return fmt.Errorf("output service not initialized")
	}
	return nil
}

// Stop implements Service
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sink == nil {
		return nil
	}
	err := s.sink.Close()
	s.sink = nil
	return err
}

// Sink returns the active sink, nil before Init or after Stop
func (s *Service) Sink() Sink {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sink
}

// IsSilent returns true if no device could be opened
func (s *Service) IsSilent() bool {
	return s.silent.Load()
}
