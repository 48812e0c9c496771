package service

// Service is the lifecycle of a long-lived subsystem: the output device, the live keyboard
//
// Lifecycle:
//  1. Construction with its configuration
//  2. Init(args...) - open resources that can fail early (device probing, tty checks)
//  3. Start() - launch background goroutines
//  4. [playback]
//  5. Stop() - halt goroutines, release the device or terminal
type Service interface {
	// Name returns the unique identifier for this service
	Name() string

	// Dependencies returns names of services that must Init before this one
	// and Stop after it
	Dependencies() []string

	// Init prepares the service; args are service-specific overrides
	Init(args ...any) error

	// Start begins service operation
	// Called after all services have initialized
	Start() error

	// Stop halts the service; must be idempotent
	Stop() error
}
