package audio

import (
	"errors"
	"fmt"
)

// Sentinel errors
var (
	// ErrInvalidArgument rejects structural misuse: bad sample rate, degenerate table, negative frequency
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnsupportedStandard is returned for tuning standards outside the supported set
	ErrUnsupportedStandard = fmt.Errorf("%w: unsupported tuning standard", ErrInvalidArgument)

	// ErrUnknownNote is a warning only; the note plays at the fallback frequency
	ErrUnknownNote = errors.New("unknown note")

	// ErrOutputSink wraps failures reported by the output device
	ErrOutputSink = errors.New("output sink failed")
)
