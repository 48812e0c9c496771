package constant

import "time"

// Audio Hardware Settings
const (
	AudioSampleRate    = 44100
	AudioChannels      = 1
	AudioBitDepth      = 16
	AudioBytesPerFrame = AudioChannels * (AudioBitDepth / 8) // 2 bytes
)

// Wavetable
const (
	// WavetableSize is the default number of samples in one waveform cycle
	WavetableSize = 64

	// MinWavetableSize is the smallest table that can be interpolated
	MinWavetableSize = 2
)

// Tuning
const (
	// DefaultTuning is the A4 reference in Hz
	DefaultTuning = 440

	// FallbackFrequency is played for note names the registry does not know (A4)
	FallbackFrequency = 440.0

	// DefaultOctave applies to note names without an octave suffix
	DefaultOctave = 4

	MinOctave = 0
	MaxOctave = 8
)

// Playback Timing
const (
	// DefaultNoteDuration is used when neither the step nor the song sets one
	DefaultNoteDuration = 500 * time.Millisecond

	// DefaultPlayDuration is the length of the note played with no arguments
	DefaultPlayDuration = 5 * time.Second

	// LiveNoteDuration is how long one key press sounds in live mode
	LiveNoteDuration = 400 * time.Millisecond

	// LiveEventQueue is the buffered capacity of the live note handoff
	LiveEventQueue = 32
)

// Output Buffering
const (
	// AudioBufferDuration determines sink latency and block size
	AudioBufferDuration = 50 * time.Millisecond

	// AudioBufferSamples is frames per block at the default rate
	AudioBufferSamples = (AudioSampleRate * 50) / 1000 // 2205

	// SpeakerBufferDuration is the beep speaker buffer length
	SpeakerBufferDuration = 100 * time.Millisecond

	// AudioDrainTimeout bounds waiting for a device to play out its buffer
	AudioDrainTimeout = 2 * time.Second

	// AudioPollInterval is how often blocking sinks check playback state
	AudioPollInterval = 5 * time.Millisecond
)

// Analysis
const (
	// AnalysisWindow is the FFT size used for pitch detection (power of two)
	AnalysisWindow = 8192
)
