package config

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lixenwraith/wavetone/audio"
	"github.com/lixenwraith/wavetone/constant"
	"github.com/lixenwraith/wavetone/output"
)

// Environment variables read by ApplyEnv
const (
	EnvSampleRate = "WAVETONE_SAMPLE_RATE"
	EnvTableSize  = "WAVETONE_TABLE_SIZE"
	EnvTuning     = "WAVETONE_TUNING"
	EnvDuration   = "WAVETONE_DURATION"
	EnvBackend    = "WAVETONE_BACKEND"
	EnvVolume     = "WAVETONE_VOLUME"
	EnvDebug      = "WAVETONE_DEBUG"
)

// Config is the effective run configuration
// Precedence: Default, then LoadFile, then ApplyEnv, then command line flags
type Config struct {
	SampleRate int     `yaml:"sample_rate"`
	TableSize  int     `yaml:"table_size"`
	Tuning     int     `yaml:"tuning"`
	Duration   float64 `yaml:"duration"` // Seconds per note when not given
	Backend    string  `yaml:"backend"`
	Output     string  `yaml:"output"` // WAV path, or "-" for raw PCM on stdout
	Volume     int     `yaml:"volume"` // Percent, 0-100
	Debug      bool    `yaml:"debug"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		SampleRate: constant.AudioSampleRate,
		TableSize:  constant.WavetableSize,
		Tuning:     constant.DefaultTuning,
		Duration:   constant.DefaultNoteDuration.Seconds(),
		Backend:    string(output.BackendAuto),
		Volume:     100,
	}
}

// Load builds the configuration from defaults, an optional file and the environment
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// LoadFile overlays the YAML file at path; keys absent from the file keep their values
// Unknown keys are rejected
func (c *Config) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		if errors.Is(err, io.EOF) {
			return nil // Empty file
		}
		return fmt.Errorf("config %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays environment variables
// Unparseable values are ignored; volume is clamped to 0-100
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvSampleRate); v != "" {
		if val, err := strconv.Atoi(v); err == nil && val > 0 {
			c.SampleRate = val
		}
	}

	if v := os.Getenv(EnvTableSize); v != "" {
		if val, err := strconv.Atoi(v); err == nil && val >= constant.MinWavetableSize {
			c.TableSize = val
		}
	}

	if v := os.Getenv(EnvTuning); v != "" {
		if std, err := audio.ParseTuningStandard(v); err == nil {
			c.Tuning = int(std)
		}
	}

	if v := os.Getenv(EnvDuration); v != "" {
		if val, err := strconv.ParseFloat(v, 64); err == nil && val > 0 && !math.IsInf(val, 0) {
			c.Duration = val
		}
	}

	if v := os.Getenv(EnvBackend); v != "" {
		c.Backend = v
	}

	if v := os.Getenv(EnvVolume); v != "" {
		if val, err := strconv.Atoi(v); err == nil {
			c.Volume = min(max(val, 0), 100)
		}
	}

	if v := os.Getenv(EnvDebug); v != "" {
		if val, err := strconv.ParseBool(v); err == nil {
			c.Debug = val
		}
	}
}

// Validate checks the final configuration
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", audio.ErrInvalidArgument, c.SampleRate)
	}
	if c.TableSize < constant.MinWavetableSize {
		return fmt.Errorf("%w: table size %d below %d", audio.ErrInvalidArgument, c.TableSize, constant.MinWavetableSize)
	}
	if !audio.TuningStandard(c.Tuning).Valid() {
		return fmt.Errorf("%w: %d", audio.ErrUnsupportedStandard, c.Tuning)
	}
	if !(c.Duration > 0) || math.IsInf(c.Duration, 0) {
		return fmt.Errorf("%w: duration %v", audio.ErrInvalidArgument, c.Duration)
	}
	if c.Volume < 0 || c.Volume > 100 {
		return fmt.Errorf("%w: volume %d outside 0-100", audio.ErrInvalidArgument, c.Volume)
	}
	b, err := output.ParseBackend(c.Backend)
	if err != nil {
		return err
	}
	if b == output.BackendWAV && c.Output == "" {
		return fmt.Errorf("%w: wav backend needs an output path", audio.ErrInvalidArgument)
	}
	return nil
}

// TuningStandard returns the configured tuning
func (c *Config) TuningStandard() audio.TuningStandard {
	return audio.TuningStandard(c.Tuning)
}

// NoteDuration returns the default note length
func (c *Config) NoteDuration() time.Duration {
	return time.Duration(c.Duration * float64(time.Second))
}

// OutputOptions returns the sink options for this configuration
func (c *Config) OutputOptions() output.Options {
	return output.Options{
		SampleRate: c.SampleRate,
		Volume:     float64(c.Volume) / 100,
		Path:       c.Output,
	}
}

// BackendName returns the parsed backend; call after Validate
func (c *Config) BackendName() output.Backend {
	b, err := output.ParseBackend(c.Backend)
	if err != nil {
		return output.BackendAuto
	}
	return b
}
