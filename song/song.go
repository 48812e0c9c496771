package song

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/lixenwraith/wavetone/audio"
)

// Sentinel errors
var (
	ErrEmptySong = errors.New("song has no notes")
	ErrSyntax    = errors.New("song syntax error")
)

// MaxSteps bounds a song so a runaway script cannot exhaust memory
const MaxSteps = 100000

// Song is a parsed note sequence
// Tuning and Duration are zero when the source does not set them
type Song struct {
	Tuning   audio.TuningStandard
	Duration time.Duration // Default for steps without their own length
	Steps    []audio.Step
}

// Total returns the summed length of all steps, using def for steps without one
func (s *Song) Total(def time.Duration) time.Duration {
	if s.Duration > 0 {
		def = s.Duration
	}
	var total time.Duration
	for _, st := range s.Steps {
		if st.Duration > 0 {
			total += st.Duration
		} else {
			total += def
		}
	}
	return total
}

// Load reads a song file, choosing the format by extension (.yaml, .yml, .lua)
func Load(path string) (*Song, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		s, err := ParseYAML(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return s, nil
	case ".lua":
		return LoadLua(path)
	default:
		return nil, fmt.Errorf("%w: %s: unsupported song format (want .yaml or .lua)", ErrSyntax, path)
	}
}

// ParseArgs parses command line notes of the form NOTE[:SECONDS]
func ParseArgs(args []string) (*Song, error) {
	s := &Song{}
	for i, arg := range args {
		step, err := ParseStep(arg)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		s.Steps = append(s.Steps, step)
	}
	if len(s.Steps) == 0 {
		return nil, ErrEmptySong
	}
	return s, nil
}

// ParseStep parses NOTE[:SECONDS]; "-" and "rest" denote silence
// Note names are not resolved here; unknown names play the fallback pitch
func ParseStep(s string) (audio.Step, error) {
	name, secs, hasDur := strings.Cut(strings.TrimSpace(s), ":")
	name = strings.TrimSpace(name)
	if name == "" {
		return audio.Step{}, fmt.Errorf("%w: empty note in %q", ErrSyntax, s)
	}

	step := newStep(name)
	if hasDur {
		d, err := parseSeconds(secs)
		if err != nil {
			return audio.Step{}, fmt.Errorf("%w: %q: %v", ErrSyntax, s, err)
		}
		step.Duration = d
	}
	return step, nil
}

func newStep(name string) audio.Step {
	if isRest(name) {
		return audio.Step{Rest: true}
	}
	return audio.Step{Note: name}
}

func isRest(name string) bool {
	return name == "-" || strings.EqualFold(name, "rest")
}

func parseSeconds(s string) (time.Duration, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("bad duration %q", s)
	}
	return secondsToDuration(v)
}

// secondsToDuration rejects zero, negative and non-finite lengths
func secondsToDuration(v float64) (time.Duration, error) {
	if !(v > 0) || v > math.MaxInt64/float64(time.Second) {
		return 0, fmt.Errorf("duration %v must be positive seconds", v)
	}
	return time.Duration(v * float64(time.Second)), nil
}
