package audio

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/lixenwraith/wavetone/constant"
)

// TuningStandard is the A4 reference frequency in Hz
type TuningStandard int

const (
	Tuning440 TuningStandard = 440
	Tuning432 TuningStandard = 432
)

// SupportedTunings lists every standard with a registry
var SupportedTunings = []TuningStandard{Tuning440, Tuning432}

// Valid reports whether a registry exists for t
func (t TuningStandard) Valid() bool {
	_, ok := registries[t]
	return ok
}

func (t TuningStandard) String() string {
	return strconv.Itoa(int(t))
}

// ParseTuningStandard accepts "440", "432", optionally suffixed with "Hz"
func ParseTuningStandard(s string) (TuningStandard, error) {
	v := strings.TrimSpace(strings.ToLower(s))
	v = strings.TrimSuffix(v, "hz")
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedStandard, s)
	}
	t := TuningStandard(n)
	if !t.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedStandard, s)
	}
	return t, nil
}

// PitchClasses in ascending order from C
var PitchClasses = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// letterSemitones maps natural note letters to semitones above C
var letterSemitones = map[byte]int{'C': 0, 'D': 2, 'E': 4, 'F': 5, 'G': 7, 'A': 9, 'B': 11}

const octaveCount = constant.MaxOctave - constant.MinOctave + 1

// NoteRegistry maps note names to Hz for one tuning standard
// Built once at init, read-only afterwards
type NoteRegistry struct {
	standard TuningStandard
	freqs    [octaveCount][12]float64
}

var registries map[TuningStandard]*NoteRegistry

func init() {
	registries = make(map[TuningStandard]*NoteRegistry, len(SupportedTunings))
	for _, t := range SupportedTunings {
		registries[t] = newNoteRegistry(t)
	}
}

// newNoteRegistry computes equal temperament frequencies relative to A4
func newNoteRegistry(t TuningStandard) *NoteRegistry {
	r := &NoteRegistry{standard: t}
	ref := float64(t)
	for oct := 0; oct < octaveCount; oct++ {
		for pc := 0; pc < 12; pc++ {
			semis := float64(pc-9) + 12*float64(oct+constant.MinOctave-constant.DefaultOctave)
			hz := ref * math.Pow(2, semis/12)
			r.freqs[oct][pc] = math.Round(hz*100) / 100
		}
	}
	return r
}

// RegistryFor returns the registry of a supported standard
func RegistryFor(t TuningStandard) (*NoteRegistry, error) {
	r, ok := registries[t]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedStandard, int(t))
	}
	return r, nil
}

// Standard returns the tuning this registry was built for
func (r *NoteRegistry) Standard() TuningStandard {
	return r.standard
}

// Lookup returns the frequency of name; ok is false for names the registry does not define
func (r *NoteRegistry) Lookup(name string) (hz float64, ok bool) {
	pc, oct, ok := parseNote(name)
	if !ok {
		return 0, false
	}
	return r.freqs[oct-constant.MinOctave][pc], true
}

// Frequency returns the frequency of name, or the fallback for unknown names
func (r *NoteRegistry) Frequency(name string) float64 {
	if hz, ok := r.Lookup(name); ok {
		return hz
	}
	return constant.FallbackFrequency
}

// Names returns the pitch classes every registry defines
func (r *NoteRegistry) Names() []string {
	return PitchClasses[:]
}

// parseNote splits "C#5", "bb", "A" into pitch class and octave
// Only the spellings of the 12 pitch classes and their flat aliases are accepted
func parseNote(name string) (pc, octave int, ok bool) {
	s := strings.TrimSpace(name)
	if s == "" {
		return 0, 0, false
	}

	letter := s[0]
	if letter >= 'a' && letter <= 'z' {
		letter -= 'a' - 'A'
	}
	pc, ok = letterSemitones[letter]
	if !ok {
		return 0, 0, false
	}
	s = s[1:]

	if len(s) > 0 {
		switch s[0] {
		case '#':
			// No E# or B#
			if letter == 'E' || letter == 'B' {
				return 0, 0, false
			}
			pc++
			s = s[1:]
		case 'b':
			// No Cb or Fb
			if letter == 'C' || letter == 'F' {
				return 0, 0, false
			}
			pc--
			s = s[1:]
		}
	}

	octave = constant.DefaultOctave
	if s != "" {
		if len(s) != 1 || s[0] < '0' || s[0] > '9' {
			return 0, 0, false
		}
		octave = int(s[0] - '0')
		if octave < constant.MinOctave || octave > constant.MaxOctave {
			return 0, 0, false
		}
	}
	return pc, octave, true
}

// Resolution is the outcome of resolving one note name
type Resolution struct {
	Name      string
	Frequency float64
	Known     bool
}

// ResolveNote resolves name under t; unknown names resolve to the fallback with Known=false
func ResolveNote(name string, t TuningStandard) (Resolution, error) {
	r, err := RegistryFor(t)
	if err != nil {
		return Resolution{}, err
	}
	hz, ok := r.Lookup(name)
	if !ok {
		hz = constant.FallbackFrequency
	}
	return Resolution{Name: name, Frequency: hz, Known: ok}, nil
}

// Resolve returns the frequency of name under t
// Only an unsupported standard is an error; unknown names play at the fallback frequency
func Resolve(name string, t TuningStandard) (float64, error) {
	res, err := ResolveNote(name, t)
	if err != nil {
		return 0, err
	}
	return res.Frequency, nil
}
