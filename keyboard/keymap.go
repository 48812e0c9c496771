package keyboard

import (
	"fmt"
	"unicode"

	"github.com/lixenwraith/wavetone/constant"
)

// pianoKeys lays one octave plus the next C over the home row, sharps on the row above
//
//	 w e   t y u
//	a s d f g h j k
var pianoKeys = map[rune]int{
	'a': 0,  // C
	'w': 1,  // C#
	's': 2,  // D
	'e': 3,  // D#
	'd': 4,  // E
	'f': 5,  // F
	't': 6,  // F#
	'g': 7,  // G
	'y': 8,  // G#
	'h': 9,  // A
	'u': 10, // A#
	'j': 11, // B
	'k': 12, // C of the next octave
}

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// KeyMap turns key presses into note names at a movable octave
type KeyMap struct {
	octave int
}

// NewKeyMap starts at the default octave
func NewKeyMap() *KeyMap {
	return &KeyMap{octave: constant.DefaultOctave}
}

// Octave returns the octave of the home row C
func (k *KeyMap) Octave() int { return k.octave }

// Shift moves the keyboard by delta octaves within the supported range
// The top C key must stay playable, so the highest base octave is one below MaxOctave
func (k *KeyMap) Shift(delta int) int {
	k.octave = min(max(k.octave+delta, constant.MinOctave), constant.MaxOctave-1)
	return k.octave
}

// Note returns the note name for r; ok is false for keys that are not piano keys
func (k *KeyMap) Note(r rune) (string, bool) {
	semis, ok := pianoKeys[unicode.ToLower(r)]
	if !ok {
		return "", false
	}
	octave := k.octave + semis/12
	return fmt.Sprintf("%s%d", noteNames[semis%12], octave), true
}
