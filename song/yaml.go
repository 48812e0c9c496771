package song

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/lixenwraith/wavetone/audio"
)

// yamlSong mirrors the file layout:
//
//	tuning: 432
//	duration: 0.5
//	notes: [A, "C#:0.25", {note: E, duration: 1}, "-", {rest: 0.5}]
type yamlSong struct {
	Tuning   string      `yaml:"tuning"`
	Duration float64     `yaml:"duration"`
	Notes    []yaml.Node `yaml:"notes"`
}

// yamlNote is the mapping form of a note entry
type yamlNote struct {
	Note     string   `yaml:"note"`
	Duration float64  `yaml:"duration"`
	Rest     *float64 `yaml:"rest"`
}

// ParseYAML decodes a YAML song
func ParseYAML(data []byte) (*Song, error) {
	var raw yamlSong
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
	}

	s := &Song{}
	if raw.Tuning != "" {
		std, err := audio.ParseTuningStandard(raw.Tuning)
		if err != nil {
			return nil, err
		}
		s.Tuning = std
	}
	if raw.Duration != 0 {
		d, err := secondsToDuration(raw.Duration)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
		}
		s.Duration = d
	}

	if len(raw.Notes) > MaxSteps {
		return nil, fmt.Errorf("%w: %d notes exceeds %d", ErrSyntax, len(raw.Notes), MaxSteps)
	}
	for i := range raw.Notes {
		step, err := decodeNote(&raw.Notes[i])
		if err != nil {
			return nil, fmt.Errorf("note %d (line %d): %w", i+1, raw.Notes[i].Line, err)
		}
		s.Steps = append(s.Steps, step)
	}

	if len(s.Steps) == 0 {
		return nil, ErrEmptySong
	}
	return s, nil
}

func decodeNote(n *yaml.Node) (audio.Step, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		return ParseStep(n.Value)

	case yaml.MappingNode:
		var note yamlNote
		if err := n.Decode(&note); err != nil {
			return audio.Step{}, fmt.Errorf("%w: %v", ErrSyntax, err)
		}

		if note.Rest != nil {
			if note.Note != "" {
				return audio.Step{}, fmt.Errorf("%w: entry has both note and rest", ErrSyntax)
			}
			d, err := secondsToDuration(*note.Rest)
			if err != nil {
				return audio.Step{}, fmt.Errorf("%w: rest %v", ErrSyntax, err)
			}
			return audio.Step{Rest: true, Duration: d}, nil
		}

		if note.Note == "" {
			return audio.Step{}, fmt.Errorf("%w: entry without note", ErrSyntax)
		}
		step := newStep(note.Note)
		if note.Duration != 0 {
			d, err := secondsToDuration(note.Duration)
			if err != nil {
				return audio.Step{}, fmt.Errorf("%w: %v", ErrSyntax, err)
			}
			step.Duration = d
		}
		return step, nil

	default:
		return audio.Step{}, fmt.Errorf("%w: expected a note name or mapping", ErrSyntax)
	}
}
