package song

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/lixenwraith/wavetone/audio"
)

// TestRunLua verifies the song builder functions
func TestRunLua(t *testing.T) {
	src := `
tuning(432)
duration(0.5)
note("A")
note("C#", 0.25)
rest()
rest(1)
for _, n in ipairs({"C", "E", "G"}) do
  note(n, 0.125)
end
`
	s, err := RunLua(src)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if s.Tuning != audio.Tuning432 {
		t.Errorf("Expected tuning 432, got %d", s.Tuning)
	}
	if s.Duration != 500*time.Millisecond {
		t.Errorf("Expected duration 500ms, got %v", s.Duration)
	}

	expected := []audio.Step{
		{Note: "A"},
		{Note: "C#", Duration: 250 * time.Millisecond},
		{Rest: true},
		{Rest: true, Duration: time.Second},
		{Note: "C", Duration: 125 * time.Millisecond},
		{Note: "E", Duration: 125 * time.Millisecond},
		{Note: "G", Duration: 125 * time.Millisecond},
	}
	if len(s.Steps) != len(expected) {
		t.Fatalf("Expected %d steps, got %d", len(expected), len(s.Steps))
	}
	for i, want := range expected {
		if s.Steps[i] != want {
			t.Errorf("Step %d: expected %+v, got %+v", i, want, s.Steps[i])
		}
	}
}

// TestRunLuaErrors verifies script failures are syntax errors
func TestRunLuaErrors(t *testing.T) {
	testCases := []struct {
		name string
		src  string
		want error
	}{
		{"parse", `note("A"`, ErrSyntax},
		{"runtime", `error("boom")`, ErrSyntax},
		{"bad_tuning", `tuning(415) note("A")`, ErrSyntax},
		{"negative_length", `note("A", -1)`, ErrSyntax},
		{"missing_name", `note()`, ErrSyntax},
		{"no_file_access", `dofile("/etc/passwd")`, ErrSyntax},
		{"no_os", `os.exit(1)`, ErrSyntax},
		{"empty", `local x = 1`, ErrEmptySong},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := RunLua(tc.src); !errors.Is(err, tc.want) {
				t.Errorf("Expected %v, got %v", tc.want, err)
			}
		})
	}
}

// TestRunLuaStepLimit verifies runaway scripts stop at MaxSteps
func TestRunLuaStepLimit(t *testing.T) {
	_, err := RunLua(`while true do note("A") end`)
	if !errors.Is(err, ErrSyntax) {
		t.Fatalf("Expected ErrSyntax, got %v", err)
	}
	if !strings.Contains(err.Error(), "exceeds") {
		t.Errorf("Expected step limit message, got %v", err)
	}
}
