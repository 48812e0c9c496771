package song

import (
	"context"
	"fmt"
	"os"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/lixenwraith/wavetone/audio"
)

// ScriptTimeout bounds the run time of a Lua song script
const ScriptTimeout = 5 * time.Second

// LoadLua runs the Lua song script at path
func LoadLua(path string) (*Song, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := RunLua(string(src))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// RunLua executes a song script. The script builds the song by calling:
//
//	tuning(432)        reference standard
//	duration(0.5)      default seconds per note
//	note("A", 0.25)    a note, length optional
//	rest(0.5)          silence, length optional
//
// Only the base, table, string and math libraries are available
func RunLua(src string) (*Song, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()

	for _, lib := range []struct {
		name string
		open lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(lib.open))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}
	// No file access from song scripts
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require"} {
		L.SetGlobal(name, lua.LNil)
	}

	ctx, cancel := context.WithTimeout(context.Background(), ScriptTimeout)
	defer cancel()
	L.SetContext(ctx)

	b := &luaBuilder{song: &Song{}}
	b.register(L)

	if err := L.DoString(src); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
	}
	if len(b.song.Steps) == 0 {
		return nil, ErrEmptySong
	}
	return b.song, nil
}

// luaBuilder accumulates the song while the script runs
type luaBuilder struct {
	song *Song
}

func (b *luaBuilder) register(L *lua.LState) {
	L.SetGlobal("tuning", L.NewFunction(b.tuning))
	L.SetGlobal("duration", L.NewFunction(b.duration))
	L.SetGlobal("note", L.NewFunction(b.note))
	L.SetGlobal("rest", L.NewFunction(b.rest))
}

func (b *luaBuilder) tuning(L *lua.LState) int {
	std := audio.TuningStandard(L.CheckInt(1))
	if !std.Valid() {
		L.ArgError(1, fmt.Sprintf("unsupported tuning standard %d", int(std)))
		return 0
	}
	b.song.Tuning = std
	return 0
}

func (b *luaBuilder) duration(L *lua.LState) int {
	b.song.Duration = checkSeconds(L, 1)
	return 0
}

func (b *luaBuilder) note(L *lua.LState) int {
	step := newStep(L.CheckString(1))
	if L.GetTop() >= 2 {
		step.Duration = checkSeconds(L, 2)
	}
	b.add(L, step)
	return 0
}

func (b *luaBuilder) rest(L *lua.LState) int {
	step := audio.Step{Rest: true}
	if L.GetTop() >= 1 {
		step.Duration = checkSeconds(L, 1)
	}
	b.add(L, step)
	return 0
}

func (b *luaBuilder) add(L *lua.LState, step audio.Step) {
	if len(b.song.Steps) >= MaxSteps {
		L.RaiseError("song exceeds %d notes", MaxSteps)
		return
	}
	b.song.Steps = append(b.song.Steps, step)
}

// checkSeconds reads argument n as a positive length in seconds
func checkSeconds(L *lua.LState, n int) time.Duration {
	d, err := secondsToDuration(float64(L.CheckNumber(n)))
	if err != nil {
		L.ArgError(n, err.Error())
		return 0
	}
	return d
}
