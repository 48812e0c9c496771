package keyboard

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/gdamore/tcell/v2"
	"golang.org/x/term"

	"github.com/lixenwraith/wavetone/audio"
	"github.com/lixenwraith/wavetone/output"
)

// ErrNotTerminal is returned when live mode is started without an interactive stdin
var ErrNotTerminal = errors.New("stdin is not a terminal")

const (
	octaveDownKey = 'z'
	octaveUpKey   = 'x'

	eventBuffer = 100
)

var (
	titleStyle = tcell.StyleDefault.Foreground(tcell.ColorGreen).Bold(true)
	textStyle  = tcell.StyleDefault
	noteStyle  = tcell.StyleDefault.Foreground(tcell.ColorYellow)
	warnStyle  = tcell.StyleDefault.Foreground(tcell.ColorRed)
)

var helpLines = []string{
	"  w e   t y u      sharps",
	" a s d f g h j k   C D E F G A B C",
	" z/x octave down/up, Esc quits",
}

// Session reads key presses from a terminal screen and triggers notes on a Live source
// Implements service.Service; Stop restores the terminal
type Session struct {
	screen   tcell.Screen
	keys     *KeyMap
	registry *audio.NoteRegistry

	mu      sync.Mutex
	live    *audio.Live
	last    string
	played  int
	dropped int

	finiOnce sync.Once
}

// Open checks that stdin is a terminal and initializes a tcell screen on it
func Open() (tcell.Screen, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil, ErrNotTerminal
	}
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("create screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return nil, fmt.Errorf("init screen: %w", err)
	}
	return screen, nil
}

// NewSession creates a session; screen may be nil, in which case Init opens the terminal
func NewSession(screen tcell.Screen, tuning audio.TuningStandard) (*Session, error) {
	registry, err := audio.RegistryFor(tuning)
	if err != nil {
		return nil, err
	}
	return &Session{
		screen:   screen,
		keys:     NewKeyMap(),
		registry: registry,
	}, nil
}

// Name implements Service
func (s *Session) Name() string {
	return "keyboard"
}

// Dependencies implements Service; the device must be open before the terminal is taken over
func (s *Session) Dependencies() []string {
	return []string{output.ServiceName}
}

// Init implements Service
func (s *Session) Init(args ...any) error {
	if s.screen != nil {
		return nil
	}
	screen, err := Open()
	if err != nil {
		return err
	}
	s.screen = screen
	return nil
}

// Start implements Service; the event loop runs in Run
func (s *Session) Start() error {
	if s.screen == nil {
		return fmt.Errorf("keyboard session not initialized")
	}
	return nil
}

// Stop implements Service and restores the terminal
func (s *Session) Stop() error {
	s.Fini()
	return nil
}

// Fini restores the terminal; safe to call more than once
func (s *Session) Fini() {
	if s.screen == nil {
		return
	}
	s.finiOnce.Do(s.screen.Fini)
}

// Run polls key events until the user quits or ctx is cancelled
// Returns nil on a user quit
func (s *Session) Run(ctx context.Context, live *audio.Live) error {
	if s.screen == nil {
		return fmt.Errorf("keyboard session not initialized")
	}
	if live == nil {
		return fmt.Errorf("%w: nil live source", audio.ErrInvalidArgument)
	}
	s.mu.Lock()
	s.live = live
	s.mu.Unlock()

	eventChan := make(chan tcell.Event, eventBuffer)
	go func() {
		for {
			ev := s.screen.PollEvent()
			if ev == nil {
				// Screen finalized
				return
			}
			select {
			case eventChan <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	s.draw()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-eventChan:
			if !s.handleInput(ev) {
				return nil
			}
			s.draw()
		}
	}
}

// handleInput returns false when the user asked to quit
func (s *Session) handleInput(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		if isQuit(ev) {
			return false
		}
		if ev.Key() != tcell.KeyRune {
			return true
		}

		switch r := ev.Rune(); r {
		case octaveDownKey:
			s.shift(-1)
		case octaveUpKey:
			s.shift(1)
		default:
			s.mu.Lock()
			name, ok := s.keys.Note(r)
			s.mu.Unlock()
			if !ok {
				return true
			}
			s.trigger(name)
		}

	case *tcell.EventResize:
		s.screen.Sync()
	}
	return true
}

// isQuit matches Esc, Ctrl-C and Ctrl-Q; some terminals report Ctrl as a rune modifier
func isQuit(ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return true
	case tcell.KeyRune:
		r := ev.Rune()
		return ev.Modifiers()&tcell.ModCtrl != 0 && (r == 'q' || r == 'c')
	}
	return false
}

func (s *Session) trigger(name string) {
	hz := s.registry.Frequency(name)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.live.Trigger(audio.NoteEvent{Note: name, Frequency: hz}) {
		s.last = name
		s.played++
		log.Printf("keyboard: %s %.2f Hz", name, hz)
		return
	}
	s.dropped++
	log.Printf("keyboard: dropped %s, event queue full", name)
}

// Played returns the number of notes handed to the live source
func (s *Session) Played() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.played
}

// Last returns the most recently triggered note name
func (s *Session) Last() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *Session) shift(delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys.Shift(delta)
}

// Octave returns the current base octave; safe while Run is active
func (s *Session) Octave() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keys.Octave()
}

func (s *Session) draw() {
	s.screen.Clear()

	drawText(s.screen, 0, 0, "wavetone live", titleStyle)
	for i, line := range helpLines {
		drawText(s.screen, 0, 2+i, line, textStyle)
	}

	s.mu.Lock()
	last, played, dropped, octave := s.last, s.played, s.dropped, s.keys.Octave()
	s.mu.Unlock()

	status := fmt.Sprintf("tuning %s  octave %d  played %d", s.registry.Standard(), octave, played)
	drawText(s.screen, 0, 3+len(helpLines), status, textStyle)
	if last != "" {
		drawText(s.screen, 0, 4+len(helpLines), "note "+last, noteStyle)
	}
	if dropped > 0 {
		drawText(s.screen, 0, 5+len(helpLines), fmt.Sprintf("dropped %d", dropped), warnStyle)
	}

	s.screen.Show()
}

func drawText(screen tcell.Screen, x, y int, text string, style tcell.Style) {
	for _, r := range text {
		screen.SetContent(x, y, r, nil, style)
		x++
	}
}
