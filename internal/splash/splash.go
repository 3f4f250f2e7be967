// Package splash draws the startup banner shown while plugins load.
package splash

import (
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/uniseg"
)

// DefaultMessage is drawn under the title.
const DefaultMessage = "loading plugins..."

// Screen is the part of tcell.Screen the banner draws on.
type Screen interface {
	Init() error
	Fini()
	Size() (int, int)
	Clear()
	SetContent(x, y int, primary rune, combining []rune, style tcell.Style)
	Show()
}

// Splash is a full-screen loading banner. It satisfies the shell's
// Preloader interface.
type Splash struct {
	mu      sync.Mutex
	screen  Screen
	title   string
	message string
	style   tcell.Style
	shown   bool
	done    bool
}

// Option configures a Splash.
type Option func(*Splash)

// WithMessage replaces DefaultMessage.
func WithMessage(msg string) Option {
	return func(s *Splash) {
		s.message = msg
	}
}

// WithStyle sets the style of the banner text.
func WithStyle(style tcell.Style) Option {
	return func(s *Splash) {
		s.style = style
	}
}

// New creates a banner on the terminal.
func New(title string, opts ...Option) (*Splash, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	return NewWithScreen(screen, title, opts...), nil
}

// NewWithScreen creates a banner drawing on screen.
func NewWithScreen(screen Screen, title string, opts ...Option) *Splash {
	s := &Splash{
		screen:  screen,
		title:   title,
		message: DefaultMessage,
		style:   tcell.StyleDefault.Bold(true),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Show initializes the screen and draws the banner. Calls after the first
// do nothing.
func (s *Splash) Show() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.shown || s.done {
		return nil
	}
	if err := s.screen.Init(); err != nil {
		return err
	}
	s.shown = true

	s.screen.Clear()
	w, h := s.screen.Size()
	mid := h / 2
	s.drawCentered(mid-1, w, s.title, s.style)
	s.drawCentered(mid+1, w, s.message, tcell.StyleDefault)
	s.screen.Show()
	return nil
}

// Hide clears the banner and gives the terminal back. A banner that was
// never shown is only marked done.
func (s *Splash) Hide() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done {
		return nil
	}
	s.done = true
	if !s.shown {
		return nil
	}
	s.screen.Clear()
	s.screen.Show()
	s.screen.Fini()
	return nil
}

func (s *Splash) drawCentered(y, width int, text string, style tcell.Style) {
	if y < 0 || text == "" {
		return
	}
	x := (width - uniseg.StringWidth(text)) / 2
	if x < 0 {
		x = 0
	}

	g := uniseg.NewGraphemes(text)
	for g.Next() && x < width {
		runes := g.Runes()
		s.screen.SetContent(x, y, runes[0], runes[1:], style)
		x += g.Width()
	}
}
