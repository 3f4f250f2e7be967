package splash

import (
	"errors"
	"strings"
	"testing"

	"github.com/gdamore/tcell/v2"
)

type fakeScreen struct {
	w, h    int
	cells   map[[2]int]rune
	initErr error

	inits, finis, shows int
}

func newFakeScreen(w, h int) *fakeScreen {
	return &fakeScreen{w: w, h: h, cells: make(map[[2]int]rune)}
}

func (f *fakeScreen) Init() error {
	f.inits++
	return f.initErr
}

func (f *fakeScreen) Fini()            { f.finis++ }
func (f *fakeScreen) Size() (int, int) { return f.w, f.h }
func (f *fakeScreen) Show()            { f.shows++ }

func (f *fakeScreen) Clear() {
	f.cells = make(map[[2]int]rune)
}

func (f *fakeScreen) SetContent(x, y int, primary rune, _ []rune, _ tcell.Style) {
	f.cells[[2]int{x, y}] = primary
}

func (f *fakeScreen) row(y int) string {
	var b strings.Builder
	for x := 0; x < f.w; x++ {
		if r, ok := f.cells[[2]int{x, y}]; ok {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	return b.String()
}

func TestShowDrawsCenteredBanner(t *testing.T) {
	screen := newFakeScreen(20, 6)
	s := NewWithScreen(screen, "composer", WithMessage("wait"))

	if err := s.Show(); err != nil {
		t.Fatalf("Show: %v", err)
	}

	if got, want := screen.row(2), "      composer      "; got != want {
		t.Errorf("title row = %q, want %q", got, want)
	}
	if got, want := screen.row(4), "        wait        "; got != want {
		t.Errorf("message row = %q, want %q", got, want)
	}
	if screen.inits != 1 || screen.shows != 1 {
		t.Errorf("inits=%d shows=%d", screen.inits, screen.shows)
	}

	// Second Show is a no-op.
	_ = s.Show()
	if screen.inits != 1 {
		t.Errorf("inits = %d after second Show", screen.inits)
	}
}

func TestShowClipsLongText(t *testing.T) {
	screen := newFakeScreen(4, 3)
	s := NewWithScreen(screen, "composer")

	if err := s.Show(); err != nil {
		t.Fatalf("Show: %v", err)
	}
	if got := screen.row(0); got != "comp" {
		t.Errorf("title row = %q, want comp", got)
	}
}

func TestHideClearsAndFinalizes(t *testing.T) {
	screen := newFakeScreen(20, 6)
	s := NewWithScreen(screen, "composer")

	_ = s.Show()
	if err := s.Hide(); err != nil {
		t.Fatalf("Hide: %v", err)
	}
	if len(screen.cells) != 0 {
		t.Error("Hide should clear the screen")
	}
	if screen.finis != 1 {
		t.Errorf("finis = %d, want 1", screen.finis)
	}

	_ = s.Hide()
	_ = s.Show()
	if screen.finis != 1 || screen.inits != 1 {
		t.Errorf("banner reused after Hide: inits=%d finis=%d", screen.inits, screen.finis)
	}
}

func TestHideWithoutShow(t *testing.T) {
	screen := newFakeScreen(20, 6)
	s := NewWithScreen(screen, "composer")

	if err := s.Hide(); err != nil {
		t.Fatalf("Hide: %v", err)
	}
	if screen.finis != 0 {
		t.Error("Fini called on a screen that was never initialized")
	}
}

func TestShowInitError(t *testing.T) {
	screen := newFakeScreen(20, 6)
	screen.initErr = errors.New("no tty")
	s := NewWithScreen(screen, "composer")

	if err := s.Show(); !errors.Is(err, screen.initErr) {
		t.Fatalf("Show error = %v", err)
	}
	if err := s.Hide(); err != nil {
		t.Fatalf("Hide: %v", err)
	}
	if screen.finis != 0 {
		t.Error("Fini called after a failed Init")
	}
}
