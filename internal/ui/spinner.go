// Package ui provides terminal UI helpers.
package ui

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
)

// Spinner shows progress while waiting for the first chunk of a response.
// It is safe to stop from another goroutine.
type Spinner struct {
	s *spinner.Spinner
	w io.Writer

	mu      sync.Mutex
	running bool
}

// NewSpinner creates a spinner on stderr with the given message.
func NewSpinner(msg string) *Spinner {
	return NewSpinnerTo(os.Stderr, msg)
}

// NewSpinnerTo creates a spinner that draws on w. It only animates when w
// is a terminal.
func NewSpinnerTo(w io.Writer, msg string) *Spinner {
	f, isFile := w.(*os.File)
	opt := spinner.WithWriter(w)
	if isFile {
		opt = spinner.WithWriterFile(f)
	}
	s := spinner.New(spinner.CharSets[14], 80*time.Millisecond, opt)
	if !isFile {
		s.Disable()
	}
	s.Suffix = "  " + msg
	s.Color("cyan")
	return &Spinner{s: s, w: w}
}

// Start begins the spinner animation.
func (sp *Spinner) Start() {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	sp.running = true
	sp.s.Start()
}

// Stop halts the spinner and clears the line. Calling it twice is harmless.
func (sp *Spinner) Stop() {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	if !sp.running {
		return
	}
	sp.running = false
	sp.s.Stop()
}

// Success stops the spinner and prints a green check.
func (sp *Spinner) Success(msg string) {
	sp.Stop()
	color.New(color.FgGreen).Fprintf(sp.w, "  ✓ %s\n", msg)
}

// Fail stops the spinner and prints a red cross.
func (sp *Spinner) Fail(msg string) {
	sp.Stop()
	color.New(color.FgRed).Fprintf(sp.w, "  ✗ %s\n", msg)
}
