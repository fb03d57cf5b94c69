// Package textwindow splits long text into overlapping whitespace-token windows
// sized for model context limits.
package textwindow

import (
	"errors"
	"strings"
)

// Window generates overlapping token windows
type Window struct {
	size    int
	overlap int
}

// New creates a window of size tokens sharing overlap tokens with its neighbour
func New(size, overlap int) (*Window, error) {
	if size <= 0 {
		return nil, errors.New("window size must be greater than zero")
	}
	if overlap < 0 {
		return nil, errors.New("overlap must be zero or positive")
	}
	if overlap >= size {
		return nil, errors.New("overlap must be smaller than window size")
	}
	return &Window{size: size, overlap: overlap}, nil
}

// Size returns the number of tokens per window
func (w *Window) Size() int { return w.size }

// Overlap returns the number of tokens shared by consecutive windows
func (w *Window) Overlap() int { return w.overlap }

// Generate splits text on whitespace and returns the windows joined by single
// spaces. Text without tokens produces no windows.
func (w *Window) Generate(text string) []string {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return nil
	}

	step := w.size - w.overlap
	var windows []string
	for start := 0; start < len(tokens); start += step {
		end := min(start+w.size, len(tokens))
		windows = append(windows, strings.Join(tokens[start:end], " "))
	}
	return windows
}
