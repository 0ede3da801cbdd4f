// Package ui provides terminal output for the coursesnap CLI.
package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

// ProgressBar wraps a progressbar instance for per-image batch progress.
type ProgressBar struct {
	bar *progressbar.ProgressBar
}

// NewProgressBar creates a progress bar on w. When w is not a terminal the
// bar renders nothing.
func NewProgressBar(w io.Writer, total int, description string) *ProgressBar {
	visible := IsTerminal(w)
	out := w
	if !visible {
		out = io.Discard
	}

	bar := progressbar.NewOptions(
		total,
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionSetWriter(out),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("images"),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(out, "\n")
		}),
		progressbar.OptionSetRenderBlankState(visible),
	)
	return &ProgressBar{bar: bar}
}

// Set moves the bar to current images processed
func (p *ProgressBar) Set(current int) {
	_ = p.bar.Set(current)
}

// Finish completes the bar
func (p *ProgressBar) Finish() {
	_ = p.bar.Finish()
}

// IsTerminal reports whether w is an interactive terminal
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
