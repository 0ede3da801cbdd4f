package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/coursesnap/coursesnap/internal/export"
	"github.com/coursesnap/coursesnap/internal/models"
	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
)

var cellWidth = func() *runewidth.Condition {
	c := runewidth.NewCondition()
	c.EastAsianWidth = false
	return c
}()

// Printer writes status lines and tables. Color is used only on terminals.
type Printer struct {
	Out     io.Writer
	Err     io.Writer
	NoColor bool
}

// NewPrinter returns a printer that colors output when out is a terminal
func NewPrinter(out, errOut io.Writer) *Printer {
	return &Printer{Out: out, Err: errOut, NoColor: !IsTerminal(out)}
}

func (p *Printer) line(w io.Writer, attr color.Attribute, symbol, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if p.NoColor {
		fmt.Fprintf(w, "%s %s\n", symbol, msg)
		return
	}
	c := color.New(attr)
	c.EnableColor()
	c.Fprintf(w, "%s %s\n", symbol, msg)
}

// Success prints a success message.
func (p *Printer) Success(format string, args ...any) {
	p.line(p.Out, color.FgGreen, "✓", format, args...)
}

// Warning prints a warning message.
func (p *Printer) Warning(format string, args ...any) {
	p.line(p.Err, color.FgYellow, "⚠", format, args...)
}

// Error prints an error message.
func (p *Printer) Error(format string, args ...any) {
	p.line(p.Err, color.FgRed, "✗", format, args...)
}

// Info prints an informational message.
func (p *Printer) Info(format string, args ...any) {
	p.line(p.Out, color.FgCyan, "ℹ", format, args...)
}

// Records prints records as a boxed table under the export headers. Widths
// are measured in terminal cells so CJK text lines up.
func (p *Printer) Records(records []models.CourseRecord) {
	rows := make([][]string, len(records))
	for i, r := range records {
		rows[i] = r.Fields()
	}
	p.Table(export.Headers, rows)
}

// Table prints a formatted table.
func (p *Printer) Table(headers []string, rows [][]string) {
	if len(headers) == 0 {
		return
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = cellWidth.StringWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], cellWidth.StringWidth(cell))
			}
		}
	}

	border := func(left, mid, right string) string {
		parts := make([]string, len(widths))
		for i, w := range widths {
			parts[i] = strings.Repeat("─", w+2)
		}
		return left + strings.Join(parts, mid) + right
	}
	format := func(cells []string) string {
		var b strings.Builder
		b.WriteString("│")
		for i, w := range widths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			b.WriteString(" " + cellWidth.FillRight(cell, w) + " │")
		}
		return b.String()
	}

	header := format(headers)
	if !p.NoColor {
		c := color.New(color.FgCyan, color.Bold)
		c.EnableColor()
		header = c.Sprint(header)
	}

	fmt.Fprintln(p.Out, border("┌", "┬", "┐"))
	fmt.Fprintln(p.Out, header)
	fmt.Fprintln(p.Out, border("├", "┼", "┤"))
	for _, row := range rows {
		fmt.Fprintln(p.Out, format(row))
	}
	fmt.Fprintln(p.Out, border("└", "┴", "┘"))
}
