// Package ui renders merged query-log records to the terminal.
package ui

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/rileyhilliard/dnstail/internal/event"
)

// ColorEnabled resolves a color mode ("auto", "always", "never") against the
// environment. Auto means: color only when w is a terminal and NO_COLOR
// isn't set. Always forces an ANSI profile so styles survive piping.
func ColorEnabled(mode string, w io.Writer) bool {
	switch mode {
	case "never":
		return false
	case "always":
		lipgloss.SetColorProfile(termenv.ANSI256)
		return true
	default:
		if termenv.EnvNoColor() {
			return false
		}
		f, ok := w.(*os.File)
		return ok && term.IsTerminal(int(f.Fd()))
	}
}

// Printer writes display records and notices as single lines. Writes are
// serialized so a concurrent notice never garbles a record mid-line.
type Printer struct {
	mu    sync.Mutex
	w     io.Writer
	color bool

	sources map[string]lipgloss.Style
	next    int

	client  lipgloss.Style
	blocked lipgloss.Style
	notice  lipgloss.Style
	success lipgloss.Style
	muted   lipgloss.Style
	bold    lipgloss.Style
}

// NewPrinter creates a printer writing to w. When color is false all styling
// is skipped and output is plain text.
func NewPrinter(w io.Writer, color bool) *Printer {
	return &Printer{
		w:       w,
		color:   color,
		sources: make(map[string]lipgloss.Style),
		client:  lipgloss.NewStyle().Foreground(ColorClient),
		blocked: lipgloss.NewStyle().Foreground(ColorBlocked),
		notice:  lipgloss.NewStyle().Foreground(ColorNotice),
		success: lipgloss.NewStyle().Foreground(ColorOK),
		muted:   lipgloss.NewStyle().Foreground(ColorMuted),
		bold:    lipgloss.NewStyle().Bold(true),
	}
}

// sourceStyle returns the style for a source label, assigning the next
// palette color on first sight. Caller holds p.mu.
func (p *Printer) sourceStyle(label string) lipgloss.Style {
	if s, ok := p.sources[label]; ok {
		return s
	}
	color := sourcePalette[p.next%len(sourcePalette)]
	p.next++
	s := lipgloss.NewStyle().Foreground(color)
	p.sources[label] = s
	return s
}

// render applies a style unless color is off.
func (p *Printer) render(s lipgloss.Style, text string) string {
	if !p.color {
		return text
	}
	return s.Render(text)
}

// Format builds the display line for a record:
//
//	[HH:MM:SS] [source] [name (addr)] detail
//
// The identity bracket shows the bare address when resolution returned the
// address itself, and is omitted for lines with no client. Blocked queries
// render in bold red.
func (p *Printer) Format(rec event.Record) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.format(rec)
}

func (p *Printer) format(rec event.Record) string {
	srcStyle := p.sourceStyle(rec.Source)

	line := fmt.Sprintf("[%s] %s",
		rec.ReceivedAt.Format("15:04:05"),
		p.render(srcStyle, "["+rec.Source+"]"))

	if rec.Client != "" {
		identity := rec.Client
		if rec.ClientName != "" && rec.ClientName != rec.Client {
			identity = fmt.Sprintf("%s (%s)", rec.ClientName, rec.Client)
		}
		line += " " + p.render(p.client, "["+identity+"]")
	}

	if rec.Action == event.ActionBlocked {
		line += " " + p.render(p.blocked, rec.Detail)
		line = p.render(p.bold, line)
	} else {
		line += " " + rec.Detail
	}

	return line
}

// Record writes a formatted record line.
func (p *Printer) Record(rec event.Record) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, p.format(rec))
}

// Notice writes a one-line status message (source loss, shutdown).
func (p *Printer) Notice(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, p.render(p.notice, msg))
}

// Success writes a highlighted status line (startup banner).
func (p *Printer) Success(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, p.render(p.success, msg))
}

// Bold writes a bold status line.
func (p *Printer) Bold(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, p.render(p.bold, msg))
}

// Muted writes a de-emphasized line (final summary).
func (p *Printer) Muted(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, p.render(p.muted, msg))
}
