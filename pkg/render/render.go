// Package render formats dashboard results for the terminal.
package render

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"

	"github.com/stockbuzz/stockbuzz/pkg/market"
)

var (
	colorPrimary = lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7571F9"}
	colorDim     = lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#626262"}
	colorBorder  = lipgloss.AdaptiveColor{Light: "#DBDBDB", Dark: "#383838"}
	colorUp      = lipgloss.AdaptiveColor{Light: "#04B575", Dark: "#25D366"}
	colorDown    = lipgloss.AdaptiveColor{Light: "#D7263D", Dark: "#F25D5D"}
	colorWarn    = lipgloss.AdaptiveColor{Light: "#C77D00", Dark: "#F2B134"}
)

// Printer writes styled output. Colors are only emitted when w is a
// terminal that supports them.
type Printer struct {
	w   io.Writer
	r   *lipgloss.Renderer
	now func() time.Time

	heading lipgloss.Style
	dim     lipgloss.Style
	up      lipgloss.Style
	down    lipgloss.Style
	warn    lipgloss.Style
	border  lipgloss.Style
	header  lipgloss.Style
	cell    lipgloss.Style
	body    lipgloss.Style
}

// New creates a Printer writing to w.
func New(w io.Writer) *Printer {
	r := lipgloss.NewRenderer(w)
	return &Printer{
		w:       w,
		r:       r,
		now:     time.Now,
		heading: r.NewStyle().Bold(true).Foreground(colorPrimary),
		dim:     r.NewStyle().Foreground(colorDim),
		up:      r.NewStyle().Foreground(colorUp),
		down:    r.NewStyle().Foreground(colorDown),
		warn:    r.NewStyle().Foreground(colorWarn).Bold(true),
		border:  r.NewStyle().Foreground(colorBorder),
		header:  r.NewStyle().Bold(true).Foreground(colorPrimary).Padding(0, 1),
		cell:    r.NewStyle().Padding(0, 1),
		body:    r.NewStyle().Width(96),
	}
}

// Heading prints a section title.
func (p *Printer) Heading(title string) {
	fmt.Fprintln(p.w, p.heading.Render(title))
}

// Text prints a paragraph wrapped to the terminal body width.
func (p *Printer) Text(s string) {
	if strings.TrimSpace(s) == "" {
		return
	}
	fmt.Fprintln(p.w, p.body.Render(s))
}

// Line prints a plain line.
func (p *Printer) Line(format string, args ...any) {
	fmt.Fprintf(p.w, format+"\n", args...)
}

// Dim prints a de-emphasized line.
func (p *Printer) Dim(format string, args ...any) {
	fmt.Fprintln(p.w, p.dim.Render(fmt.Sprintf(format, args...)))
}

// Warn prints a highlighted warning line.
func (p *Printer) Warn(format string, args ...any) {
	fmt.Fprintln(p.w, p.warn.Render(fmt.Sprintf(format, args...)))
}

// Table prints rows under headers with rounded borders. An empty row set
// prints empty instead.
func (p *Printer) Table(headers []string, rows [][]string, empty string) {
	if len(rows) == 0 {
		p.Dim("%s", empty)
		return
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(p.border).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return p.header
			}
			return p.cell
		}).
		Headers(headers...).
		Rows(rows...)
	fmt.Fprintln(p.w, t.Render())
}

// Change colors a signed display value such as "+2.4%" or "-0.31".
func (p *Printer) Change(s string) string {
	v := strings.TrimSpace(s)
	switch {
	case v == "":
		return p.dim.Render("-")
	case strings.HasPrefix(v, "-"):
		return p.down.Render(v)
	case strings.HasPrefix(v, "+"):
		return p.up.Render(v)
	}
	if f, err := strconv.ParseFloat(strings.TrimRight(v, "%"), 64); err == nil && f != 0 {
		if f < 0 {
			return p.down.Render(v)
		}
		return p.up.Render(v)
	}
	return v
}

// Sentiment colors a sentiment word by where it falls on the 0-10 scale.
func (p *Printer) Sentiment(label string) string {
	return p.byScore(market.ParseSentiment(label), label)
}

// Score renders a 1-10 rating.
func (p *Printer) Score(v float64) string {
	return p.byScore(v, fmt.Sprintf("%g/10", v))
}

func (p *Printer) byScore(score float64, s string) string {
	switch {
	case s == "":
		return p.dim.Render("-")
	case score >= 7:
		return p.up.Render(s)
	case score <= 3:
		return p.down.Render(s)
	}
	return s
}

// Ago renders t relative to now, or "never" for the zero time.
func (p *Printer) Ago(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.RelTime(t, p.now(), "ago", "from now")
}

// Count renders n with thousands separators.
func Count[T ~int | ~int64](n T) string {
	return humanize.Comma(int64(n))
}

// Bytes renders a byte size such as "8.2 kB".
func Bytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}

// Percent renders a ratio in [0,1] as a percentage.
func Percent(r float64) string {
	return humanize.FtoaWithDigits(r*100, 1) + "%"
}

// Truncate shortens s to n runes, marking the cut with "...".
func Truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if n <= 3 || len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// orDash renders empty strings as "-".
func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
