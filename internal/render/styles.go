package render

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// ColorMode selects whether ANSI styling is emitted.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

// ParseColorMode accepts auto/always/never plus the on/off aliases.
func ParseColorMode(s string) (ColorMode, error) {
	switch s {
	case "", "auto":
		return ColorAuto, nil
	case "always", "on":
		return ColorAlways, nil
	case "never", "off":
		return ColorNever, nil
	}
	return "", fmt.Errorf("invalid color mode %q (want auto, always or never)", s)
}

// NewLipglossRenderer returns a lipgloss renderer for w with its color
// profile fixed by mode. Auto enables basic ANSI colors only when w is a
// terminal and NO_COLOR is unset.
func NewLipglossRenderer(w io.Writer, mode ColorMode) *lipgloss.Renderer {
	r := lipgloss.NewRenderer(w)
	if colorEnabled(w, mode) {
		r.SetColorProfile(termenv.ANSI)
	} else {
		r.SetColorProfile(termenv.Ascii)
	}
	return r
}

func colorEnabled(w io.Writer, mode ColorMode) bool {
	switch mode {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Styles holds the styling applied to each part of a stack-view line. The
// delta column is text we lay out ourselves and goes through lipgloss.
// Everything taken from the trace payload is a Span, which never reflows
// its input.
type Styles struct {
	DeltaLow    lipgloss.Style
	DeltaMedium lipgloss.Style
	DeltaHigh   lipgloss.Style

	Native      Span
	Interpreted Span
	Syscall     Span
	Value       Span
	Return      Span
	ReturnError Span
	Log         Span
}

// Span wraps payload text in SGR sequences only. Tabs and line layout are
// left exactly as traced; a multi-line value is styled line by line so the
// color survives the newline.
type Span struct {
	style termenv.Style
}

// Render returns text wrapped in the span's style.
func (s Span) Render(text string) string {
	if !strings.Contains(text, "\n") {
		return s.style.Styled(text)
	}
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = s.style.Styled(l)
		}
	}
	return strings.Join(lines, "\n")
}

// NewStyles builds the default palette on r.
func NewStyles(r *lipgloss.Renderer) Styles {
	bold := r.NewStyle().Bold(true)
	profile := r.ColorProfile()
	span := func(color string) Span {
		st := profile.String().Bold()
		if color != "" {
			st = st.Foreground(profile.Color(color))
		}
		return Span{style: st}
	}
	return Styles{
		DeltaLow:    bold.Foreground(lipgloss.Color("4")),
		DeltaMedium: bold.Foreground(lipgloss.Color("3")),
		DeltaHigh:   bold.Foreground(lipgloss.Color("1")),

		Native:      span(""),
		Interpreted: span("2"),
		Syscall:     span("6"),
		Value:       span(""),
		Return:      span(""),
		ReturnError: span("1"),
		Log:         span("5"),
	}
}

// PlainStyles returns styles that emit no escape sequences.
func PlainStyles() Styles {
	return NewStyles(NewLipglossRenderer(io.Discard, ColorNever))
}

// delta returns the style for a severity. SeverityNone renders unstyled.
func (s Styles) delta(sev Severity) (lipgloss.Style, bool) {
	switch sev {
	case SeverityLow:
		return s.DeltaLow, true
	case SeverityMedium:
		return s.DeltaMedium, true
	case SeverityHigh:
		return s.DeltaHigh, true
	}
	return lipgloss.Style{}, false
}
