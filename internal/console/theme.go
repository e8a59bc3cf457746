package console

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	colorBlue   = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	colorGreen  = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	colorYellow = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	colorRed    = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	colorGray   = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	colorSubtle = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#CBD5E0"}
)

// Theme styles menu output. A plain theme leaves text untouched.
type Theme struct {
	styled bool

	title      lipgloss.Style
	rule       lipgloss.Style
	read       lipgloss.Style
	unread     lipgloss.Style
	attachment lipgloss.Style
	label      lipgloss.Style
	muted      lipgloss.Style
	failure    lipgloss.Style
}

// PlainTheme renders without escape sequences.
func PlainTheme() Theme {
	return Theme{}
}

// StyledTheme renders for w, adapting colors to its background.
func StyledTheme(w io.Writer) Theme {
	r := lipgloss.NewRenderer(w)
	return Theme{
		styled:     true,
		title:      r.NewStyle().Bold(true).Foreground(colorBlue),
		rule:       r.NewStyle().Foreground(colorSubtle),
		read:       r.NewStyle().Foreground(colorGreen),
		unread:     r.NewStyle().Bold(true).Foreground(colorYellow),
		attachment: r.NewStyle().Foreground(colorBlue),
		label:      r.NewStyle().Bold(true),
		muted:      r.NewStyle().Foreground(colorGray),
		failure:    r.NewStyle().Foreground(colorRed),
	}
}

// ThemeFor picks StyledTheme for terminals and PlainTheme otherwise.
func ThemeFor(w io.Writer) Theme {
	if IsTerminal(w) {
		return StyledTheme(w)
	}
	return PlainTheme()
}

// IsTerminal reports whether w is a terminal device.
func IsTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (t Theme) paint(style lipgloss.Style, s string) string {
	if !t.styled {
		return s
	}
	return style.Render(s)
}
