// Package styles renders tandem's console output with lipgloss.
package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	// Colors meet WCAG AA contrast on both black and dark surfaces
	PrimaryColor   = lipgloss.Color("#A78BFA") // Purple
	SecondaryColor = lipgloss.Color("#10B981") // Green
	WarningColor   = lipgloss.Color("#F59E0B") // Amber
	ErrorColor     = lipgloss.Color("#F87171") // Red
	MutedColor     = lipgloss.Color("#9CA3AF") // Gray
	BlueColor      = lipgloss.Color("#60A5FA") // Blue
	BorderColor    = lipgloss.Color("#6B7280") // Gray

	Primary   = lipgloss.NewStyle().Foreground(PrimaryColor)
	Secondary = lipgloss.NewStyle().Foreground(SecondaryColor)
	Warning   = lipgloss.NewStyle().Foreground(WarningColor)
	Error     = lipgloss.NewStyle().Foreground(ErrorColor)
	Muted     = lipgloss.NewStyle().Foreground(MutedColor)

	Title = lipgloss.NewStyle().Bold(true).Foreground(PrimaryColor)
	Label = lipgloss.NewStyle().Bold(true).Foreground(MutedColor).Width(9)
	Link  = lipgloss.NewStyle().Underline(true).Foreground(BlueColor)
	Box   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(BorderColor).Padding(0, 2)
)

// Banner describes the dev session shown to the user once every pipeline
// is up.
type Banner struct {
	Mode    string
	Local   []string
	Network []string
	// Pipelines in start order.
	Pipelines []string
}

// Render lays the banner out in a rounded box. A positive width caps the
// box to the terminal; zero leaves it unbounded.
func (b Banner) Render(width int) string {
	lines := []string{
		Title.Render("tandem") + " " + Muted.Render(b.Mode),
		"",
	}
	lines = append(lines, urlLines("Local", b.Local)...)
	lines = append(lines, urlLines("Network", b.Network)...)
	if len(b.Network) == 0 {
		lines = append(lines, Label.Render("Network")+Muted.Render("not exposed"))
	}
	if len(b.Pipelines) > 0 {
		lines = append(lines, Label.Render("Watching")+Secondary.Render(strings.Join(b.Pipelines, " → ")))
	}

	box := Box
	if width > 0 {
		box = box.MaxWidth(width)
	}
	return box.Render(strings.Join(lines, "\n"))
}

func urlLines(label string, urls []string) []string {
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		out = append(out, Label.Render(label)+Link.Render(u))
	}
	return out
}

// Failure formats an error message for the console.
func Failure(msg string) string {
	return Error.Render("✗ " + msg)
}

// Success formats a completion message for the console.
func Success(msg string) string {
	return Secondary.Render("✓ " + msg)
}
