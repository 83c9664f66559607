// Package styles holds the colors and styles shared by the progress view,
// the result display and the banner.
package styles

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	ColorBanner = lipgloss.Color("#5FAFFF")
	colorHeader = lipgloss.Color("#87D7FF")
	colorGood   = lipgloss.Color("#5FD787")
	colorBad    = lipgloss.Color("#FF5F5F")
	colorOther  = lipgloss.Color("#FFD75F")
	colorPlain  = lipgloss.Color("#E4E4E4")
	colorMuted  = lipgloss.Color("#808080")
)

var (
	// Title styles target headings.
	Title = lipgloss.NewStyle().Foreground(colorHeader).Bold(true)
	// Text styles report labels.
	Text = lipgloss.NewStyle().Foreground(colorPlain)
	// Subtle styles rules, hints and secondary columns.
	Subtle = lipgloss.NewStyle().Foreground(colorMuted)
	// Value styles numbers that are fine as they are.
	Value = lipgloss.NewStyle().Foreground(colorGood).Bold(true)
	// Error styles 5XX and transport failure counts.
	Error = lipgloss.NewStyle().Foreground(colorBad).Bold(true)
	// Warn styles non 2XX/5XX counts and tail latency.
	Warn = lipgloss.NewStyle().Foreground(colorOther)

	// Box frames one counter group of the progress view.
	Box = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorMuted).
		Padding(0, 1)

	key = lipgloss.NewStyle().Foreground(colorPlain).Bold(true)
)

// RenderKey renders a key binding hint such as "<q> abort".
func RenderKey(k, desc string) string {
	return key.Render("<"+k+">") + " " + Subtle.Render(desc)
}
