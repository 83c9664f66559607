package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var levels = []string{" ", "▁", "▂", "▃", "▄", "▅", "▆", "▇", "█"}

// Sparkline renders the last Width values as a one-line bar chart.
type Sparkline struct {
	Data  []float64
	Width int
	Style lipgloss.Style
	Label string
}

func NewSparkline(width int, label string, style lipgloss.Style) Sparkline {
	return Sparkline{
		Width: width,
		Label: label,
		Style: style,
		Data:  make([]float64, 0, width),
	}
}

func (s *Sparkline) Add(v float64) {
	s.Data = append(s.Data, v)
	if len(s.Data) > s.Width {
		s.Data = s.Data[len(s.Data)-s.Width:]
	}
}

func (s *Sparkline) Reset() {
	s.Data = s.Data[:0]
}

func (s Sparkline) View() string {
	if s.Width <= 0 {
		return ""
	}

	// window max
	peak := 0.0
	for _, v := range s.Data {
		peak = max(peak, v)
	}

	var graph strings.Builder
	for _, v := range s.Data {
		idx := 0
		if peak > 0 {
			idx = int(v / peak * float64(len(levels)-1))
		}
		idx = min(max0(idx), len(levels)-1)
		graph.WriteString(levels[idx])
	}
	if pad := s.Width - len(s.Data); pad > 0 {
		graph.WriteString(strings.Repeat(" ", pad))
	}

	return s.Style.Render(s.Label) + "\n" + s.Style.Render(graph.String())
}

func max0(i int) int {
	if i < 0 {
		return 0
	}
	return i
}
