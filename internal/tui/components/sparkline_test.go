package components

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestSparklineWindow(t *testing.T) {
	s := NewSparkline(3, "rps", lipgloss.NewStyle())
	for _, v := range []float64{1, 2, 3, 4} {
		s.Add(v)
	}
	if len(s.Data) != 3 || s.Data[0] != 2 {
		t.Fatalf("data = %v", s.Data)
	}

	lines := strings.Split(s.View(), "\n")
	if len(lines) != 2 || lines[0] != "rps" {
		t.Fatalf("view = %q", s.View())
	}
	if !strings.HasSuffix(lines[1], "█") {
		t.Fatalf("peak should render as a full bar: %q", lines[1])
	}

	s.Reset()
	if len(s.Data) != 0 {
		t.Fatal("reset should clear data")
	}
}
