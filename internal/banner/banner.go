package banner

import (
	"ccload/internal/tui/styles"

	"github.com/charmbracelet/lipgloss"
)

const ascii = `
                 __                __
  ______________/ /___  ____ _____/ /
 / ___/ ___/ __  / __ \/ __ '/ __  /
/ /__/ /__/ /_/ / /_/ / /_/ / /_/ /
\___/\___/\__,_/\____/\__,_/\__,_/   `

func GetString() string {
	renderer := lipgloss.DefaultRenderer()

	style := renderer.NewStyle().
		Foreground(styles.ColorBanner).
		Bold(true)

	return "\n" + style.Render(ascii) + "\n" + styles.Subtle.Render("  HTTP load generator, local or distributed") + "\n"
}
