package panel

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
)

const (
	colorBorder  = "62"
	colorMuted   = "241"
	colorRunning = "42"
	colorExited  = "203"
)

var (
	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(colorBorder))

	titleStyle = lipgloss.NewStyle().Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorMuted))

	runningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorRunning))

	exitedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(colorExited))
)

// formatUptime formats a duration into a compact human-readable string.
func formatUptime(d time.Duration) string {
	if d < time.Minute {
		secs := int(d.Seconds())
		if secs < 1 {
			secs = 1
		}
		return fmt.Sprintf("%ds", secs)
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
	return fmt.Sprintf("%dd", int(d.Hours()/24))
}
