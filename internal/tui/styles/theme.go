package styles

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/allbin/serial-console/internal/tui/colors"
)

var (
	// Console area
	ContentBorderStyle = lipgloss.NewStyle().
				BorderTop(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderForeground(colors.Surface1)

	BannerStyle = lipgloss.NewStyle().
			Foreground(colors.Mauve).
			Bold(true)

	TimestampStyle = lipgloss.NewStyle().
			Foreground(colors.Subtext0)

	RXStyle = lipgloss.NewStyle().
		Foreground(colors.Sky).
		Bold(true)

	NoticeStyle = lipgloss.NewStyle().
			Foreground(colors.Overlay0).
			Italic(true)

	// Input line
	InputStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colors.Surface2).
			Padding(0, 1)

	// Port listing
	TableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(colors.Mauve)

	TableBaseStyle = lipgloss.NewStyle().
			Foreground(colors.Text).
			BorderForeground(colors.Surface2).
			Align(lipgloss.Left)
)

// TXStatus is the delivery state of a line typed into the console.
type TXStatus int

const (
	TXPending TXStatus = iota
	TXWritten
	TXFailed
)

func (s TXStatus) String() string {
	switch s {
	case TXPending:
		return "TX ○"
	case TXWritten:
		return "TX ✓"
	case TXFailed:
		return "TX ✗"
	default:
		return "TX"
	}
}

// TXStyle colours a transmitted line by its delivery state.
func TXStyle(status TXStatus) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)
	switch status {
	case TXWritten:
		return base.Foreground(colors.Green)
	case TXFailed:
		return base.Foreground(colors.Red)
	default:
		return base.Foreground(colors.Yellow)
	}
}
