package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/allbin/serial-console/internal/tui/colors"
)

// ConnState is the client side view of the relay connection.
type ConnState int

const (
	StateConnecting ConnState = iota
	StateConnected
	StateClosed
	StateFailed
)

// StatusBar renders the bottom line: mode, relay address, connection
// indicator, device and traffic counters.
type StatusBar struct {
	addr   string
	device string
	state  ConnState
	err    error
	width  int
}

func NewStatusBar(addr string) *StatusBar {
	return &StatusBar{addr: addr}
}

func (sb *StatusBar) SetWidth(width int) {
	sb.width = width
}

// SetDevice records the device name announced by the relay.
func (sb *StatusBar) SetDevice(device string) {
	sb.device = device
}

func (sb *StatusBar) Device() string {
	return sb.device
}

func (sb *StatusBar) SetConnected() {
	sb.state = StateConnected
	sb.err = nil
}

// SetDisconnected moves to closed, or failed when err is set.
func (sb *StatusBar) SetDisconnected(err error) {
	sb.err = err
	if err != nil {
		sb.state = StateFailed
	} else {
		sb.state = StateClosed
	}
}

func (sb *StatusBar) State() ConnState {
	return sb.state
}

func (sb *StatusBar) indicator() string {
	switch sb.state {
	case StateConnected:
		return lipgloss.NewStyle().Foreground(colors.Green).Render("●")
	case StateConnecting:
		return lipgloss.NewStyle().Foreground(colors.Yellow).Render("○")
	case StateFailed:
		return lipgloss.NewStyle().Foreground(colors.Red).Render("✗")
	default:
		return lipgloss.NewStyle().Foreground(colors.Red).Render("○")
	}
}

// View renders the bar. insert selects the mode badge; follow and display
// describe the console view; rx and tx are byte counters.
func (sb *StatusBar) View(insert, follow bool, display, sending string, rx, tx int, clock string) string {
	width := sb.width
	if width <= 0 {
		width = 80
	}

	badge := lipgloss.NewStyle().Foreground(colors.Base).Bold(true).Padding(0, 1)
	var mode string
	if insert {
		mode = badge.Background(colors.Green).Render("INSERT")
	} else {
		mode = badge.Background(colors.Blue).Render("NORMAL")
	}

	addr := lipgloss.NewStyle().Foreground(colors.Mauve).Bold(true).Padding(0, 1).Render(sb.addr)
	divider := lipgloss.NewStyle().Foreground(colors.Surface2).Padding(0, 1).Render("│")

	left := []string{mode, addr, sb.indicator()}
	if insert {
		left = append(left, lipgloss.NewStyle().Foreground(colors.Peach).Bold(true).Padding(0, 1).
			Render(fmt.Sprintf("[%s] Tab to toggle", sending)))
	}
	if sb.err != nil {
		left = append(left, lipgloss.NewStyle().Foreground(colors.Red).Padding(0, 1).Render(sb.err.Error()))
	}
	left = append(left, divider)
	leftSide := lipgloss.JoinHorizontal(lipgloss.Left, left...)

	device := sb.device
	if device == "" {
		device = "serial"
	}
	view := display
	if !follow {
		view += " PAUSED"
	}
	details := lipgloss.NewStyle().Foreground(colors.Subtext0).Padding(0, 1).
		Render(fmt.Sprintf("⚡ %s  %s  rx %d tx %d", device, view, rx, tx))
	clockView := lipgloss.NewStyle().Foreground(colors.Subtext1).Padding(0, 1).Render(clock)
	rightSide := lipgloss.JoinHorizontal(lipgloss.Left, details, divider, clockView)

	spacerWidth := width - lipgloss.Width(leftSide) - lipgloss.Width(rightSide)
	if spacerWidth < 1 {
		spacerWidth = 1
	}
	spacer := lipgloss.NewStyle().Width(spacerWidth).Render("")

	return lipgloss.NewStyle().
		Foreground(colors.Text).
		Background(colors.Surface0).
		Width(width).
		Render(lipgloss.JoinHorizontal(lipgloss.Left, leftSide, spacer, rightSide))
}
