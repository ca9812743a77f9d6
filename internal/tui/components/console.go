package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/allbin/serial-console/internal/tui/styles"
)

// Console is the scrollable console view. While following it stays pinned
// to the newest output.
type Console struct {
	viewport   viewport.Model
	transcript *Transcript
	follow     bool
}

func NewConsole(width, height int) *Console {
	return &Console{
		viewport:   viewport.New(width, height),
		transcript: NewTranscript(DefaultMaxChunks),
		follow:     true,
	}
}

func (c *Console) SetSize(width, height int) {
	if height < 1 {
		height = 1
	}
	c.viewport.Width = width
	c.viewport.Height = height
	c.refresh()
}

func (c *Console) Width() int {
	return c.viewport.Width
}

func (c *Console) Transcript() *Transcript {
	return c.transcript
}

func (c *Console) Add(chunk Chunk) {
	c.transcript.Add(chunk)
	c.refresh()
}

func (c *Console) MarkTX(seq uint64, status styles.TXStatus) {
	if c.transcript.MarkTX(seq, status) {
		c.refresh()
	}
}

// Notice adds a local, non-traffic line such as a connection error.
func (c *Console) Notice(text string) {
	c.viewport.SetContent(c.content() + "\n" + styles.NoticeStyle.Render(text))
	if c.follow {
		c.viewport.GotoBottom()
	}
}

func (c *Console) Clear() {
	c.transcript.Clear()
	c.refresh()
}

func (c *Console) ToggleHex() {
	c.transcript.ToggleHex()
	c.refresh()
}

func (c *Console) ToggleFollow() {
	c.follow = !c.follow
	if c.follow {
		c.viewport.GotoBottom()
	}
}

func (c *Console) Following() bool {
	return c.follow
}

// Scrolling away from the bottom stops following; reaching it again
// resumes.
func (c *Console) LineUp(n int) {
	c.viewport.LineUp(n)
	c.follow = c.viewport.AtBottom()
}

func (c *Console) LineDown(n int) {
	c.viewport.LineDown(n)
	c.follow = c.viewport.AtBottom()
}

func (c *Console) PageUp() {
	c.viewport.ViewUp()
	c.follow = c.viewport.AtBottom()
}

func (c *Console) PageDown() {
	c.viewport.ViewDown()
	c.follow = c.viewport.AtBottom()
}

func (c *Console) GotoTop() {
	c.viewport.GotoTop()
	c.follow = false
}

func (c *Console) GotoBottom() {
	c.viewport.GotoBottom()
	c.follow = true
}

func (c *Console) content() string {
	return strings.Join(c.transcript.Lines(), "\n")
}

func (c *Console) refresh() {
	c.viewport.SetContent(c.content())
	if c.follow {
		c.viewport.GotoBottom()
	}
}

// Update forwards only mouse wheel events so key bindings stay with the
// model.
func (c *Console) Update(msg tea.Msg) tea.Cmd {
	if _, ok := msg.(tea.MouseMsg); !ok {
		return nil
	}
	var cmd tea.Cmd
	c.viewport, cmd = c.viewport.Update(msg)
	c.follow = c.viewport.AtBottom()
	return cmd
}

func (c *Console) View() string {
	return c.viewport.View()
}
