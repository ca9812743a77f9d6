package models

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/allbin/serial-console/internal/tui/components"
	"github.com/allbin/serial-console/internal/tui/keys"
	"github.com/allbin/serial-console/internal/tui/styles"
)

// InputMode is the vim-like editing mode.
type InputMode int

const (
	InputModeNormal InputMode = iota
	InputModeInsert
)

func (m InputMode) String() string {
	if m == InputModeInsert {
		return "INSERT"
	}
	return "NORMAL"
}

const (
	bannerPrefix = "*** Connected to: "
	bannerLimit  = 512
	readSize     = 4096
)

type (
	ConnectedMsg     struct{ Conn net.Conn }
	ConnectFailedMsg struct{ Err error }
	ReceivedMsg      struct {
		Timestamp time.Time
		Data      []byte
	}
	DisconnectedMsg struct{ Err error }
	SentMsg         struct {
		Seq uint64
		Err error
	}
)

// DialFunc opens the connection to the relay.
type DialFunc func(ctx context.Context, addr string) (net.Conn, error)

// Attach is the console client: it shows everything the relay broadcasts
// and sends typed lines back to it.
type Attach struct {
	addr string
	dial DialFunc

	ctx    context.Context
	cancel context.CancelFunc

	connMu  sync.Mutex
	conn    net.Conn
	writeMu sync.Mutex

	console   *components.Console
	statusBar *components.StatusBar
	input     *components.Input
	help      help.Model
	keys      keys.AttachKeys

	mode   InputMode
	ready  bool
	seq    uint64
	banner []byte
	parsed bool
}

func NewAttach(addr, lineEnding string, dial DialFunc) *Attach {
	ctx, cancel := context.WithCancel(context.Background())
	return &Attach{
		addr:      addr,
		dial:      dial,
		ctx:       ctx,
		cancel:    cancel,
		console:   components.NewConsole(0, 0),
		statusBar: components.NewStatusBar(addr),
		input:     components.NewInput(lineEnding),
		help:      help.New(),
		keys:      keys.NewAttachKeys(),
	}
}

func (m *Attach) Init() tea.Cmd {
	return m.connect
}

func (m *Attach) connect() tea.Msg {
	conn, err := m.dial(m.ctx, m.addr)
	if err != nil {
		return ConnectFailedMsg{Err: err}
	}
	return ConnectedMsg{Conn: conn}
}

func (m *Attach) setConn(conn net.Conn) {
	m.connMu.Lock()
	defer m.connMu.Unlock()
	m.conn = conn
}

func (m *Attach) getConn() net.Conn {
	m.connMu.Lock()
	defer m.connMu.Unlock()
	return m.conn
}

// Close stops background work and drops the relay connection.
func (m *Attach) Close() {
	m.cancel()
	m.connMu.Lock()
	defer m.connMu.Unlock()
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
}

// Device is the serial device the relay announced, if any.
func (m *Attach) Device() string {
	return m.statusBar.Device()
}

func (m *Attach) Console() *components.Console {
	return m.console
}

func (m *Attach) Mode() InputMode {
	return m.mode
}

// read issues one Read on conn. It is re-armed after every chunk.
func (m *Attach) read(conn net.Conn) tea.Cmd {
	return func() tea.Msg {
		buf := make([]byte, readSize)
		n, err := conn.Read(buf)
		if n > 0 {
			return ReceivedMsg{Timestamp: time.Now(), Data: buf[:n]}
		}
		if errors.Is(err, io.EOF) || m.ctx.Err() != nil {
			err = nil
		}
		return DisconnectedMsg{Err: err}
	}
}

func (m *Attach) write(seq uint64, data []byte) tea.Cmd {
	conn := m.getConn()
	return func() tea.Msg {
		if conn == nil {
			return SentMsg{Seq: seq, Err: net.ErrClosed}
		}
		m.writeMu.Lock()
		defer m.writeMu.Unlock()
		_, err := conn.Write(data)
		return SentMsg{Seq: seq, Err: err}
	}
}

// observeBanner picks the device name out of the greeting line.
func (m *Attach) observeBanner(data []byte) {
	if m.parsed {
		return
	}
	m.banner = append(m.banner, data...)
	idx := bytes.IndexByte(m.banner, '\n')
	if idx < 0 && len(m.banner) < bannerLimit {
		return
	}
	m.parsed = true
	line := m.banner
	if idx >= 0 {
		line = line[:idx]
	}
	if name, ok := strings.CutPrefix(strings.TrimRight(string(line), "\r"), bannerPrefix); ok {
		m.statusBar.SetDevice(name)
	}
	m.banner = nil
}

func (m *Attach) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		// Input box is three rows, the status bar one, the border one.
		m.console.SetSize(msg.Width, msg.Height-5)
		m.input.SetWidth(msg.Width)
		m.statusBar.SetWidth(msg.Width)
		m.help.Width = msg.Width
		m.ready = true

	case ConnectedMsg:
		m.setConn(msg.Conn)
		m.statusBar.SetConnected()
		cmds = append(cmds, m.read(msg.Conn))

	case ConnectFailedMsg:
		m.statusBar.SetDisconnected(msg.Err)
		m.console.Notice("Connection failed: " + msg.Err.Error())

	case ReceivedMsg:
		m.observeBanner(msg.Data)
		m.console.Add(components.Chunk{Timestamp: msg.Timestamp, Data: msg.Data})
		if conn := m.getConn(); conn != nil {
			cmds = append(cmds, m.read(conn))
		}

	case DisconnectedMsg:
		m.statusBar.SetDisconnected(msg.Err)
		m.console.Notice("Connection closed")
		m.Close()

	case SentMsg:
		status := styles.TXWritten
		if msg.Err != nil {
			status = styles.TXFailed
		}
		m.console.MarkTX(msg.Seq, status)

	case tea.MouseMsg:
		cmds = append(cmds, m.console.Update(msg))

	case tea.KeyMsg:
		if m.mode == InputModeInsert {
			if cmd, handled := m.insertKey(msg); handled {
				return m, cmd
			}
		} else {
			return m, m.normalKey(msg)
		}
	}

	if m.mode == InputModeInsert {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m *Attach) insertKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keys.Escape):
		m.mode = InputModeNormal
		m.input.Blur()
	case key.Matches(msg, m.keys.Enter):
		return m.send(), true
	case msg.Type == tea.KeyUp:
		m.input.NavigateHistoryUp()
	case msg.Type == tea.KeyDown:
		m.input.NavigateHistoryDown()
	case key.Matches(msg, m.keys.ToggleSendMode):
		m.input.ToggleSendingMode()
	case msg.Type == tea.KeyCtrlC:
		m.Close()
		return tea.Quit, true
	default:
		return nil, false
	}
	return nil, true
}

func (m *Attach) normalKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.Close()
		return tea.Quit
	case key.Matches(msg, m.keys.InsertMode):
		m.mode = InputModeInsert
		m.input.Focus()
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.Clear):
		m.console.Clear()
	case key.Matches(msg, m.keys.ToggleHex):
		m.console.ToggleHex()
	case key.Matches(msg, m.keys.ToggleFollow):
		m.console.ToggleFollow()
	case key.Matches(msg, m.keys.ToggleSendMode):
		m.input.ToggleSendingMode()
	case key.Matches(msg, m.keys.Up):
		m.console.LineUp(1)
	case key.Matches(msg, m.keys.Down):
		m.console.LineDown(1)
	case key.Matches(msg, m.keys.PageUp):
		m.console.PageUp()
	case key.Matches(msg, m.keys.PageDown):
		m.console.PageDown()
	case key.Matches(msg, m.keys.GotoTop):
		m.console.GotoTop()
	case key.Matches(msg, m.keys.GotoBottom):
		m.console.GotoBottom()
	}
	return nil
}

// send queues the current input line for the relay.
func (m *Attach) send() tea.Cmd {
	value := m.input.Value()
	if value == "" || m.getConn() == nil {
		return nil
	}
	data, err := m.input.Encode()
	if err != nil {
		m.console.Notice(err.Error())
		return nil
	}

	m.seq++
	m.console.Add(components.Chunk{
		Timestamp: time.Now(),
		Data:      data,
		IsTX:      true,
		Seq:       m.seq,
		Status:    styles.TXPending,
	})
	m.input.AddToHistory(value)
	m.input.SetValue("")
	return m.write(m.seq, data)
}

func (m *Attach) View() string {
	content := "Connecting to " + m.addr + "..."
	if m.ready {
		content = m.console.View()
	}

	insert := m.mode == InputModeInsert
	connected := m.statusBar.State() == components.StateConnected
	rx, tx := m.console.Transcript().Counters()
	bar := m.statusBar.View(insert, m.console.Following(),
		m.console.Transcript().Mode().String(), m.input.SendingMode().String(),
		rx, tx, time.Now().Format("15:04:05"))

	parts := []string{
		styles.ContentBorderStyle.Render(content),
		m.input.View(insert, connected),
		bar,
	}
	if m.help.ShowAll {
		parts = append(parts, m.help.View(m.keys))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}
