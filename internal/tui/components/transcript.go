package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/allbin/serial-console/internal/tui/styles"
)

// Chunk is one block of bytes seen on the console connection, either
// received from the device or typed by the user.
type Chunk struct {
	Timestamp time.Time
	Data      []byte
	IsTX      bool
	Seq       uint64
	Status    styles.TXStatus
}

// DisplayMode selects how the transcript is rendered.
type DisplayMode int

const (
	DisplayText DisplayMode = iota
	DisplayHex
)

func (d DisplayMode) String() string {
	if d == DisplayHex {
		return "HEX"
	}
	return "TEXT"
}

// DefaultMaxChunks bounds the transcript kept for scrollback.
const DefaultMaxChunks = 4096

// Transcript keeps recent console traffic and renders it either as text
// lines, the way a terminal would show it, or as a per-chunk hex dump.
type Transcript struct {
	chunks  []Chunk
	max     int
	mode    DisplayMode
	rxBytes int
	txBytes int
}

func NewTranscript(max int) *Transcript {
	if max <= 0 {
		max = DefaultMaxChunks
	}
	return &Transcript{max: max}
}

// Add appends c, dropping the oldest chunk once the limit is reached.
func (t *Transcript) Add(c Chunk) {
	if c.IsTX {
		t.txBytes += len(c.Data)
	} else {
		t.rxBytes += len(c.Data)
	}
	if len(t.chunks) == t.max {
		t.chunks = t.chunks[:copy(t.chunks, t.chunks[1:])]
	}
	t.chunks = append(t.chunks, c)
}

// MarkTX updates the delivery state of the transmitted chunk seq.
func (t *Transcript) MarkTX(seq uint64, status styles.TXStatus) bool {
	for i := len(t.chunks) - 1; i >= 0; i-- {
		if t.chunks[i].IsTX && t.chunks[i].Seq == seq {
			t.chunks[i].Status = status
			return true
		}
	}
	return false
}

func (t *Transcript) Clear() {
	t.chunks = t.chunks[:0]
}

func (t *Transcript) Len() int {
	return len(t.chunks)
}

func (t *Transcript) Mode() DisplayMode {
	return t.mode
}

func (t *Transcript) ToggleHex() {
	if t.mode == DisplayHex {
		t.mode = DisplayText
	} else {
		t.mode = DisplayHex
	}
}

// Counters returns the total bytes received and sent, including chunks
// that were since dropped or cleared.
func (t *Transcript) Counters() (rx, tx int) {
	return t.rxBytes, t.txBytes
}

// Lines renders the transcript in the current mode.
func (t *Transcript) Lines() []string {
	if t.mode == DisplayHex {
		lines := make([]string, len(t.chunks))
		for i, c := range t.chunks {
			lines[i] = formatHex(c)
		}
		return lines
	}
	return t.textLines()
}

func (t *Transcript) textLines() []string {
	var (
		lines []string
		cur   strings.Builder
		open  bool
	)
	flush := func() {
		lines = append(lines, styleLine(cur.String()))
		cur.Reset()
		open = false
	}

	for _, c := range t.chunks {
		if c.IsTX {
			if open {
				flush()
			}
			lines = append(lines, formatTX(c))
			continue
		}
		for _, b := range c.Data {
			switch {
			case b == '\n':
				flush()
				continue
			case b == '\r':
				continue
			case b == '\t':
				cur.WriteString("    ")
			case b >= 0x20 && b <= 0x7e:
				cur.WriteByte(b)
			default:
				cur.WriteByte('.')
			}
			open = true
		}
	}
	if open {
		flush()
	}
	return lines
}

func styleLine(line string) string {
	if strings.HasPrefix(line, "*** ") {
		return styles.BannerStyle.Render(line)
	}
	return line
}

func formatTX(c Chunk) string {
	return fmt.Sprintf("%s %s %s",
		timestamp(c.Timestamp),
		styles.TXStyle(c.Status).Render("↗ "+c.Status.String()),
		printable(c.Data))
}

func formatHex(c Chunk) string {
	indicator := styles.RXStyle.Render("↙ RX")
	if c.IsTX {
		indicator = styles.TXStyle(c.Status).Render("↗ " + c.Status.String())
	}
	return fmt.Sprintf("%s %s: HEX: % X  ASCII: %s", timestamp(c.Timestamp), indicator, c.Data, printable(c.Data))
}

func timestamp(t time.Time) string {
	return styles.TimestampStyle.Render("[" + t.Format("15:04:05.000") + "]")
}

func printable(p []byte) string {
	out := make([]byte, 0, len(p))
	for _, b := range p {
		if b >= 0x20 && b <= 0x7e {
			out = append(out, b)
		} else if b != '\r' && b != '\n' {
			out = append(out, '.')
		}
	}
	return string(out)
}
