// Package sse turns the raw console byte stream into Server-Sent Events and
// serves them to browsers.
package sse

import (
	"bytes"
	"fmt"
	"io"
)

// DefaultWidth is the longest line a record carries before it is split.
const DefaultWidth = 80

// Record is one emitted line.
type Record struct {
	ID   uint64
	Text string
}

// Bytes renders the record in event-stream wire format.
func (r Record) Bytes() []byte {
	return []byte(r.String())
}

func (r Record) String() string {
	return fmt.Sprintf("retry: 999999\r\nid: %d\r\ndata: %s\r\n\r\n", r.ID, r.Text)
}

// Framer splits an undelimited byte stream into bounded, printable text
// lines. A Framer belongs to one stream; ids start at 1 and never repeat.
type Framer struct {
	width int
	buf   []byte
	next  int // bytes before next were already scanned for '\n'
	id    uint64
}

// NewFramer returns a framer that splits lines longer than width bytes.
// A non-positive width selects DefaultWidth.
func NewFramer(width int) *Framer {
	if width <= 0 {
		width = DefaultWidth
	}
	return &Framer{width: width}
}

// Write appends newly received bytes. It never fails.
func (f *Framer) Write(p []byte) (int, error) {
	f.buf = append(f.buf, p...)
	return len(p), nil
}

// Buffered returns the number of bytes held back waiting for a delimiter.
func (f *Framer) Buffered() int {
	return len(f.buf)
}

// Next returns the next complete record, if any. Lines end at '\n' with an
// optional '\r' stripped; empty lines are skipped without consuming an id.
// A line that reaches width bytes before its delimiter is cut at width and
// the rest stays buffered.
func (f *Framer) Next() (Record, bool) {
	for {
		idx := bytes.IndexByte(f.buf[f.next:], '\n')
		if idx < 0 {
			if len(f.buf) < f.width {
				f.next = len(f.buf)
				return Record{}, false
			}
			return f.emitTruncated(), true
		}

		pos := f.next + idx
		if pos >= f.width {
			return f.emitTruncated(), true
		}

		line := f.buf[:pos]
		if n := len(line); n > 0 && line[n-1] == '\r' {
			line = line[:n-1]
		}
		text := sanitize(line)
		f.consume(pos + 1)
		if text == "" {
			continue
		}
		return f.emit(text), true
	}
}

// Decode appends p and returns every record that became complete.
func (f *Framer) Decode(p []byte) []Record {
	f.Write(p)
	var out []Record
	for {
		rec, ok := f.Next()
		if !ok {
			return out
		}
		out = append(out, rec)
	}
}

func (f *Framer) emitTruncated() Record {
	text := sanitize(f.buf[:f.width])
	f.consume(f.width)
	return f.emit(text)
}

func (f *Framer) emit(text string) Record {
	f.id++
	return Record{ID: f.id, Text: text}
}

// consume drops the first n bytes and restarts scanning from the front.
func (f *Framer) consume(n int) {
	f.buf = f.buf[:copy(f.buf, f.buf[n:])]
	f.next = 0
}

// sanitize replaces every byte outside printable ASCII with '_'.
func sanitize(p []byte) string {
	out := make([]byte, len(p))
	for i, c := range p {
		if c < 0x20 || c > 0x7e {
			c = '_'
		}
		out[i] = c
	}
	return string(out)
}

// Records reads r until EOF or error, calling fn for each record. A nil
// error is returned on EOF; an error from fn stops the loop and is returned.
func Records(r io.Reader, width int, fn func(Record) error) error {
	f := NewFramer(width)
	buf := make([]byte, 1024)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			f.Write(buf[:n])
			for {
				rec, ok := f.Next()
				if !ok {
					break
				}
				if ferr := fn(rec); ferr != nil {
					return ferr
				}
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
