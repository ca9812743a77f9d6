package sse

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"time"
)

const (
	textHTML        = "text/html; charset=utf-8"
	textPlain       = "text/plain; charset=utf-8"
	textEventStream = "text/event-stream; charset=utf-8"
)

//go:embed templates/console.html.tmpl
var templateFS embed.FS

var consoleTemplate = template.Must(template.ParseFS(templateFS, "templates/console.html.tmpl"))

// Page holds the values rendered into the console page.
type Page struct {
	Title    string
	EventURL string
	MaxLines int
}

// Server exposes a raw console as an event stream. Every /client request
// opens its own connection to the console and its own Framer.
type Server struct {
	connect string
	width   int
	index   []byte
	dialer  net.Dialer
	logger  *slog.Logger
}

// ServerOption customises a Server.
type ServerOption func(*Server)

// WithWidth sets the maximum line width of emitted records.
func WithWidth(width int) ServerOption {
	return func(s *Server) { s.width = width }
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = logger }
}

// WithDialTimeout bounds how long a /client request waits for the console.
func WithDialTimeout(d time.Duration) ServerOption {
	return func(s *Server) { s.dialer.Timeout = d }
}

// NewServer renders the console page once and returns a handler that
// streams the console at connect.
func NewServer(connect string, page Page, opts ...ServerOption) (*Server, error) {
	if page.EventURL == "" {
		page.EventURL = "/console/client"
	}
	if page.MaxLines <= 0 {
		page.MaxLines = 5000
	}

	var buf bytes.Buffer
	if err := consoleTemplate.Execute(&buf, page); err != nil {
		return nil, fmt.Errorf("render console page: %w", err)
	}

	s := &Server{
		connect: connect,
		width:   DefaultWidth,
		index:   buf.Bytes(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.logger.Info("request", "remote", r.RemoteAddr, "method", r.Method, "path", r.URL.Path)

	if r.Method != http.MethodGet {
		errResponse(w, http.StatusNotFound, "Not found")
		return
	}
	switch r.URL.Path {
	case "/", "/console/":
		s.serveIndex(w)
	case "/client", "/console/client":
		s.serveClient(w, r)
	default:
		errResponse(w, http.StatusNotFound, "Not found")
	}
}

func (s *Server) serveIndex(w http.ResponseWriter) {
	w.Header().Set("Content-Type", textHTML)
	w.WriteHeader(http.StatusOK)
	w.Write(s.index)
}

func (s *Server) serveClient(w http.ResponseWriter, r *http.Request) {
	conn, err := s.dialer.DialContext(r.Context(), "tcp", s.connect)
	if err != nil {
		errResponse(w, http.StatusInternalServerError, fmt.Sprintf("Console connection error: %v", err))
		return
	}
	defer conn.Close()

	// A departed browser must also release the console connection, which
	// may be blocked in Read.
	stop := context.AfterFunc(r.Context(), func() { conn.Close() })
	defer stop()

	flusher, _ := w.(http.Flusher)
	w.Header().Set("Content-Type", textEventStream)
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	if flusher != nil {
		flusher.Flush()
	}

	err = Records(conn, s.width, func(rec Record) error {
		s.logger.Debug("event", "id", rec.ID, "data", rec.Text)
		if _, err := w.Write(rec.Bytes()); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	})
	if err != nil && r.Context().Err() == nil {
		s.logger.Warn("event stream ended", "remote", r.RemoteAddr, "err", err)
	}
}

func errResponse(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", textPlain)
	w.WriteHeader(code)
	fmt.Fprint(w, msg)
}
