package terminal

import (
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fatih/color"
)

// DefaultBuffer is the number of lines a Sink holds before it starts dropping.
const DefaultBuffer = 64

// Sink prints chat lines. Show never blocks; lines that do not fit in the
// buffer are dropped and counted. It implements gateway.Display.
type Sink struct {
	out     io.Writer
	lines   chan string
	done    chan struct{}
	mu      sync.Mutex
	closed  bool
	dropped atomic.Int64
	logger  *slog.Logger

	author *color.Color
	body   *color.Color
}

func NewSink(out io.Writer, buffer int, logger *slog.Logger) *Sink {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{
		out:    out,
		lines:  make(chan string, buffer),
		done:   make(chan struct{}),
		logger: logger.With("component", "display"),
		author: color.New(color.FgCyan, color.Bold),
		body:   color.New(color.FgWhite),
	}
}

// Show queues line. Lines shown after Close are counted as dropped.
func (s *Sink) Show(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		s.dropped.Add(1)
		return
	}
	select {
	case s.lines <- line:
	default:
		n := s.dropped.Add(1)
		s.logger.Warn("display buffer full, dropping line", "dropped", n)
	}
}

// Run prints lines until Close is called and the buffer is drained.
func (s *Sink) Run() {
	for {
		select {
		case line := <-s.lines:
			s.print(line)
		case <-s.done:
			for {
				select {
				case line := <-s.lines:
					s.print(line)
				default:
					return
				}
			}
		}
	}
}

func (s *Sink) print(line string) {
	author, content, ok := strings.Cut(line, ": ")
	if !ok {
		s.body.Fprintln(s.out, line)
		return
	}
	s.author.Fprint(s.out, author+": ")
	s.body.Fprintln(s.out, content)
}

// Close stops Run once the buffered lines are printed. Every line queued
// before Close returns is printed.
func (s *Sink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
}

func (s *Sink) Dropped() int64 { return s.dropped.Load() }
