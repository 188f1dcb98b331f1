package gateway

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testLogger() (*slog.Logger, *syncBuffer) {
	buf := &syncBuffer{}
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}

var errFakeClosed = errors.New("fake: use of closed connection")
var errWriteClosed = errors.New("fake: write side closed")

type fakeFrame struct {
	kind int
	data []byte
}

// fakeConn is an in-memory stream. Frames queued with send are returned by
// ReadMessage; everything written is available on written.
type fakeConn struct {
	frames      chan fakeFrame
	written     chan []byte
	writeClosed atomic.Bool
	closeOnce   sync.Once
	closed      chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		frames:  make(chan fakeFrame, 64),
		written: make(chan []byte, 256),
		closed:  make(chan struct{}),
	}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case <-f.closed:
		return 0, nil, errFakeClosed
	default:
	}
	select {
	case fr := <-f.frames:
		return fr.kind, fr.data, nil
	case <-f.closed:
		return 0, nil, errFakeClosed
	}
}

func (f *fakeConn) WriteMessage(kind int, data []byte) error {
	if f.writeClosed.Load() {
		return errWriteClosed
	}
	select {
	case <-f.closed:
		return errFakeClosed
	default:
	}
	f.written <- data
	return nil
}

func (f *fakeConn) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

// CloseWrite makes every later write fail while reads keep blocking.
func (f *fakeConn) CloseWrite() { f.writeClosed.Store(true) }

func (f *fakeConn) sendText(s string) {
	f.frames <- fakeFrame{kind: websocket.TextMessage, data: []byte(s)}
}

type publishCall struct {
	content   string
	channelID string
}

type recordingPublisher struct {
	mu    sync.Mutex
	calls []publishCall
	err   error
}

func (p *recordingPublisher) PublishMessage(_ context.Context, content, channelID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, publishCall{content: content, channelID: channelID})
	return p.err
}

func (p *recordingPublisher) Calls() []publishCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publishCall(nil), p.calls...)
}

type recordingDisplay struct {
	mu    sync.Mutex
	lines []string
}

func (d *recordingDisplay) Show(line string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lines = append(d.lines, line)
}

func (d *recordingDisplay) Lines() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.lines...)
}

func strPtr(s string) *string { return &s }

func int64Ptr(n int64) *int64 { return &n }
