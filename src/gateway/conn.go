package gateway

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/zlib"
)

// DefaultGatewayURL is used when no gateway URL is configured or looked up.
const DefaultGatewayURL = "wss://gateway.discord.gg/?encoding=json&v=8"

// Conn is the part of *websocket.Conn the connection loops need. Close must
// unblock a pending ReadMessage or WriteMessage.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type DialOptions struct {
	// HandshakeTimeout bounds the TLS and upgrade handshake. Defaults to ten
	// seconds.
	HandshakeTimeout time.Duration
	Header           http.Header
	TLSConfig        *tls.Config
	Logger           *slog.Logger
}

// Connect dials the gateway and performs the websocket upgrade. Errors are
// *ConnectError: ErrHandshakeRejected when the server answers with anything
// but 101 Switching Protocols, ErrTransportFailure for DNS, TCP and TLS
// failures.
func Connect(ctx context.Context, endpoint string, opts DialOptions) (*Connection, error) {
	if opts.HandshakeTimeout == 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}
	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: opts.HandshakeTimeout,
		TLSClientConfig:  opts.TLSConfig,
	}

	ws, res, err := dialer.DialContext(ctx, endpoint, opts.Header)
	if res != nil && res.Body != nil {
		res.Body.Close()
	}
	if err != nil {
		if errors.Is(err, websocket.ErrBadHandshake) && res != nil {
			return nil, &ConnectError{Kind: ErrHandshakeRejected, URL: endpoint, Status: res.StatusCode, Err: err}
		}
		return nil, &ConnectError{Kind: ErrTransportFailure, URL: endpoint, Err: err}
	}
	if res.StatusCode != http.StatusSwitchingProtocols {
		ws.Close()
		return nil, &ConnectError{Kind: ErrHandshakeRejected, URL: endpoint, Status: res.StatusCode}
	}

	c := NewConnection(ws, opts.Logger)
	c.logger.Info("handshake completed", "url", endpoint)
	return c, nil
}

// Connection is one gateway stream. It is run once; there is no reconnect.
type Connection struct {
	id     string
	conn   Conn
	logger *slog.Logger
}

func NewConnection(conn Conn, logger *slog.Logger) *Connection {
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.NewString()
	return &Connection{
		id:     id,
		conn:   conn,
		logger: logger.With("component", "connection", "conn_id", id),
	}
}

func (c *Connection) ID() string { return c.id }

// Split returns the two directions of the stream. Each half is meant to be
// owned by a single goroutine.
func (c *Connection) Split() (*ReadHalf, *WriteHalf) {
	return &ReadHalf{conn: c.conn, logger: c.logger.With("loop", "read")},
		&WriteHalf{conn: c.conn, logger: c.logger.With("loop", "write")}
}

// Run drives the read and write loops until either of them ends or ctx is
// done, then closes the stream and the outbound queue and waits for the other
// loop. inbound is closed when the read loop returns. The result is always a
// *ClosedError; its Cause is set when a lower-level error ended the stream.
func (c *Connection) Run(ctx context.Context, outbound *Outbound, inbound *Inbound) error {
	reader, writer := c.Split()

	readDone := make(chan error, 1)
	writeDone := make(chan error, 1)
	go func() { readDone <- reader.Run(inbound) }()
	go func() { writeDone <- writer.Run(ctx, outbound) }()

	var closed *ClosedError
	select {
	case err := <-readDone:
		readDone = nil
		closed = &ClosedError{Loop: "read", Cause: abnormal(err)}
	case err := <-writeDone:
		writeDone = nil
		closed = &ClosedError{Loop: "write", Cause: err}
	case <-ctx.Done():
		closed = &ClosedError{Loop: "context"}
	}
	if ctx.Err() != nil && closed.Cause == nil {
		closed.Loop = "context"
		c.sendClose()
	}

	outbound.Close()
	if err := c.conn.Close(); err != nil {
		c.logger.Debug("close stream", "error", err)
	}
	if readDone != nil {
		<-readDone
	}
	if writeDone != nil {
		<-writeDone
	}

	if closed.Cause != nil {
		c.logger.Warn("connection closed", "by", closed.Loop, "error", closed.Cause)
	} else {
		c.logger.Info("connection closed", "by", closed.Loop)
	}
	return closed
}

// sendClose writes a normal closure frame when the stream supports control
// frames. WriteControl may be called concurrently with the write loop.
func (c *Connection) sendClose() {
	ctl, ok := c.conn.(interface {
		WriteControl(messageType int, data []byte, deadline time.Time) error
	})
	if !ok {
		return
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := ctl.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); err != nil {
		c.logger.Debug("send close frame", "error", err)
	}
}

// abnormal drops errors that only report an orderly close by the peer.
func abnormal(err error) error {
	var ce *websocket.CloseError
	if err == nil {
		return nil
	}
	if errors.As(err, &ce) && (ce.Code == websocket.CloseNormalClosure || ce.Code == websocket.CloseGoingAway) {
		return nil
	}
	return err
}

type ReadHalf struct {
	conn   Conn
	logger *slog.Logger
}

// Run reads frames until the stream fails. A frame that cannot be decoded is
// logged and skipped; a full inbound queue is logged and the envelope dropped.
func (r *ReadHalf) Run(inbound *Inbound) error {
	defer inbound.Close()

	for {
		kind, frame, err := r.conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read frame: %w", err)
		}

		switch kind {
		case websocket.TextMessage:
		case websocket.BinaryMessage:
			if frame, err = inflate(frame); err != nil {
				r.logger.Warn("could not inflate binary frame", "error", err)
				continue
			}
		default:
			continue
		}

		env, err := Decode(frame)
		if err != nil {
			var de *DecodeError
			if errors.As(err, &de) {
				r.logger.Warn("dropping undecodable frame", "error", err, "raw", de.Raw)
			} else {
				r.logger.Warn("dropping undecodable frame", "error", err)
			}
			continue
		}

		r.logger.Debug("received", "op", env.Op, "t", env.Event())
		if err := inbound.TrySend(env); err != nil {
			r.logger.Warn("inbound queue full, dropping envelope",
				"op", env.Op, "t", env.Event(), "capacity", inbound.Cap(), "dropped", inbound.Dropped())
		}
	}
}

type WriteHalf struct {
	conn   Conn
	logger *slog.Logger
}

// Run writes envelopes in queue order until the queue is closed, ctx ends, or
// a write fails. Only a write failure is returned as an error.
//
// A dead write side is only noticed on the next write. Once Hello has started
// the heartbeat, detection takes at most one heartbeat interval.
func (w *WriteHalf) Run(ctx context.Context, outbound *Outbound) error {
	for {
		env, err := outbound.Next(ctx)
		if err != nil {
			return nil
		}

		data, err := Encode(env)
		if err != nil {
			w.logger.Error("could not encode envelope", "op", env.Op, "error", err)
			continue
		}
		if err := w.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return fmt.Errorf("write %s: %w", env.Op, err)
		}
		w.logger.Debug("sent", "op", env.Op)
	}
}

// inflate decompresses a zlib-compressed binary frame.
func inflate(b []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return io.ReadAll(r)
}
