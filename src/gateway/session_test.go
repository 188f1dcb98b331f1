package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"personal/cordterm/src/opcodes"
)

// fakeGateway plays the server side of one session: it says hello, waits for
// identify and a few heartbeats, sends a message and closes normally. Once
// identify asks for compression every later frame is zlib-compressed.
type fakeGateway struct {
	mu         sync.Mutex
	received   []opcodes.Opcode
	identify   *IdentifyData
	compressed int
}

func (g *fakeGateway) send(ws *websocket.Conn, frame string) error {
	g.mu.Lock()
	compress := g.identify != nil && g.identify.Compress
	g.mu.Unlock()

	if !compress {
		return ws.WriteMessage(websocket.TextMessage, []byte(frame))
	}
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write([]byte(frame)); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}
	g.mu.Lock()
	g.compressed++
	g.mu.Unlock()
	return ws.WriteMessage(websocket.BinaryMessage, buf.Bytes())
}

func (g *fakeGateway) ops() []opcodes.Opcode {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]opcodes.Opcode(nil), g.received...)
}

func (g *fakeGateway) serve(t *testing.T) http.HandlerFunc {
	upgrader := websocket.Upgrader{}
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer ws.Close()

		hello := `{"op":10,"d":{"heartbeat_interval":50,"_trace":["test"]},"s":null,"t":null}`
		if err := ws.WriteMessage(websocket.TextMessage, []byte(hello)); err != nil {
			return
		}

		heartbeats := 0
		identified := false
		ws.SetReadDeadline(time.Now().Add(3 * time.Second))
		for !identified || heartbeats < 2 {
			_, frame, err := ws.ReadMessage()
			if err != nil {
				t.Errorf("server read: %v", err)
				return
			}
			env, err := Decode(frame)
			if err != nil {
				t.Errorf("server decode: %v", err)
				return
			}

			g.mu.Lock()
			g.received = append(g.received, env.Op)
			if data, ok := env.D.(*IdentifyData); ok {
				g.identify = data
			}
			g.mu.Unlock()

			switch env.Op {
			case opcodes.Identify:
				identified = true
			case opcodes.Heartbeat:
				heartbeats++
				g.send(ws, `{"op":11,"d":null,"s":null,"t":null}`)
			}
		}

		msg := `{"op":0,"s":2,"t":"MESSAGE_CREATE","d":{"id":"10","channel_id":"20","content":"hello",
			"author":{"id":"3","username":"alice","discriminator":"0001"}}}`
		g.send(ws, msg)

		closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")
		ws.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(time.Second))

		// Drain until the client's close reply.
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}
}

func TestSession_EndToEnd(t *testing.T) {
	gw := &fakeGateway{}
	srv := httptest.NewServer(gw.serve(t))
	defer srv.Close()

	logger, logs := testLogger()
	conn, err := Connect(context.Background(), wsURL(srv), DialOptions{Logger: logger})
	require.NoError(t, err)

	display := &recordingDisplay{}
	session := NewSession(conn, SessionConfig{
		Token:    "token-123",
		Identify: IdentifyOptions{Delay: 10 * time.Millisecond},
	}, &recordingPublisher{}, display, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = session.Run(ctx)
	require.ErrorIs(t, err, ErrConnectionClosed)

	var closed *ClosedError
	require.ErrorAs(t, err, &closed)
	assert.Equal(t, "read", closed.Loop)
	assert.NoError(t, closed.Cause)

	ops := gw.ops()
	require.NotEmpty(t, ops)
	assert.Equal(t, opcodes.Identify, ops[0])
	identifies := 0
	for _, op := range ops {
		if op == opcodes.Identify {
			identifies++
		}
	}
	assert.Equal(t, 1, identifies)

	gw.mu.Lock()
	require.NotNil(t, gw.identify)
	assert.Equal(t, "token-123", gw.identify.Token)
	assert.Equal(t, DefaultCapabilities, gw.identify.Capabilities)
	gw.mu.Unlock()

	assert.Equal(t, []string{"<alice#0001>: hello"}, display.Lines())
	assert.GreaterOrEqual(t, session.Heartbeat().Sent(), 2)
	assert.Equal(t, HeartbeatStopped, session.Heartbeat().State())
	assert.Contains(t, logs.String(), "session ended")

	assert.ErrorIs(t, session.Send(HeartbeatEnvelope()), ErrOutboundClosed)
}

func TestSession_CompressedFrames(t *testing.T) {
	gw := &fakeGateway{}
	srv := httptest.NewServer(gw.serve(t))
	defer srv.Close()

	logger, _ := testLogger()
	conn, err := Connect(context.Background(), wsURL(srv), DialOptions{Logger: logger})
	require.NoError(t, err)

	display := &recordingDisplay{}
	session := NewSession(conn, SessionConfig{
		Token:    "token-123",
		Identify: IdentifyOptions{Delay: 10 * time.Millisecond, Compress: true},
	}, nil, display, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = session.Run(ctx)
	var closed *ClosedError
	require.ErrorAs(t, err, &closed)
	assert.NoError(t, closed.Cause)

	gw.mu.Lock()
	require.NotNil(t, gw.identify)
	assert.True(t, gw.identify.Compress)
	assert.GreaterOrEqual(t, gw.compressed, 3, "acks and the message were compressed")
	gw.mu.Unlock()

	assert.Equal(t, []string{"<alice#0001>: hello"}, display.Lines())
}

func TestSession_CancelEndsEverything(t *testing.T) {
	logger, _ := testLogger()
	fc := newFakeConn()
	session := NewSession(NewConnection(fc, logger), SessionConfig{
		Token:    "t",
		Identify: IdentifyOptions{Delay: time.Hour},
	}, nil, nil, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- session.Run(ctx) }()

	fc.sendText(`{"op":10,"d":{"heartbeat_interval":20}}`)
	require.Eventually(t, func() bool { return session.Heartbeat().Sent() > 0 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		var closed *ClosedError
		require.ErrorAs(t, err, &closed)
		assert.Equal(t, "context", closed.Loop)
	case <-time.After(2 * time.Second):
		t.Fatal("session did not end")
	}
	assert.Equal(t, HeartbeatStopped, session.Heartbeat().State())

	// Identify never went out because its delay outlived the session.
	for len(fc.written) > 0 {
		env, err := Decode(<-fc.written)
		require.NoError(t, err)
		assert.Equal(t, opcodes.Heartbeat, env.Op)
	}
}

func TestSession_HeartbeatExposesDeadWriteSide(t *testing.T) {
	logger, _ := testLogger()
	fc := newFakeConn()
	session := NewSession(NewConnection(fc, logger), SessionConfig{
		Token:    "t",
		Identify: IdentifyOptions{Delay: time.Hour},
	}, nil, nil, logger)

	fc.CloseWrite()
	fc.sendText(`{"op":10,"d":{"heartbeat_interval":20}}`)

	done := make(chan error, 1)
	go func() { done <- session.Run(context.Background()) }()

	select {
	case err := <-done:
		var closed *ClosedError
		require.ErrorAs(t, err, &closed)
		assert.Equal(t, "write", closed.Loop)
		assert.ErrorIs(t, err, errWriteClosed)
	case <-time.After(time.Second):
		t.Fatal("dead write side was not noticed within a few heartbeat intervals")
	}
}

func TestSession_WritesAreValidJSON(t *testing.T) {
	logger, _ := testLogger()
	fc := newFakeConn()
	session := NewSession(NewConnection(fc, logger), SessionConfig{
		Token:    "t",
		Identify: IdentifyOptions{Delay: time.Millisecond},
	}, nil, nil, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- session.Run(ctx) }()

	select {
	case raw := <-fc.written:
		var v map[string]any
		require.NoError(t, json.Unmarshal(raw, &v))
		assert.EqualValues(t, 2, v["op"])
	case <-time.After(time.Second):
		t.Fatal("identify not written")
	}

	cancel()
	<-done
}
