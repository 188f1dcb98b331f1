package gateway

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

type SessionConfig struct {
	Token             string
	PresenceChannelID string
	InboundCapacity   int
	Identify          IdentifyOptions
}

// Session owns one connection and every goroutine working for it: the read
// and write loops, the router, the identify task, the heartbeat and any
// collaborator calls the router makes. They all end when the connection does.
type Session struct {
	conn      *Connection
	cfg       SessionConfig
	outbound  *Outbound
	inbound   *Inbound
	heartbeat *Heartbeater
	publisher Publisher
	display   Display
	logger    *slog.Logger
}

func NewSession(conn *Connection, cfg SessionConfig, publisher Publisher, display Display, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("conn_id", conn.ID())
	outbound := NewOutbound()
	return &Session{
		conn:      conn,
		cfg:       cfg,
		outbound:  outbound,
		inbound:   NewInbound(cfg.InboundCapacity),
		heartbeat: NewHeartbeater(outbound, logger),
		publisher: publisher,
		display:   display,
		logger:    logger,
	}
}

// Send queues an envelope for the write loop. It fails with
// ErrOutboundClosed once the connection has ended.
func (s *Session) Send(env Envelope) error {
	return s.outbound.Push(env)
}

func (s *Session) Heartbeat() *Heartbeater { return s.heartbeat }

// Run blocks until the connection ends and every goroutine of the session
// has returned. The error is the connection's *ClosedError.
func (s *Session) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	router := NewRouter(RouterOptions{
		Heartbeat:         s.heartbeat,
		Spawner:           g,
		Publisher:         s.publisher,
		Display:           s.display,
		PresenceChannelID: s.cfg.PresenceChannelID,
		Logger:            s.logger,
	})
	identifier := NewIdentifier(s.outbound, s.cfg.Token, s.cfg.Identify, s.logger)

	g.Go(func() error {
		return s.conn.Run(gctx, s.outbound, s.inbound)
	})
	g.Go(func() error {
		return router.Run(gctx, s.inbound)
	})
	g.Go(func() error {
		return identifier.Run(gctx)
	})

	err := g.Wait()
	s.logger.Info("session ended", "heartbeats", s.heartbeat.Sent(), "dropped", s.inbound.Dropped())
	return err
}
