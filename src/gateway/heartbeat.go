package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

type HeartbeatState int

const (
	HeartbeatIdle HeartbeatState = iota
	HeartbeatRunning
	HeartbeatStopped
)

func (s HeartbeatState) String() string {
	switch s {
	case HeartbeatIdle:
		return "idle"
	case HeartbeatRunning:
		return "running"
	case HeartbeatStopped:
		return "stopped"
	}
	return fmt.Sprintf("HeartbeatState(%d)", int(s))
}

// Heartbeater sends a heartbeat envelope every interval once it has been
// told the interval by Hello. There is one per connection and it can be
// started only once. Acknowledgements are not tracked.
type Heartbeater struct {
	outbound *Outbound
	logger   *slog.Logger

	mu    sync.Mutex
	state HeartbeatState
	sent  int
}

func NewHeartbeater(outbound *Outbound, logger *slog.Logger) *Heartbeater {
	if logger == nil {
		logger = slog.Default()
	}
	return &Heartbeater{
		outbound: outbound,
		logger:   logger.With("component", "heartbeat"),
	}
}

// Start moves the scheduler from idle to running. The caller runs the
// returned function in its own goroutine; it ticks until ctx ends or the
// outbound queue is closed. Starting twice fails with ErrHeartbeatRunning.
func (h *Heartbeater) Start(ctx context.Context, interval time.Duration) (func() error, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("invalid heartbeat interval %s", interval)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state != HeartbeatIdle {
		return nil, fmt.Errorf("%w (state %s)", ErrHeartbeatRunning, h.state)
	}
	h.state = HeartbeatRunning

	return func() error {
		h.run(ctx, interval)
		return nil
	}, nil
}

func (h *Heartbeater) run(ctx context.Context, interval time.Duration) {
	defer h.setState(HeartbeatStopped)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	h.logger.Info("starting heartbeat", "interval", interval)

	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("context done, stopping heartbeat")
			return
		case <-ticker.C:
			if err := h.outbound.Push(HeartbeatEnvelope()); err != nil {
				h.logger.Warn("could not queue heartbeat, stopping", "error", err)
				return
			}
			h.mu.Lock()
			h.sent++
			h.mu.Unlock()
			h.logger.Debug("queued heartbeat")
		}
	}
}

func (h *Heartbeater) setState(s HeartbeatState) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()
}

func (h *Heartbeater) State() HeartbeatState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Sent is the number of heartbeats queued so far.
func (h *Heartbeater) Sent() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sent
}
