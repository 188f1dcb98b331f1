package gateway

import (
	"context"
	"log/slog"
	"time"
)

// DefaultIdentifyDelay gives the handshake time to settle before identifying.
const DefaultIdentifyDelay = time.Second

// DefaultProperties are the client properties sent with identify. The server
// only checks that they are present.
var DefaultProperties = IdentifyProperties{
	OS:               "linux",
	Browser:          "cordterm",
	BrowserUserAgent: "cordterm/1.0",
}

// Identifier queues the identify envelope once, after a fixed delay.
type Identifier struct {
	outbound     *Outbound
	token        string
	delay        time.Duration
	capabilities Capabilities
	properties   IdentifyProperties
	compress     bool
	logger       *slog.Logger
}

type IdentifyOptions struct {
	Delay        time.Duration
	Capabilities Capabilities
	Properties   *IdentifyProperties

	// Compress requests zlib-compressed binary frames. The read half
	// inflates them.
	Compress bool
}

func NewIdentifier(outbound *Outbound, token string, opts IdentifyOptions, logger *slog.Logger) *Identifier {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Delay <= 0 {
		opts.Delay = DefaultIdentifyDelay
	}
	if opts.Capabilities == 0 {
		opts.Capabilities = DefaultCapabilities
	}
	props := DefaultProperties
	if opts.Properties != nil {
		props = *opts.Properties
	}
	return &Identifier{
		outbound:     outbound,
		token:        token,
		delay:        opts.Delay,
		capabilities: opts.Capabilities,
		properties:   props,
		compress:     opts.Compress,
		logger:       logger.With("component", "identify"),
	}
}

// Envelope builds the identify envelope.
func (i *Identifier) Envelope() Envelope {
	return IdentifyEnvelope(&IdentifyData{
		Token:        i.token,
		Capabilities: i.capabilities,
		Properties:   i.properties,
		Compress:     i.compress,
	})
}

// Run waits for the delay, queues one identify envelope and returns. It does
// not retry: a closed queue means the connection is already gone.
func (i *Identifier) Run(ctx context.Context) error {
	timer := time.NewTimer(i.delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		i.logger.Debug("context done before identify")
		return nil
	case <-timer.C:
	}

	if err := i.outbound.Push(i.Envelope()); err != nil {
		i.logger.Warn("could not queue identify", "error", err)
		return nil
	}
	i.logger.Info("queued identify", "capabilities", uint32(i.capabilities), "compress", i.compress)
	return nil
}
