package gateway

import (
	"context"
	"fmt"
	"log/slog"

	"personal/cordterm/src/model"
	"personal/cordterm/src/opcodes"
)

// Publisher posts a message to a channel over the REST API.
type Publisher interface {
	PublishMessage(ctx context.Context, content, channelID string) error
}

// Display receives display-ready lines. Show must return promptly.
type Display interface {
	Show(line string)
}

// Spawner runs work concurrently inside the connection's scope.
// *errgroup.Group satisfies it.
type Spawner interface {
	Go(f func() error)
}

type RouterOptions struct {
	Heartbeat *Heartbeater
	Spawner   Spawner
	Publisher Publisher
	Display   Display
	// PresenceChannelID is where presence updates are reported.
	PresenceChannelID string
	Logger            *slog.Logger
}

// Router drains the inbound queue and acts on each envelope.
type Router struct {
	heartbeat       *Heartbeater
	spawn           Spawner
	publisher       Publisher
	display         Display
	presenceChannel string
	logger          *slog.Logger
}

func NewRouter(opts RouterOptions) *Router {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		heartbeat:       opts.Heartbeat,
		spawn:           opts.Spawner,
		publisher:       opts.Publisher,
		display:         opts.Display,
		presenceChannel: opts.PresenceChannelID,
		logger:          logger.With("component", "router"),
	}
}

// Run handles envelopes until the inbound queue is closed, which is the
// normal way for it to end. The read loop always closes it on exit.
func (r *Router) Run(ctx context.Context, inbound *Inbound) error {
	for env := range inbound.Receive() {
		r.Handle(ctx, env)
	}
	r.logger.Info("inbound queue closed, router stopping")
	return nil
}

// Handle routes a single envelope.
func (r *Router) Handle(ctx context.Context, env Envelope) {
	switch env.Op {
	case opcodes.Hello:
		r.handleHello(ctx, env)
	case opcodes.Dispatch:
		r.handleDispatch(ctx, env)
	default:
		r.logger.Debug("ignoring envelope", "op", env.Op)
	}
}

func (r *Router) handleHello(ctx context.Context, env Envelope) {
	hello, ok := env.D.(*HelloData)
	if !ok || hello == nil {
		r.logger.Warn("hello without heartbeat interval", "payload", fmt.Sprintf("%T", env.D))
		return
	}
	if r.heartbeat == nil {
		r.logger.Warn("no heartbeat scheduler configured")
		return
	}

	run, err := r.heartbeat.Start(ctx, hello.Interval())
	if err != nil {
		r.logger.Warn("could not start heartbeat", "error", err)
		return
	}
	r.spawn.Go(run)
}

func (r *Router) handleDispatch(ctx context.Context, env Envelope) {
	if env.D == nil {
		r.logger.Warn("dispatch without payload", "t", env.Event())
		return
	}

	switch data := env.D.(type) {
	case *ReadyData:
		r.logger.Info("session ready", "session_id", data.SessionID, "user", data.User.Tag())
	case *PresenceUpdateData:
		r.onPresenceUpdate(ctx, data)
	case *MessageCreateData:
		r.onMessageCreate(data)
	default:
		// Events without a handler are expected as the gateway grows.
	}
}

func (r *Router) onPresenceUpdate(ctx context.Context, data *PresenceUpdateData) {
	if len(data.Activities) == 0 {
		r.logger.Debug("presence update without activity", "user", data.User.Tag())
		return
	}
	if r.publisher == nil || r.presenceChannel == "" {
		r.logger.Debug("no presence channel configured, not publishing")
		return
	}

	content := PresenceText(data.User, data.Activities[0])
	channelID := r.presenceChannel
	r.spawn.Go(func() error {
		if err := r.publisher.PublishMessage(ctx, content, channelID); err != nil {
			r.logger.Error("could not publish presence update", "channel_id", channelID, "error", err)
			return nil
		}
		r.logger.Debug("published presence update", "channel_id", channelID)
		return nil
	})
}

func (r *Router) onMessageCreate(data *MessageCreateData) {
	if r.display == nil {
		return
	}
	r.display.Show(MessageLine(data.Message))
}

// PresenceText is the message posted when a user's activity changes.
func PresenceText(user model.User, activity model.Activity) string {
	return fmt.Sprintf("Hi %s, your rpc is: %s", user.Username, activity.Name)
}

// MessageLine formats a chat message as "<author>: content".
func MessageLine(msg model.Message) string {
	return fmt.Sprintf("<%s>: %s", msg.Author.Tag(), msg.Content)
}
