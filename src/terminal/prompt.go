package terminal

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"strings"
)

// Publisher is the REST side the prompt sends through.
type Publisher interface {
	PublishMessage(ctx context.Context, content, channelID string) error
}

// Prompt turns lines typed by the user into channel messages.
type Prompt struct {
	in        io.Reader
	publisher Publisher
	channelID string
	logger    *slog.Logger
}

func NewPrompt(in io.Reader, publisher Publisher, channelID string, logger *slog.Logger) *Prompt {
	if logger == nil {
		logger = slog.Default()
	}
	return &Prompt{
		in:        in,
		publisher: publisher,
		channelID: channelID,
		logger:    logger.With("component", "prompt"),
	}
}

// Run publishes every non-empty line until the input ends or ctx is done.
// A failed publish is logged and the prompt keeps reading. The scanning
// goroutine may outlive Run while it waits on a blocking reader.
func (p *Prompt) Run(ctx context.Context) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(p.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			content := strings.TrimSpace(line)
			if content == "" {
				continue
			}
			if err := p.publisher.PublishMessage(ctx, content, p.channelID); err != nil {
				p.logger.Error("could not send message", "channel_id", p.channelID, "error", err)
			}
		}
	}
}
