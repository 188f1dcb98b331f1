package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"personal/cordterm/src/model"
)

func (c *Client) Channel(ctx context.Context, channelID string) (model.Channel, error) {
	var channel model.Channel
	if err := c.do(ctx, http.MethodGet, "/channels/"+url.PathEscape(channelID), nil, &channel); err != nil {
		return model.Channel{}, err
	}
	return channel, nil
}

type createMessage struct {
	Content string `json:"content"`
}

// PublishMessage posts content to a channel.
func (c *Client) PublishMessage(ctx context.Context, content, channelID string) error {
	if channelID == "" {
		return fmt.Errorf("client: no channel to publish to")
	}
	path := "/channels/" + url.PathEscape(channelID) + "/messages"
	var msg model.Message
	if err := c.do(ctx, http.MethodPost, path, createMessage{Content: content}, &msg); err != nil {
		return err
	}
	c.logger.Debug("message published", "channel_id", channelID, "message_id", msg.ID)
	return nil
}
