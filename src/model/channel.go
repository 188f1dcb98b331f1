package model

type ChannelType int

const (
	ChannelGuildText     ChannelType = 0
	ChannelDM            ChannelType = 1
	ChannelGuildVoice    ChannelType = 2
	ChannelGroupDM       ChannelType = 3
	ChannelGuildCategory ChannelType = 4
)

type Channel struct {
	ID               Snowflake   `json:"id"`
	Type             ChannelType `json:"type"`
	GuildID          *Snowflake  `json:"guild_id,omitempty"`
	Position         *int        `json:"position,omitempty"`
	Name             *string     `json:"name,omitempty"`
	Topic            *string     `json:"topic,omitempty"`
	NSFW             *bool       `json:"nsfw,omitempty"`
	LastMessageID    *Snowflake  `json:"last_message_id,omitempty"`
	RateLimitPerUser *int        `json:"rate_limit_per_user,omitempty"`
	Recipients       []User      `json:"recipients,omitempty"`
	ParentID         *Snowflake  `json:"parent_id,omitempty"`
	LastPinTimestamp *string     `json:"last_pin_timestamp,omitempty"` // ISO8601
}

// DisplayName returns "#name" for guild channels and the recipients' tags
// for direct messages.
func (c Channel) DisplayName() string {
	if c.Name != nil && *c.Name != "" {
		return "#" + *c.Name
	}
	if len(c.Recipients) > 0 {
		name := "@" + c.Recipients[0].Tag()
		for _, r := range c.Recipients[1:] {
			name += ", @" + r.Tag()
		}
		return name
	}
	return string(c.ID)
}
