package model

type MessageType int

const (
	MessageDefault MessageType = 0
	MessageReply   MessageType = 19
)

type Message struct {
	ID              Snowflake   `json:"id"`
	ChannelID       Snowflake   `json:"channel_id"`
	GuildID         *Snowflake  `json:"guild_id,omitempty"`
	Author          User        `json:"author"`
	Content         string      `json:"content"`
	Timestamp       string      `json:"timestamp,omitempty"`
	EditedTimestamp *string     `json:"edited_timestamp,omitempty"`
	TTS             bool        `json:"tts,omitempty"`
	MentionEveryone bool        `json:"mention_everyone,omitempty"`
	Pinned          bool        `json:"pinned,omitempty"`
	Type            MessageType `json:"type"`
}
