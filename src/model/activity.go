package model

type ActivityType int

const (
	ActivityGame      ActivityType = 0
	ActivityStreaming ActivityType = 1
	ActivityListening ActivityType = 2
	ActivityWatching  ActivityType = 3
	ActivityCustom    ActivityType = 4
	ActivityCompeting ActivityType = 5
)

type Activity struct {
	Name          string       `json:"name"`
	Type          ActivityType `json:"type"`
	URL           *string      `json:"url,omitempty"`
	CreatedAt     int64        `json:"created_at,omitempty"`
	ApplicationID *Snowflake   `json:"application_id,omitempty"`
	Details       *string      `json:"details,omitempty"`
	State         *string      `json:"state,omitempty"`
}

// ClientStatus holds the per-platform status of a user, e.g. "online".
type ClientStatus struct {
	Desktop *string `json:"desktop,omitempty"`
	Mobile  *string `json:"mobile,omitempty"`
	Web     *string `json:"web,omitempty"`
}
