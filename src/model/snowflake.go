package model

import (
	"strconv"
	"time"
)

// Snowflake is a gateway object id. It travels as a decimal string.
type Snowflake string

// discordEpoch is the first millisecond of 2015, in unix milliseconds.
const discordEpoch = 1420070400000

// Time returns the creation time encoded in the id, or the zero time when the
// id is not numeric.
func (s Snowflake) Time() time.Time {
	n, err := strconv.ParseUint(string(s), 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(int64(n>>22) + discordEpoch).UTC()
}
