package session

import "time"

const minute = time.Minute

func timeAt(minutes int) time.Time {
	return time.Date(2025, 3, 1, 0, minutes, 0, 0, time.UTC)
}
