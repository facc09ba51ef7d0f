package domain

import (
	"fmt"
	"time"
)

// Session describes the currently authenticated user of this process.
// A nil *Session means nobody is logged in.
type Session struct {
	Username       string
	UserID         int64
	LoginTimestamp time.Time
}

// Duration reports how long the session has been active at now.
func (s *Session) Duration(now time.Time) time.Duration {
	if s == nil {
		return 0
	}
	return now.Sub(s.LoginTimestamp)
}

// FormatDuration renders d as "3h 12m", or "12m" below one hour.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	hours := total / 3600
	minutes := (total % 3600) / 60
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}
