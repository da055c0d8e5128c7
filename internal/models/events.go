package models

import "time"

// AttendanceMarkedEvent is emitted after a first-time check-in is stored.
type AttendanceMarkedEvent struct {
	RecordID       string    `json:"record_id"`
	SessionID      string    `json:"session_id"`
	SessionName    string    `json:"session_name"`
	UserID         string    `json:"user_id"`
	DistanceMeters int       `json:"distance_meters"`
	MarkedAt       time.Time `json:"marked_at"`
	IPAddress      string    `json:"-"`
	UserAgent      string    `json:"-"`
}
