package models

import "time"

// AttendanceStatus is the state stored on an attendance record.
type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "PRESENT"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent:
		return true
	default:
		return false
	}
}

// AttendanceRecord is one check-in of a user into a session.
type AttendanceRecord struct {
	ID        string           `db:"id" json:"id"`
	UserID    string           `db:"user_id" json:"user_id"`
	SessionID string           `db:"session_id" json:"session_id"`
	Status    AttendanceStatus `db:"status" json:"status"`
	Timestamp time.Time        `db:"timestamp" json:"timestamp"`
}

// AttendanceHistoryRow is a record joined with its session, used for a
// student's own history.
type AttendanceHistoryRow struct {
	SessionID   string           `db:"session_id" json:"session_id"`
	SessionName string           `db:"session_name" json:"session_name"`
	Status      AttendanceStatus `db:"status" json:"status"`
	Timestamp   time.Time        `db:"timestamp" json:"timestamp"`
}

// CheckInOutcome describes a successful check-in submission.
type CheckInOutcome string

const (
	CheckInMarked        CheckInOutcome = "Marked"
	CheckInAlreadyMarked CheckInOutcome = "AlreadyMarked"
)
