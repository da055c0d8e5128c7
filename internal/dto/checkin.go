package dto

import (
	"time"

	"github.com/noah-isme/geo-checkin-api/internal/models"
)

// CheckInRequest is the payload a student's browser submits after scanning a
// session QR code. Coordinates are pointers so a missing value is rejected
// rather than read as zero.
type CheckInRequest struct {
	Token     string   `json:"token" validate:"required,max=128"`
	Latitude  *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
	IP        string   `json:"-"`
	UserAgent string   `json:"-"`
}

// CheckInResponse reports a successful check-in. CheckedAt is only set when
// this request wrote the record.
type CheckInResponse struct {
	Outcome     models.CheckInOutcome `json:"outcome"`
	SessionID   string                `json:"session_id"`
	SessionName string                `json:"session_name"`
	CheckedAt   *time.Time            `json:"checked_at,omitempty"`
}
