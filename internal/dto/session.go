package dto

import (
	"time"

	"github.com/noah-isme/geo-checkin-api/internal/models"
)

// CreateSessionRequest opens a new session. RadiusMeters falls back to the
// configured default when omitted.
type CreateSessionRequest struct {
	Name         string   `json:"name" validate:"required,max=120"`
	Latitude     *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude    *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
	RadiusMeters *float64 `json:"radius_meters" validate:"omitempty,gt=0"`
	ActorID      string   `json:"-"`
}

// SessionActionRequest carries the actor of activate/close/delete calls.
type SessionActionRequest struct {
	SessionID string `validate:"required"`
	ActorID   string
}

// ListSessionsQuery captures query parameters for listing sessions.
type ListSessionsQuery struct {
	ActiveOnly bool `form:"active"`
	Page       int  `form:"page"`
	PageSize   int  `form:"page_size"`
}

// SessionResponse is a session with its check-in link and record count.
type SessionResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	RadiusMeters float64   `json:"radius_meters"`
	QRToken      string    `json:"qr_token"`
	CheckInURL   string    `json:"check_in_url"`
	IsActive     bool      `json:"is_active"`
	RecordCount  int       `json:"record_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewSessionResponse maps a session row into its API shape.
func NewSessionResponse(s models.ClassSession, recordCount int, checkInURL string) SessionResponse {
	return SessionResponse{
		ID:           s.ID,
		Name:         s.Name,
		Latitude:     s.Latitude,
		Longitude:    s.Longitude,
		RadiusMeters: s.RadiusMeters,
		QRToken:      s.QRToken,
		CheckInURL:   checkInURL,
		IsActive:     s.IsActive,
		RecordCount:  recordCount,
		CreatedAt:    s.CreatedAt,
	}
}
