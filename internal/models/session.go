package models

import (
	"time"

	"github.com/noah-isme/geo-checkin-api/internal/geo"
)

// ClassSession is a single attendance-taking event anchored at a location.
type ClassSession struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Latitude     float64   `db:"latitude" json:"latitude"`
	Longitude    float64   `db:"longitude" json:"longitude"`
	RadiusMeters float64   `db:"radius_meters" json:"radius_meters"`
	QRToken      string    `db:"qr_token" json:"qr_token"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Anchor returns the session's reference point.
func (s ClassSession) Anchor() geo.Point {
	return geo.Point{Lat: s.Latitude, Lon: s.Longitude}
}

// SessionSummary is a session row with the number of recorded check-ins.
type SessionSummary struct {
	ClassSession
	RecordCount int `db:"record_count" json:"record_count"`
}

// SessionFilter scopes session listing.
type SessionFilter struct {
	ActiveOnly bool
	Page       int
	PageSize   int
}
