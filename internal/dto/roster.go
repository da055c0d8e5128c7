package dto

import (
	"time"

	"github.com/noah-isme/geo-checkin-api/internal/models"
)

// RosterSession is the session header of a roster report.
type RosterSession struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	IsActive  bool      `json:"is_active"`
}

// RosterTotals summarises a report. Present + Missing always equals Students.
type RosterTotals struct {
	Students int `json:"students"`
	Present  int `json:"present"`
	Missing  int `json:"missing"`
}

// PresentStudent is a roster member with a recorded check-in.
type PresentStudent struct {
	models.Student
	Timestamp *time.Time               `json:"timestamp"`
	Status    *models.AttendanceStatus `json:"status"`
}

// RosterReport partitions the full student roster for one session.
type RosterReport struct {
	Session     RosterSession    `json:"session"`
	Totals      RosterTotals     `json:"totals"`
	Present     []PresentStudent `json:"present"`
	Missing     []models.Student `json:"missing"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// ExportFormat selects the roster export renderer.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportRosterQuery captures export query parameters.
type ExportRosterQuery struct {
	Format ExportFormat `form:"format"`
}

// ExportFile is a rendered export ready for download.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}
