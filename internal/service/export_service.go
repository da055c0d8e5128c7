package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/geo-checkin-api/internal/dto"
	"github.com/noah-isme/geo-checkin-api/pkg/export"
	appErrors "github.com/noah-isme/geo-checkin-api/pkg/errors"
)

var rosterExportHeaders = []string{"Name", "Email", "Student ID", "Status", "Checked In At"}

const statusMissing = "MISSING"

type rosterReconciler interface {
	Reconcile(ctx context.Context, sessionID string) (*dto.RosterReport, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
	ContentType() string
}

type pdfRenderer interface {
	Render(doc export.Document) ([]byte, error)
	ContentType() string
}

// ExportService renders roster reports as downloadable files.
type ExportService struct {
	roster rosterReconciler
	csv    csvRenderer
	pdf    pdfRenderer
	logger *zap.Logger
}

// NewExportService constructs an ExportService. Nil renderers fall back to the defaults.
func NewExportService(roster rosterReconciler, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{roster: roster, csv: csv, pdf: pdf, logger: logger}
}

// ExportRoster reconciles sessionID and renders present students followed by
// missing students. An empty format means CSV.
func (s *ExportService) ExportRoster(ctx context.Context, sessionID string, format dto.ExportFormat) (*dto.ExportFile, error) {
	if format == "" {
		format = dto.ExportFormatCSV
	}
	if format != dto.ExportFormatCSV && format != dto.ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	report, err := s.roster.Reconcile(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	dataset := rosterDataset(report)
	var (
		body        []byte
		contentType string
	)
	switch format {
	case dto.ExportFormatPDF:
		body, err = s.pdf.Render(export.Document{
			Title:   fmt.Sprintf("Attendance: %s", report.Session.Name),
			Summary: rosterSummary(report),
			Dataset: dataset,
		})
		contentType = s.pdf.ContentType()
	default:
		body, err = s.csv.Render(dataset)
		contentType = s.csv.ContentType()
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster export")
	}

	s.logger.Info("roster exported",
		zap.String("session_id", report.Session.ID),
		zap.String("format", string(format)),
		zap.Int("bytes", len(body)))

	return &dto.ExportFile{
		Filename:    buildFilename(report, format),
		ContentType: contentType,
		Body:        body,
	}, nil
}

func rosterDataset(report *dto.RosterReport) export.Dataset {
	rows := make([]map[string]string, 0, report.Totals.Students)
	for _, p := range report.Present {
		status := ""
		if p.Status != nil {
			status = string(*p.Status)
		}
		rows = append(rows, map[string]string{
			"Name":          p.Name,
			"Email":         p.Email,
			"Student ID":    deref(p.StudentID),
			"Status":        status,
			"Checked In At": formatReportTime(p.Timestamp),
		})
	}
	for _, m := range report.Missing {
		rows = append(rows, map[string]string{
			"Name":       m.Name,
			"Email":      m.Email,
			"Student ID": deref(m.StudentID),
			"Status":     statusMissing,
		})
	}
	return export.Dataset{Headers: rosterExportHeaders, Rows: rows}
}

func rosterSummary(report *dto.RosterReport) []string {
	return []string{
		fmt.Sprintf("Session created: %s", report.Session.CreatedAt.UTC().Format(time.RFC3339)),
		fmt.Sprintf("Students: %d  Present: %d  Missing: %d", report.Totals.Students, report.Totals.Present, report.Totals.Missing),
		fmt.Sprintf("Generated: %s", report.GeneratedAt.UTC().Format(time.RFC3339)),
	}
}

func buildFilename(report *dto.RosterReport, format dto.ExportFormat) string {
	timestamp := report.GeneratedAt.UTC().Format("20060102_150405")
	return fmt.Sprintf("attendance_%s_%s.%s", sanitizeFilename(report.Session.Name), timestamp, format)
}

func sanitizeFilename(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "session"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "\"", "", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func deref(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

func formatReportTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
