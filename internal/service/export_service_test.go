package service

import (
	"context"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/geo-checkin-api/internal/dto"
	"github.com/noah-isme/geo-checkin-api/internal/models"
	appErrors "github.com/noah-isme/geo-checkin-api/pkg/errors"
)

type reconcilerStub struct {
	report *dto.RosterReport
	err    error
	calls  int
}

func (r *reconcilerStub) Reconcile(ctx context.Context, sessionID string) (*dto.RosterReport, error) {
	r.calls++
	return r.report, r.err
}

func ptrTime(t time.Time) *time.Time {
	return &t
}

func sampleReport() *dto.RosterReport {
	checkedIn := time.Date(2026, 3, 2, 9, 5, 0, 0, time.UTC)
	sid := "S-002"
	session := models.ClassSession{ID: "s1", Name: "Algebra: Week 1", CreatedAt: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), IsActive: true}
	roster := []models.Student{
		{ID: "u1", Name: "Ana", Email: "ana@example.com"},
		{ID: "u2", Name: "Budi", Email: "budi@example.com", StudentID: &sid},
		{ID: "u3", Name: "Citra", Email: "citra@example.com"},
	}
	records := []models.AttendanceRecord{{ID: "r1", UserID: "u2", SessionID: "s1", Status: models.AttendanceStatusPresent, Timestamp: checkedIn}}
	report := BuildRosterReport(session, roster, records)
	report.GeneratedAt = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	return report
}

func TestExportServiceRosterCSV(t *testing.T) {
	svc := NewExportService(&reconcilerStub{report: sampleReport()}, zap.NewNop(), nil, nil)

	file, err := svc.ExportRoster(context.Background(), "s1", "")
	require.NoError(t, err)
	assert.Equal(t, "attendance_Algebra-_Week_1_20260302_100000.csv", file.Filename)
	assert.Equal(t, "text/csv; charset=utf-8", file.ContentType)

	records, err := csv.NewReader(strings.NewReader(string(file.Body))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, rosterExportHeaders, records[0])
	assert.Equal(t, []string{"Budi", "budi@example.com", "S-002", "PRESENT", "2026-03-02T09:05:00Z"}, records[1])
	assert.Equal(t, []string{"Ana", "ana@example.com", "", "MISSING", ""}, records[2])
	assert.Equal(t, []string{"Citra", "citra@example.com", "", "MISSING", ""}, records[3])
}

func TestExportServiceRosterPDF(t *testing.T) {
	svc := NewExportService(&reconcilerStub{report: sampleReport()}, zap.NewNop(), nil, nil)

	file, err := svc.ExportRoster(context.Background(), "s1", dto.ExportFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, strings.HasSuffix(file.Filename, ".pdf"))
	assert.True(t, strings.HasPrefix(string(file.Body), "%PDF"))
}

func TestExportServiceRejectsUnknownFormat(t *testing.T) {
	stub := &reconcilerStub{report: sampleReport()}
	svc := NewExportService(stub, zap.NewNop(), nil, nil)

	_, err := svc.ExportRoster(context.Background(), "s1", "xlsx")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Zero(t, stub.calls)
}

func TestExportServicePropagatesNotFound(t *testing.T) {
	svc := NewExportService(&reconcilerStub{err: appErrors.Clone(appErrors.ErrSessionNotFound, "session not found")}, zap.NewNop(), nil, nil)

	_, err := svc.ExportRoster(context.Background(), "missing", dto.ExportFormatCSV)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrSessionNotFound.Code, appErrors.FromError(err).Code)
}
