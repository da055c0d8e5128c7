package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/geo-checkin-api/internal/dto"
	appErrors "github.com/noah-isme/geo-checkin-api/pkg/errors"
	"github.com/noah-isme/geo-checkin-api/pkg/response"
)

type rosterService interface {
	Reconcile(ctx context.Context, sessionID string) (*dto.RosterReport, error)
}

type rosterExporter interface {
	ExportRoster(ctx context.Context, sessionID string, format dto.ExportFormat) (*dto.ExportFile, error)
}

// RosterHandler serves present/missing reports for a session.
type RosterHandler struct {
	roster   rosterService
	exporter rosterExporter
}

// NewRosterHandler builds a new handler.
func NewRosterHandler(roster rosterService, exporter rosterExporter) *RosterHandler {
	return &RosterHandler{roster: roster, exporter: exporter}
}

// Report godoc
// @Summary Reconcile the roster for a session
// @Description Every STUDENT appears exactly once, either in present or in missing.
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /sessions/{id}/attendance [get]
func (h *RosterHandler) Report(c *gin.Context) {
	report, err := h.roster.Reconcile(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Export godoc
// @Summary Download the roster report
// @Tags Attendance
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /sessions/{id}/attendance/export [get]
func (h *RosterHandler) Export(c *gin.Context) {
	var query dto.ExportRosterQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	format := dto.ExportFormat(strings.ToLower(string(query.Format)))

	file, err := h.exporter.ExportRoster(c.Request.Context(), c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Body)
}
