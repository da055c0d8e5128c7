package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/geo-checkin-api/internal/dto"
	"github.com/noah-isme/geo-checkin-api/internal/models"
	appErrors "github.com/noah-isme/geo-checkin-api/pkg/errors"
	"github.com/noah-isme/geo-checkin-api/pkg/response"
)

type checkInService interface {
	SubmitCheckIn(ctx context.Context, req dto.CheckInRequest, callerID string) (*dto.CheckInResponse, error)
	History(ctx context.Context, callerID string, limit int) ([]models.AttendanceHistoryRow, error)
}

// CheckInHandler exposes the student check-in endpoints.
type CheckInHandler struct {
	service checkInService
}

// NewCheckInHandler builds a new handler.
func NewCheckInHandler(service checkInService) *CheckInHandler {
	return &CheckInHandler{service: service}
}

// CheckIn godoc
// @Summary Check in to the active session
// @Description Verifies the caller's position against the session bound to the scanned QR token.
// @Tags Attendance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CheckInRequest true "QR token and device coordinates"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /attendance/check-in [post]
func (h *CheckInHandler) CheckIn(c *gin.Context) {
	var req dto.CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid check-in payload"))
		return
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")

	res, err := h.service.SubmitCheckIn(c.Request.Context(), req, callerID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// History godoc
// @Summary List my recent check-ins
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Maximum rows (default 20, max 100)"
// @Success 200 {object} response.Envelope
// @Router /attendance/me [get]
func (h *CheckInHandler) History(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	rows, err := h.service.History(c.Request.Context(), callerID(c), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}
