package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/geo-checkin-api/internal/dto"
	"github.com/noah-isme/geo-checkin-api/internal/geo"
	"github.com/noah-isme/geo-checkin-api/internal/models"
	appErrors "github.com/noah-isme/geo-checkin-api/pkg/errors"
)

type checkInSessionRepository interface {
	FindActiveByToken(ctx context.Context, token string) (*models.ClassSession, error)
}

type checkInAttendanceRepository interface {
	InsertIfAbsent(ctx context.Context, record *models.AttendanceRecord) (bool, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]models.AttendanceHistoryRow, error)
}

type rosterInvalidator interface {
	InvalidateSession(ctx context.Context, sessionID string)
}

type attendanceEventPublisher interface {
	AttendanceMarked(ctx context.Context, event models.AttendanceMarkedEvent)
}

// CheckInService verifies a student's location against the active session
// and records attendance at most once per student and session.
type CheckInService struct {
	sessions  checkInSessionRepository
	records   checkInAttendanceRepository
	roster    rosterInvalidator
	events    attendanceEventPublisher
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewCheckInService constructs a CheckInService. roster, events and metrics are optional.
func NewCheckInService(sessions checkInSessionRepository, records checkInAttendanceRepository, roster rosterInvalidator, events attendanceEventPublisher, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *CheckInService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CheckInService{
		sessions:  sessions,
		records:   records,
		roster:    roster,
		events:    events,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SubmitCheckIn resolves the active session for req.Token, rejects callers
// farther than the session radius and stores a PRESENT record. A caller who
// already checked in gets AlreadyMarked without a second write.
func (s *CheckInService) SubmitCheckIn(ctx context.Context, req dto.CheckInRequest, callerID string) (*dto.CheckInResponse, error) {
	if callerID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		s.metrics.RecordCheckIn(OutcomeInvalid)
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "token, latitude and longitude are required")
	}
	claimed := geo.Point{Lat: *req.Latitude, Lon: *req.Longitude}
	if !claimed.Valid() {
		s.metrics.RecordCheckIn(OutcomeInvalid)
		return nil, appErrors.Clone(appErrors.ErrValidation, "coordinates are out of range")
	}

	session, err := s.sessions.FindActiveByToken(ctx, req.Token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.metrics.RecordCheckIn(OutcomeSessionNotFound)
			return nil, appErrors.Clone(appErrors.ErrSessionNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve session")
	}

	inside, distance := geo.Within(session.Anchor(), claimed, session.RadiusMeters)
	s.metrics.ObserveCheckInDistance(distance)
	if !inside {
		meters := geo.RoundMeters(distance)
		s.metrics.RecordCheckIn(OutcomeOutOfRange)
		s.logger.Info("check-in rejected: out of range",
			zap.String("session_id", session.ID),
			zap.String("user_id", callerID),
			zap.Int("distance_meters", meters),
			zap.Float64("radius_meters", session.RadiusMeters))
		return nil, appErrors.WithDetails(appErrors.ErrOutOfRange,
			fmt.Sprintf("you are too far from the class location (%dm away)", meters),
			map[string]interface{}{
				"distance_meters": meters,
				"radius_meters":   session.RadiusMeters,
			})
	}

	record := &models.AttendanceRecord{
		UserID:    callerID,
		SessionID: session.ID,
		Status:    models.AttendanceStatusPresent,
		Timestamp: s.now(),
	}
	inserted, err := s.records.InsertIfAbsent(ctx, record)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record attendance")
	}

	resp := &dto.CheckInResponse{
		Outcome:     models.CheckInAlreadyMarked,
		SessionID:   session.ID,
		SessionName: session.Name,
	}
	if !inserted {
		s.metrics.RecordCheckIn(OutcomeAlreadyMarked)
		return resp, nil
	}

	resp.Outcome = models.CheckInMarked
	resp.CheckedAt = &record.Timestamp
	s.metrics.RecordCheckIn(OutcomeMarked)
	s.logger.Info("attendance marked",
		zap.String("session_id", session.ID),
		zap.String("user_id", callerID),
		zap.Int("distance_meters", geo.RoundMeters(distance)))

	if s.roster != nil {
		s.roster.InvalidateSession(ctx, session.ID)
	}
	if s.events != nil {
		s.events.AttendanceMarked(ctx, models.AttendanceMarkedEvent{
			RecordID:       record.ID,
			SessionID:      session.ID,
			SessionName:    session.Name,
			UserID:         callerID,
			DistanceMeters: geo.RoundMeters(distance),
			MarkedAt:       record.Timestamp,
			IPAddress:      req.IP,
			UserAgent:      req.UserAgent,
		})
	}

	return resp, nil
}

// History lists the caller's most recent check-ins, newest first.
func (s *CheckInService) History(ctx context.Context, callerID string, limit int) ([]models.AttendanceHistoryRow, error) {
	if callerID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	rows, err := s.records.ListByUser(ctx, callerID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance history")
	}
	if rows == nil {
		rows = []models.AttendanceHistoryRow{}
	}
	return rows, nil
}
