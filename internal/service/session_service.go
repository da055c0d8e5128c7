package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/geo-checkin-api/internal/dto"
	"github.com/noah-isme/geo-checkin-api/internal/models"
	"github.com/noah-isme/geo-checkin-api/internal/repository"
	appErrors "github.com/noah-isme/geo-checkin-api/pkg/errors"
)

const tokenBytes = 18

type sessionRepository interface {
	CreateActive(ctx context.Context, session *models.ClassSession) error
	Activate(ctx context.Context, id string) (*models.ClassSession, error)
	Close(ctx context.Context, id string) (*models.ClassSession, error)
	FindSummaryByID(ctx context.Context, id string) (*models.SessionSummary, error)
	List(ctx context.Context, filter models.SessionFilter) ([]models.SessionSummary, int, error)
	Delete(ctx context.Context, id string) error
}

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// SessionConfig bounds session geometry and builds check-in links.
type SessionConfig struct {
	DefaultRadius float64
	MaxRadius     float64
	AppBaseURL    string
}

// SessionService manages class sessions. Creating or activating a session
// always leaves exactly that session active.
type SessionService struct {
	repo      sessionRepository
	audit     auditWriter
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       SessionConfig
	newToken  func() (string, error)
}

// NewSessionService constructs a SessionService.
func NewSessionService(repo sessionRepository, audit auditWriter, cache *CacheService, validate *validator.Validate, logger *zap.Logger, cfg SessionConfig) *SessionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultRadius <= 0 {
		cfg.DefaultRadius = 30
	}
	if cfg.MaxRadius < cfg.DefaultRadius {
		cfg.MaxRadius = cfg.DefaultRadius
	}
	return &SessionService{
		repo:      repo,
		audit:     audit,
		cache:     cache,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		newToken:  randomToken,
	}
}

// Create opens a new active session and deactivates every other session.
func (s *SessionService) Create(ctx context.Context, req dto.CreateSessionRequest) (*dto.SessionResponse, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "name, latitude and longitude are required")
	}

	radius := s.cfg.DefaultRadius
	if req.RadiusMeters != nil {
		radius = *req.RadiusMeters
	}
	if radius <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "radius must be positive")
	}
	if radius > s.cfg.MaxRadius {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("radius must not exceed %.0f meters", s.cfg.MaxRadius))
	}

	token, err := s.newToken()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate check-in token")
	}

	session := &models.ClassSession{
		Name:         req.Name,
		Latitude:     *req.Latitude,
		Longitude:    *req.Longitude,
		RadiusMeters: radius,
		QRToken:      token,
	}
	if err := s.repo.CreateActive(ctx, session); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "another session was activated concurrently, retry")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create session")
	}

	_ = s.cache.Invalidate(ctx, rosterCachePrefix+"*")
	s.recordAudit(ctx, req.ActorID, models.AuditActionSessionCreate, session)
	s.logger.Info("session created", zap.String("session_id", session.ID), zap.Float64("radius_meters", radius))

	resp := dto.NewSessionResponse(*session, 0, s.CheckInURL(session.QRToken))
	return &resp, nil
}

// Get returns a session with its record count.
func (s *SessionService) Get(ctx context.Context, id string) (*dto.SessionResponse, error) {
	summary, err := s.repo.FindSummaryByID(ctx, id)
	if err != nil {
		return nil, s.mapNotFound(err, "failed to load session")
	}
	resp := dto.NewSessionResponse(summary.ClassSession, summary.RecordCount, s.CheckInURL(summary.QRToken))
	return &resp, nil
}

// List returns sessions newest first.
func (s *SessionService) List(ctx context.Context, query dto.ListSessionsQuery) ([]dto.SessionResponse, *models.Pagination, error) {
	filter := models.SessionFilter{ActiveOnly: query.ActiveOnly, Page: query.Page, PageSize: query.PageSize}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}

	items := make([]dto.SessionResponse, 0, len(rows))
	for _, row := range rows {
		items = append(items, dto.NewSessionResponse(row.ClassSession, row.RecordCount, s.CheckInURL(row.QRToken)))
	}
	return items, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Activate re-opens a session, closing whichever session was active.
func (s *SessionService) Activate(ctx context.Context, req dto.SessionActionRequest) (*dto.SessionResponse, error) {
	session, err := s.repo.Activate(ctx, req.SessionID)
	if err != nil {
		return nil, s.mapNotFound(err, "failed to activate session")
	}
	_ = s.cache.Invalidate(ctx, rosterCachePrefix+"*")
	s.recordAudit(ctx, req.ActorID, models.AuditActionSessionActivate, session)
	return s.Get(ctx, session.ID)
}

// Close deactivates a session so its token stops admitting check-ins.
func (s *SessionService) Close(ctx context.Context, req dto.SessionActionRequest) (*dto.SessionResponse, error) {
	session, err := s.repo.Close(ctx, req.SessionID)
	if err != nil {
		return nil, s.mapNotFound(err, "failed to close session")
	}
	_ = s.cache.Delete(ctx, RosterCacheKey(session.ID))
	s.recordAudit(ctx, req.ActorID, models.AuditActionSessionClose, session)
	return s.Get(ctx, session.ID)
}

// Delete removes a session together with its attendance records.
func (s *SessionService) Delete(ctx context.Context, req dto.SessionActionRequest) error {
	if err := s.repo.Delete(ctx, req.SessionID); err != nil {
		return s.mapNotFound(err, "failed to delete session")
	}
	_ = s.cache.Delete(ctx, RosterCacheKey(req.SessionID))
	s.recordAudit(ctx, req.ActorID, models.AuditActionSessionDelete, &models.ClassSession{ID: req.SessionID})
	return nil
}

// CheckInURL is the link encoded in a session's QR code.
func (s *SessionService) CheckInURL(token string) string {
	base := strings.TrimRight(s.cfg.AppBaseURL, "/")
	return fmt.Sprintf("%s/attendance/%s", base, url.PathEscape(token))
}

func (s *SessionService) mapNotFound(err error, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrSessionNotFound, "session not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func (s *SessionService) recordAudit(ctx context.Context, actorID, action string, session *models.ClassSession) {
	if s.audit == nil {
		return
	}
	entry := &models.AuditLog{
		Action:     action,
		Resource:   models.AuditResourceSession,
		ResourceID: &session.ID,
	}
	if actorID != "" {
		entry.UserID = &actorID
	}
	if session.Name != "" {
		entry.NewValues, _ = json.Marshal(map[string]interface{}{
			"name":          session.Name,
			"radius_meters": session.RadiusMeters,
			"is_active":     session.IsActive,
		})
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to record session audit log", zap.String("action", action), zap.Error(err))
	}
}

func randomToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
