package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/geo-checkin-api/internal/dto"
	"github.com/noah-isme/geo-checkin-api/internal/models"
	appErrors "github.com/noah-isme/geo-checkin-api/pkg/errors"
)

const rosterCachePrefix = "roster:"

type rosterSessionRepository interface {
	FindByID(ctx context.Context, id string) (*models.ClassSession, error)
}

type rosterStudentRepository interface {
	ListStudents(ctx context.Context) ([]models.Student, error)
}

type rosterAttendanceRepository interface {
	ListBySession(ctx context.Context, sessionID string) ([]models.AttendanceRecord, error)
}

// RosterService reconciles the student roster against a session's check-ins.
type RosterService struct {
	sessions rosterSessionRepository
	students rosterStudentRepository
	records  rosterAttendanceRepository
	cache    *CacheService
	cacheTTL time.Duration
	logger   *zap.Logger
	now      func() time.Time

	// generation advances on every invalidation; a report computed across
	// an invalidation is returned but not cached.
	mu         sync.Mutex
	generation uint64
}

// NewRosterService constructs a RosterService. cache may be nil.
func NewRosterService(sessions rosterSessionRepository, students rosterStudentRepository, records rosterAttendanceRepository, cache *CacheService, cacheTTL time.Duration, logger *zap.Logger) *RosterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RosterService{
		sessions: sessions,
		students: students,
		records:  records,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// RosterCacheKey returns the cache key holding a session's report.
func RosterCacheKey(sessionID string) string {
	return rosterCachePrefix + sessionID
}

// Reconcile partitions every student into present and missing for sessionID.
// Both lists keep the roster's name order and Present+Missing equals Students.
func (s *RosterService) Reconcile(ctx context.Context, sessionID string) (*dto.RosterReport, error) {
	if sessionID == "" {
		return nil, appErrors.Clone(appErrors.ErrSessionNotFound, "session not found")
	}

	var cached dto.RosterReport
	if hit, _ := s.cache.Get(ctx, RosterCacheKey(sessionID), &cached); hit {
		return &cached, nil
	}
	generation := s.currentGeneration()

	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrSessionNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}

	roster, err := s.students.ListStudents(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}

	records, err := s.records.ListBySession(ctx, session.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance records")
	}

	report := BuildRosterReport(*session, roster, records)
	report.GeneratedAt = s.now()

	s.store(ctx, generation, report)
	return report, nil
}

func (s *RosterService) currentGeneration() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

func (s *RosterService) store(ctx context.Context, generation uint64, report *dto.RosterReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if generation != s.generation {
		s.logger.Debug("roster changed during reconcile, skipping cache", zap.String("session_id", report.Session.ID))
		return
	}
	if err := s.cache.Set(ctx, RosterCacheKey(report.Session.ID), report, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache roster report", zap.String("session_id", report.Session.ID), zap.Error(err))
	}
}

// InvalidateSession drops the cached report for sessionID.
func (s *RosterService) InvalidateSession(ctx context.Context, sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	if err := s.cache.Delete(ctx, RosterCacheKey(sessionID)); err != nil {
		s.logger.Warn("failed to invalidate roster cache", zap.String("session_id", sessionID), zap.Error(err))
	}
}

// InvalidateAll drops every cached report. Called when the roster itself
// changes.
func (s *RosterService) InvalidateAll(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	if err := s.cache.Invalidate(ctx, rosterCachePrefix+"*"); err != nil {
		s.logger.Warn("failed to invalidate roster cache", zap.Error(err))
	}
}

// BuildRosterReport joins roster against records. Each present student
// carries their earliest record; records of non-students are ignored.
func BuildRosterReport(session models.ClassSession, roster []models.Student, records []models.AttendanceRecord) *dto.RosterReport {
	earliest := make(map[string]models.AttendanceRecord, len(records))
	for _, rec := range records {
		if prev, ok := earliest[rec.UserID]; !ok || rec.Timestamp.Before(prev.Timestamp) {
			earliest[rec.UserID] = rec
		}
	}

	present := make([]dto.PresentStudent, 0, len(earliest))
	missing := make([]models.Student, 0, len(roster))
	for _, student := range roster {
		rec, ok := earliest[student.ID]
		if !ok {
			missing = append(missing, student)
			continue
		}
		ts := rec.Timestamp
		status := rec.Status
		present = append(present, dto.PresentStudent{Student: student, Timestamp: &ts, Status: &status})
	}

	return &dto.RosterReport{
		Session: dto.RosterSession{
			ID:        session.ID,
			Name:      session.Name,
			CreatedAt: session.CreatedAt,
			IsActive:  session.IsActive,
		},
		Totals: dto.RosterTotals{
			Students: len(roster),
			Present:  len(present),
			Missing:  len(missing),
		},
		Present: present,
		Missing: missing,
	}
}
