package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/geo-checkin-api/internal/models"
	"github.com/noah-isme/geo-checkin-api/pkg/events"
	"github.com/noah-isme/geo-checkin-api/pkg/jobs"
)

// JobTypeAttendanceMarked is the job type dispatched for new check-ins.
const JobTypeAttendanceMarked = "attendance.marked"

// AttendanceEventConfig tunes the background side effects of a check-in.
type AttendanceEventConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	Subject    string
}

// AttendanceEventService moves post check-in work off the request path: it
// writes the audit trail entry and publishes the event to the broker.
type AttendanceEventService struct {
	queue     *jobs.Queue
	audit     auditWriter
	publisher events.Publisher
	subject   string
	logger    *zap.Logger
}

// NewAttendanceEventService constructs the service and its worker queue.
func NewAttendanceEventService(audit auditWriter, publisher events.Publisher, metrics *MetricsService, logger *zap.Logger, cfg AttendanceEventConfig) *AttendanceEventService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if cfg.Subject == "" {
		cfg.Subject = "attendance.marked"
	}
	svc := &AttendanceEventService{
		audit:     audit,
		publisher: publisher,
		subject:   cfg.Subject,
		logger:    logger,
	}
	svc.queue = jobs.NewQueue("attendance-events", svc.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
		OnResult: func(job jobs.Job, err error) {
			metrics.RecordEventJob(job.Type, err)
		},
	})
	return svc
}

// Start launches the workers.
func (s *AttendanceEventService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains queued events and waits for the workers.
func (s *AttendanceEventService) Stop() {
	s.queue.Stop()
}

// AttendanceMarked enqueues event without blocking the caller. A full or
// stopped queue only logs: the attendance record is already committed.
func (s *AttendanceEventService) AttendanceMarked(ctx context.Context, event models.AttendanceMarkedEvent) {
	job := jobs.Job{ID: event.RecordID, Type: JobTypeAttendanceMarked, Payload: event}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("failed to enqueue attendance event",
			zap.String("record_id", event.RecordID),
			zap.String("session_id", event.SessionID),
			zap.Error(err))
	}
}

func (s *AttendanceEventService) handle(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(models.AttendanceMarkedEvent)
	if !ok {
		return fmt.Errorf("unexpected payload %T for job %s", job.Payload, job.Type)
	}

	// Retries only republish; the audit entry is written on the first attempt.
	if job.Attempt == 0 && s.audit != nil {
		values, _ := json.Marshal(event)
		userID := event.UserID
		recordID := event.RecordID
		if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
			UserID:     &userID,
			Action:     models.AuditActionAttendanceMarked,
			Resource:   models.AuditResourceAttendance,
			ResourceID: &recordID,
			NewValues:  values,
			IPAddress:  event.IPAddress,
			UserAgent:  event.UserAgent,
		}); err != nil {
			s.logger.Warn("failed to record attendance audit log", zap.String("record_id", event.RecordID), zap.Error(err))
		}
	}

	return s.publisher.Publish(ctx, s.subject, event)
}
