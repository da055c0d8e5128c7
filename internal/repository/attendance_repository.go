package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/geo-checkin-api/internal/models"
)

// AttendanceRepository provides database access for attendance records.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository creates a new instance of AttendanceRepository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// InsertIfAbsent stores record unless the user already has one for the
// session. The unique (user_id, session_id) constraint makes the check and
// the write a single statement, so concurrent callers cannot both insert.
// It reports whether a row was written.
func (r *AttendanceRepository) InsertIfAbsent(ctx context.Context, record *models.AttendanceRecord) (bool, error) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}
	if record.Status == "" {
		record.Status = models.AttendanceStatusPresent
	}

	const query = `INSERT INTO attendance_records (id, user_id, session_id, status, timestamp)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (user_id, session_id) DO NOTHING RETURNING id`
	var insertedID string
	if err := r.db.QueryRowxContext(ctx, query, record.ID, record.UserID, record.SessionID, record.Status, record.Timestamp).Scan(&insertedID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("insert attendance record: %w", err)
	}
	return true, nil
}

// ListBySession returns a session's records ordered by timestamp ascending.
func (r *AttendanceRepository) ListBySession(ctx context.Context, sessionID string) ([]models.AttendanceRecord, error) {
	const query = `SELECT id, user_id, session_id, status, timestamp FROM attendance_records WHERE session_id = $1 ORDER BY timestamp ASC, id ASC`
	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, sessionID); err != nil {
		return nil, fmt.Errorf("list attendance by session: %w", err)
	}
	return records, nil
}

// ListByUser returns a user's most recent check-ins with session names.
func (r *AttendanceRepository) ListByUser(ctx context.Context, userID string, limit int) ([]models.AttendanceHistoryRow, error) {
	switch {
	case limit <= 0:
		limit = 20
	case limit > 100:
		limit = 100
	}
	const query = `SELECT a.session_id, s.name AS session_name, a.status, a.timestamp
FROM attendance_records a
JOIN class_sessions s ON s.id = a.session_id
WHERE a.user_id = $1
ORDER BY a.timestamp DESC
LIMIT $2`
	var rows []models.AttendanceHistoryRow
	if err := r.db.SelectContext(ctx, &rows, query, userID, limit); err != nil {
		return nil, fmt.Errorf("list attendance by user: %w", err)
	}
	return rows, nil
}
