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

// activationLockKey serialises transactions that change which session is active.
const activationLockKey = 7_001_001

const sessionColumns = `id, name, latitude, longitude, radius_meters, qr_token, is_active, created_at`

// SessionRepository provides database access for class sessions.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository creates a new instance of SessionRepository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// CreateActive inserts session as the only active session. Every other
// session is deactivated in the same transaction.
func (r *SessionRepository) CreateActive(ctx context.Context, session *models.ClassSession) (err error) {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	session.IsActive = true

	tx, err := r.beginActivation(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insert = `INSERT INTO class_sessions (id, name, latitude, longitude, radius_meters, qr_token, is_active, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err = tx.ExecContext(ctx, insert, session.ID, session.Name, session.Latitude, session.Longitude, session.RadiusMeters, session.QRToken, session.IsActive, session.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert class session: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit class session: %w", err)
	}
	return nil
}

// Activate makes id the only active session. sql.ErrNoRows is returned when
// the session does not exist, in which case nothing changes.
func (r *SessionRepository) Activate(ctx context.Context, id string) (_ *models.ClassSession, err error) {
	tx, err := r.beginActivation(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := `UPDATE class_sessions SET is_active = TRUE WHERE id = $1 RETURNING ` + sessionColumns
	var session models.ClassSession
	if err = tx.GetContext(ctx, &session, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("activate class session: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit class session activation: %w", err)
	}
	return &session, nil
}

// beginActivation opens a transaction holding the activation lock with every
// session already deactivated.
func (r *SessionRepository) beginActivation(ctx context.Context) (*sqlx.Tx, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin session activation: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, activationLockKey); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("lock session activation: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE class_sessions SET is_active = FALSE WHERE is_active`); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("deactivate class sessions: %w", err)
	}
	return tx, nil
}

// Close deactivates a single session.
func (r *SessionRepository) Close(ctx context.Context, id string) (*models.ClassSession, error) {
	query := `UPDATE class_sessions SET is_active = FALSE WHERE id = $1 RETURNING ` + sessionColumns
	var session models.ClassSession
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("close class session: %w", err)
	}
	return &session, nil
}

// FindActiveByToken resolves an active session by its exact check-in token.
func (r *SessionRepository) FindActiveByToken(ctx context.Context, token string) (*models.ClassSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM class_sessions WHERE qr_token = $1 AND is_active = TRUE LIMIT 1`
	var session models.ClassSession
	if err := r.db.GetContext(ctx, &session, query, token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find active session by token: %w", err)
	}
	return &session, nil
}

// FindByID returns a session by identifier.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.ClassSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM class_sessions WHERE id = $1 LIMIT 1`
	var session models.ClassSession
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find session by id: %w", err)
	}
	return &session, nil
}

// FindSummaryByID returns a session with its record count.
func (r *SessionRepository) FindSummaryByID(ctx context.Context, id string) (*models.SessionSummary, error) {
	const query = `SELECT s.id, s.name, s.latitude, s.longitude, s.radius_meters, s.qr_token, s.is_active, s.created_at, COUNT(a.id) AS record_count
FROM class_sessions s
LEFT JOIN attendance_records a ON a.session_id = s.id
WHERE s.id = $1
GROUP BY s.id`
	var summary models.SessionSummary
	if err := r.db.GetContext(ctx, &summary, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find session summary: %w", err)
	}
	return &summary, nil
}

// List returns sessions newest first with their record counts and the total.
func (r *SessionRepository) List(ctx context.Context, filter models.SessionFilter) ([]models.SessionSummary, int, error) {
	where := ""
	if filter.ActiveOnly {
		where = " WHERE s.is_active = TRUE"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf(`SELECT s.id, s.name, s.latitude, s.longitude, s.radius_meters, s.qr_token, s.is_active, s.created_at, COUNT(a.id) AS record_count
FROM class_sessions s
LEFT JOIN attendance_records a ON a.session_id = s.id%s
GROUP BY s.id
ORDER BY s.created_at DESC LIMIT %d OFFSET %d`, where, pageSize, offset)

	var sessions []models.SessionSummary
	if err := r.db.SelectContext(ctx, &sessions, listQuery); err != nil {
		return nil, 0, fmt.Errorf("list class sessions: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM class_sessions s`+where); err != nil {
		return nil, 0, fmt.Errorf("count class sessions: %w", err)
	}

	return sessions, total, nil
}

// Delete removes a session; its attendance records cascade.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM class_sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete class session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete class session: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
