package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/geo-checkin-api/internal/models"
)

var sessionRowColumns = []string{"id", "name", "latitude", "longitude", "radius_meters", "qr_token", "is_active", "created_at"}

func expectActivationPrelude(mock sqlmock.Sqlmock) {
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock($1)")).
		WithArgs(activationLockKey).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE class_sessions SET is_active = FALSE WHERE is_active")).
		WillReturnResult(sqlmock.NewResult(0, 1))
}

func TestCreateActiveDeactivatesOthersInOneTransaction(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	expectActivationPrelude(mock)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO class_sessions")).
		WithArgs(sqlmock.AnyArg(), "Lecture B", 1.5, 2.5, 30.0, "tok-b", true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	session := &models.ClassSession{Name: "Lecture B", Latitude: 1.5, Longitude: 2.5, RadiusMeters: 30, QRToken: "tok-b"}
	require.NoError(t, repo.CreateActive(context.Background(), session))
	assert.NotEmpty(t, session.ID)
	assert.True(t, session.IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateActiveRollsBackOnInsertFailure(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	expectActivationPrelude(mock)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO class_sessions")).WillReturnError(errors.New("insert failed"))
	mock.ExpectRollback()

	err := repo.CreateActive(context.Background(), &models.ClassSession{Name: "Broken", RadiusMeters: 30, QRToken: "tok"})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActivateExistingSession(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	now := time.Now()
	expectActivationPrelude(mock)
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE class_sessions SET is_active = TRUE WHERE id = $1 RETURNING")).
		WithArgs("s-a").
		WillReturnRows(sqlmock.NewRows(sessionRowColumns).AddRow("s-a", "Lecture A", 0.0, 0.0, 30.0, "tok-a", true, now))
	mock.ExpectCommit()

	session, err := repo.Activate(context.Background(), "s-a")
	require.NoError(t, err)
	assert.True(t, session.IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActivateUnknownSessionRollsBack(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	expectActivationPrelude(mock)
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE class_sessions SET is_active = TRUE WHERE id = $1 RETURNING")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(sessionRowColumns))
	mock.ExpectRollback()

	_, err := repo.Activate(context.Background(), "missing")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindActiveByTokenIsExact(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM class_sessions WHERE qr_token = $1 AND is_active = TRUE LIMIT 1")).
		WithArgs("Tok-A ").
		WillReturnRows(sqlmock.NewRows(sessionRowColumns).AddRow("s-a", "Lecture A", -6.2, 106.8, 50.0, "Tok-A ", true, now))

	session, err := repo.FindActiveByToken(context.Background(), "Tok-A ")
	require.NoError(t, err)
	assert.Equal(t, -6.2, session.Anchor().Lat)
	assert.Equal(t, 106.8, session.Anchor().Lon)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListSessionsWithCounts(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(append(append([]string{}, sessionRowColumns...), "record_count")).
		AddRow("s-b", "Lecture B", 0.0, 0.0, 30.0, "tok-b", true, now, 3).
		AddRow("s-a", "Lecture A", 0.0, 0.0, 30.0, "tok-a", false, now.Add(-time.Hour), 0)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY s.created_at DESC LIMIT 20 OFFSET 0")).WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM class_sessions s")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	sessions, total, err := repo.List(context.Background(), models.SessionFilter{})
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, 3, sessions[0].RecordCount)
	assert.Equal(t, "Lecture B", sessions[0].Name)
	assert.Equal(t, 2, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteMissingSession(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM class_sessions WHERE id = $1")).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "missing")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCloseSession(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE class_sessions SET is_active = FALSE WHERE id = $1 RETURNING")).
		WithArgs("s-a").
		WillReturnRows(sqlmock.NewRows(sessionRowColumns).AddRow("s-a", "Lecture A", 0.0, 0.0, 30.0, "tok-a", false, time.Now()))

	session, err := repo.Close(context.Background(), "s-a")
	require.NoError(t, err)
	assert.False(t, session.IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}
