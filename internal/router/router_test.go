package router

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/geo-checkin-api/internal/dto"
	"github.com/noah-isme/geo-checkin-api/internal/handler"
	"github.com/noah-isme/geo-checkin-api/internal/models"
	"github.com/noah-isme/geo-checkin-api/internal/service"
	appErrors "github.com/noah-isme/geo-checkin-api/pkg/errors"
)

type tokensStub map[string]*models.JWTClaims

func (t tokensStub) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := t[token]; ok {
		return claims, nil
	}
	return nil, appErrors.ErrUnauthorized
}

type checkInStub struct{ calls int }

func (s *checkInStub) SubmitCheckIn(ctx context.Context, req dto.CheckInRequest, callerID string) (*dto.CheckInResponse, error) {
	s.calls++
	return &dto.CheckInResponse{Outcome: models.CheckInMarked, SessionID: "s1"}, nil
}

func (s *checkInStub) History(ctx context.Context, callerID string, limit int) ([]models.AttendanceHistoryRow, error) {
	return []models.AttendanceHistoryRow{}, nil
}

type rosterStub struct{}

func (rosterStub) Reconcile(ctx context.Context, sessionID string) (*dto.RosterReport, error) {
	return &dto.RosterReport{Session: dto.RosterSession{ID: sessionID}}, nil
}

func (rosterStub) ExportRoster(ctx context.Context, sessionID string, format dto.ExportFormat) (*dto.ExportFile, error) {
	return &dto.ExportFile{Filename: "r.csv", ContentType: "text/csv", Body: []byte("Name\n")}, nil
}

func newTestEngine(checkIn *checkInStub) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return New(Options{APIPrefix: "/api/v1/"}, Dependencies{
		Logger:  zap.NewNop(),
		Metrics: service.NewMetricsService(),
		Tokens: tokensStub{
			"admin":   {UserID: "a1", Role: models.RoleAdmin},
			"student": {UserID: "u1", Role: models.RoleStudent},
		},
		CheckInHandler: handler.NewCheckInHandler(checkIn),
		RosterHandler:  handler.NewRosterHandler(rosterStub{}, rosterStub{}),
		MetricsHandler: handler.NewMetricsHandler(nil, nil, nil),
	})
}

func do(r *gin.Engine, method, path, token string, body []byte) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestRouterCheckInRequiresAuth(t *testing.T) {
	checkIn := &checkInStub{}
	r := newTestEngine(checkIn)
	body := []byte(`{"token":"tok","latitude":0,"longitude":0}`)

	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodPost, "/api/v1/attendance/check-in", "", body).Code)
	w := do(r, http.MethodPost, "/api/v1/attendance/check-in", "student", body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Equal(t, 1, checkIn.calls)
}

func TestRouterRosterIsAdminOnly(t *testing.T) {
	r := newTestEngine(&checkInStub{})

	assert.Equal(t, http.StatusForbidden, do(r, http.MethodGet, "/api/v1/sessions/s1/attendance", "student", nil).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/api/v1/sessions/s1/attendance", "admin", nil).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/api/v1/sessions/s1/attendance/export", "admin", nil).Code)
}

func TestRouterHealth(t *testing.T) {
	r := newTestEngine(&checkInStub{})
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/health", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/docs/index.html", "", nil).Code)
}
