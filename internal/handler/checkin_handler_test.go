package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/geo-checkin-api/internal/dto"
	"github.com/noah-isme/geo-checkin-api/internal/middleware"
	"github.com/noah-isme/geo-checkin-api/internal/models"
	appErrors "github.com/noah-isme/geo-checkin-api/pkg/errors"
)

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func asStudent(c *gin.Context, id string) {
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: id, Role: models.RoleStudent})
}

func asAdmin(c *gin.Context, id string) {
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: id, Role: models.RoleAdmin})
}

type envelope struct {
	Data  json.RawMessage  `json:"data"`
	Error *appErrors.Error `json:"error"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

type checkInServiceMock struct {
	resp       *dto.CheckInResponse
	err        error
	lastReq    dto.CheckInRequest
	lastCaller string
	history    []models.AttendanceHistoryRow
	lastLimit  int
}

func (m *checkInServiceMock) SubmitCheckIn(ctx context.Context, req dto.CheckInRequest, callerID string) (*dto.CheckInResponse, error) {
	m.lastReq = req
	m.lastCaller = callerID
	return m.resp, m.err
}

func (m *checkInServiceMock) History(ctx context.Context, callerID string, limit int) ([]models.AttendanceHistoryRow, error) {
	m.lastCaller = callerID
	m.lastLimit = limit
	return m.history, m.err
}

func TestCheckInHandlerMarked(t *testing.T) {
	mock := &checkInServiceMock{resp: &dto.CheckInResponse{Outcome: models.CheckInMarked, SessionID: "s1", SessionName: "Algebra"}}
	h := NewCheckInHandler(mock)

	c, w := newGinContext(http.MethodPost, "/attendance/check-in", []byte(`{"token":"tok","latitude":-6.2,"longitude":106.8}`))
	c.Request.Header.Set("User-Agent", "phone")
	asStudent(c, "u1")

	h.CheckIn(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1", mock.lastCaller)
	assert.Equal(t, "tok", mock.lastReq.Token)
	require.NotNil(t, mock.lastReq.Latitude)
	assert.Equal(t, -6.2, *mock.lastReq.Latitude)
	assert.Equal(t, "phone", mock.lastReq.UserAgent)

	var data dto.CheckInResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &data))
	assert.Equal(t, models.CheckInMarked, data.Outcome)
	assert.Equal(t, "s1", data.SessionID)
}

func TestCheckInHandlerOutOfRange(t *testing.T) {
	mock := &checkInServiceMock{err: appErrors.WithDetails(appErrors.ErrOutOfRange, "you are too far from the class location (42m away)", map[string]interface{}{"distance_meters": 42})}
	h := NewCheckInHandler(mock)

	c, w := newGinContext(http.MethodPost, "/attendance/check-in", []byte(`{"token":"tok","latitude":0,"longitude":0}`))
	asStudent(c, "u1")

	h.CheckIn(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	env := decodeEnvelope(t, w)
	require.NotNil(t, env.Error)
	assert.Equal(t, appErrors.ErrOutOfRange.Code, env.Error.Code)
	assert.Equal(t, "you are too far from the class location (42m away)", env.Error.Message)
	assert.EqualValues(t, 42, env.Error.Details["distance_meters"])
}

func TestCheckInHandlerMalformedBody(t *testing.T) {
	mock := &checkInServiceMock{}
	h := NewCheckInHandler(mock)

	c, w := newGinContext(http.MethodPost, "/attendance/check-in", []byte(`{"token":`))
	asStudent(c, "u1")

	h.CheckIn(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, mock.lastCaller)
}

func TestCheckInHandlerHistory(t *testing.T) {
	mock := &checkInServiceMock{history: []models.AttendanceHistoryRow{{SessionID: "s1", SessionName: "Algebra", Status: models.AttendanceStatusPresent}}}
	h := NewCheckInHandler(mock)

	c, w := newGinContext(http.MethodGet, "/attendance/me?limit=5", nil)
	asStudent(c, "u1")

	h.History(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, mock.lastLimit)
	assert.Contains(t, w.Body.String(), "Algebra")
}
