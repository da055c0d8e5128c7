package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/geo-checkin-api/internal/dto"
	"github.com/noah-isme/geo-checkin-api/internal/models"
	appErrors "github.com/noah-isme/geo-checkin-api/pkg/errors"
)

type sessionServiceMock struct {
	resp       *dto.SessionResponse
	list       []dto.SessionResponse
	pagination *models.Pagination
	err        error
	lastCreate dto.CreateSessionRequest
	lastQuery  dto.ListSessionsQuery
	lastAction dto.SessionActionRequest
	calls      []string
}

func (m *sessionServiceMock) Create(ctx context.Context, req dto.CreateSessionRequest) (*dto.SessionResponse, error) {
	m.calls = append(m.calls, "create")
	m.lastCreate = req
	return m.resp, m.err
}

func (m *sessionServiceMock) Get(ctx context.Context, id string) (*dto.SessionResponse, error) {
	m.calls = append(m.calls, "get")
	m.lastAction = dto.SessionActionRequest{SessionID: id}
	return m.resp, m.err
}

func (m *sessionServiceMock) List(ctx context.Context, query dto.ListSessionsQuery) ([]dto.SessionResponse, *models.Pagination, error) {
	m.calls = append(m.calls, "list")
	m.lastQuery = query
	return m.list, m.pagination, m.err
}

func (m *sessionServiceMock) Activate(ctx context.Context, req dto.SessionActionRequest) (*dto.SessionResponse, error) {
	m.calls = append(m.calls, "activate")
	m.lastAction = req
	return m.resp, m.err
}

func (m *sessionServiceMock) Close(ctx context.Context, req dto.SessionActionRequest) (*dto.SessionResponse, error) {
	m.calls = append(m.calls, "close")
	m.lastAction = req
	return m.resp, m.err
}

func (m *sessionServiceMock) Delete(ctx context.Context, req dto.SessionActionRequest) error {
	m.calls = append(m.calls, "delete")
	m.lastAction = req
	return m.err
}

func TestSessionHandlerCreate(t *testing.T) {
	mock := &sessionServiceMock{resp: &dto.SessionResponse{ID: "s1", Name: "Algebra", IsActive: true}}
	h := NewSessionHandler(mock)

	c, w := newGinContext(http.MethodPost, "/sessions", []byte(`{"name":"Algebra","latitude":-6.2,"longitude":106.8,"radius_meters":50}`))
	asAdmin(c, "admin-1")

	h.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "admin-1", mock.lastCreate.ActorID)
	require.NotNil(t, mock.lastCreate.RadiusMeters)
	assert.Equal(t, 50.0, *mock.lastCreate.RadiusMeters)
	assert.Contains(t, w.Body.String(), `"is_active":true`)
}

func TestSessionHandlerList(t *testing.T) {
	mock := &sessionServiceMock{
		list:       []dto.SessionResponse{{ID: "s2"}, {ID: "s1"}},
		pagination: &models.Pagination{Page: 2, PageSize: 2, TotalCount: 4},
	}
	h := NewSessionHandler(mock)

	c, w := newGinContext(http.MethodGet, "/sessions?active=true&page=2&page_size=2", nil)
	asAdmin(c, "admin-1")

	h.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, mock.lastQuery.ActiveOnly)
	assert.Equal(t, 2, mock.lastQuery.Page)
	assert.Equal(t, 2, mock.lastQuery.PageSize)
	assert.Contains(t, w.Body.String(), `"total_count":4`)
}

func TestSessionHandlerActions(t *testing.T) {
	mock := &sessionServiceMock{resp: &dto.SessionResponse{ID: "s1"}}
	h := NewSessionHandler(mock)

	for _, tc := range []struct {
		name   string
		call   func(*gin.Context)
		status int
	}{
		{"activate", h.Activate, http.StatusOK},
		{"close", h.Close, http.StatusOK},
		{"delete", h.Delete, http.StatusNoContent},
		{"get", h.Get, http.StatusOK},
	} {
		c, w := newGinContext(http.MethodPost, "/sessions/s1/"+tc.name, nil)
		c.Params = gin.Params{{Key: "id", Value: "s1"}}
		asAdmin(c, "admin-1")

		tc.call(c)
		if tc.status == http.StatusNoContent {
			// gin defers the header write for bodiless responses
			c.Writer.WriteHeaderNow()
		}
		assert.Equal(t, tc.status, w.Code, tc.name)
		assert.Equal(t, "s1", mock.lastAction.SessionID, tc.name)
	}
	assert.Equal(t, []string{"activate", "close", "delete", "get"}, mock.calls)
}

func TestSessionHandlerNotFound(t *testing.T) {
	mock := &sessionServiceMock{err: appErrors.Clone(appErrors.ErrSessionNotFound, "session not found")}
	h := NewSessionHandler(mock)

	c, w := newGinContext(http.MethodGet, "/sessions/missing", nil)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}
	asAdmin(c, "admin-1")

	h.Get(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), appErrors.ErrSessionNotFound.Code)
}
