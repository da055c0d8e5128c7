package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/geo-checkin-api/internal/models"
	appErrors "github.com/noah-isme/geo-checkin-api/pkg/errors"
)

type authServiceMock struct {
	login        *models.LoginResponse
	err          error
	lastRegister models.RegisterRequest
	lastLogin    models.LoginRequest
	loggedOut    string
	meID         string
}

func (m *authServiceMock) Register(ctx context.Context, req models.RegisterRequest) (*models.LoginResponse, error) {
	m.lastRegister = req
	return m.login, m.err
}

func (m *authServiceMock) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	m.lastLogin = req
	return m.login, m.err
}

func (m *authServiceMock) RefreshToken(ctx context.Context, req models.RefreshTokenRequest) (*models.RefreshTokenResponse, error) {
	return &models.RefreshTokenResponse{AccessToken: "new"}, m.err
}

func (m *authServiceMock) Logout(ctx context.Context, refreshToken string, userID string, meta models.LoginRequest) error {
	m.loggedOut = refreshToken
	return m.err
}

func (m *authServiceMock) Me(ctx context.Context, userID string) (*models.UserInfo, error) {
	m.meID = userID
	return &models.UserInfo{ID: userID, Role: models.RoleStudent}, m.err
}

func TestAuthHandlerRegister(t *testing.T) {
	mock := &authServiceMock{login: &models.LoginResponse{AccessToken: "access", User: models.UserInfo{ID: "u1", Role: models.RoleStudent}}}
	h := NewAuthHandler(mock)

	c, w := newGinContext(http.MethodPost, "/auth/register", []byte(`{"email":"ana@example.com","password":"correct-horse","full_name":"Ana","student_id":"S-1"}`))
	h.Register(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "ana@example.com", mock.lastRegister.Email)
	require.NotNil(t, mock.lastRegister.StudentID)
	assert.Equal(t, "S-1", *mock.lastRegister.StudentID)
}

func TestAuthHandlerLoginFailure(t *testing.T) {
	mock := &authServiceMock{err: appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")}
	h := NewAuthHandler(mock)

	c, w := newGinContext(http.MethodPost, "/auth/login", []byte(`{"email":"ana@example.com","password":"x"}`))
	h.Login(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), appErrors.ErrInvalidCredentials.Code)
}

func TestAuthHandlerLogoutRequiresClaims(t *testing.T) {
	mock := &authServiceMock{}
	h := NewAuthHandler(mock)

	c, w := newGinContext(http.MethodPost, "/auth/logout", []byte(`{"refresh_token":"rt"}`))
	h.Logout(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	c, w = newGinContext(http.MethodPost, "/auth/logout", []byte(`{"refresh_token":"rt"}`))
	asStudent(c, "u1")
	h.Logout(c)
	c.Writer.WriteHeaderNow()
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "rt", mock.loggedOut)
}

func TestAuthHandlerMe(t *testing.T) {
	mock := &authServiceMock{}
	h := NewAuthHandler(mock)

	c, w := newGinContext(http.MethodGet, "/auth/me", nil)
	asStudent(c, "u1")
	h.Me(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1", mock.meID)
}
