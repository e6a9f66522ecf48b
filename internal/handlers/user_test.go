package handlers

import (
	"bytes"
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"splitshare-service/internal/auth"
	"splitshare-service/internal/mocks"
	"splitshare-service/internal/models"
	"splitshare-service/internal/repositories"
)

func testTokenManager() *auth.TokenManager {
	return auth.NewTokenManager("test-secret", 15*time.Minute, 7*24*time.Hour)
}

func sqlNullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: true}
}

func setupUserRouter(handler *UserHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/user/create", handler.Register)
	r.POST("/api/user/login", handler.Login)
	r.POST("/api/user/refresh", handler.Refresh)

	authed := r.Group("/")
	authed.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Next()
	})
	authed.POST("/api/user/logout", handler.Logout)
	authed.GET("/api/user/me", handler.Me)
	authed.PUT("/api/user/update", handler.Update)
	authed.PUT("/api/user/change-password", handler.ChangePassword)
	authed.DELETE("/api/user/delete", handler.Delete)
	return r
}

func TestRegisterSuccess(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	handler := NewUserHandler(userRepo, testTokenManager(), nil, false)
	router := setupUserRouter(handler)

	userRepo.On("CreateUser", mock.Anything, mock.MatchedBy(func(p repositories.NewUserParams) bool {
		return p.Username == "alice" && p.Email == "alice@example.com" && p.PasswordHash != "hunter2pass"
	})).Return(models.User{ID: 1, Username: "alice", Email: "alice@example.com"}, nil).Once()
	userRepo.On("SetRefreshToken", mock.Anything, 1, mock.Anything).Return(nil).Once()

	body := bytes.NewBufferString(`{"username":"Alice","email":"Alice@Example.com","password":"hunter2pass"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/user/create", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	userRepo.AssertExpectations(t)

	cookies := rec.Result().Cookies()
	names := make(map[string]bool, len(cookies))
	for _, ck := range cookies {
		names[ck.Name] = true
		require.True(t, ck.HttpOnly)
	}
	require.True(t, names["access_token"])
	require.True(t, names["refresh_token"])
}

func TestRegisterShortPassword(t *testing.T) {
	handler := NewUserHandler(new(mocks.UserRepositoryMock), testTokenManager(), nil, false)
	router := setupUserRouter(handler)

	body := bytes.NewBufferString(`{"username":"alice","email":"alice@example.com","password":"short"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/user/create", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegisterBadDateOfBirth(t *testing.T) {
	handler := NewUserHandler(new(mocks.UserRepositoryMock), testTokenManager(), nil, false)
	router := setupUserRouter(handler)

	body := bytes.NewBufferString(`{"username":"alice","email":"alice@example.com","password":"hunter2pass","date_of_birth":"31-12-1990"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/user/create", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegisterDuplicate(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	handler := NewUserHandler(userRepo, testTokenManager(), nil, false)
	router := setupUserRouter(handler)

	userRepo.On("CreateUser", mock.Anything, mock.Anything).Return(nil, repositories.ErrDuplicateUser).Once()

	body := bytes.NewBufferString(`{"username":"alice","email":"alice@example.com","password":"hunter2pass"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/user/create", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestLoginWithUsername(t *testing.T) {
	hash, err := auth.HashPassword("hunter2pass")
	require.NoError(t, err)

	userRepo := new(mocks.UserRepositoryMock)
	handler := NewUserHandler(userRepo, testTokenManager(), nil, false)
	router := setupUserRouter(handler)

	userRepo.On("GetUserByUsername", mock.Anything, "alice").
		Return(models.User{ID: 1, Username: "alice", PasswordHash: hash}, nil).Once()
	userRepo.On("SetRefreshToken", mock.Anything, 1, mock.Anything).Return(nil).Once()

	body := bytes.NewBufferString(`{"username":"alice","password":"hunter2pass"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/user/login", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	userRepo.AssertExpectations(t)
}

func TestLoginRejectsBothIdentifiers(t *testing.T) {
	handler := NewUserHandler(new(mocks.UserRepositoryMock), testTokenManager(), nil, false)
	router := setupUserRouter(handler)

	body := bytes.NewBufferString(`{"username":"alice","email":"alice@example.com","password":"hunter2pass"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/user/login", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginWrongPassword(t *testing.T) {
	hash, err := auth.HashPassword("hunter2pass")
	require.NoError(t, err)

	userRepo := new(mocks.UserRepositoryMock)
	handler := NewUserHandler(userRepo, testTokenManager(), nil, false)
	router := setupUserRouter(handler)

	userRepo.On("GetUserByUsername", mock.Anything, "alice").
		Return(models.User{ID: 1, Username: "alice", PasswordHash: hash}, nil).Once()

	body := bytes.NewBufferString(`{"username":"alice","password":"wrongwrong"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/user/login", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	userRepo.AssertNotCalled(t, "SetRefreshToken")
}

func TestLoginUnknownAccount(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	handler := NewUserHandler(userRepo, testTokenManager(), nil, false)
	router := setupUserRouter(handler)

	userRepo.On("GetUserByEmail", mock.Anything, "ghost@example.com").Return(nil, repositories.ErrUserNotFound).Once()

	body := bytes.NewBufferString(`{"email":"ghost@example.com","password":"hunter2pass"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/user/login", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRefreshRotatesPair(t *testing.T) {
	tokens := testTokenManager()
	pair, err := tokens.IssuePair(1)
	require.NoError(t, err)

	userRepo := new(mocks.UserRepositoryMock)
	handler := NewUserHandler(userRepo, tokens, nil, false)
	router := setupUserRouter(handler)

	userRepo.On("GetUserByID", mock.Anything, 1).Return(models.User{
		ID:           1,
		Username:     "alice",
		RefreshToken: sqlNullString(pair.RefreshToken),
	}, nil).Once()
	userRepo.On("SetRefreshToken", mock.Anything, 1, mock.Anything).Return(nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/api/user/refresh", nil)
	req.AddCookie(&http.Cookie{Name: "refresh_token", Value: pair.RefreshToken})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	userRepo.AssertExpectations(t)
}

func TestRefreshRejectsRevokedToken(t *testing.T) {
	tokens := testTokenManager()
	pair, err := tokens.IssuePair(1)
	require.NoError(t, err)

	userRepo := new(mocks.UserRepositoryMock)
	handler := NewUserHandler(userRepo, tokens, nil, false)
	router := setupUserRouter(handler)

	// slot holds a different token, so the presented one was rotated out
	userRepo.On("GetUserByID", mock.Anything, 1).Return(models.User{
		ID:           1,
		RefreshToken: sqlNullString("some-other-token"),
	}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/api/user/refresh", nil)
	req.AddCookie(&http.Cookie{Name: "refresh_token", Value: pair.RefreshToken})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	userRepo.AssertNotCalled(t, "SetRefreshToken")
}

func TestRefreshMissingCookie(t *testing.T) {
	handler := NewUserHandler(new(mocks.UserRepositoryMock), testTokenManager(), nil, false)
	router := setupUserRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/api/user/refresh", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMeDeletedAccount(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	handler := NewUserHandler(userRepo, testTokenManager(), nil, false)
	router := setupUserRouter(handler)

	userRepo.On("GetUserByID", mock.Anything, 1).Return(nil, repositories.ErrUserNotFound).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/user/me", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMeRepositoryError(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	handler := NewUserHandler(userRepo, testTokenManager(), nil, false)
	router := setupUserRouter(handler)

	// an infrastructure failure must not masquerade as a revoked session
	userRepo.On("GetUserByID", mock.Anything, 1).Return(nil, errors.New("connection refused")).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/user/me", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRefreshRepositoryError(t *testing.T) {
	tokens := testTokenManager()
	pair, err := tokens.IssuePair(1)
	require.NoError(t, err)

	userRepo := new(mocks.UserRepositoryMock)
	handler := NewUserHandler(userRepo, tokens, nil, false)
	router := setupUserRouter(handler)

	userRepo.On("GetUserByID", mock.Anything, 1).Return(nil, errors.New("connection refused")).Once()

	req := httptest.NewRequest(http.MethodPost, "/api/user/refresh", nil)
	req.AddCookie(&http.Cookie{Name: "refresh_token", Value: pair.RefreshToken})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	userRepo.AssertNotCalled(t, "SetRefreshToken")
}

func TestChangePasswordRepositoryError(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	handler := NewUserHandler(userRepo, testTokenManager(), nil, false)
	router := setupUserRouter(handler)

	userRepo.On("GetUserByID", mock.Anything, 1).Return(nil, errors.New("connection refused")).Once()

	body := bytes.NewBufferString(`{"old_password":"correct-old-1","new_password":"brand-new-1"}`)
	req := httptest.NewRequest(http.MethodPut, "/api/user/change-password", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	userRepo.AssertNotCalled(t, "UpdatePassword")
}

func TestLogoutClearsRefreshSlot(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	handler := NewUserHandler(userRepo, testTokenManager(), nil, false)
	router := setupUserRouter(handler)

	userRepo.On("ClearRefreshToken", mock.Anything, 1).Return(nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/api/user/logout", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	userRepo.AssertExpectations(t)
}

func TestUpdateProfileDuplicateUsername(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	handler := NewUserHandler(userRepo, testTokenManager(), nil, false)
	router := setupUserRouter(handler)

	userRepo.On("UpdateUser", mock.Anything, 1, mock.Anything).Return(nil, repositories.ErrDuplicateUser).Once()

	body := bytes.NewBufferString(`{"username":"taken"}`)
	req := httptest.NewRequest(http.MethodPut, "/api/user/update", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestChangePasswordWrongOld(t *testing.T) {
	hash, err := auth.HashPassword("correct-old-1")
	require.NoError(t, err)

	userRepo := new(mocks.UserRepositoryMock)
	handler := NewUserHandler(userRepo, testTokenManager(), nil, false)
	router := setupUserRouter(handler)

	userRepo.On("GetUserByID", mock.Anything, 1).Return(models.User{ID: 1, PasswordHash: hash}, nil).Once()

	body := bytes.NewBufferString(`{"old_password":"wrong-old-1","new_password":"brand-new-1"}`)
	req := httptest.NewRequest(http.MethodPut, "/api/user/change-password", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	userRepo.AssertNotCalled(t, "UpdatePassword")
}

func TestChangePasswordSameAsOld(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	handler := NewUserHandler(userRepo, testTokenManager(), nil, false)
	router := setupUserRouter(handler)

	body := bytes.NewBufferString(`{"old_password":"same-pass-1","new_password":"same-pass-1"}`)
	req := httptest.NewRequest(http.MethodPut, "/api/user/change-password", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	userRepo.AssertNotCalled(t, "GetUserByID")
}

func TestDeleteAccount(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	handler := NewUserHandler(userRepo, testTokenManager(), nil, false)
	router := setupUserRouter(handler)

	userRepo.On("DeleteUser", mock.Anything, 1).Return(nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/api/user/delete", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	userRepo.AssertExpectations(t)
}
