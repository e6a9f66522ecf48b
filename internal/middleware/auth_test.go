package middleware

import (
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

func setupAuthRouter(tokens *auth.TokenManager, users repositories.UserRepository) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", AuthMiddleware(tokens, users), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetInt(UserIDKey)})
	})
	return r
}

func TestAuthMiddlewareBearerToken(t *testing.T) {
	tokens := auth.NewTokenManager("test-secret", 15*time.Minute, time.Hour)
	users := new(mocks.UserRepositoryMock)
	router := setupAuthRouter(tokens, users)

	pair, err := tokens.IssuePair(7)
	require.NoError(t, err)

	users.On("GetUserByID", mock.Anything, 7).Return(models.User{ID: 7, Username: "alice"}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	users.AssertExpectations(t)
}

func TestAuthMiddlewareCookie(t *testing.T) {
	tokens := auth.NewTokenManager("test-secret", 15*time.Minute, time.Hour)
	users := new(mocks.UserRepositoryMock)
	router := setupAuthRouter(tokens, users)

	pair, err := tokens.IssuePair(3)
	require.NoError(t, err)

	users.On("GetUserByID", mock.Anything, 3).Return(models.User{ID: 3}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookie, Value: pair.AccessToken})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthMiddlewareMissingToken(t *testing.T) {
	tokens := auth.NewTokenManager("test-secret", 15*time.Minute, time.Hour)
	router := setupAuthRouter(tokens, new(mocks.UserRepositoryMock))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddlewareExpiredToken(t *testing.T) {
	tokens := auth.NewTokenManager("test-secret", -time.Minute, time.Hour)
	router := setupAuthRouter(tokens, new(mocks.UserRepositoryMock))

	pair, err := tokens.IssuePair(1)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddlewareDeletedAccount(t *testing.T) {
	tokens := auth.NewTokenManager("test-secret", 15*time.Minute, time.Hour)
	users := new(mocks.UserRepositoryMock)
	router := setupAuthRouter(tokens, users)

	pair, err := tokens.IssuePair(9)
	require.NoError(t, err)

	users.On("GetUserByID", mock.Anything, 9).Return(models.User{}, repositories.ErrUserNotFound).Once()

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	users.AssertExpectations(t)
}
