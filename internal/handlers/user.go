package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"splitshare-service/internal/auth"
	"splitshare-service/internal/middleware"
	"splitshare-service/internal/models"
	"splitshare-service/internal/observability"
	"splitshare-service/internal/repositories"
	"splitshare-service/internal/telemetry"
)

// UserHandler manages account endpoints: signup, login, token refresh,
// logout, profile reads and updates, password changes, deletion.
type UserHandler struct {
	users         repositories.UserRepository
	tokens        *auth.TokenManager
	audit         *telemetry.AuditEmitter
	secureCookies bool
}

// NewUserHandler constructs a UserHandler.
func NewUserHandler(users repositories.UserRepository, tokens *auth.TokenManager, audit *telemetry.AuditEmitter, secureCookies bool) *UserHandler {
	return &UserHandler{
		users:         users,
		tokens:        tokens,
		audit:         audit,
		secureCookies: secureCookies,
	}
}

func (h *UserHandler) setAuthCookies(c *gin.Context, pair auth.TokenPair) {
	c.SetCookie(middleware.AccessCookie, pair.AccessToken, int(h.tokens.AccessTTL().Seconds()), "/", "", h.secureCookies, true)
	c.SetCookie(middleware.RefreshCookie, pair.RefreshToken, int(h.tokens.RefreshTTL().Seconds()), "/", "", h.secureCookies, true)
}

func (h *UserHandler) clearAuthCookies(c *gin.Context) {
	c.SetCookie(middleware.AccessCookie, "", -1, "/", "", h.secureCookies, true)
	c.SetCookie(middleware.RefreshCookie, "", -1, "/", "", h.secureCookies, true)
}

// issueSession mints a token pair, persists the refresh token in the
// account's single slot, and sets both cookies.
func (h *UserHandler) issueSession(c *gin.Context, userID int) (auth.TokenPair, error) {
	pair, err := h.tokens.IssuePair(userID)
	if err != nil {
		return auth.TokenPair{}, err
	}
	if err := h.users.SetRefreshToken(c.Request.Context(), userID, pair.RefreshToken); err != nil {
		return auth.TokenPair{}, err
	}
	h.setAuthCookies(c, pair)
	return pair, nil
}

// Register handles POST /api/user/create.
func (h *UserHandler) Register(c *gin.Context) {
	var req struct {
		FirstName   string `json:"first_name"`
		LastName    string `json:"last_name"`
		Username    string `json:"username" binding:"required"`
		Email       string `json:"email" binding:"required,email"`
		Password    string `json:"password" binding:"required,min=8"`
		PhoneNumber string `json:"phone_number"`
		PhotoURL    string `json:"photo_url"`
		DateOfBirth string `json:"date_of_birth"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.DateOfBirth != "" {
		if _, err := time.Parse("2006-01-02", req.DateOfBirth); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date_of_birth must be YYYY-MM-DD"})
			return
		}
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		slog.Error("password hash failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create account"})
		return
	}

	params := repositories.NewUserParams{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Username:     strings.ToLower(strings.TrimSpace(req.Username)),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: hash,
		PhoneNumber:  optional(req.PhoneNumber),
		PhotoURL:     optional(req.PhotoURL),
		DateOfBirth:  optional(req.DateOfBirth),
	}

	user, err := h.users.CreateUser(c.Request.Context(), params)
	if errors.Is(err, repositories.ErrDuplicateUser) {
		c.JSON(http.StatusConflict, gin.H{"error": "username or email already taken"})
		return
	}
	if err != nil {
		slog.Error("create user failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create account"})
		return
	}

	if _, err := h.issueSession(c, user.ID); err != nil {
		slog.Error("issue session failed", "user_id", user.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create session"})
		return
	}

	h.emitAudit(c, "user.signup", "INFO", "account created")
	c.JSON(http.StatusCreated, gin.H{"user": user.Profile()})
}

// Login handles POST /api/user/login. Exactly one of username or email
// identifies the account.
func (h *UserHandler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if (req.Username == "") == (req.Email == "") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "provide exactly one of username or email"})
		return
	}

	var (
		user models.User
		err  error
	)
	if req.Username != "" {
		user, err = h.users.GetUserByUsername(c.Request.Context(), strings.ToLower(strings.TrimSpace(req.Username)))
	} else {
		user, err = h.users.GetUserByEmail(c.Request.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	}
	if errors.Is(err, repositories.ErrUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no account with that username or email"})
		return
	}
	if err != nil {
		slog.Error("login lookup failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	if !auth.VerifyPassword(req.Password, user.PasswordHash) {
		observability.IncAuthFailure("bad_password")
		h.emitAudit(c, "user.login", "WARN", "wrong password")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	if _, err := h.issueSession(c, user.ID); err != nil {
		slog.Error("issue session failed", "user_id", user.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create session"})
		return
	}

	h.emitAudit(c, "user.login", "INFO", "login successful")
	c.JSON(http.StatusOK, gin.H{"user": user.Profile()})
}

// Refresh handles POST /api/user/refresh: validates the refresh cookie
// against the stored single slot and rotates the token pair.
func (h *UserHandler) Refresh(c *gin.Context) {
	tokenString, err := c.Cookie(middleware.RefreshCookie)
	if err != nil || tokenString == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing refresh token"})
		return
	}

	claims, err := h.tokens.Validate(tokenString)
	if err != nil {
		observability.IncAuthFailure("invalid_refresh")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired refresh token"})
		return
	}

	user, err := h.users.GetUserByID(c.Request.Context(), claims.UserID)
	if errors.Is(err, repositories.ErrUserNotFound) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "account no longer exists"})
		return
	}
	if err != nil {
		slog.Error("refresh lookup failed", "user_id", claims.UserID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not refresh session"})
		return
	}

	// single slot: only the most recently issued refresh token is honored
	if !user.RefreshToken.Valid || user.RefreshToken.String != tokenString {
		observability.IncAuthFailure("revoked_refresh")
		h.emitAudit(c, "user.refresh", "WARN", "refresh token not in slot")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "refresh token revoked"})
		return
	}

	if _, err := h.issueSession(c, user.ID); err != nil {
		slog.Error("refresh rotation failed", "user_id", user.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not refresh session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user.Profile()})
}

// Logout handles POST /api/user/logout: clears the stored refresh token.
// Already-issued access tokens stay valid until their own expiry.
func (h *UserHandler) Logout(c *gin.Context) {
	userID := c.GetInt(middleware.UserIDKey)
	if err := h.users.ClearRefreshToken(c.Request.Context(), userID); err != nil {
		slog.Error("clear refresh token failed", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "logout failed"})
		return
	}

	h.clearAuthCookies(c)
	h.emitAudit(c, "user.logout", "INFO", "logged out")
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Me handles GET /api/user/me.
func (h *UserHandler) Me(c *gin.Context) {
	userID := c.GetInt(middleware.UserIDKey)
	user, err := h.users.GetUserByID(c.Request.Context(), userID)
	if errors.Is(err, repositories.ErrUserNotFound) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "account no longer exists"})
		return
	}
	if err != nil {
		slog.Error("get user failed", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load profile"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user.Profile()})
}

// GetByUsername handles GET /api/user/:username (public).
func (h *UserHandler) GetByUsername(c *gin.Context) {
	username := strings.ToLower(strings.TrimSpace(c.Param("username")))
	user, err := h.users.GetUserByUsername(c.Request.Context(), username)
	if errors.Is(err, repositories.ErrUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	if err != nil {
		slog.Error("get user failed", "username", username, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load user"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user.Profile()})
}

// Update handles PUT /api/user/update with partial profile fields.
func (h *UserHandler) Update(c *gin.Context) {
	userID := c.GetInt(middleware.UserIDKey)

	var req struct {
		FirstName   *string `json:"first_name"`
		LastName    *string `json:"last_name"`
		Username    *string `json:"username"`
		Email       *string `json:"email"`
		PhoneNumber *string `json:"phone_number"`
		PhotoURL    *string `json:"photo_url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	update := repositories.UserUpdate{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Username:    normalize(req.Username),
		Email:       normalize(req.Email),
		PhoneNumber: req.PhoneNumber,
		PhotoURL:    req.PhotoURL,
	}

	user, err := h.users.UpdateUser(c.Request.Context(), userID, update)
	if errors.Is(err, repositories.ErrDuplicateUser) {
		c.JSON(http.StatusConflict, gin.H{"error": "username or email already taken"})
		return
	}
	if err != nil {
		slog.Error("update user failed", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update profile"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user.Profile()})
}

// ChangePassword handles PUT /api/user/change-password.
func (h *UserHandler) ChangePassword(c *gin.Context) {
	userID := c.GetInt(middleware.UserIDKey)

	var req struct {
		OldPassword string `json:"old_password" binding:"required"`
		NewPassword string `json:"new_password" binding:"required,min=8"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.OldPassword == req.NewPassword {
		c.JSON(http.StatusBadRequest, gin.H{"error": "new password must differ from the old one"})
		return
	}

	user, err := h.users.GetUserByID(c.Request.Context(), userID)
	if errors.Is(err, repositories.ErrUserNotFound) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "account no longer exists"})
		return
	}
	if err != nil {
		slog.Error("get user failed", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not change password"})
		return
	}

	if !auth.VerifyPassword(req.OldPassword, user.PasswordHash) {
		observability.IncAuthFailure("bad_password")
		h.emitAudit(c, "user.change_password", "WARN", "wrong old password")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "old password is incorrect"})
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		slog.Error("password hash failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not change password"})
		return
	}
	if err := h.users.UpdatePassword(c.Request.Context(), userID, hash); err != nil {
		slog.Error("update password failed", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not change password"})
		return
	}

	h.emitAudit(c, "user.change_password", "INFO", "password changed")
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Delete handles DELETE /api/user/delete. Memberships, follow edges,
// messages and admin-owned groups cascade at the database level.
func (h *UserHandler) Delete(c *gin.Context) {
	userID := c.GetInt(middleware.UserIDKey)
	if err := h.users.DeleteUser(c.Request.Context(), userID); err != nil {
		slog.Error("delete user failed", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not delete account"})
		return
	}

	h.clearAuthCookies(c)
	h.emitAudit(c, "user.delete", "INFO", "account deleted")
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *UserHandler) emitAudit(c *gin.Context, action, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), action, level, text, requestIDFromContext(c), userIDFromContext(c))
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func normalize(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.ToLower(strings.TrimSpace(*s))
	return &v
}
