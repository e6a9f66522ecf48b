package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"splitshare-service/internal/middleware"
	"splitshare-service/internal/repositories"
	"splitshare-service/internal/telemetry"
)

// FollowHandler manages the social graph endpoints.
type FollowHandler struct {
	follows repositories.FollowRepository
	users   repositories.UserRepository
	audit   *telemetry.AuditEmitter
}

// NewFollowHandler constructs a FollowHandler.
func NewFollowHandler(follows repositories.FollowRepository, users repositories.UserRepository, audit *telemetry.AuditEmitter) *FollowHandler {
	return &FollowHandler{follows: follows, users: users, audit: audit}
}

// Follow handles GET /api/follow/:username.
func (h *FollowHandler) Follow(c *gin.Context) {
	actorID := c.GetInt(middleware.UserIDKey)
	username := strings.ToLower(strings.TrimSpace(c.Param("username")))

	target, err := h.users.GetUserByUsername(c.Request.Context(), username)
	if errors.Is(err, repositories.ErrUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	if err != nil {
		slog.Error("follow lookup failed", "username", username, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not follow user"})
		return
	}

	if target.ID == actorID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "you cannot follow yourself"})
		return
	}

	// fast path only; the unique index is the real duplicate guard
	exists, err := h.follows.Exists(c.Request.Context(), actorID, target.ID)
	if err != nil {
		slog.Error("follow existence check failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not follow user"})
		return
	}
	if exists {
		c.JSON(http.StatusConflict, gin.H{"error": "already following this user"})
		return
	}

	follow, err := h.follows.CreateFollow(c.Request.Context(), actorID, target.ID)
	if errors.Is(err, repositories.ErrDuplicateFollow) {
		c.JSON(http.StatusConflict, gin.H{"error": "already following this user"})
		return
	}
	if err != nil {
		slog.Error("create follow failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not follow user"})
		return
	}

	h.emitAudit(c, "follow.create", "INFO", "followed "+username)
	c.JSON(http.StatusOK, gin.H{"follow": follow})
}

// Unfollow handles DELETE /api/unfollow/:username. The edge must exist.
func (h *FollowHandler) Unfollow(c *gin.Context) {
	actorID := c.GetInt(middleware.UserIDKey)
	username := strings.ToLower(strings.TrimSpace(c.Param("username")))

	target, err := h.users.GetUserByUsername(c.Request.Context(), username)
	if errors.Is(err, repositories.ErrUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	if err != nil {
		slog.Error("unfollow lookup failed", "username", username, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not unfollow user"})
		return
	}

	err = h.follows.DeleteFollow(c.Request.Context(), actorID, target.ID)
	if errors.Is(err, repositories.ErrFollowNotFound) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "you are not following this user"})
		return
	}
	if err != nil {
		slog.Error("delete follow failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not unfollow user"})
		return
	}

	h.emitAudit(c, "follow.delete", "INFO", "unfollowed "+username)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Followers handles GET /api/followers. An empty list is a valid result.
func (h *FollowHandler) Followers(c *gin.Context) {
	actorID := c.GetInt(middleware.UserIDKey)
	followers, err := h.follows.ListFollowers(c.Request.Context(), actorID)
	if err != nil {
		slog.Error("list followers failed", "user_id", actorID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load followers"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"followers": followers})
}

// Following handles GET /api/following.
func (h *FollowHandler) Following(c *gin.Context) {
	actorID := c.GetInt(middleware.UserIDKey)
	following, err := h.follows.ListFollowing(c.Request.Context(), actorID)
	if err != nil {
		slog.Error("list following failed", "user_id", actorID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load following"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"following": following})
}

func (h *FollowHandler) emitAudit(c *gin.Context, action, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), action, level, text, requestIDFromContext(c), userIDFromContext(c))
}
