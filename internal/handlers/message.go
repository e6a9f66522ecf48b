package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"splitshare-service/internal/middleware"
	"splitshare-service/internal/repositories"
	"splitshare-service/internal/telemetry"
)

// MessageHandler serves group-scoped messaging. Membership gates both
// posting and reading.
type MessageHandler struct {
	messages repositories.MessageRepository
	groups   repositories.GroupRepository
	audit    *telemetry.AuditEmitter
}

// NewMessageHandler constructs a MessageHandler.
func NewMessageHandler(messages repositories.MessageRepository, groups repositories.GroupRepository, audit *telemetry.AuditEmitter) *MessageHandler {
	return &MessageHandler{messages: messages, groups: groups, audit: audit}
}

// Create handles POST /api/message/create.
func (h *MessageHandler) Create(c *gin.Context) {
	senderID := c.GetInt(middleware.UserIDKey)

	var req struct {
		GroupID int    `json:"group_id" binding:"required"`
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := h.groups.GetGroup(c.Request.Context(), req.GroupID); err != nil {
		if errors.Is(err, repositories.ErrGroupNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
			return
		}
		slog.Error("get group failed", "group_id", req.GroupID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not send message"})
		return
	}

	if !h.requireMember(c, req.GroupID, senderID) {
		return
	}

	msg, err := h.messages.CreateMessage(c.Request.Context(), req.GroupID, senderID, req.Content)
	if err != nil {
		slog.Error("create message failed", "group_id", req.GroupID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not send message"})
		return
	}

	h.emitAudit(c, "message.create", "INFO", "message posted to group "+strconv.Itoa(req.GroupID))
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

// List handles GET /api/message/:groupId, oldest first with the sender's
// username resolved.
func (h *MessageHandler) List(c *gin.Context) {
	groupID, err := strconv.Atoi(c.Param("groupId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return
	}
	actorID := c.GetInt(middleware.UserIDKey)

	if _, err := h.groups.GetGroup(c.Request.Context(), groupID); err != nil {
		if errors.Is(err, repositories.ErrGroupNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
			return
		}
		slog.Error("get group failed", "group_id", groupID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load messages"})
		return
	}

	if !h.requireMember(c, groupID, actorID) {
		return
	}

	messages, err := h.messages.ListGroupMessages(c.Request.Context(), groupID)
	if err != nil {
		slog.Error("list messages failed", "group_id", groupID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

func (h *MessageHandler) requireMember(c *gin.Context, groupID, actorID int) bool {
	member, err := h.groups.IsMember(c.Request.Context(), groupID, actorID)
	if err != nil {
		slog.Error("membership check failed", "group_id", groupID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "membership check failed"})
		return false
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "you are not a member of this group"})
		return false
	}
	return true
}

func (h *MessageHandler) emitAudit(c *gin.Context, action, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), action, level, text, requestIDFromContext(c), userIDFromContext(c))
}
