package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"splitshare-service/internal/middleware"
	"splitshare-service/internal/repositories"
	"splitshare-service/internal/telemetry"
)

// maxGroupAmount bounds group amounts so the cents conversion in the
// ledger stays well within int64.
const maxGroupAmount = 1_000_000_000

// GroupHandler manages group lifecycle, membership, and the expense ledger.
type GroupHandler struct {
	groups repositories.GroupRepository
	users  repositories.UserRepository
	audit  *telemetry.AuditEmitter
}

// NewGroupHandler constructs a GroupHandler.
func NewGroupHandler(groups repositories.GroupRepository, users repositories.UserRepository, audit *telemetry.AuditEmitter) *GroupHandler {
	return &GroupHandler{groups: groups, users: users, audit: audit}
}

// Create handles POST /api/group/create. The admin becomes the first
// member; initial members join in the same transaction and shares are an
// equal division of amount among everyone inserted.
func (h *GroupHandler) Create(c *gin.Context) {
	adminID := c.GetInt(middleware.UserIDKey)

	var req struct {
		Name        string  `json:"name" binding:"required"`
		Description string  `json:"description"`
		Currency    string  `json:"currency"`
		GroupTypes  string  `json:"group_types"`
		Amount      float64 `json:"amount" binding:"required,gt=0,lte=1000000000"`
		Members     []int   `json:"members"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// fast path so a bad member id fails before the transaction
	for _, id := range req.Members {
		if _, err := h.users.GetUserByID(c.Request.Context(), id); err != nil {
			if errors.Is(err, repositories.ErrUserNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("user %d not found", id)})
				return
			}
			slog.Error("member lookup failed", "user_id", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create group"})
			return
		}
	}

	group, err := h.groups.CreateGroup(c.Request.Context(), adminID, repositories.CreateGroupParams{
		Name:        req.Name,
		Description: req.Description,
		Currency:    req.Currency,
		GroupTypes:  req.GroupTypes,
		Amount:      req.Amount,
		MemberIDs:   req.Members,
	})
	if errors.Is(err, repositories.ErrDuplicateGroup) {
		c.JSON(http.StatusConflict, gin.H{"error": "group name already taken"})
		return
	}
	if errors.Is(err, repositories.ErrDuplicateMember) {
		c.JSON(http.StatusConflict, gin.H{"error": "duplicate user in initial members"})
		return
	}
	if err != nil {
		slog.Error("create group failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create group"})
		return
	}

	h.emitAudit(c, "group.create", "INFO", "group created: "+group.Name)
	c.JSON(http.StatusCreated, gin.H{"group": group})
}

// Get handles GET /api/group/:id: group plus resolved member list, for
// members only.
func (h *GroupHandler) Get(c *gin.Context) {
	groupID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return
	}
	actorID := c.GetInt(middleware.UserIDKey)

	group, err := h.groups.GetGroup(c.Request.Context(), groupID)
	if errors.Is(err, repositories.ErrGroupNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
		return
	}
	if err != nil {
		slog.Error("get group failed", "group_id", groupID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load group"})
		return
	}

	if !h.requireMember(c, groupID, actorID) {
		return
	}

	members, err := h.groups.ListMembers(c.Request.Context(), groupID)
	if err != nil {
		slog.Error("list members failed", "group_id", groupID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load members"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"group": group, "members": members})
}

// List handles GET /api/groups: groups where the caller is admin or member.
func (h *GroupHandler) List(c *gin.Context) {
	actorID := c.GetInt(middleware.UserIDKey)
	groups, err := h.groups.ListGroupsForUser(c.Request.Context(), actorID)
	if err != nil {
		slog.Error("list groups failed", "user_id", actorID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load groups"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": groups})
}

// AddMember handles POST /api/group/add. The actor must already be a
// member; the admin qualifies through its own membership row.
func (h *GroupHandler) AddMember(c *gin.Context) {
	actorID := c.GetInt(middleware.UserIDKey)

	var req struct {
		UserID  int `json:"user_id" binding:"required"`
		GroupID int `json:"group_id" binding:"required"`
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
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not add member"})
		return
	}

	if !h.requireMember(c, req.GroupID, actorID) {
		return
	}

	if _, err := h.users.GetUserByID(c.Request.Context(), req.UserID); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		slog.Error("user lookup failed", "user_id", req.UserID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not add member"})
		return
	}

	membership, err := h.groups.AddMember(c.Request.Context(), req.GroupID, req.UserID)
	if errors.Is(err, repositories.ErrDuplicateMember) {
		c.JSON(http.StatusConflict, gin.H{"error": "user is already a member"})
		return
	}
	if err != nil {
		slog.Error("add member failed", "group_id", req.GroupID, "user_id", req.UserID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not add member"})
		return
	}

	h.emitAudit(c, "group.member_add", "INFO", fmt.Sprintf("user %d added to group %d", req.UserID, req.GroupID))
	c.JSON(http.StatusOK, gin.H{"membership": membership})
}

// RemoveMember handles DELETE /api/group/remove. The actor must be the
// admin or a member.
func (h *GroupHandler) RemoveMember(c *gin.Context) {
	actorID := c.GetInt(middleware.UserIDKey)

	var req struct {
		UserID  int `json:"user_id" binding:"required"`
		GroupID int `json:"group_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	group, err := h.groups.GetGroup(c.Request.Context(), req.GroupID)
	if errors.Is(err, repositories.ErrGroupNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
		return
	}
	if err != nil {
		slog.Error("get group failed", "group_id", req.GroupID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not remove member"})
		return
	}

	if group.AdminID != actorID {
		if !h.requireMember(c, req.GroupID, actorID) {
			return
		}
	}

	removed, err := h.groups.RemoveMember(c.Request.Context(), req.GroupID, req.UserID)
	if errors.Is(err, repositories.ErrMemberNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "membership not found"})
		return
	}
	if err != nil {
		slog.Error("remove member failed", "group_id", req.GroupID, "user_id", req.UserID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not remove member"})
		return
	}

	h.emitAudit(c, "group.member_remove", "INFO", fmt.Sprintf("user %d removed from group %d", req.UserID, req.GroupID))
	c.JSON(http.StatusOK, gin.H{"membership": removed})
}

// Update handles PUT /api/group/update. Admin only; an amount change
// recomputes all shares in the same transaction.
func (h *GroupHandler) Update(c *gin.Context) {
	actorID := c.GetInt(middleware.UserIDKey)

	var req struct {
		GroupID     int      `json:"group_id" binding:"required"`
		Name        *string  `json:"name"`
		Description *string  `json:"description"`
		Currency    *string  `json:"currency"`
		GroupTypes  *string  `json:"group_types"`
		Amount      *float64 `json:"amount"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Amount != nil && (*req.Amount <= 0 || *req.Amount > maxGroupAmount) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be positive and at most 1000000000"})
		return
	}

	group, err := h.groups.GetGroup(c.Request.Context(), req.GroupID)
	if errors.Is(err, repositories.ErrGroupNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
		return
	}
	if err != nil {
		slog.Error("get group failed", "group_id", req.GroupID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update group"})
		return
	}
	if group.AdminID != actorID {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the group admin may update the group"})
		return
	}

	updated, err := h.groups.UpdateGroup(c.Request.Context(), req.GroupID, repositories.GroupUpdate{
		Name:        req.Name,
		Description: req.Description,
		Currency:    req.Currency,
		GroupTypes:  req.GroupTypes,
		Amount:      req.Amount,
	})
	if errors.Is(err, repositories.ErrDuplicateGroup) {
		c.JSON(http.StatusConflict, gin.H{"error": "group name already taken"})
		return
	}
	if err != nil {
		slog.Error("update group failed", "group_id", req.GroupID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update group"})
		return
	}

	h.emitAudit(c, "group.update", "INFO", "group updated: "+updated.Name)
	c.JSON(http.StatusOK, gin.H{"group": updated})
}

// requireMember aborts with 403 unless the actor holds a membership row.
func (h *GroupHandler) requireMember(c *gin.Context, groupID, actorID int) bool {
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

func (h *GroupHandler) emitAudit(c *gin.Context, action, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), action, level, text, requestIDFromContext(c), userIDFromContext(c))
}
