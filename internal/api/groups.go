package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Jonathan1021/chat-whatsapp/internal/chat"
	"github.com/Jonathan1021/chat-whatsapp/internal/middleware"
)

// GroupHandler serves group creation and membership mutations.
type GroupHandler struct {
	engine *chat.GroupEngine
	logger *zap.Logger
}

func NewGroupHandler(engine *chat.GroupEngine, logger *zap.Logger) *GroupHandler {
	return &GroupHandler{engine: engine, logger: logger}
}

type createGroupRequest struct {
	Name        string   `json:"name" binding:"required"`
	Members     []string `json:"members" binding:"required,min=1"`
	Description string   `json:"description"`
}

// Create handles POST /v1/groups.
func (h *GroupHandler) Create(c *gin.Context) {
	var req createGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	row, err := h.engine.CreateGroup(c.Request.Context(), middleware.GetUserID(c), req.Name, req.Members, req.Description)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, row)
}

type membersRequest struct {
	Members []string `json:"members" binding:"required,min=1"`
}

// AddMembers handles POST /v1/groups/:groupId/members.
func (h *GroupHandler) AddMembers(c *gin.Context) {
	var req membersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.engine.AddMembers(c.Request.Context(), middleware.GetUserID(c), c.Param("groupId"), req.Members)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// RemoveMember handles DELETE /v1/groups/:groupId/members/:userId.
func (h *GroupHandler) RemoveMember(c *gin.Context) {
	err := h.engine.RemoveMember(c.Request.Context(), middleware.GetUserID(c), c.Param("groupId"), c.Param("userId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Promote handles POST /v1/groups/:groupId/admins/:userId.
func (h *GroupHandler) Promote(c *gin.Context) {
	err := h.engine.PromoteToAdmin(c.Request.Context(), middleware.GetUserID(c), c.Param("groupId"), c.Param("userId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Demote handles DELETE /v1/groups/:groupId/admins/:userId.
func (h *GroupHandler) Demote(c *gin.Context) {
	err := h.engine.DemoteFromAdmin(c.Request.Context(), middleware.GetUserID(c), c.Param("groupId"), c.Param("userId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Leave handles POST /v1/groups/:groupId/leave.
func (h *GroupHandler) Leave(c *gin.Context) {
	err := h.engine.LeaveGroup(c.Request.Context(), middleware.GetUserID(c), c.Param("groupId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type updateInfoRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// UpdateInfo handles PATCH /v1/groups/:groupId.
func (h *GroupHandler) UpdateInfo(c *gin.Context) {
	var req updateInfoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.engine.UpdateInfo(c.Request.Context(), middleware.GetUserID(c), c.Param("groupId"), req.Name, req.Description)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
