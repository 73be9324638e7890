package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/Jonathan1021/chat-whatsapp/internal/middleware"
	"github.com/Jonathan1021/chat-whatsapp/internal/models"
	"github.com/Jonathan1021/chat-whatsapp/internal/repository"
)

// UserHandler serves the user directory and presence lookups.
type UserHandler struct {
	users    repository.UserRepository
	presence repository.PresenceRepository
	logger   *zap.Logger
}

func NewUserHandler(users repository.UserRepository, presence repository.PresenceRepository, logger *zap.Logger) *UserHandler {
	return &UserHandler{users: users, presence: presence, logger: logger}
}

// List handles GET /v1/users: every registered user except the caller,
// for the new-chat picker.
func (h *UserHandler) List(c *gin.Context) {
	callerID := middleware.GetUserID(c)

	users, err := h.users.List(c.Request.Context())
	if err != nil {
		h.logger.Error("user list failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	others := lo.Filter(users, func(u models.User, _ int) bool {
		return u.ID != callerID
	})
	c.JSON(http.StatusOK, gin.H{"users": others})
}

// Me handles GET /v1/users/me.
func (h *UserHandler) Me(c *gin.Context) {
	user, err := h.users.GetByID(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		h.logger.Error("user lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, user)
}

// Presence handles GET /v1/users/:userId/presence.
func (h *UserHandler) Presence(c *gin.Context) {
	presence, err := h.presence.Get(c.Request.Context(), c.Param("userId"))
	if err != nil {
		h.logger.Error("presence lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, presence)
}
