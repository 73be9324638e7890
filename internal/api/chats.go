package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Jonathan1021/chat-whatsapp/internal/chat"
	"github.com/Jonathan1021/chat-whatsapp/internal/middleware"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

// ChatHandler serves the chat list, chat creation and the per-chat
// message log over REST. Realtime traffic goes over the WebSocket; the
// REST surface exists for initial loads and history scrollback.
type ChatHandler struct {
	service *chat.Service
	logger  *zap.Logger
}

func NewChatHandler(service *chat.Service, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{service: service, logger: logger}
}

// List handles GET /v1/chats.
func (h *ChatHandler) List(c *gin.Context) {
	userID := middleware.GetUserID(c)

	summaries, err := h.service.ChatList(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chats": summaries})
}

type openChatRequest struct {
	UserID string `json:"userId" binding:"required"`
}

// Open handles POST /v1/chats: resolve or create the 1:1 chat with
// another user.
func (h *ChatHandler) Open(c *gin.Context) {
	var req openChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	summary, err := h.service.OpenDirect(c.Request.Context(), middleware.GetUserID(c), req.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// Messages handles GET /v1/chats/:chatId/messages with cursor paging.
func (h *ChatHandler) Messages(c *gin.Context) {
	userID := middleware.GetUserID(c)
	chatID := c.Param("chatId")

	limit := defaultPageSize
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'limit' parameter"})
			return
		}
		limit = min(parsed, maxPageSize)
	}

	messages, next, err := h.service.Messages(c.Request.Context(), userID, chatID, limit, c.Query("cursor"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"messages":   messages,
		"nextCursor": next,
	})
}

type sendMessageRequest struct {
	RecipientID string `json:"recipientId"`
	Content     string `json:"content" binding:"required"`
}

// Send handles POST /v1/chats/:chatId/messages, the REST fallback for
// sending when the WebSocket is unavailable.
func (h *ChatHandler) Send(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.service.Send(c.Request.Context(), chat.SendRequest{
		SenderID:    middleware.GetUserID(c),
		RecipientID: req.RecipientID,
		ChatID:      c.Param("chatId"),
		Content:     req.Content,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateStatus handles PATCH /v1/messages/:messageId/status.
func (h *ChatHandler) UpdateStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.service.MarkStatus(c.Request.Context(), middleware.GetUserID(c), c.Param("messageId"), req.Status)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
