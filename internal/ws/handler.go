package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Jonathan1021/chat-whatsapp/internal/apperr"
	"github.com/Jonathan1021/chat-whatsapp/internal/chat"
	"github.com/Jonathan1021/chat-whatsapp/internal/middleware"
	"github.com/Jonathan1021/chat-whatsapp/internal/models"
	"github.com/Jonathan1021/chat-whatsapp/internal/repository"
)

// connectionTTL bounds how long a registry record outlives a
// connection that died without running disconnect cleanup.
const connectionTTL = 24 * time.Hour

// inboundFrame is the envelope of every client-to-server frame.
type inboundFrame struct {
	Action      string `json:"action"`
	RecipientID string `json:"recipientId"`
	ChatID      string `json:"chatId"`
	Content     string `json:"content"`
	MessageID   string `json:"messageId"`
	Status      string `json:"status"`
}

// Handler upgrades HTTP requests to WebSocket connections and drives
// the per-connection lifecycle: register, pump, clean up.
type Handler struct {
	hub      *Hub
	registry repository.ConnectionRepository
	presence repository.PresenceRepository
	service  *chat.Service
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

func NewHandler(
	hub *Hub,
	registry repository.ConnectionRepository,
	presence repository.PresenceRepository,
	service *chat.Service,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		hub:      hub,
		registry: registry,
		presence: presence,
		service:  service,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(*http.Request) bool {
				return true
			},
		},
	}
}

// Connect is the upgrade endpoint. Authentication already happened in
// the middleware; from here the connection is registered under a fresh
// id so the dispatcher can find it, and presence flips to online.
func (h *Handler) Connect(c *gin.Context) {
	userID := middleware.GetUserID(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	connectionID := uuid.NewString()
	client := newClient(connectionID, userID, conn, h.logger)

	ctx := context.WithoutCancel(c.Request.Context())
	if err := h.attach(ctx, client); err != nil {
		h.logger.Error("connection register failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		_ = conn.Close()
		return
	}
	if err := h.presence.SetOnline(ctx, userID); err != nil {
		h.logger.Warn("presence update failed", zap.String("user_id", userID), zap.Error(err))
	}
	h.service.BroadcastPresence(ctx, userID, true, time.Time{})

	h.logger.Info("websocket connected",
		zap.String("connection_id", connectionID),
		zap.String("user_id", userID),
	)

	go client.writePump()
	client.readPump(
		func(payload []byte) { h.handleFrame(ctx, client, payload) },
		func() {
			// Keepalive doubles as a presence heartbeat.
			_ = h.presence.SetOnline(ctx, userID)
		},
	)

	h.disconnect(ctx, client)
}

// attach makes a connection reachable: hub first, registry second. The
// order matters. As soon as the registry knows the connection id, a
// concurrent fan-out may push to it; if the hub did not hold the client
// yet, that push would report the live connection gone and the
// dispatcher would prune it for good. The disconnect path runs the
// mirror order (hub, then registry).
func (h *Handler) attach(ctx context.Context, client *Client) error {
	h.hub.add(client)

	now := time.Now()
	err := h.registry.Register(ctx, models.Connection{
		ConnectionID: client.connectionID,
		UserID:       client.userID,
		ConnectedAt:  now,
		ExpiresAt:    now.Add(connectionTTL),
	})
	if err != nil {
		h.hub.remove(client)
		return err
	}
	return nil
}

func (h *Handler) disconnect(ctx context.Context, client *Client) {
	h.hub.remove(client)
	if err := h.registry.Unregister(ctx, client.connectionID); err != nil {
		h.logger.Warn("connection unregister failed",
			zap.String("connection_id", client.connectionID),
			zap.Error(err),
		)
	}

	// The user only goes offline when their last connection is gone;
	// other devices or tabs keep presence alive.
	remaining, err := h.registry.ConnectionsFor(ctx, client.userID)
	if err == nil && len(remaining) == 0 {
		lastSeen := time.Now()
		if err := h.presence.SetOffline(ctx, client.userID, lastSeen); err != nil {
			h.logger.Warn("presence update failed", zap.String("user_id", client.userID), zap.Error(err))
		}
		h.service.BroadcastPresence(ctx, client.userID, false, lastSeen)
	}

	h.logger.Info("websocket disconnected",
		zap.String("connection_id", client.connectionID),
		zap.String("user_id", client.userID),
	)
}

func (h *Handler) handleFrame(ctx context.Context, client *Client, payload []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		h.reply(client, "error", gin.H{"message": "malformed frame"})
		return
	}

	switch frame.Action {
	case "sendMessage":
		msg, err := h.service.Send(ctx, chat.SendRequest{
			SenderID:    client.userID,
			RecipientID: frame.RecipientID,
			ChatID:      frame.ChatID,
			Content:     frame.Content,
		})
		if err != nil {
			h.replyErr(client, err)
			return
		}
		h.reply(client, "messageSent", msg)
	case "typing":
		if err := h.service.Typing(ctx, client.userID, frame.ChatID); err != nil {
			h.replyErr(client, err)
		}
	case "messageStatus":
		if err := h.service.MarkStatus(ctx, client.userID, frame.MessageID, frame.Status); err != nil {
			h.replyErr(client, err)
		}
	default:
		h.reply(client, "error", gin.H{"message": "unknown action"})
	}
}

// reply pushes an event back to the originating connection only.
func (h *Handler) reply(client *Client, eventType string, data any) {
	payload, err := json.Marshal(chat.Event{Type: eventType, Data: data})
	if err != nil {
		return
	}
	select {
	case client.send <- payload:
	default:
	}
}

func (h *Handler) replyErr(client *Client, err error) {
	msg := "internal error"
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		msg = appErr.Message
	}
	h.reply(client, "error", gin.H{"message": msg})
}
