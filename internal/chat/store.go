package chat

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Jonathan1021/chat-whatsapp/internal/apperr"
	"github.com/Jonathan1021/chat-whatsapp/internal/models"
	"github.com/Jonathan1021/chat-whatsapp/internal/repository"
)

// statusRank orders the delivery states for transition checks.
var statusRank = map[string]int{
	models.StatusSent:      0,
	models.StatusDelivered: 1,
	models.StatusRead:      2,
}

// Store appends messages to a chat's log and advances each
// participant's last-activity cursor.
type Store struct {
	messages repository.MessageRepository
	chats    repository.ChatRepository
	statuses repository.StatusRepository
	logger   *zap.Logger
}

func NewStore(
	messages repository.MessageRepository,
	chats repository.ChatRepository,
	statuses repository.StatusRepository,
	logger *zap.Logger,
) *Store {
	return &Store{messages: messages, chats: chats, statuses: statuses, logger: logger}
}

// Append writes an immutable text message stamped "sent".
func (s *Store) Append(ctx context.Context, chatID, senderID, content string) (*models.Message, error) {
	if content == "" {
		return nil, apperr.Validation("message content is required")
	}
	now := time.Now()
	msg := models.Message{
		MessageID: NewMessageID(now),
		ChatID:    chatID,
		SenderID:  senderID,
		Content:   content,
		Timestamp: now.UnixMilli(),
		Status:    models.StatusSent,
		Type:      models.TypeText,
	}
	if err := s.messages.Put(ctx, msg); err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "persist message", err)
	}
	return &msg, nil
}

// AppendSystem writes a synthetic message recording a group membership
// mutation. System messages flow through the same log and the same
// fan-out as ordinary text.
func (s *Store) AppendSystem(ctx context.Context, chatID, actorID, action, content, affectedID, affectedName string) (*models.Message, error) {
	now := time.Now()
	msg := models.Message{
		MessageID:        NewMessageID(now),
		ChatID:           chatID,
		SenderID:         actorID,
		Content:          content,
		Timestamp:        now.UnixMilli(),
		Status:           models.StatusSent,
		Type:             models.TypeSystem,
		SystemAction:     action,
		AffectedUserID:   affectedID,
		AffectedUserName: affectedName,
	}
	if err := s.messages.Put(ctx, msg); err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "persist system message", err)
	}
	return &msg, nil
}

// AdvanceCursors bumps lastActivityAt on every participant's membership
// row. The writes run concurrently and independently; a failed write is
// logged and skipped, because a stale cursor only affects chat-list
// ordering, never message delivery.
func (s *Store) AdvanceCursors(ctx context.Context, chatID string, participants []string, ts int64) {
	g, gctx := errgroup.WithContext(ctx)
	for _, userID := range participants {
		userID := userID
		g.Go(func() error {
			if err := s.chats.UpdateLastActivity(gctx, chatID, userID, ts); err != nil {
				s.logger.Warn("cursor update failed",
					zap.String("chat_id", chatID),
					zap.String("user_id", userID),
					zap.Error(err),
				)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// MarkStatus records a recipient's acknowledgement: a per-user status
// row plus the message record's own status field. Forward transitions
// (sent -> delivered -> read) are expected; a backward transition is
// applied anyway but logged, since the server does not police client
// acknowledgement order. The affected message is returned so callers
// can notify its sender.
func (s *Store) MarkStatus(ctx context.Context, messageID, userID, status string) (*models.Message, error) {
	if _, ok := statusRank[status]; !ok {
		return nil, apperr.Validation("unknown message status")
	}

	msg, err := s.messages.Get(ctx, messageID)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "load message", err)
	}
	if msg == nil {
		return nil, apperr.NotFound("message not found")
	}

	if statusRank[status] < statusRank[msg.Status] {
		s.logger.Warn("backward status transition",
			zap.String("message_id", messageID),
			zap.String("from", msg.Status),
			zap.String("to", status),
		)
	}

	st := models.MessageStatus{
		MessageID: messageID,
		UserID:    userID,
		Status:    status,
		Timestamp: time.Now().UnixMilli(),
	}
	if err := s.statuses.Put(ctx, st); err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "persist status row", err)
	}
	if err := s.messages.UpdateStatus(ctx, messageID, status); err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "update message status", err)
	}
	msg.Status = status
	return msg, nil
}

// List pages through a chat's log newest-first. cursor comes from the
// previous page; an empty next cursor means the log is exhausted.
func (s *Store) List(ctx context.Context, chatID string, limit int, cursor string) ([]models.Message, string, error) {
	messages, next, err := s.messages.ListByChat(ctx, chatID, limit, cursor)
	if err != nil {
		return nil, "", apperr.Wrap(apperr.CodeInternal, "list messages", err)
	}
	return messages, next, nil
}
