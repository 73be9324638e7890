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

// Resolution is the outcome of resolving a send target: the canonical
// chat id and the full participant set the fan-out must reach.
type Resolution struct {
	ChatID       string
	Participants []string
	IsGroup      bool
}

// Resolver computes or looks up the chat a message belongs to and
// lazily creates membership rows on first contact.
type Resolver struct {
	chats  repository.ChatRepository
	logger *zap.Logger
}

func NewResolver(chats repository.ChatRepository, logger *zap.Logger) *Resolver {
	return &Resolver{chats: chats, logger: logger}
}

// ResolveDirect resolves a 1:1 send. When the sender has no row for the
// canonical chat yet, both participants' rows are created with the same
// chat id. The two writes are independent, not a transaction: a crash
// in between leaves a one-sided chat, and the next resolve from either
// side recreates the missing row. Repeat resolves for an established
// chat cost one read and perform no writes.
func (r *Resolver) ResolveDirect(ctx context.Context, senderID, recipientID string) (*Resolution, error) {
	if senderID == "" || recipientID == "" {
		return nil, apperr.Validation("sender and recipient are required")
	}
	if senderID == recipientID {
		return nil, apperr.Validation("cannot open a chat with yourself")
	}

	chatID := CanonicalChatID(senderID, recipientID)

	existing, err := r.chats.Get(ctx, chatID, senderID)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "resolve chat", err)
	}

	if existing == nil {
		now := time.Now()
		g, gctx := errgroup.WithContext(ctx)
		for _, pair := range [][2]string{{senderID, recipientID}, {recipientID, senderID}} {
			row := models.Chat{
				ChatID:         chatID,
				UserID:         pair[0],
				CounterpartyID: pair[1],
				LastActivityAt: now.UnixMilli(),
				CreatedAt:      now.UTC(),
			}
			g.Go(func() error {
				return r.chats.Put(gctx, row)
			})
		}
		if err := g.Wait(); err != nil {
			// One row may have landed; the next resolve self-heals.
			return nil, apperr.Wrap(apperr.CodeInternal, "create chat rows", err)
		}
		r.logger.Info("chat created",
			zap.String("chat_id", chatID),
			zap.String("sender_id", senderID),
			zap.String("recipient_id", recipientID),
		)
	}

	return &Resolution{
		ChatID:       chatID,
		Participants: []string{senderID, recipientID},
	}, nil
}

// ResolveGroup resolves a group send from the sender's own membership
// row; the row's member list is the participant set, not any global
// source of truth. A sender without a row, or with a residual removed
// row, is not a member and the send is rejected.
func (r *Resolver) ResolveGroup(ctx context.Context, senderID, groupID string) (*Resolution, error) {
	if senderID == "" || groupID == "" {
		return nil, apperr.Validation("sender and group are required")
	}

	row, err := r.chats.Get(ctx, groupID, senderID)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "resolve group", err)
	}
	if row == nil || row.Removed {
		return nil, apperr.NotMember("sender is not a member of this group")
	}

	return &Resolution{
		ChatID:       groupID,
		Participants: row.Members,
		IsGroup:      true,
	}, nil
}
