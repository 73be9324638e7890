package chat

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Jonathan1021/chat-whatsapp/internal/apperr"
	"github.com/Jonathan1021/chat-whatsapp/internal/models"
	"github.com/Jonathan1021/chat-whatsapp/internal/repository"
)

// SendRequest targets a send one of three ways: a recipient user id
// (1:1, chat resolved or created on the fly), an existing 1:1 chat id,
// or a group id.
type SendRequest struct {
	SenderID    string `json:"-"`
	RecipientID string `json:"recipientId"`
	ChatID      string `json:"chatId"`
	Content     string `json:"content"`
}

// TypingEvent tells the other participants someone is composing.
type TypingEvent struct {
	ChatID string `json:"chatId"`
	UserID string `json:"userId"`
}

// PresenceEvent tells a user's contacts they went on or offline.
type PresenceEvent struct {
	UserID   string `json:"userId"`
	Online   bool   `json:"online"`
	LastSeen int64  `json:"lastSeen,omitempty"`
}

// StatusEvent tells a sender one of their messages changed state.
type StatusEvent struct {
	MessageID string `json:"messageId"`
	ChatID    string `json:"chatId"`
	UserID    string `json:"userId"`
	Status    string `json:"status"`
}

// ChatSummary is one entry of a user's chat list, denormalized for
// rendering: the display name and avatar are resolved server-side and
// the newest message rides along.
type ChatSummary struct {
	ChatID         string          `json:"chatId"`
	IsGroup        bool            `json:"isGroup"`
	Name           string          `json:"name"`
	Avatar         string          `json:"avatar"`
	Role           string          `json:"role,omitempty"`
	Removed        bool            `json:"removed,omitempty"`
	Members        []string        `json:"members,omitempty"`
	Admins         []string        `json:"admins,omitempty"`
	Description    string          `json:"description,omitempty"`
	Online         bool            `json:"online"`
	LastSeen       int64           `json:"lastSeen,omitempty"`
	LastMessage    *models.Message `json:"lastMessage,omitempty"`
	LastActivityAt int64           `json:"lastMessageTime"`
	Unread         int             `json:"unread"`
}

// Service is the realtime core: it resolves a send to a chat and its
// participant set, appends to the log, advances cursors and fans the
// message out. The HTTP and WebSocket layers are thin shells over it.
type Service struct {
	resolver   *Resolver
	store      *Store
	dispatcher *Dispatcher
	chats      repository.ChatRepository
	users      repository.UserRepository
	presence   repository.PresenceRepository
	logger     *zap.Logger
}

func NewService(
	resolver *Resolver,
	store *Store,
	dispatcher *Dispatcher,
	chats repository.ChatRepository,
	users repository.UserRepository,
	presence repository.PresenceRepository,
	logger *zap.Logger,
) *Service {
	return &Service{
		resolver:   resolver,
		store:      store,
		dispatcher: dispatcher,
		chats:      chats,
		users:      users,
		presence:   presence,
		logger:     logger,
	}
}

// resolveTarget turns any of the three addressing forms into a chat id
// plus participant set.
func (s *Service) resolveTarget(ctx context.Context, senderID, recipientID, chatID string) (*Resolution, error) {
	switch {
	case strings.HasPrefix(chatID, "group_"):
		return s.resolver.ResolveGroup(ctx, senderID, chatID)
	case recipientID != "":
		return s.resolver.ResolveDirect(ctx, senderID, recipientID)
	case strings.HasPrefix(chatID, "chat_"):
		row, err := s.chats.Get(ctx, chatID, senderID)
		if err != nil {
			return nil, apperr.Wrap(apperr.CodeInternal, "load chat row", err)
		}
		if row == nil {
			return nil, apperr.NotMember("you are not a participant of this chat")
		}
		return s.resolver.ResolveDirect(ctx, senderID, row.CounterpartyID)
	default:
		return nil, apperr.Validation("a recipient or chat id is required")
	}
}

// Send appends a message and fans it out to every participant except
// the sender. Persistence is the commit point: once the append
// succeeds the send succeeds, whatever happens during delivery.
func (s *Service) Send(ctx context.Context, req SendRequest) (*models.Message, error) {
	res, err := s.resolveTarget(ctx, req.SenderID, req.RecipientID, req.ChatID)
	if err != nil {
		return nil, err
	}

	msg, err := s.store.Append(ctx, res.ChatID, req.SenderID, req.Content)
	if err != nil {
		return nil, err
	}

	s.store.AdvanceCursors(ctx, res.ChatID, res.Participants, msg.Timestamp)
	report := s.dispatcher.Deliver(ctx, msg, res.Participants, req.SenderID)

	s.logger.Debug("message sent",
		zap.String("chat_id", res.ChatID),
		zap.String("message_id", msg.MessageID),
		zap.Int("delivered", report.Delivered),
		zap.Int("pruned", report.Pruned),
	)
	return msg, nil
}

// Typing fans a transient typing indicator out to the other
// participants. Nothing is persisted and failures are swallowed.
func (s *Service) Typing(ctx context.Context, userID, chatID string) error {
	res, err := s.resolveTarget(ctx, userID, "", chatID)
	if err != nil {
		return err
	}
	s.dispatcher.DeliverEvent(ctx, Event{
		Type: "typing",
		Data: TypingEvent{ChatID: res.ChatID, UserID: userID},
	}, res.Participants, userID)
	return nil
}

// MarkStatus records a recipient's delivered/read acknowledgement and
// notifies the message's sender.
func (s *Service) MarkStatus(ctx context.Context, userID, messageID, status string) error {
	msg, err := s.store.MarkStatus(ctx, messageID, userID, status)
	if err != nil {
		return err
	}
	if msg.SenderID != userID {
		s.dispatcher.DeliverEvent(ctx, Event{
			Type: "messageStatus",
			Data: StatusEvent{
				MessageID: msg.MessageID,
				ChatID:    msg.ChatID,
				UserID:    userID,
				Status:    status,
			},
		}, []string{msg.SenderID}, "")
	}
	return nil
}

// BroadcastPresence tells everyone who shares a chat with the user
// about an online/offline transition. Contacts come from the user's
// own membership rows; best-effort like any other fan-out.
func (s *Service) BroadcastPresence(ctx context.Context, userID string, online bool, lastSeen time.Time) {
	rows, err := s.chats.ListByUser(ctx, userID)
	if err != nil {
		s.logger.Warn("presence contact lookup failed", zap.String("user_id", userID), zap.Error(err))
		return
	}

	contacts := make([]string, 0, len(rows))
	for _, row := range rows {
		if row.Removed {
			continue
		}
		if row.IsGroup {
			contacts = append(contacts, row.Members...)
		} else {
			contacts = append(contacts, row.CounterpartyID)
		}
	}

	event := PresenceEvent{UserID: userID, Online: online}
	if !online && !lastSeen.IsZero() {
		event.LastSeen = lastSeen.UnixMilli()
	}
	s.dispatcher.DeliverEvent(ctx, Event{Type: "presence", Data: event}, lo.Uniq(contacts), userID)
}

// Messages pages through a chat's log for one of its participants.
func (s *Service) Messages(ctx context.Context, userID, chatID string, limit int, cursor string) ([]models.Message, string, error) {
	row, err := s.chats.Get(ctx, chatID, userID)
	if err != nil {
		return nil, "", apperr.Wrap(apperr.CodeInternal, "load chat row", err)
	}
	if row == nil {
		return nil, "", apperr.NotMember("you are not a participant of this chat")
	}
	return s.store.List(ctx, chatID, limit, cursor)
}

// OpenDirect resolves (and creates if needed) the 1:1 chat between the
// caller and another user, returning its summary.
func (s *Service) OpenDirect(ctx context.Context, userID, otherID string) (*ChatSummary, error) {
	res, err := s.resolver.ResolveDirect(ctx, userID, otherID)
	if err != nil {
		return nil, err
	}
	row, err := s.chats.Get(ctx, res.ChatID, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "load chat row", err)
	}
	if row == nil {
		return nil, apperr.Internal("chat row missing after resolve")
	}
	return s.summarize(ctx, *row), nil
}

// ChatList builds the user's chat list, newest activity first. Each
// row is enriched concurrently; an enrichment miss degrades the entry
// instead of failing the whole list.
func (s *Service) ChatList(ctx context.Context, userID string) ([]ChatSummary, error) {
	rows, err := s.chats.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "list chats", err)
	}

	summaries := make([]ChatSummary, len(rows))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for i, row := range rows {
		i, row := i, row
		g.Go(func() error {
			summary := s.summarize(gctx, row)
			mu.Lock()
			summaries[i] = *summary
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].LastActivityAt > summaries[j].LastActivityAt
	})
	return summaries, nil
}

// summarize enriches one membership row into a list entry: group rows
// carry their own display data, 1:1 rows borrow the counterparty's.
func (s *Service) summarize(ctx context.Context, row models.Chat) *ChatSummary {
	summary := &ChatSummary{
		ChatID:         row.ChatID,
		IsGroup:        row.IsGroup,
		Role:           row.Role,
		Removed:        row.Removed,
		LastActivityAt: row.LastActivityAt,
	}

	if row.IsGroup {
		summary.Name = row.GroupName
		summary.Avatar = Initials(row.GroupName)
		summary.Members = row.Members
		summary.Admins = row.Admins
		summary.Description = row.GroupDescription
	} else {
		summary.Name = row.CounterpartyID
		if user, err := s.users.GetByID(ctx, row.CounterpartyID); err == nil && user != nil {
			summary.Name = user.DisplayName
		}
		summary.Avatar = Initials(summary.Name)
		if presence, err := s.presence.Get(ctx, row.CounterpartyID); err == nil {
			summary.Online = presence.Online
			if !presence.LastSeen.IsZero() {
				summary.LastSeen = presence.LastSeen.UnixMilli()
			}
		}
	}

	if last, _, err := s.store.List(ctx, row.ChatID, 1, ""); err == nil && len(last) > 0 {
		summary.LastMessage = &last[0]
	}
	return summary
}
