package repository

import (
	"context"
	"time"

	"github.com/Jonathan1021/chat-whatsapp/internal/models"
)

// Every method takes a context: all implementations do network or disk
// I/O and must honor request cancellation. Implementations return
// (nil, nil) for single-row lookups that find nothing; callers translate
// absence into domain errors.

// ConnectionRepository is the persistence half of the connection
// registry. Register is an idempotent upsert with a TTL; Unregister is
// a no-op when the record is already gone, so pruning after a failed
// push never errors on a connection that expired meanwhile.
type ConnectionRepository interface {
	Register(ctx context.Context, conn models.Connection) error
	Unregister(ctx context.Context, connectionID string) error

	// ConnectionsFor returns all live connection ids for a user. The
	// result may be stale: a connection can die without Unregister
	// having run, and delivery-failure pruning cleans those up later.
	ConnectionsFor(ctx context.Context, userID string) ([]string, error)
}

// ChatRepository stores membership rows, one per (chatID, userID).
type ChatRepository interface {
	Put(ctx context.Context, chat models.Chat) error
	Get(ctx context.Context, chatID, userID string) (*models.Chat, error)

	// ListByUser returns every membership row a user holds, for the
	// chat-list projection. Ordering is up to the caller.
	ListByUser(ctx context.Context, userID string) ([]models.Chat, error)

	// ListByChat returns all member rows of one chat, including
	// residual rows marked removed.
	ListByChat(ctx context.Context, chatID string) ([]models.Chat, error)

	// UpdateLastActivity advances one participant's cursor. It must not
	// touch any other attribute of the row.
	UpdateLastActivity(ctx context.Context, chatID, userID string, ts int64) error

	Delete(ctx context.Context, chatID, userID string) error
}

// MessageRepository stores the per-chat message log.
type MessageRepository interface {
	Put(ctx context.Context, msg models.Message) error
	Get(ctx context.Context, messageID string) (*models.Message, error)

	// ListByChat pages through a chat's log newest-first. cursor is an
	// opaque continuation token from a previous call ("" for the first
	// page); the returned token is "" when the log is exhausted.
	ListByChat(ctx context.Context, chatID string, limit int, cursor string) ([]models.Message, string, error)

	// UpdateStatus rewrites only the status field of a message.
	UpdateStatus(ctx context.Context, messageID, status string) error
}

// StatusRepository stores per-recipient acknowledgement rows.
type StatusRepository interface {
	Put(ctx context.Context, st models.MessageStatus) error
	ListByMessage(ctx context.Context, messageID string) ([]models.MessageStatus, error)
}

// UserRepository is the user directory.
type UserRepository interface {
	Create(ctx context.Context, user models.User) (*models.User, error)
	GetByID(ctx context.Context, userID string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
}

// PresenceRepository tracks who is online. SetOnline refreshes a
// TTL'd marker; readers treat an expired marker as offline with the
// recorded lastSeen.
type PresenceRepository interface {
	SetOnline(ctx context.Context, userID string) error
	SetOffline(ctx context.Context, userID string, lastSeen time.Time) error
	Get(ctx context.Context, userID string) (models.Presence, error)
}
