package models

import "time"

// Message delivery status, as acknowledged by recipients.
// The server accepts forward transitions (sent -> delivered -> read);
// backward transitions are not rejected, only logged.
const (
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusRead      = "read"
)

// Message kinds. System messages record group membership mutations
// and carry SystemAction plus the affected user.
const (
	TypeText   = "text"
	TypeSystem = "system"
)

// System actions emitted by the group membership engine.
const (
	ActionGroupCreated  = "group_created"
	ActionMemberAdded   = "member_added"
	ActionMemberRemoved = "member_removed"
	ActionMemberLeft    = "member_left"
	ActionAdminPromoted = "admin_promoted"
	ActionAdminDemoted  = "admin_demoted"
	ActionInfoUpdated   = "info_updated"
)

// Membership roles inside a group chat.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// User is an account in the directory. PasswordHash never leaves the
// server; the json tag keeps it out of every API response.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Connection maps a live transport connection to its user. A user may
// hold several at once (multi-device); records expire after 24h and are
// deleted on disconnect or when a push reports the connection gone.
type Connection struct {
	ConnectionID string    `json:"connectionId" dynamodbav:"connectionId"`
	UserID       string    `json:"userId" dynamodbav:"userId"`
	ConnectedAt  time.Time `json:"connectedAt" dynamodbav:"connectedAt,unixtime"`
	ExpiresAt    time.Time `json:"expiresAt" dynamodbav:"ttl,unixtime"`
}

// Chat is one membership row: the view of a conversation from one
// participant's side. A 1:1 chat is exactly two rows sharing the same
// canonical ChatID, each pointing at the other via CounterpartyID. A
// group chat is one row per member, each carrying its own copy of the
// member and admin lists. The copies converge but are not transactional:
// concurrent mutations may leave rows transiently divergent, and every
// reader trusts its own row.
type Chat struct {
	ChatID         string `json:"chatId" dynamodbav:"chatId"`
	UserID         string `json:"userId" dynamodbav:"userId"`
	CounterpartyID string `json:"counterpartyId,omitempty" dynamodbav:"counterpartyId,omitempty"`

	IsGroup          bool     `json:"isGroup" dynamodbav:"isGroup"`
	GroupID          string   `json:"groupId,omitempty" dynamodbav:"groupId,omitempty"`
	GroupName        string   `json:"groupName,omitempty" dynamodbav:"groupName,omitempty"`
	GroupDescription string   `json:"groupDescription,omitempty" dynamodbav:"groupDescription,omitempty"`
	Members          []string `json:"members,omitempty" dynamodbav:"members,omitempty"`
	Admins           []string `json:"admins,omitempty" dynamodbav:"admins,omitempty"`
	Role             string   `json:"role,omitempty" dynamodbav:"role,omitempty"`

	// Removed marks a residual row kept for history after the user was
	// removed from the group. A removed member can still read old
	// messages but can no longer send.
	Removed bool `json:"removed,omitempty" dynamodbav:"removed,omitempty"`

	// LastActivityAt is a unix-millisecond cursor advanced on every
	// message; it only drives chat-list ordering, never correctness.
	LastActivityAt int64     `json:"lastMessageTime" dynamodbav:"lastMessageTime"`
	CreatedAt      time.Time `json:"createdAt" dynamodbav:"createdAt"`
}

// Message is immutable once written, except for Status transitions.
// Timestamp is unix milliseconds; ordering within a chat is by
// Timestamp with MessageID as tiebreak.
type Message struct {
	MessageID string `json:"id" dynamodbav:"messageId"`
	ChatID    string `json:"chatId" dynamodbav:"chatId"`
	SenderID  string `json:"senderId" dynamodbav:"senderId"`
	Content   string `json:"content" dynamodbav:"content"`
	Timestamp int64  `json:"timestamp" dynamodbav:"timestamp"`
	Status    string `json:"status" dynamodbav:"status"`
	Type      string `json:"type" dynamodbav:"type"`

	SystemAction     string `json:"systemAction,omitempty" dynamodbav:"systemAction,omitempty"`
	AffectedUserID   string `json:"affectedUserId,omitempty" dynamodbav:"affectedUserId,omitempty"`
	AffectedUserName string `json:"affectedUserName,omitempty" dynamodbav:"affectedUserName,omitempty"`
}

// MessageStatus is a per-recipient acknowledgement row, written when a
// recipient marks a message delivered or read.
type MessageStatus struct {
	MessageID string `json:"messageId" dynamodbav:"messageId"`
	UserID    string `json:"userId" dynamodbav:"userId"`
	Status    string `json:"status" dynamodbav:"status"`
	Timestamp int64  `json:"timestamp" dynamodbav:"timestamp"`
}

// Presence is the ephemeral online state of a user.
type Presence struct {
	UserID   string    `json:"userId"`
	Online   bool      `json:"online"`
	LastSeen time.Time `json:"lastSeen"`
}
