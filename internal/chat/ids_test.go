package chat

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCanonicalChatID_OrderIndependent(t *testing.T) {
	req := require.New(t)

	req.Equal(CanonicalChatID("alice", "bob"), CanonicalChatID("bob", "alice"))
	req.Equal("chat_alice_bob", CanonicalChatID("bob", "alice"))
}

func TestNewMessageID_Shape(t *testing.T) {
	req := require.New(t)

	now := time.UnixMilli(1700000000000)
	id := NewMessageID(now)
	req.True(strings.HasPrefix(id, "msg_1700000000000_"))

	parts := strings.Split(id, "_")
	req.Len(parts, 3)
	req.Len(parts[2], 9)
}

func TestNewGroupID_Shape(t *testing.T) {
	req := require.New(t)

	id := NewGroupID(time.Now())
	req.True(strings.HasPrefix(id, "group_"))
	req.NotEqual(id, NewGroupID(time.Now()))
}

func TestInitials(t *testing.T) {
	req := require.New(t)

	req.Equal("JD", Initials("jane doe"))
	req.Equal("A", Initials("alice"))
	req.Equal("MG", Initials("maría garcía lópez"))
	req.Equal("U", Initials(""))
	req.Equal("U", Initials("   "))
}
