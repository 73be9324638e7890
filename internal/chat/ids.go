package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CanonicalChatID derives the 1:1 chat id from its two participants:
// the lexicographically smaller id first, so both sides compute the
// same channel no matter who sends first. This is the invariant that
// prevents duplicate chats between the same pair.
func CanonicalChatID(userA, userB string) string {
	if userA > userB {
		userA, userB = userB, userA
	}
	return fmt.Sprintf("chat_%s_%s", userA, userB)
}

// NewMessageID returns a time-ordered id like "msg_1700000000000_a1b2c3d4e".
// The random suffix disambiguates same-millisecond sends; collision
// probability is negligible for a chat log.
func NewMessageID(now time.Time) string {
	return fmt.Sprintf("msg_%d_%s", now.UnixMilli(), randSuffix())
}

// NewGroupID returns an opaque group id. Groups have no derivation
// function; the id is minted once at creation.
func NewGroupID(now time.Time) string {
	return fmt.Sprintf("group_%d_%s", now.UnixMilli(), randSuffix())
}

func randSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
}

// Initials derives the avatar fallback shown next to a message:
// first letter of up to two name words, uppercased.
func Initials(name string) string {
	if name == "" {
		return "U"
	}
	initials := make([]rune, 0, 2)
	for _, word := range strings.Fields(name) {
		r := []rune(word)
		initials = append(initials, r[0])
		if len(initials) == 2 {
			break
		}
	}
	if len(initials) == 0 {
		return "U"
	}
	return strings.ToUpper(string(initials))
}
