package chat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Jonathan1021/chat-whatsapp/internal/apperr"
	"github.com/Jonathan1021/chat-whatsapp/internal/models"
)

func TestResolveDirect_CreatesBothRows(t *testing.T) {
	req := require.New(t)
	e := newEnv(t)
	ctx := context.Background()

	res, err := e.resolver.ResolveDirect(ctx, "bob", "alice")
	req.NoError(err)
	req.Equal("chat_alice_bob", res.ChatID)
	req.ElementsMatch([]string{"alice", "bob"}, res.Participants)
	req.False(res.IsGroup)

	for _, pair := range [][2]string{{"alice", "bob"}, {"bob", "alice"}} {
		row, err := e.chats.Get(ctx, res.ChatID, pair[0])
		req.NoError(err)
		req.NotNil(row)
		req.Equal(pair[1], row.CounterpartyID)
		req.False(row.IsGroup)
	}
}

func TestResolveDirect_Idempotent(t *testing.T) {
	req := require.New(t)
	e := newEnv(t)
	ctx := context.Background()

	first, err := e.resolver.ResolveDirect(ctx, "alice", "bob")
	req.NoError(err)
	firstRow, err := e.chats.Get(ctx, first.ChatID, "alice")
	req.NoError(err)

	// Resolving from the other side maps to the same chat and does not
	// recreate the rows.
	second, err := e.resolver.ResolveDirect(ctx, "bob", "alice")
	req.NoError(err)
	req.Equal(first.ChatID, second.ChatID)

	secondRow, err := e.chats.Get(ctx, second.ChatID, "alice")
	req.NoError(err)
	req.Equal(firstRow.CreatedAt, secondRow.CreatedAt)
}

func TestResolveDirect_RejectsSelfChat(t *testing.T) {
	req := require.New(t)
	e := newEnv(t)

	_, err := e.resolver.ResolveDirect(context.Background(), "alice", "alice")
	req.Error(err)
	req.Equal(apperr.CodeValidation, apperr.CodeOf(err))
}

func TestResolveDirect_RejectsEmptyIDs(t *testing.T) {
	req := require.New(t)
	e := newEnv(t)

	_, err := e.resolver.ResolveDirect(context.Background(), "alice", "")
	req.Equal(apperr.CodeValidation, apperr.CodeOf(err))
}

func TestResolveGroup_UsesSendersMemberList(t *testing.T) {
	req := require.New(t)
	e := newEnv(t)
	ctx := context.Background()

	req.NoError(e.chats.Put(ctx, models.Chat{
		ChatID:  "group_1_abc",
		UserID:  "alice",
		IsGroup: true,
		GroupID: "group_1_abc",
		Members: []string{"alice", "bob", "carol"},
		Admins:  []string{"alice"},
	}))

	res, err := e.resolver.ResolveGroup(ctx, "alice", "group_1_abc")
	req.NoError(err)
	req.True(res.IsGroup)
	req.Equal([]string{"alice", "bob", "carol"}, res.Participants)
}

func TestResolveGroup_NonMemberRejected(t *testing.T) {
	req := require.New(t)
	e := newEnv(t)

	_, err := e.resolver.ResolveGroup(context.Background(), "mallory", "group_1_abc")
	req.Equal(apperr.CodeNotMember, apperr.CodeOf(err))
}

func TestResolveGroup_RemovedMemberRejected(t *testing.T) {
	req := require.New(t)
	e := newEnv(t)
	ctx := context.Background()

	req.NoError(e.chats.Put(ctx, models.Chat{
		ChatID:  "group_1_abc",
		UserID:  "carol",
		IsGroup: true,
		GroupID: "group_1_abc",
		Members: []string{"alice", "bob"},
		Removed: true,
	}))

	_, err := e.resolver.ResolveGroup(ctx, "carol", "group_1_abc")
	req.Equal(apperr.CodeNotMember, apperr.CodeOf(err))
}
