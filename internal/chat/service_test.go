package chat

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Jonathan1021/chat-whatsapp/internal/apperr"
	"github.com/Jonathan1021/chat-whatsapp/internal/models"
)

func TestService_FirstSendCreatesChatAndDelivers(t *testing.T) {
	req := require.New(t)
	e := newEnv(t)
	ctx := context.Background()
	e.addUser(t, "alice", "Alice Anderson")
	e.addUser(t, "bob", "Bob Brown")
	e.connect(t, "alice", "conn-alice")

	msg, err := e.service.Send(ctx, SendRequest{
		SenderID:    "bob",
		RecipientID: "alice",
		Content:     "hola",
	})
	req.NoError(err)
	req.Equal("chat_alice_bob", msg.ChatID)
	req.Equal(models.StatusSent, msg.Status)

	// Both membership rows exist and carry the send's timestamp.
	for _, user := range []string{"alice", "bob"} {
		row, err := e.chats.Get(ctx, "chat_alice_bob", user)
		req.NoError(err)
		req.NotNil(row)
		req.Equal(msg.Timestamp, row.LastActivityAt)
	}

	events := e.pusher.events(t, "conn-alice")
	req.Len(events, 1)
	req.Equal("message", events[0].Type)

	raw, err := json.Marshal(events[0].Data)
	req.NoError(err)
	var out OutboundMessage
	req.NoError(json.Unmarshal(raw, &out))
	req.Equal(msg.MessageID, out.MessageID)
	req.Equal("Bob Brown", out.SenderName)
}

func TestService_SendByChatID(t *testing.T) {
	req := require.New(t)
	e := newEnv(t)
	ctx := context.Background()
	e.addUser(t, "alice", "Alice Anderson")
	e.addUser(t, "bob", "Bob Brown")

	_, err := e.service.Send(ctx, SendRequest{SenderID: "bob", RecipientID: "alice", Content: "hola"})
	req.NoError(err)

	// Follow-up sends address the chat directly; the counterparty is
	// read off the sender's own row.
	msg, err := e.service.Send(ctx, SendRequest{SenderID: "alice", ChatID: "chat_alice_bob", Content: "qué tal"})
	req.NoError(err)
	req.Equal("chat_alice_bob", msg.ChatID)

	msgs, _, err := e.service.Messages(ctx, "bob", "chat_alice_bob", 10, "")
	req.NoError(err)
	req.Len(msgs, 2)
	req.Equal("qué tal", msgs[0].Content)
}

func TestService_SendToUnknownChatRejected(t *testing.T) {
	req := require.New(t)
	e := newEnv(t)

	_, err := e.service.Send(context.Background(), SendRequest{
		SenderID: "alice",
		ChatID:   "chat_bob_carol",
		Content:  "hola",
	})
	req.Equal(apperr.CodeNotMember, apperr.CodeOf(err))

	_, err = e.service.Send(context.Background(), SendRequest{SenderID: "alice", Content: "hola"})
	req.Equal(apperr.CodeValidation, apperr.CodeOf(err))
}

func TestService_OfflineRecipientDoesNotFailSend(t *testing.T) {
	req := require.New(t)
	e := newEnv(t)
	ctx := context.Background()
	e.addUser(t, "alice", "Alice Anderson")
	e.addUser(t, "bob", "Bob Brown")

	msg, err := e.service.Send(ctx, SendRequest{SenderID: "bob", RecipientID: "alice", Content: "hola"})
	req.NoError(err)

	// The message is in the log for alice to fetch later.
	msgs, _, err := e.service.Messages(ctx, "bob", msg.ChatID, 10, "")
	req.NoError(err)
	req.Len(msgs, 1)
}

func TestService_RemovedMemberSendRejected(t *testing.T) {
	req := require.New(t)
	e := newEnv(t)
	ctx := context.Background()
	e.addUser(t, "alice", "Alice Anderson")
	e.addUser(t, "bob", "Bob Brown")
	e.addUser(t, "carol", "Carol Cruz")

	row, err := e.groups.CreateGroup(ctx, "alice", "Familia", []string{"bob", "carol"}, "")
	req.NoError(err)
	req.NoError(e.groups.RemoveMember(ctx, "alice", row.ChatID, "carol"))

	_, err = e.service.Send(ctx, SendRequest{SenderID: "carol", ChatID: row.ChatID, Content: "hola?"})
	req.Equal(apperr.CodeNotMember, apperr.CodeOf(err))

	// Nothing reached the log; only the system messages are there.
	msgs, _, err := e.store.List(ctx, row.ChatID, 10, "")
	req.NoError(err)
	for _, m := range msgs {
		req.Equal(models.TypeSystem, m.Type)
	}
}

func TestService_GroupSendFansOutToMembers(t *testing.T) {
	req := require.New(t)
	e := newEnv(t)
	ctx := context.Background()
	e.addUser(t, "alice", "Alice Anderson")
	e.addUser(t, "bob", "Bob Brown")
	e.addUser(t, "carol", "Carol Cruz")
	e.connect(t, "bob", "conn-bob")
	e.connect(t, "carol", "conn-carol")

	row, err := e.groups.CreateGroup(ctx, "alice", "Familia", []string{"bob", "carol"}, "")
	req.NoError(err)

	_, err = e.service.Send(ctx, SendRequest{SenderID: "alice", ChatID: row.ChatID, Content: "hola a todos"})
	req.NoError(err)

	// Creation announcement plus the text message.
	req.Len(e.pusher.events(t, "conn-bob"), 2)
	req.Len(e.pusher.events(t, "conn-carol"), 2)
}

func TestService_MarkStatusNotifiesSender(t *testing.T) {
	req := require.New(t)
	e := newEnv(t)
	ctx := context.Background()
	e.addUser(t, "alice", "Alice Anderson")
	e.addUser(t, "bob", "Bob Brown")
	e.connect(t, "bob", "conn-bob")

	msg, err := e.service.Send(ctx, SendRequest{SenderID: "bob", RecipientID: "alice", Content: "hola"})
	req.NoError(err)

	req.NoError(e.service.MarkStatus(ctx, "alice", msg.MessageID, models.StatusRead))

	events := e.pusher.events(t, "conn-bob")
	req.Len(events, 1)
	req.Equal("messageStatus", events[0].Type)

	raw, err := json.Marshal(events[0].Data)
	req.NoError(err)
	var ev StatusEvent
	req.NoError(json.Unmarshal(raw, &ev))
	req.Equal(msg.MessageID, ev.MessageID)
	req.Equal(models.StatusRead, ev.Status)
	req.Equal("alice", ev.UserID)
}

func TestService_TypingReachesOthersOnly(t *testing.T) {
	req := require.New(t)
	e := newEnv(t)
	ctx := context.Background()
	e.addUser(t, "alice", "Alice Anderson")
	e.addUser(t, "bob", "Bob Brown")
	e.connect(t, "alice", "conn-alice")
	e.connect(t, "bob", "conn-bob")

	_, err := e.service.Send(ctx, SendRequest{SenderID: "bob", RecipientID: "alice", Content: "hola"})
	req.NoError(err)

	req.NoError(e.service.Typing(ctx, "alice", "chat_alice_bob"))

	bobEvents := e.pusher.events(t, "conn-bob")
	req.Len(bobEvents, 1)
	req.Equal("typing", bobEvents[0].Type)

	// alice got bob's message but not her own typing echo.
	req.Len(e.pusher.events(t, "conn-alice"), 1)
}

func TestService_MessagesRequiresMembership(t *testing.T) {
	req := require.New(t)
	e := newEnv(t)

	_, _, err := e.service.Messages(context.Background(), "mallory", "chat_alice_bob", 10, "")
	req.Equal(apperr.CodeNotMember, apperr.CodeOf(err))
}

func TestService_ChatListProjection(t *testing.T) {
	req := require.New(t)
	e := newEnv(t)
	ctx := context.Background()
	e.addUser(t, "alice", "Alice Anderson")
	e.addUser(t, "bob", "Bob Brown")
	e.addUser(t, "carol", "Carol Cruz")

	_, err := e.service.Send(ctx, SendRequest{SenderID: "bob", RecipientID: "alice", Content: "primero"})
	req.NoError(err)
	time.Sleep(2 * time.Millisecond)
	_, err = e.service.Send(ctx, SendRequest{SenderID: "carol", RecipientID: "alice", Content: "segundo"})
	req.NoError(err)

	list, err := e.service.ChatList(ctx, "alice")
	req.NoError(err)
	req.Len(list, 2)

	// Newest activity first, counterparty display data resolved.
	req.Equal("chat_alice_carol", list[0].ChatID)
	req.Equal("Carol Cruz", list[0].Name)
	req.Equal("CC", list[0].Avatar)
	req.NotNil(list[0].LastMessage)
	req.Equal("segundo", list[0].LastMessage.Content)

	req.Equal("chat_alice_bob", list[1].ChatID)
	req.Equal("Bob Brown", list[1].Name)
}

func TestService_BroadcastPresenceReachesContacts(t *testing.T) {
	req := require.New(t)
	e := newEnv(t)
	ctx := context.Background()
	e.addUser(t, "alice", "Alice Anderson")
	e.addUser(t, "bob", "Bob Brown")
	e.addUser(t, "carol", "Carol Cruz")
	e.connect(t, "bob", "conn-bob")
	e.connect(t, "carol", "conn-carol")

	// alice shares a 1:1 with bob but has never talked to carol.
	_, err := e.service.Send(ctx, SendRequest{SenderID: "alice", RecipientID: "bob", Content: "hola"})
	req.NoError(err)

	e.service.BroadcastPresence(ctx, "alice", true, time.Time{})

	bobEvents := e.pusher.events(t, "conn-bob")
	req.Len(bobEvents, 2)
	req.Equal("presence", bobEvents[1].Type)
	req.Empty(e.pusher.events(t, "conn-carol"))
}

func TestService_OpenDirect(t *testing.T) {
	req := require.New(t)
	e := newEnv(t)
	ctx := context.Background()
	e.addUser(t, "alice", "Alice Anderson")
	e.addUser(t, "bob", "Bob Brown")

	summary, err := e.service.OpenDirect(ctx, "alice", "bob")
	req.NoError(err)
	req.Equal("chat_alice_bob", summary.ChatID)
	req.Equal("Bob Brown", summary.Name)
	req.False(summary.IsGroup)
	req.Nil(summary.LastMessage)
}
