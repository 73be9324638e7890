package chat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Jonathan1021/chat-whatsapp/internal/apperr"
	"github.com/Jonathan1021/chat-whatsapp/internal/models"
)

func seedGroupUsers(t *testing.T, e *env) {
	e.addUser(t, "alice", "Alice Anderson")
	e.addUser(t, "bob", "Bob Brown")
	e.addUser(t, "carol", "Carol Cruz")
	e.addUser(t, "dave", "Dave Diaz")
}

func TestCreateGroup_WritesOneRowPerMember(t *testing.T) {
	req := require.New(t)
	e := newEnv(t)
	ctx := context.Background()
	seedGroupUsers(t, e)

	row, err := e.groups.CreateGroup(ctx, "alice", "Familia", []string{"bob", "carol", "bob"}, "el grupo")
	req.NoError(err)
	req.True(row.IsGroup)
	req.Equal(models.RoleAdmin, row.Role)

	rows, err := e.chats.ListByChat(ctx, row.ChatID)
	req.NoError(err)
	req.Len(rows, 3)
	for _, r := range rows {
		req.ElementsMatch([]string{"alice", "bob", "carol"}, r.Members)
		req.Equal([]string{"alice"}, r.Admins)
		req.Equal("Familia", r.GroupName)
		if r.UserID == "alice" {
			req.Equal(models.RoleAdmin, r.Role)
		} else {
			req.Equal(models.RoleMember, r.Role)
		}
	}
}

func TestCreateGroup_EmitsSystemMessageToEveryone(t *testing.T) {
	req := require.New(t)
	e := newEnv(t)
	ctx := context.Background()
	seedGroupUsers(t, e)
	e.connect(t, "alice", "conn-alice")
	e.connect(t, "bob", "conn-bob")

	row, err := e.groups.CreateGroup(ctx, "alice", "Familia", []string{"bob"}, "")
	req.NoError(err)

	msgs, _, err := e.store.List(ctx, row.ChatID, 10, "")
	req.NoError(err)
	req.Len(msgs, 1)
	req.Equal(models.TypeSystem, msgs[0].Type)
	req.Equal(models.ActionGroupCreated, msgs[0].SystemAction)
	req.Equal("Alice Anderson creó el grupo «Familia»", msgs[0].Content)

	// System messages reach the actor too.
	req.Len(e.pusher.events(t, "conn-alice"), 1)
	req.Len(e.pusher.events(t, "conn-bob"), 1)
}

func TestCreateGroup_Validation(t *testing.T) {
	req := require.New(t)
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.groups.CreateGroup(ctx, "alice", "", []string{"bob"}, "")
	req.Equal(apperr.CodeValidation, apperr.CodeOf(err))

	_, err = e.groups.CreateGroup(ctx, "alice", "Familia", nil, "")
	req.Equal(apperr.CodeValidation, apperr.CodeOf(err))
}

func TestAddMembers_RewritesUnionEverywhere(t *testing.T) {
	req := require.New(t)
	e := newEnv(t)
	ctx := context.Background()
	seedGroupUsers(t, e)

	row, err := e.groups.CreateGroup(ctx, "alice", "Familia", []string{"bob"}, "")
	req.NoError(err)

	req.NoError(e.groups.AddMembers(ctx, "alice", row.ChatID, []string{"carol", "dave", "bob"}))

	rows, err := e.chats.ListByChat(ctx, row.ChatID)
	req.NoError(err)
	req.Len(rows, 4)
	for _, r := range rows {
		req.ElementsMatch([]string{"alice", "bob", "carol", "dave"}, r.Members)
	}

	// One announcement per actually-new member; bob was already in.
	msgs, _, err := e.store.List(ctx, row.ChatID, 10, "")
	req.NoError(err)
	added := 0
	for _, m := range msgs {
		if m.SystemAction == models.ActionMemberAdded {
			added++
		}
	}
	req.Equal(2, added)
}

func TestAddMembers_RequiresAdmin(t *testing.T) {
	req := require.New(t)
	e := newEnv(t)
	ctx := context.Background()
	seedGroupUsers(t, e)

	row, err := e.groups.CreateGroup(ctx, "alice", "Familia", []string{"bob"}, "")
	req.NoError(err)

	err = e.groups.AddMembers(ctx, "bob", row.ChatID, []string{"carol"})
	req.Equal(apperr.CodeForbidden, apperr.CodeOf(err))

	err = e.groups.AddMembers(ctx, "mallory", row.ChatID, []string{"carol"})
	req.Equal(apperr.CodeNotMember, apperr.CodeOf(err))
}

func TestAddMembers_AllAlreadyMembers(t *testing.T) {
	req := require.New(t)
	e := newEnv(t)
	ctx := context.Background()
	seedGroupUsers(t, e)

	row, err := e.groups.CreateGroup(ctx, "alice", "Familia", []string{"bob"}, "")
	req.NoError(err)

	err = e.groups.AddMembers(ctx, "alice", row.ChatID, []string{"bob"})
	req.Equal(apperr.CodeValidation, apperr.CodeOf(err))
}

func TestRemoveMember_KeepsResidualRow(t *testing.T) {
	req := require.New(t)
	e := newEnv(t)
	ctx := context.Background()
	seedGroupUsers(t, e)
	e.connect(t, "alice", "conn-alice")
	e.connect(t, "bob", "conn-bob")
	e.connect(t, "carol", "conn-carol")

	row, err := e.groups.CreateGroup(ctx, "alice", "Familia", []string{"bob", "carol"}, "")
	req.NoError(err)

	req.NoError(e.groups.RemoveMember(ctx, "alice", row.ChatID, "carol"))

	carolRow, err := e.chats.Get(ctx, row.ChatID, "carol")
	req.NoError(err)
	req.NotNil(carolRow)
	req.True(carolRow.Removed)

	for _, user := range []string{"alice", "bob"} {
		r, err := e.chats.Get(ctx, row.ChatID, user)
		req.NoError(err)
		req.ElementsMatch([]string{"alice", "bob"}, r.Members)
	}

	// carol can no longer send into the group.
	_, err = e.resolver.ResolveGroup(ctx, "carol", row.ChatID)
	req.Equal(apperr.CodeNotMember, apperr.CodeOf(err))

	msgs, _, err := e.store.List(ctx, row.ChatID, 10, "")
	req.NoError(err)
	req.Equal("Alice Anderson eliminó a Carol Cruz", msgs[0].Content)
	req.Equal(models.ActionMemberRemoved, msgs[0].SystemAction)
	req.Equal("carol", msgs[0].AffectedUserID)

	// The announcement went to the remaining members only. Both got
	// the creation message; only alice and bob got the removal.
	req.Len(e.pusher.events(t, "conn-carol"), 1)
	aliceEvents := e.pusher.events(t, "conn-alice")
	req.Len(aliceEvents, 2)
	req.Len(e.pusher.events(t, "conn-bob"), 2)
}

func TestRemoveMember_SelfRemovalRejected(t *testing.T) {
	req := require.New(t)
	e := newEnv(t)
	ctx := context.Background()
	seedGroupUsers(t, e)

	row, err := e.groups.CreateGroup(ctx, "alice", "Familia", []string{"bob"}, "")
	req.NoError(err)

	err = e.groups.RemoveMember(ctx, "alice", row.ChatID, "alice")
	req.Equal(apperr.CodeValidation, apperr.CodeOf(err))
}

func TestPromoteAndDemote(t *testing.T) {
	req := require.New(t)
	e := newEnv(t)
	ctx := context.Background()
	seedGroupUsers(t, e)

	row, err := e.groups.CreateGroup(ctx, "alice", "Familia", []string{"bob", "carol"}, "")
	req.NoError(err)

	req.NoError(e.groups.PromoteToAdmin(ctx, "alice", row.ChatID, "bob"))

	bobRow, err := e.chats.Get(ctx, row.ChatID, "bob")
	req.NoError(err)
	req.Equal(models.RoleAdmin, bobRow.Role)
	req.ElementsMatch([]string{"alice", "bob"}, bobRow.Admins)

	// Every row saw the admin change, not just bob's.
	carolRow, err := e.chats.Get(ctx, row.ChatID, "carol")
	req.NoError(err)
	req.ElementsMatch([]string{"alice", "bob"}, carolRow.Admins)

	req.NoError(e.groups.DemoteFromAdmin(ctx, "alice", row.ChatID, "bob"))
	bobRow, err = e.chats.Get(ctx, row.ChatID, "bob")
	req.NoError(err)
	req.Equal(models.RoleMember, bobRow.Role)
	req.Equal([]string{"alice"}, bobRow.Admins)
}

func TestPromote_NoOpRejected(t *testing.T) {
	req := require.New(t)
	e := newEnv(t)
	ctx := context.Background()
	seedGroupUsers(t, e)

	row, err := e.groups.CreateGroup(ctx, "alice", "Familia", []string{"bob"}, "")
	req.NoError(err)

	err = e.groups.PromoteToAdmin(ctx, "alice", row.ChatID, "alice")
	req.Equal(apperr.CodeValidation, apperr.CodeOf(err))

	err = e.groups.DemoteFromAdmin(ctx, "alice", row.ChatID, "bob")
	req.Equal(apperr.CodeValidation, apperr.CodeOf(err))
}

func TestDemote_LastAdminRejected(t *testing.T) {
	req := require.New(t)
	e := newEnv(t)
	ctx := context.Background()
	seedGroupUsers(t, e)

	row, err := e.groups.CreateGroup(ctx, "alice", "Familia", []string{"bob"}, "")
	req.NoError(err)

	err = e.groups.DemoteFromAdmin(ctx, "alice", row.ChatID, "alice")
	req.Equal(apperr.CodeValidation, apperr.CodeOf(err))
}

func TestLeaveGroup_SoleAdminHandsOff(t *testing.T) {
	req := require.New(t)
	e := newEnv(t)
	ctx := context.Background()
	seedGroupUsers(t, e)

	row, err := e.groups.CreateGroup(ctx, "alice", "Familia", []string{"carol", "bob"}, "")
	req.NoError(err)

	req.NoError(e.groups.LeaveGroup(ctx, "alice", row.ChatID))

	gone, err := e.chats.Get(ctx, row.ChatID, "alice")
	req.NoError(err)
	req.Nil(gone)

	// Admin passes to the lexicographically first remaining member.
	for _, user := range []string{"bob", "carol"} {
		r, err := e.chats.Get(ctx, row.ChatID, user)
		req.NoError(err)
		req.ElementsMatch([]string{"bob", "carol"}, r.Members)
		req.Equal([]string{"bob"}, r.Admins)
	}
	bobRow, err := e.chats.Get(ctx, row.ChatID, "bob")
	req.NoError(err)
	req.Equal(models.RoleAdmin, bobRow.Role)
}

func TestLeaveGroup_LastMemberDeletesGroup(t *testing.T) {
	req := require.New(t)
	e := newEnv(t)
	ctx := context.Background()
	seedGroupUsers(t, e)

	row, err := e.groups.CreateGroup(ctx, "alice", "Familia", []string{"bob"}, "")
	req.NoError(err)

	// bob is removed first, leaving a residual row behind.
	req.NoError(e.groups.RemoveMember(ctx, "alice", row.ChatID, "bob"))
	req.NoError(e.groups.LeaveGroup(ctx, "alice", row.ChatID))

	rows, err := e.chats.ListByChat(ctx, row.ChatID)
	req.NoError(err)
	req.Empty(rows)
}

func TestLeaveGroup_NonMemberRejected(t *testing.T) {
	req := require.New(t)
	e := newEnv(t)

	err := e.groups.LeaveGroup(context.Background(), "mallory", "group_1_x")
	req.Equal(apperr.CodeNotMember, apperr.CodeOf(err))
}

func TestUpdateInfo_RewritesAllRows(t *testing.T) {
	req := require.New(t)
	e := newEnv(t)
	ctx := context.Background()
	seedGroupUsers(t, e)

	row, err := e.groups.CreateGroup(ctx, "alice", "Familia", []string{"bob"}, "vieja")
	req.NoError(err)

	name := "Familia 2.0"
	req.NoError(e.groups.UpdateInfo(ctx, "alice", row.ChatID, &name, nil))

	for _, user := range []string{"alice", "bob"} {
		r, err := e.chats.Get(ctx, row.ChatID, user)
		req.NoError(err)
		req.Equal("Familia 2.0", r.GroupName)
		req.Equal("vieja", r.GroupDescription)
	}

	err = e.groups.UpdateInfo(ctx, "bob", row.ChatID, &name, nil)
	req.Equal(apperr.CodeForbidden, apperr.CodeOf(err))

	err = e.groups.UpdateInfo(ctx, "alice", row.ChatID, nil, nil)
	req.Equal(apperr.CodeValidation, apperr.CodeOf(err))
}
