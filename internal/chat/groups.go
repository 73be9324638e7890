package chat

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Jonathan1021/chat-whatsapp/internal/apperr"
	"github.com/Jonathan1021/chat-whatsapp/internal/models"
	"github.com/Jonathan1021/chat-whatsapp/internal/repository"
)

// GroupEngine mutates the participant and admin sets of group chats.
// Every mutation that touches N members performs N independent row
// writes with no transaction; under concurrent mutation the rows may
// diverge transiently and converge on the next rewrite. Authorization
// is always checked against the actor's own row; the actor's view of
// the group is the one that counts.
//
// Each mutation emits a synthetic system message that flows through the
// normal message log and fan-out, so every member's client renders the
// change in place.
type GroupEngine struct {
	chats      repository.ChatRepository
	users      repository.UserRepository
	store      *Store
	dispatcher *Dispatcher
	logger     *zap.Logger
}

func NewGroupEngine(
	chats repository.ChatRepository,
	users repository.UserRepository,
	store *Store,
	dispatcher *Dispatcher,
	logger *zap.Logger,
) *GroupEngine {
	return &GroupEngine{chats: chats, users: users, store: store, dispatcher: dispatcher, logger: logger}
}

// displayName resolves a user's name for system-message content,
// falling back to the original product's placeholder.
func (e *GroupEngine) displayName(ctx context.Context, userID string) string {
	user, err := e.users.GetByID(ctx, userID)
	if err != nil || user == nil {
		return "Usuario"
	}
	return user.DisplayName
}

// adminRow loads the actor's membership row and verifies admin rights.
func (e *GroupEngine) adminRow(ctx context.Context, groupID, actorID string) (*models.Chat, error) {
	row, err := e.chats.Get(ctx, groupID, actorID)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "load membership", err)
	}
	if row == nil || row.Removed {
		return nil, apperr.NotMember("you are not a member of this group")
	}
	if !row.IsGroup {
		return nil, apperr.Validation("not a group chat")
	}
	if !lo.Contains(row.Admins, actorID) {
		return nil, apperr.Forbidden("only admins can do that")
	}
	return row, nil
}

// putRows writes a batch of membership rows concurrently. A partial
// failure leaves the group's rows divergent; the error is surfaced but
// rows already written stay written, and the next full rewrite
// converges them.
func (e *GroupEngine) putRows(ctx context.Context, rows []models.Chat) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, row := range rows {
		row := row
		g.Go(func() error {
			return e.chats.Put(gctx, row)
		})
	}
	if err := g.Wait(); err != nil {
		return apperr.Wrap(apperr.CodeInternal, "write membership rows", err)
	}
	return nil
}

// announce appends a system message, bumps cursors and fans it out to
// the given participants. System messages reach every participant,
// including the actor's own other devices.
func (e *GroupEngine) announce(ctx context.Context, groupID, actorID, action, content, affectedID, affectedName string, participants []string) {
	msg, err := e.store.AppendSystem(ctx, groupID, actorID, action, content, affectedID, affectedName)
	if err != nil {
		e.logger.Warn("system message not persisted",
			zap.String("group_id", groupID),
			zap.String("action", action),
			zap.Error(err),
		)
		return
	}
	e.store.AdvanceCursors(ctx, groupID, participants, msg.Timestamp)
	e.dispatcher.Deliver(ctx, msg, participants, "")
}

// CreateGroup creates a group chat: one membership row per member, each
// holding the same member/admin snapshot, the creator as sole admin.
func (e *GroupEngine) CreateGroup(ctx context.Context, creatorID, name string, memberIDs []string, description string) (*models.Chat, error) {
	if name == "" || len(memberIDs) == 0 {
		return nil, apperr.Validation("group name and members are required")
	}

	now := time.Now()
	groupID := NewGroupID(now)
	allMembers := lo.Uniq(append([]string{creatorID}, memberIDs...))
	admins := []string{creatorID}

	rows := make([]models.Chat, 0, len(allMembers))
	for _, memberID := range allMembers {
		role := models.RoleMember
		if memberID == creatorID {
			role = models.RoleAdmin
		}
		rows = append(rows, models.Chat{
			ChatID:           groupID,
			UserID:           memberID,
			IsGroup:          true,
			GroupID:          groupID,
			GroupName:        name,
			GroupDescription: description,
			Members:          allMembers,
			Admins:           admins,
			Role:             role,
			LastActivityAt:   now.UnixMilli(),
			CreatedAt:        now.UTC(),
		})
	}
	if err := e.putRows(ctx, rows); err != nil {
		return nil, err
	}

	e.logger.Info("group created",
		zap.String("group_id", groupID),
		zap.String("creator_id", creatorID),
		zap.Int("members", len(allMembers)),
	)

	content := fmt.Sprintf("%s creó el grupo «%s»", e.displayName(ctx, creatorID), name)
	e.announce(ctx, groupID, creatorID, models.ActionGroupCreated, content, "", "", allMembers)

	creatorRow := rows[0]
	return &creatorRow, nil
}

// AddMembers adds users to a group: the de-duplicated union of old and
// new members is rewritten onto every existing row, new rows are
// written for the newcomers, and one member_added system message is
// emitted per newcomer.
func (e *GroupEngine) AddMembers(ctx context.Context, actorID, groupID string, newMemberIDs []string) error {
	actorRow, err := e.adminRow(ctx, groupID, actorID)
	if err != nil {
		return err
	}

	newcomers := lo.Without(lo.Uniq(newMemberIDs), actorRow.Members...)
	if len(newcomers) == 0 {
		return apperr.Validation("all users are already members")
	}
	union := append(append([]string{}, actorRow.Members...), newcomers...)

	existing, err := e.chats.ListByChat(ctx, groupID)
	if err != nil {
		return apperr.Wrap(apperr.CodeInternal, "list group rows", err)
	}

	now := time.Now()
	rows := make([]models.Chat, 0, len(existing)+len(newcomers))
	for _, row := range existing {
		if row.Removed {
			continue
		}
		row.Members = union
		rows = append(rows, row)
	}
	for _, memberID := range newcomers {
		rows = append(rows, models.Chat{
			ChatID:           groupID,
			UserID:           memberID,
			IsGroup:          true,
			GroupID:          groupID,
			GroupName:        actorRow.GroupName,
			GroupDescription: actorRow.GroupDescription,
			Members:          union,
			Admins:           actorRow.Admins,
			Role:             models.RoleMember,
			LastActivityAt:   now.UnixMilli(),
			CreatedAt:        now.UTC(),
		})
	}
	if err := e.putRows(ctx, rows); err != nil {
		return err
	}

	actorName := e.displayName(ctx, actorID)
	for _, memberID := range newcomers {
		memberName := e.displayName(ctx, memberID)
		content := fmt.Sprintf("%s añadió a %s", actorName, memberName)
		e.announce(ctx, groupID, actorID, models.ActionMemberAdded, content, memberID, memberName, union)
	}
	return nil
}

// RemoveMember removes a user from a group. The target's row is kept as
// a residual marked removed, so their history survives but their sends
// are rejected; every remaining row drops the target from its member
// and admin lists.
func (e *GroupEngine) RemoveMember(ctx context.Context, actorID, groupID, targetID string) error {
	actorRow, err := e.adminRow(ctx, groupID, actorID)
	if err != nil {
		return err
	}
	if actorID == targetID {
		return apperr.Validation("leave the group instead of removing yourself")
	}
	if !lo.Contains(actorRow.Members, targetID) {
		return apperr.NotFound("user is not a member of this group")
	}

	existing, err := e.chats.ListByChat(ctx, groupID)
	if err != nil {
		return apperr.Wrap(apperr.CodeInternal, "list group rows", err)
	}

	remaining := lo.Without(actorRow.Members, targetID)
	newAdmins := lo.Without(actorRow.Admins, targetID)

	rows := make([]models.Chat, 0, len(existing))
	for _, row := range existing {
		if row.UserID == targetID {
			row.Removed = true
			row.Role = ""
			row.Admins = newAdmins
			rows = append(rows, row)
			continue
		}
		if row.Removed {
			continue
		}
		row.Members = remaining
		row.Admins = newAdmins
		rows = append(rows, row)
	}
	if err := e.putRows(ctx, rows); err != nil {
		return err
	}

	targetName := e.displayName(ctx, targetID)
	content := fmt.Sprintf("%s eliminó a %s", e.displayName(ctx, actorID), targetName)
	e.announce(ctx, groupID, actorID, models.ActionMemberRemoved, content, targetID, targetName, remaining)
	return nil
}

// PromoteToAdmin grants admin to a member. Promoting an existing admin
// is a validation error, not a silent no-op.
func (e *GroupEngine) PromoteToAdmin(ctx context.Context, actorID, groupID, targetID string) error {
	actorRow, err := e.adminRow(ctx, groupID, actorID)
	if err != nil {
		return err
	}
	if !lo.Contains(actorRow.Members, targetID) {
		return apperr.NotFound("user is not a member of this group")
	}
	if lo.Contains(actorRow.Admins, targetID) {
		return apperr.Validation("user is already an admin")
	}

	newAdmins := append(append([]string{}, actorRow.Admins...), targetID)
	if err := e.rewriteAdmins(ctx, groupID, targetID, newAdmins); err != nil {
		return err
	}

	targetName := e.displayName(ctx, targetID)
	content := fmt.Sprintf("%s nombró administrador a %s", e.displayName(ctx, actorID), targetName)
	e.announce(ctx, groupID, actorID, models.ActionAdminPromoted, content, targetID, targetName, actorRow.Members)
	return nil
}

// DemoteFromAdmin revokes admin. Demoting a non-admin is a validation
// error, and the last admin cannot be demoted; a group must keep at
// least one.
func (e *GroupEngine) DemoteFromAdmin(ctx context.Context, actorID, groupID, targetID string) error {
	actorRow, err := e.adminRow(ctx, groupID, actorID)
	if err != nil {
		return err
	}
	if !lo.Contains(actorRow.Admins, targetID) {
		return apperr.Validation("user is not an admin")
	}
	if len(actorRow.Admins) == 1 {
		return apperr.Validation("cannot demote the only admin")
	}

	newAdmins := lo.Without(actorRow.Admins, targetID)
	if err := e.rewriteAdmins(ctx, groupID, targetID, newAdmins); err != nil {
		return err
	}

	targetName := e.displayName(ctx, targetID)
	content := fmt.Sprintf("%s quitó como administrador a %s", e.displayName(ctx, actorID), targetName)
	e.announce(ctx, groupID, actorID, models.ActionAdminDemoted, content, targetID, targetName, actorRow.Members)
	return nil
}

// rewriteAdmins applies a new admin snapshot across every active row
// and fixes the target row's role.
func (e *GroupEngine) rewriteAdmins(ctx context.Context, groupID, targetID string, newAdmins []string) error {
	existing, err := e.chats.ListByChat(ctx, groupID)
	if err != nil {
		return apperr.Wrap(apperr.CodeInternal, "list group rows", err)
	}

	rows := make([]models.Chat, 0, len(existing))
	for _, row := range existing {
		if row.Removed {
			continue
		}
		row.Admins = newAdmins
		if row.UserID == targetID {
			if lo.Contains(newAdmins, targetID) {
				row.Role = models.RoleAdmin
			} else {
				row.Role = models.RoleMember
			}
		}
		rows = append(rows, row)
	}
	return e.putRows(ctx, rows)
}

// LeaveGroup removes the caller from a group. The sole remaining member
// leaving deletes the group entirely; a sole admin leaving hands admin
// to the lexicographically first remaining member so the group is never
// left without one.
func (e *GroupEngine) LeaveGroup(ctx context.Context, userID, groupID string) error {
	row, err := e.chats.Get(ctx, groupID, userID)
	if err != nil {
		return apperr.Wrap(apperr.CodeInternal, "load membership", err)
	}
	if row == nil || row.Removed {
		return apperr.NotMember("you are not a member of this group")
	}

	existing, err := e.chats.ListByChat(ctx, groupID)
	if err != nil {
		return apperr.Wrap(apperr.CodeInternal, "list group rows", err)
	}

	remaining := lo.Without(row.Members, userID)
	if len(remaining) == 0 {
		// Last member out: the group is gone, residual rows included.
		g, gctx := errgroup.WithContext(ctx)
		for _, r := range existing {
			r := r
			g.Go(func() error {
				return e.chats.Delete(gctx, r.ChatID, r.UserID)
			})
		}
		if err := g.Wait(); err != nil {
			return apperr.Wrap(apperr.CodeInternal, "delete group rows", err)
		}
		e.logger.Info("group deleted", zap.String("group_id", groupID))
		return nil
	}

	newAdmins := lo.Without(row.Admins, userID)
	if len(newAdmins) == 0 {
		sorted := append([]string{}, remaining...)
		sort.Strings(sorted)
		newAdmins = []string{sorted[0]}
	}

	rows := make([]models.Chat, 0, len(existing))
	for _, r := range existing {
		if r.UserID == userID || r.Removed {
			continue
		}
		r.Members = remaining
		r.Admins = newAdmins
		if lo.Contains(newAdmins, r.UserID) {
			r.Role = models.RoleAdmin
		}
		rows = append(rows, r)
	}
	if err := e.putRows(ctx, rows); err != nil {
		return err
	}
	if err := e.chats.Delete(ctx, groupID, userID); err != nil {
		return apperr.Wrap(apperr.CodeInternal, "delete leaver row", err)
	}

	leaverName := e.displayName(ctx, userID)
	content := fmt.Sprintf("%s salió del grupo", leaverName)
	e.announce(ctx, groupID, userID, models.ActionMemberLeft, content, userID, leaverName, remaining)
	return nil
}

// UpdateInfo rewrites the group name and/or description across every
// row, residuals included, so history views stay consistent.
func (e *GroupEngine) UpdateInfo(ctx context.Context, actorID, groupID string, name, description *string) error {
	if name == nil && description == nil {
		return apperr.Validation("nothing to update")
	}
	if name != nil && *name == "" {
		return apperr.Validation("group name cannot be empty")
	}
	if _, err := e.adminRow(ctx, groupID, actorID); err != nil {
		return err
	}

	existing, err := e.chats.ListByChat(ctx, groupID)
	if err != nil {
		return apperr.Wrap(apperr.CodeInternal, "list group rows", err)
	}

	rows := make([]models.Chat, 0, len(existing))
	for _, row := range existing {
		if name != nil {
			row.GroupName = *name
		}
		if description != nil {
			row.GroupDescription = *description
		}
		rows = append(rows, row)
	}
	if err := e.putRows(ctx, rows); err != nil {
		return err
	}

	participants := lo.FilterMap(existing, func(r models.Chat, _ int) (string, bool) {
		return r.UserID, !r.Removed
	})
	content := fmt.Sprintf("%s actualizó la información del grupo", e.displayName(ctx, actorID))
	e.announce(ctx, groupID, actorID, models.ActionInfoUpdated, content, "", "", participants)
	return nil
}
