package chat

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Jonathan1021/chat-whatsapp/internal/models"
	"github.com/Jonathan1021/chat-whatsapp/internal/repository"
)

// ErrConnectionGone is returned by a Pusher when the connection no
// longer exists. It is the one push failure the dispatcher acts on:
// the connection is pruned from the registry inline.
var ErrConnectionGone = errors.New("connection gone")

// Pusher is the transport capability: deliver a payload to one live
// connection. Implementations return ErrConnectionGone for connections
// that are closed or unknown.
type Pusher interface {
	Push(ctx context.Context, connectionID string, payload []byte) error
}

// Event is the envelope every push wears on the wire.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// OutboundMessage is a message enriched with the sender's display info
// for rendering without an extra lookup on the client.
type OutboundMessage struct {
	models.Message
	SenderName   string `json:"senderName,omitempty"`
	SenderAvatar string `json:"senderAvatar,omitempty"`
}

// DeliveryReport summarizes one fan-out: how many pushes landed, how
// many dead connections were pruned, how many other failures were
// swallowed. Callers use it for logging only; delivery is best-effort
// and the sender never learns about recipient misses.
type DeliveryReport struct {
	Delivered int
	Pruned    int
	Failed    int
}

// Dispatcher resolves every recipient's live connections and pushes the
// payload to each, self-healing the registry on delivery failure.
type Dispatcher struct {
	registry repository.ConnectionRepository
	users    repository.UserRepository
	pusher   Pusher
	logger   *zap.Logger
}

func NewDispatcher(
	registry repository.ConnectionRepository,
	users repository.UserRepository,
	pusher Pusher,
	logger *zap.Logger,
) *Dispatcher {
	return &Dispatcher{registry: registry, users: users, pusher: pusher, logger: logger}
}

// Deliver pushes a chat message to every participant except the sender.
// No ordering is guaranteed across recipients; persistence, not push
// success, is what makes the message durable.
func (d *Dispatcher) Deliver(ctx context.Context, msg *models.Message, participants []string, excludeSenderID string) DeliveryReport {
	out := OutboundMessage{Message: *msg}
	if sender, err := d.users.GetByID(ctx, msg.SenderID); err != nil {
		d.logger.Warn("sender lookup failed", zap.String("sender_id", msg.SenderID), zap.Error(err))
	} else if sender != nil {
		out.SenderName = sender.DisplayName
		out.SenderAvatar = Initials(sender.DisplayName)
	}

	return d.dispatch(ctx, Event{Type: "message", Data: out}, participants, excludeSenderID)
}

// DeliverEvent pushes an arbitrary realtime event (typing, presence)
// through the same best-effort path.
func (d *Dispatcher) DeliverEvent(ctx context.Context, event Event, participants []string, excludeUserID string) DeliveryReport {
	return d.dispatch(ctx, event, participants, excludeUserID)
}

func (d *Dispatcher) dispatch(ctx context.Context, event Event, participants []string, excludeUserID string) DeliveryReport {
	payload, err := json.Marshal(event)
	if err != nil {
		d.logger.Error("marshal event", zap.Error(err))
		return DeliveryReport{}
	}

	var mu sync.Mutex
	var report DeliveryReport

	g, gctx := errgroup.WithContext(ctx)
	for _, userID := range participants {
		if userID == excludeUserID {
			continue
		}
		userID := userID
		g.Go(func() error {
			// A registry miss means the recipient simply has no live
			// connections right now; the message is already durable.
			conns, err := d.registry.ConnectionsFor(gctx, userID)
			if err != nil {
				d.logger.Warn("connection lookup failed",
					zap.String("user_id", userID),
					zap.Error(err),
				)
				return nil
			}

			for _, connectionID := range conns {
				err := d.pusher.Push(gctx, connectionID, payload)
				switch {
				case err == nil:
					mu.Lock()
					report.Delivered++
					mu.Unlock()
				case errors.Is(err, ErrConnectionGone):
					// Self-healing: prune the dead registration so the
					// next fan-out does not try it again.
					if err := d.registry.Unregister(gctx, connectionID); err != nil {
						d.logger.Warn("prune failed",
							zap.String("connection_id", connectionID),
							zap.Error(err),
						)
					}
					mu.Lock()
					report.Pruned++
					mu.Unlock()
				default:
					d.logger.Warn("push failed",
						zap.String("connection_id", connectionID),
						zap.Error(err),
					)
					mu.Lock()
					report.Failed++
					mu.Unlock()
				}
			}
			return nil
		})
	}
	_ = g.Wait()
	return report
}
