// Package dispatch records activity and fans out notifications once a
// mutation has committed. Nothing here ever fails the caller: sink errors are
// logged and dropped.
package dispatch

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/headless-pm/cloudtask/internal/models"
)

// Store is the durable sink for activity entries and notifications.
type Store interface {
	RecordActivity(ctx context.Context, entry *models.ActivityLog) error
	CreateNotifications(ctx context.Context, notes []models.Notification) error
}

// Publisher forwards recorded activity to an external channel.
type Publisher interface {
	Publish(entry models.ActivityLog)
}

// Event is what a committed mutation hands to the dispatcher.
type Event struct {
	Activity      *models.ActivityLog
	Notifications []models.Notification
}

// Add appends one notification per recipient.
func (e *Event) Add(kind models.NotificationKind, title, message, link string, recipients []uint) {
	for _, id := range recipients {
		e.Notifications = append(e.Notifications, models.Notification{
			RecipientID: id,
			Kind:        kind,
			Title:       title,
			Message:     message,
			Link:        link,
		})
	}
}

type Dispatcher struct {
	store     Store
	publisher Publisher
	logger    *log.Logger
}

func New(store Store, logger *log.Logger) *Dispatcher {
	return &Dispatcher{store: store, logger: logger.WithPrefix("dispatch")}
}

// SetPublisher attaches an optional relay. Call before serving requests.
func (d *Dispatcher) SetPublisher(p Publisher) {
	d.publisher = p
}

// Emit persists the event. It must be called after the owning transaction committed.
func (d *Dispatcher) Emit(ctx context.Context, ev Event) {
	if ev.Activity != nil {
		if err := d.store.RecordActivity(ctx, ev.Activity); err != nil {
			d.logger.Error("failed to record activity",
				"action", ev.Activity.Action,
				"entity", ev.Activity.EntityType,
				"entity_id", ev.Activity.EntityID,
				"err", err)
		} else if d.publisher != nil {
			d.publisher.Publish(*ev.Activity)
		}
	}

	if len(ev.Notifications) == 0 {
		return
	}
	if err := d.store.CreateNotifications(ctx, ev.Notifications); err != nil {
		d.logger.Error("failed to create notifications", "count", len(ev.Notifications), "err", err)
		return
	}
	d.logger.Debug("notifications sent", "count", len(ev.Notifications), "kind", ev.Notifications[0].Kind)
}

// Recipients deduplicates the candidate ids in order, skipping unset ids and the actor.
func Recipients(actorID uint, candidates ...*uint) []uint {
	seen := make(map[uint]bool, len(candidates))
	out := make([]uint, 0, len(candidates))
	for _, c := range candidates {
		if c == nil || *c == 0 || *c == actorID || seen[*c] {
			continue
		}
		seen[*c] = true
		out = append(out, *c)
	}
	return out
}

// IDs adapts plain ids for Recipients.
func IDs(ids ...uint) []*uint {
	out := make([]*uint, len(ids))
	for i := range ids {
		out[i] = &ids[i]
	}
	return out
}
