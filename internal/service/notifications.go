package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/headless-pm/cloudtask/internal/authz"
	"github.com/headless-pm/cloudtask/internal/dispatch"
	"github.com/headless-pm/cloudtask/internal/models"
)

const defaultListLimit = 50

func clampLimit(limit int) int {
	if limit <= 0 || limit > 200 {
		return defaultListLimit
	}
	return limit
}

func (s *Service) ListNotifications(ctx context.Context, actor authz.Actor, limit int, unreadOnly bool) ([]models.Notification, error) {
	return s.db.ListNotifications(ctx, actor.UserID, clampLimit(limit), unreadOnly)
}

func (s *Service) MarkRead(ctx context.Context, actor authz.Actor, id uint) error {
	err := s.db.MarkNotificationRead(ctx, actor.UserID, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound("notification")
	}
	return err
}

func (s *Service) MarkAllRead(ctx context.Context, actor authz.Actor) (int64, error) {
	return s.db.MarkAllNotificationsRead(ctx, actor.UserID)
}

func (s *Service) UnreadCount(ctx context.Context, actor authz.Actor) (int64, error) {
	return s.db.CountUnread(ctx, actor.UserID)
}

// ListActivity returns the newest activity of the actor's organization.
func (s *Service) ListActivity(ctx context.Context, actor authz.Actor, limit int) ([]models.ActivityLog, error) {
	if err := authz.Authorize(actor, authz.ViewActivity, authz.OrgTarget(actor.OrganizationID)).Err(); err != nil {
		return nil, err
	}
	return s.db.ListActivity(ctx, actor.OrganizationID, clampLimit(limit))
}

// NotifyUpcomingDeadlines sends DEADLINE notifications to the assignees of
// unfinished tasks due within the window. An assignee is reminded about a task
// at most once per window.
func (s *Service) NotifyUpcomingDeadlines(ctx context.Context, within time.Duration) (int, error) {
	if within <= 0 {
		return 0, invalid("deadline window must be positive")
	}
	now := s.now()
	tasks, err := s.read(ctx).TasksDueBetween(now, now.Add(within))
	if err != nil {
		return 0, err
	}

	var ev dispatch.Event
	for _, t := range tasks {
		link := models.TaskLink(t.ID)
		var already int64
		if err := s.db.WithContext(ctx).Model(&models.Notification{}).
			Where("recipient_id = ? AND kind = ? AND link = ? AND created_at >= ?",
				*t.AssignedToID, models.NotificationDeadline, link, now.Add(-within)).
			Count(&already).Error; err != nil {
			return 0, err
		}
		if already > 0 {
			continue
		}
		ev.Add(models.NotificationDeadline, "Upcoming Deadline",
			fmt.Sprintf("%q is due %s", t.Title, t.DueDate.Format("Jan 2, 2006 15:04 MST")),
			link, []uint{*t.AssignedToID})
		ev.Notifications[len(ev.Notifications)-1].CreatedAt = now
	}
	s.emit(ctx, ev)
	s.logger.Info("deadline reminders sent", "count", len(ev.Notifications), "window", within)
	return len(ev.Notifications), nil
}

// TaskHistory returns the activity of one visible task, oldest first.
func (s *Service) TaskHistory(ctx context.Context, actor authz.Actor, taskID uint) ([]models.ActivityLog, error) {
	store := s.read(ctx)
	t, err := visibleTask(store, actor, taskID)
	if err != nil {
		return nil, err
	}
	return store.EntityActivity(ctx, actor.OrganizationID, models.EntityTask, t.ID)
}
