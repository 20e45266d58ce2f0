package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/headless-pm/cloudtask/internal/authz"
	"github.com/headless-pm/cloudtask/internal/database"
	"github.com/headless-pm/cloudtask/internal/dispatch"
	"github.com/headless-pm/cloudtask/internal/models"
)

var mentionPattern = regexp.MustCompile(`(?:^|[^\w])@([\w.+-]+)`)

// Mentions returns the distinct usernames referenced as @username, in order.
func Mentions(text string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range mentionPattern.FindAllStringSubmatch(text, -1) {
		name := strings.TrimRight(m[1], ".")
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

func statusComment(actor authz.Actor, t *models.Task, from, to models.TaskStatus, text string) *models.TaskComment {
	if strings.TrimSpace(text) == "" {
		text = fmt.Sprintf("Status changed from %s to %s", from.Label(), to.Label())
	}
	status := to
	return &models.TaskComment{
		TaskID:          t.ID,
		UserID:          actor.UserID,
		Comment:         text,
		StatusChangedTo: &status,
	}
}

// ChangeStatus moves a task to status. Setting the current status is a no-op;
// otherwise the change is stored together with a comment describing it.
func (s *Service) ChangeStatus(ctx context.Context, actor authz.Actor, taskID uint, status models.TaskStatus, comment string) (*models.Task, error) {
	if !status.Valid() {
		return nil, invalid("invalid task status %q", status)
	}

	var (
		t       *models.Task
		p       *models.Project
		from    models.TaskStatus
		changed bool
	)
	err := s.inTx(ctx, func(store *database.Database) error {
		var err error
		if t, p, err = loadTask(store, actor, taskID); err != nil {
			return err
		}
		if err := authz.Authorize(actor, authz.ChangeTaskStatus, authz.TaskTarget(p, t)).Err(); err != nil {
			return err
		}
		from = t.Status
		if from == status {
			return nil
		}
		changed = true
		t.Status = status
		if err := store.Model(t).Select("status", "updated_at").Updates(t).Error; err != nil {
			return err
		}
		return store.Create(statusComment(actor, t, from, status, comment)).Error
	})
	if err != nil {
		return nil, err
	}

	if changed {
		ev := dispatch.Event{Activity: statusChangeActivity(actor, t, from, status, fmt.Sprintf("changed status of %q", t.Title))}
		taskUpdatedNotices(&ev, actor, p, t,
			fmt.Sprintf("Task %q moved from %s to %s", t.Title, from.Label(), status.Label()))
		s.emit(ctx, ev)
	}

	blocked, err := s.read(ctx).BlockedTaskIDs([]uint{t.ID})
	if err != nil {
		return nil, err
	}
	t.IsBlocked = blocked[t.ID]
	return t, nil
}

// AddComment stores a task comment. When statusChangedTo is set and differs
// from the current status, the status change is applied in the same transaction.
func (s *Service) AddComment(ctx context.Context, actor authz.Actor, taskID uint, text string, statusChangedTo *models.TaskStatus) (*models.TaskComment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, invalid("comment text is required")
	}
	if statusChangedTo != nil && !statusChangedTo.Valid() {
		return nil, invalid("invalid task status %q", *statusChangedTo)
	}

	var (
		t         *models.Task
		p         *models.Project
		comment   *models.TaskComment
		from      models.TaskStatus
		changed   bool
		prior     []uint
		mentioned []uint
	)
	err := s.inTx(ctx, func(store *database.Database) error {
		var err error
		if t, p, err = loadTask(store, actor, taskID); err != nil {
			return err
		}
		target := authz.TaskTarget(p, t)
		if err := authz.Authorize(actor, authz.CommentTask, target).Err(); err != nil {
			return err
		}
		if statusChangedTo != nil {
			if err := authz.Authorize(actor, authz.ChangeTaskStatus, target).Err(); err != nil {
				return err
			}
		}

		if err := store.Model(&models.TaskComment{}).
			Where("task_id = ? AND user_id <> ?", t.ID, actor.UserID).
			Distinct().Order("user_id").Pluck("user_id", &prior).Error; err != nil {
			return err
		}

		comment = &models.TaskComment{TaskID: t.ID, UserID: actor.UserID, Comment: text}
		from = t.Status
		if statusChangedTo != nil && *statusChangedTo != from {
			changed = true
			t.Status = *statusChangedTo
			if err := store.Model(t).Select("status", "updated_at").Updates(t).Error; err != nil {
				return err
			}
			status := *statusChangedTo
			comment.StatusChangedTo = &status
		}
		if err := store.Create(comment).Error; err != nil {
			return err
		}

		users, err := store.UsersByUsername(p.OrganizationID, Mentions(text))
		if err != nil {
			return err
		}
		for _, u := range users {
			mentioned = append(mentioned, u.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	commenter := s.displayName(ctx, actor.UserID)
	var events []dispatch.Event
	if changed {
		events = append(events, dispatch.Event{
			Activity: statusChangeActivity(actor, t, from, t.Status, fmt.Sprintf("changed status of %q", t.Title)),
		})
	}
	ev := dispatch.Event{Activity: taskActivity(actor, t, models.ActionComment, fmt.Sprintf("commented on %q", t.Title))}
	taskCommentNotices(&ev, actor, p, t, commenter, prior)
	mentionNotices(&ev, actor, t, commenter, mentioned)
	events = append(events, ev)
	s.emit(ctx, events...)
	return comment, nil
}
