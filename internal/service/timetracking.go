package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/headless-pm/cloudtask/internal/authz"
	"github.com/headless-pm/cloudtask/internal/database"
	"github.com/headless-pm/cloudtask/internal/models"
)

type TimerStart struct {
	Entry   *models.TimeEntry `json:"entry"`
	Stopped *models.TimeEntry `json:"stopped,omitempty"`
}

type ActiveTimer struct {
	Entry          models.TimeEntry `json:"entry"`
	TaskTitle      string           `json:"task_title"`
	ElapsedSeconds int64            `json:"elapsed_seconds"`
}

type TimeSummary struct {
	TotalMinutes int                `json:"total_minutes"`
	Display      string             `json:"display"`
	Entries      []models.TimeEntry `json:"entries"`
}

func runningEntry(store *database.Database, userID uint) (*models.TimeEntry, error) {
	var entries []models.TimeEntry
	if err := store.Where("user_id = ? AND is_running = ?", userID, true).
		Preload("Task").Limit(1).Find(&entries).Error; err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

func saveStopped(store *database.Database, e *models.TimeEntry) error {
	return store.Model(e).Select("end_time", "duration_minutes", "is_running").Updates(e).Error
}

// StartTimer starts a running entry for the actor on taskID. Any running entry
// of the actor, on any task, is stopped first in the same transaction.
func (s *Service) StartTimer(ctx context.Context, actor authz.Actor, taskID uint, description string) (*TimerStart, error) {
	result := &TimerStart{}
	err := s.inTx(ctx, func(store *database.Database) error {
		t, p, err := loadTask(store, actor, taskID)
		if err != nil {
			return err
		}
		if err := authz.Authorize(actor, authz.TrackTime, authz.TaskTarget(p, t)).Err(); err != nil {
			return err
		}

		now := s.now()
		prev, err := runningEntry(store, actor.UserID)
		if err != nil {
			return err
		}
		if prev != nil {
			prev.Stop(now)
			if err := saveStopped(store, prev); err != nil {
				return err
			}
			result.Stopped = prev
		}

		entry := &models.TimeEntry{
			TaskID:      t.ID,
			UserID:      actor.UserID,
			StartTime:   now,
			Description: strings.TrimSpace(description),
			IsRunning:   true,
		}
		if err := store.Create(entry).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("%w: another timer was started concurrently", ErrConflict)
			}
			return err
		}
		result.Entry = entry
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Stopped != nil {
		s.logger.Info("timer stopped", "user_id", actor.UserID, "task_id", result.Stopped.TaskID, "minutes", result.Stopped.DurationMinutes)
	}
	s.logger.Info("timer started", "user_id", actor.UserID, "task_id", taskID)
	return result, nil
}

// StopTimer stops the actor's running entry on taskID. ErrNoActiveTimer is informational.
func (s *Service) StopTimer(ctx context.Context, actor authz.Actor, taskID uint) (*models.TimeEntry, error) {
	var entry models.TimeEntry
	err := s.inTx(ctx, func(store *database.Database) error {
		t, _, err := loadTask(store, actor, taskID)
		if err != nil {
			return err
		}
		err = store.Where("task_id = ? AND user_id = ? AND is_running = ?", t.ID, actor.UserID, true).
			First(&entry).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w on this task", ErrNoActiveTimer)
		}
		if err != nil {
			return err
		}
		entry.Stop(s.now())
		return saveStopped(store, &entry)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("timer stopped", "user_id", actor.UserID, "task_id", taskID, "minutes", entry.DurationMinutes)
	return &entry, nil
}

// MaxManualMinutes bounds one manual entry to a year of work.
const MaxManualMinutes = 366 * 24 * 60

// AddManualEntry logs minutes of finished work ending now.
func (s *Service) AddManualEntry(ctx context.Context, actor authz.Actor, taskID uint, minutes int, description string) (*models.TimeEntry, error) {
	if minutes <= 0 {
		return nil, fmt.Errorf("%w: duration must be a positive number of minutes", ErrInvalidDuration)
	}
	if minutes > MaxManualMinutes {
		return nil, fmt.Errorf("%w: duration cannot exceed %d minutes", ErrInvalidDuration, MaxManualMinutes)
	}

	var entry *models.TimeEntry
	err := s.inTx(ctx, func(store *database.Database) error {
		t, p, err := loadTask(store, actor, taskID)
		if err != nil {
			return err
		}
		if err := authz.Authorize(actor, authz.TrackTime, authz.TaskTarget(p, t)).Err(); err != nil {
			return err
		}
		end := s.now()
		entry = &models.TimeEntry{
			TaskID:          t.ID,
			UserID:          actor.UserID,
			StartTime:       end.Add(-time.Duration(minutes) * time.Minute),
			EndTime:         &end,
			DurationMinutes: minutes,
			Description:     strings.TrimSpace(description),
		}
		return store.Create(entry).Error
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// ActiveTimer returns the actor's running entry, or nil when there is none.
func (s *Service) ActiveTimer(ctx context.Context, actor authz.Actor) (*ActiveTimer, error) {
	entry, err := runningEntry(s.read(ctx), actor.UserID)
	if err != nil || entry == nil {
		return nil, err
	}
	active := &ActiveTimer{
		Entry:          *entry,
		ElapsedSeconds: int64(s.now().Sub(entry.StartTime).Seconds()),
	}
	if entry.Task != nil {
		active.TaskTitle = entry.Task.Title
	}
	return active, nil
}

func timeSummary(store *database.Database, taskID uint, recent int) (*TimeSummary, error) {
	var total int64
	if err := store.Model(&models.TimeEntry{}).Where("task_id = ?", taskID).
		Select("COALESCE(SUM(duration_minutes), 0)").Scan(&total).Error; err != nil {
		return nil, err
	}
	summary := &TimeSummary{TotalMinutes: int(total), Display: models.FormatMinutes(int(total))}
	q := store.Where("task_id = ?", taskID).Preload("User").Order("start_time DESC, id DESC")
	if recent > 0 {
		q = q.Limit(recent)
	}
	if err := q.Find(&summary.Entries).Error; err != nil {
		return nil, err
	}
	return summary, nil
}

// TaskTimeSummary totals the time logged on a visible task.
func (s *Service) TaskTimeSummary(ctx context.Context, actor authz.Actor, taskID uint) (*TimeSummary, error) {
	store := s.read(ctx)
	t, err := visibleTask(store, actor, taskID)
	if err != nil {
		return nil, err
	}
	return timeSummary(store, t.ID, 0)
}
