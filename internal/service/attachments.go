package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"gorm.io/gorm"

	"github.com/headless-pm/cloudtask/internal/authz"
	"github.com/headless-pm/cloudtask/internal/database"
	"github.com/headless-pm/cloudtask/internal/dispatch"
	"github.com/headless-pm/cloudtask/internal/models"
	"github.com/headless-pm/cloudtask/internal/storage"
)

func duplicateAttachment(dest string) error {
	return fmt.Errorf("%w: an attachment named %q already exists on this task", ErrConflict, path.Base(dest))
}

type Upload struct {
	Filename string
	Size     int64
	MimeType string
	Content  io.Reader
}

// UploadAttachment stores a file for a task. Oversized uploads are rejected
// before anything is written; a failed record insert removes the stored file.
func (s *Service) UploadAttachment(ctx context.Context, actor authz.Actor, taskID uint, up Upload) (*models.TaskAttachment, error) {
	store := s.read(ctx)
	t, p, err := loadTask(store, actor, taskID)
	if err != nil {
		return nil, err
	}
	if err := authz.Authorize(actor, authz.UploadAttachment, authz.TaskTarget(p, t)).Err(); err != nil {
		return nil, err
	}
	if err := storage.CheckSize(up.Size); err != nil {
		return nil, err
	}

	dest := storage.AttachmentPath(p.ID, t.ID, up.Filename)
	var existing int64
	if err := store.Model(&models.TaskAttachment{}).Where("path = ?", dest).Count(&existing).Error; err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, duplicateAttachment(dest)
	}

	stored, written, err := s.files.SaveFile(up.Content, up.Size, p.ID, t.ID, up.Filename)
	if errors.Is(err, storage.ErrFileExists) {
		return nil, duplicateAttachment(dest)
	}
	if err != nil {
		return nil, err
	}

	att := &models.TaskAttachment{
		TaskID:       t.ID,
		Filename:     path.Base(stored),
		Path:         stored,
		Size:         written,
		MimeType:     up.MimeType,
		UploadedByID: actor.UserID,
		UploadedAt:   s.now(),
	}
	if err := s.inTx(ctx, func(tx *database.Database) error {
		return tx.Create(att).Error
	}); err != nil {
		s.removeFiles([]string{stored})
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, duplicateAttachment(dest)
		}
		return nil, err
	}

	s.emit(ctx, dispatch.Event{
		Activity: taskActivity(actor, t, models.ActionAttach, fmt.Sprintf("uploaded %q to %q", att.Filename, t.Title)),
	})
	return att, nil
}

func (s *Service) DeleteAttachment(ctx context.Context, actor authz.Actor, taskID, attachmentID uint) error {
	var att models.TaskAttachment
	err := s.inTx(ctx, func(store *database.Database) error {
		t, p, err := loadTask(store, actor, taskID)
		if err != nil {
			return err
		}
		if err := store.Where("task_id = ?", t.ID).First(&att, attachmentID).Error; err != nil {
			return lookup(err, "attachment")
		}
		target := authz.TaskTarget(p, t)
		target.UploaderID = &att.UploadedByID
		if err := authz.Authorize(actor, authz.DeleteAttachment, target).Err(); err != nil {
			return err
		}
		return store.Delete(&att).Error
	})
	if err != nil {
		return err
	}

	s.removeFiles([]string{att.Path})
	s.logger.Info("attachment deleted", "task_id", taskID, "file", att.Filename, "by", actor.UserID)
	return nil
}
