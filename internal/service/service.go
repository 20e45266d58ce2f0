// Package service implements the tenancy, workflow and time tracking
// operations. Every operation takes the acting identity explicitly, runs its
// writes in one transaction, and dispatches activity after commit.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"

	"github.com/headless-pm/cloudtask/internal/authz"
	"github.com/headless-pm/cloudtask/internal/database"
	"github.com/headless-pm/cloudtask/internal/dispatch"
	"github.com/headless-pm/cloudtask/internal/models"
	"github.com/headless-pm/cloudtask/internal/storage"
)

type Service struct {
	db         *database.Database
	files      *storage.FileStorage
	dispatcher *dispatch.Dispatcher
	logger     *log.Logger

	// Clock is replaceable in tests.
	Clock func() time.Time
}

func NewService(db *database.Database, files *storage.FileStorage, dispatcher *dispatch.Dispatcher, logger *log.Logger) *Service {
	return &Service{
		db:         db,
		files:      files,
		dispatcher: dispatcher,
		logger:     logger.WithPrefix("service"),
		Clock:      time.Now,
	}
}

func (s *Service) now() time.Time {
	return s.Clock().UTC()
}

func (s *Service) read(ctx context.Context) *database.Database {
	return database.Wrap(s.db.WithContext(ctx))
}

func (s *Service) inTx(ctx context.Context, fn func(store *database.Database) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(database.Wrap(tx))
	})
}

func (s *Service) emit(ctx context.Context, events ...dispatch.Event) {
	for _, ev := range events {
		s.dispatcher.Emit(ctx, ev)
	}
}

// loadProject loads a project inside the actor's tenant. A project of another
// organization is reported as missing.
func loadProject(store *database.Database, actor authz.Actor, id uint) (*models.Project, error) {
	var p models.Project
	err := store.Scopes(authz.TenantProjectScope(actor)).First(&p, id).Error
	return &p, lookup(err, "project")
}

// loadTask loads a task for a mutation. The task must belong to a project the
// actor can see, or be assigned to the actor; anything else is ErrNotFound.
// Within a visible project the policy table decides, so a team member who is
// not the assignee gets ErrPermissionDenied.
func loadTask(store *database.Database, actor authz.Actor, id uint) (*models.Task, *models.Project, error) {
	var t models.Task
	if err := store.Scopes(authz.TenantTaskScope(actor)).First(&t, id).Error; err != nil {
		return nil, nil, lookup(err, "task")
	}
	var p models.Project
	err := store.Scopes(authz.ProjectScope(actor)).First(&p, t.ProjectID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) && t.AssignedToID != nil && *t.AssignedToID == actor.UserID {
		err = store.Scopes(authz.TenantProjectScope(actor)).First(&p, t.ProjectID).Error
	}
	if err != nil {
		return nil, nil, lookup(err, "task")
	}
	t.Project = &p
	return &t, &p, nil
}

// visibleTask loads a task through the caller's visibility scope.
func visibleTask(store *database.Database, actor authz.Actor, id uint) (*models.Task, error) {
	var t models.Task
	err := store.Scopes(authz.TaskScope(actor)).
		Preload("Project").
		Preload("AssignedTo").
		First(&t, id).Error
	if err != nil {
		return nil, lookup(err, "task")
	}
	blocked, err := store.BlockedTaskIDs([]uint{t.ID})
	if err != nil {
		return nil, err
	}
	t.IsBlocked = blocked[t.ID]
	return &t, nil
}

func (s *Service) displayName(ctx context.Context, userID uint) string {
	u, err := s.read(ctx).GetUserByID(userID)
	if err != nil {
		return "someone"
	}
	return u.DisplayName()
}

func orgPtr(actor authz.Actor) *uint {
	org := actor.OrganizationID
	return &org
}

func strPtr(s string) *string { return &s }
