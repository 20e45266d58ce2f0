package service

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/headless-pm/cloudtask/internal/authz"
	"github.com/headless-pm/cloudtask/internal/database"
	"github.com/headless-pm/cloudtask/internal/dispatch"
	"github.com/headless-pm/cloudtask/internal/models"
)

func dependencies(store *database.Database, taskID uint) ([]models.TaskDependency, error) {
	deps, err := store.DependenciesOf(taskID)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(deps))
	for _, d := range deps {
		ids = append(ids, d.DependsOnID)
	}
	blocked, err := store.BlockedTaskIDs(ids)
	if err != nil {
		return nil, err
	}
	for i := range deps {
		if deps[i].DependsOn != nil {
			deps[i].DependsOn.IsBlocked = blocked[deps[i].DependsOnID]
		}
	}
	return deps, nil
}

// ListDependencies returns the direct dependencies of a visible task.
func (s *Service) ListDependencies(ctx context.Context, actor authz.Actor, taskID uint) ([]models.TaskDependency, error) {
	store := s.read(ctx)
	t, err := visibleTask(store, actor, taskID)
	if err != nil {
		return nil, err
	}
	return dependencies(store, t.ID)
}

// DependencyChain returns every task, direct or transitive, that must be done first.
func (s *Service) DependencyChain(ctx context.Context, actor authz.Actor, taskID uint) ([]models.Task, error) {
	store := s.read(ctx)
	t, err := visibleTask(store, actor, taskID)
	if err != nil {
		return nil, err
	}
	chain, err := store.DependencyChain(t.ID)
	if err != nil {
		return nil, err
	}
	if err := store.MarkBlocked(chain); err != nil {
		return nil, err
	}
	return chain, nil
}

// AddDependency records that taskID cannot finish before dependsOnID. The
// candidate must be another task of the same project, not already linked, and
// the new edge must keep the graph acyclic.
func (s *Service) AddDependency(ctx context.Context, actor authz.Actor, taskID, dependsOnID uint) (*models.TaskDependency, error) {
	var (
		t, candidate *models.Task
		dep          *models.TaskDependency
	)
	err := s.inTx(ctx, func(store *database.Database) error {
		var (
			p   *models.Project
			err error
		)
		if t, p, err = loadTask(store, actor, taskID); err != nil {
			return err
		}
		if err := authz.Authorize(actor, authz.ManageDependencies, authz.TaskTarget(p, t)).Err(); err != nil {
			return err
		}
		if dependsOnID == t.ID {
			return invalidDependency("a task cannot depend on itself")
		}

		var c models.Task
		if err := store.Where("project_id = ?", t.ProjectID).First(&c, dependsOnID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return invalidDependency("dependency must be a task of the same project")
			}
			return err
		}
		candidate = &c

		var count int64
		if err := store.Model(&models.TaskDependency{}).
			Where("task_id = ? AND depends_on_id = ?", t.ID, c.ID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return invalidDependency("dependency already exists")
		}
		cycle, err := store.HasDependencyPath(c.ID, t.ID)
		if err != nil {
			return err
		}
		if cycle {
			return invalidDependency("dependency would create a cycle")
		}

		dep = &models.TaskDependency{TaskID: t.ID, DependsOnID: c.ID}
		if err := store.Create(dep).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return invalidDependency("dependency already exists")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	dep.DependsOn = candidate
	s.emit(ctx, dispatch.Event{
		Activity: taskActivity(actor, t, models.ActionUpdate, fmt.Sprintf("added dependency on %q to %q", candidate.Title, t.Title)),
	})
	return dep, nil
}

// RemoveDependency deletes the edge taskID -> dependsOnID. A missing edge is ErrNotFound.
func (s *Service) RemoveDependency(ctx context.Context, actor authz.Actor, taskID, dependsOnID uint) error {
	var (
		t     *models.Task
		title string
	)
	err := s.inTx(ctx, func(store *database.Database) error {
		var (
			p   *models.Project
			err error
		)
		if t, p, err = loadTask(store, actor, taskID); err != nil {
			return err
		}
		if err := authz.Authorize(actor, authz.ManageDependencies, authz.TaskTarget(p, t)).Err(); err != nil {
			return err
		}
		var dep models.TaskDependency
		if err := store.Preload("DependsOn").
			Where("task_id = ? AND depends_on_id = ?", t.ID, dependsOnID).
			First(&dep).Error; err != nil {
			return lookup(err, "dependency")
		}
		if dep.DependsOn != nil {
			title = dep.DependsOn.Title
		}
		return store.Delete(&dep).Error
	})
	if err != nil {
		return err
	}

	s.emit(ctx, dispatch.Event{
		Activity: taskActivity(actor, t, models.ActionUpdate, fmt.Sprintf("removed dependency on %q from %q", title, t.Title)),
	})
	return nil
}
