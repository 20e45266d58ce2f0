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
	"github.com/headless-pm/cloudtask/internal/dispatch"
	"github.com/headless-pm/cloudtask/internal/models"
)

type ProjectInput struct {
	Name        string               `json:"name"`
	Description string               `json:"description"`
	ManagerID   *uint                `json:"manager_id"`
	Status      models.ProjectStatus `json:"status"`
	StartDate   *time.Time           `json:"start_date"`
	EndDate     *time.Time           `json:"end_date"`
}

type ProjectFilter struct {
	Status *models.ProjectStatus
	Limit  int
	Offset int
}

type ProjectDetail struct {
	models.Project
	Comments  []models.ProjectComment `json:"comments"`
	TaskCount int64                   `json:"task_count"`
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

func (in *ProjectInput) normalize(current models.ProjectStatus) error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return invalid("project name is required")
	}
	if in.Status == "" {
		in.Status = current
	}
	if !in.Status.Valid() {
		return invalid("invalid project status %q", in.Status)
	}
	in.StartDate, in.EndDate = utc(in.StartDate), utc(in.EndDate)
	if in.StartDate != nil && in.EndDate != nil && in.EndDate.Before(*in.StartDate) {
		return invalid("end date must not be before start date")
	}
	return nil
}

// checkManager requires managerID, when set, to be a manager of org.
func checkManager(store *database.Database, org uint, managerID *uint) error {
	if managerID == nil {
		return nil
	}
	u, err := store.GetUserByID(*managerID)
	if err != nil || !u.InOrganization(org) || u.Role != models.RoleManager {
		return invalid("project manager must be a manager of the organization")
	}
	return nil
}

func (s *Service) CreateProject(ctx context.Context, actor authz.Actor, in ProjectInput) (*models.Project, error) {
	if err := authz.Authorize(actor, authz.CreateProject, authz.OrgTarget(actor.OrganizationID)).Err(); err != nil {
		return nil, err
	}
	if err := in.normalize(models.ProjectStatusPlanning); err != nil {
		return nil, err
	}

	p := &models.Project{
		Name:           in.Name,
		Description:    in.Description,
		OrganizationID: actor.OrganizationID,
		ManagerID:      in.ManagerID,
		Status:         in.Status,
		StartDate:      in.StartDate,
		EndDate:        in.EndDate,
		CreatedByID:    actor.UserID,
	}
	var admins []uint
	err := s.inTx(ctx, func(store *database.Database) error {
		if err := checkManager(store, actor.OrganizationID, in.ManagerID); err != nil {
			return err
		}
		if err := store.Create(p).Error; err != nil {
			return err
		}
		var err error
		admins, err = store.UserIDsByRole(actor.OrganizationID, models.RoleEnterprise)
		return err
	})
	if err != nil {
		return nil, err
	}

	ev := dispatch.Event{Activity: projectActivity(actor, p, models.ActionCreate, fmt.Sprintf("created project %q", p.Name))}
	projectCreatedNotices(&ev, actor, p, s.displayName(ctx, actor.UserID), admins)
	s.emit(ctx, ev)
	return p, nil
}

func (s *Service) ListProjects(ctx context.Context, actor authz.Actor, filter ProjectFilter) ([]models.Project, error) {
	if err := authz.Authorize(actor, authz.ListProjects, authz.OrgTarget(actor.OrganizationID)).Err(); err != nil {
		return nil, err
	}
	q := s.db.WithContext(ctx).Scopes(authz.ProjectScope(actor)).Preload("Manager")
	if filter.Status != nil {
		q = q.Where("projects.status = ?", *filter.Status)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit).Offset(filter.Offset)
	}
	var projects []models.Project
	err := q.Order("projects.created_at DESC, projects.id DESC").Find(&projects).Error
	return projects, err
}

func (s *Service) GetProject(ctx context.Context, actor authz.Actor, id uint) (*ProjectDetail, error) {
	store := s.read(ctx)
	var p models.Project
	err := store.Scopes(authz.ProjectScope(actor)).
		Preload("Manager").
		Preload("Members.User").
		First(&p, id).Error
	if err != nil {
		return nil, lookup(err, "project")
	}

	detail := &ProjectDetail{Project: p}
	if err := store.Where("project_id = ?", p.ID).Preload("User").
		Order("created_at DESC, id DESC").Find(&detail.Comments).Error; err != nil {
		return nil, err
	}
	if err := store.Model(&models.Task{}).Where("project_id = ?", p.ID).Count(&detail.TaskCount).Error; err != nil {
		return nil, err
	}
	return detail, nil
}

func (s *Service) UpdateProject(ctx context.Context, actor authz.Actor, id uint, in ProjectInput) (*models.Project, error) {
	var p *models.Project
	err := s.inTx(ctx, func(store *database.Database) error {
		var err error
		if p, err = loadProject(store, actor, id); err != nil {
			return err
		}
		if err := authz.Authorize(actor, authz.EditProject, authz.ProjectTarget(p, false)).Err(); err != nil {
			return err
		}
		if err := in.normalize(p.Status); err != nil {
			return err
		}
		if err := checkManager(store, p.OrganizationID, in.ManagerID); err != nil {
			return err
		}
		p.Name, p.Description, p.ManagerID = in.Name, in.Description, in.ManagerID
		p.Status, p.StartDate, p.EndDate = in.Status, in.StartDate, in.EndDate
		return store.Select("name", "description", "manager_id", "status", "start_date", "end_date", "updated_at").
			Updates(p).Error
	})
	if err != nil {
		return nil, err
	}

	ev := dispatch.Event{Activity: projectActivity(actor, p, models.ActionUpdate, fmt.Sprintf("updated project %q", p.Name))}
	projectUpdatedNotices(&ev, actor, p)
	s.emit(ctx, ev)
	return p, nil
}

func (s *Service) DeleteProject(ctx context.Context, actor authz.Actor, id uint) error {
	var (
		p     *models.Project
		paths []string
	)
	err := s.inTx(ctx, func(store *database.Database) error {
		var err error
		if p, err = loadProject(store, actor, id); err != nil {
			return err
		}
		if err := authz.Authorize(actor, authz.DeleteProject, authz.ProjectTarget(p, false)).Err(); err != nil {
			return err
		}
		if paths, err = store.AttachmentPaths(p.ID, 0); err != nil {
			return err
		}
		return store.DeleteProjectCascade(p.ID)
	})
	if err != nil {
		return err
	}

	s.removeFiles(paths)
	s.emit(ctx, dispatch.Event{Activity: projectActivity(actor, p, models.ActionDelete, fmt.Sprintf("deleted project %q", p.Name))})
	return nil
}

func (s *Service) removeFiles(paths []string) {
	for _, path := range paths {
		if err := s.files.DeleteFile(path); err != nil {
			s.logger.Warn("failed to remove attachment file", "path", path, "err", err)
		}
	}
}

// AddMember puts an employee of the project's organization on the team.
func (s *Service) AddMember(ctx context.Context, actor authz.Actor, projectID, userID uint, role models.MemberRole) (*models.ProjectMember, error) {
	if role == "" {
		role = models.MemberRoleDeveloper
	}
	if !role.Valid() {
		return nil, invalid("invalid member role %q", role)
	}

	var (
		p      *models.Project
		user   *models.User
		member *models.ProjectMember
	)
	err := s.inTx(ctx, func(store *database.Database) error {
		var err error
		if p, err = loadProject(store, actor, projectID); err != nil {
			return err
		}
		if err := authz.Authorize(actor, authz.ManageMembers, authz.ProjectTarget(p, false)).Err(); err != nil {
			return err
		}
		user, err = store.GetUserByID(userID)
		if err != nil || !user.InOrganization(p.OrganizationID) || user.Role != models.RoleEmployee {
			return invalid("team members must be employees of the organization")
		}
		member = &models.ProjectMember{ProjectID: p.ID, UserID: user.ID, Role: role, JoinedAt: s.now()}
		if err := store.Create(member).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return invalid("%s is already a member of this project", user.Username)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	member.User = user
	ev := dispatch.Event{Activity: projectActivity(actor, p, models.ActionAssign, fmt.Sprintf("added %s to project", user.DisplayName()))}
	memberAddedNotices(&ev, actor, p, user)
	s.emit(ctx, ev)
	return member, nil
}

// RemoveMember deletes a membership row of the project.
func (s *Service) RemoveMember(ctx context.Context, actor authz.Actor, projectID, memberID uint) error {
	var (
		p    *models.Project
		name string
	)
	err := s.inTx(ctx, func(store *database.Database) error {
		var err error
		if p, err = loadProject(store, actor, projectID); err != nil {
			return err
		}
		if err := authz.Authorize(actor, authz.ManageMembers, authz.ProjectTarget(p, false)).Err(); err != nil {
			return err
		}
		var m models.ProjectMember
		if err := store.Preload("User").Where("project_id = ?", p.ID).First(&m, memberID).Error; err != nil {
			return lookup(err, "project member")
		}
		if m.User != nil {
			name = m.User.DisplayName()
		}
		return store.Delete(&m).Error
	})
	if err != nil {
		return err
	}

	s.emit(ctx, dispatch.Event{Activity: projectActivity(actor, p, models.ActionUpdate, fmt.Sprintf("removed %s from project", name))})
	return nil
}

func (s *Service) ListProjectComments(ctx context.Context, actor authz.Actor, projectID uint) ([]models.ProjectComment, error) {
	store := s.read(ctx)
	var p models.Project
	if err := store.Scopes(authz.ProjectScope(actor)).First(&p, projectID).Error; err != nil {
		return nil, lookup(err, "project")
	}
	var comments []models.ProjectComment
	err := store.Where("project_id = ?", p.ID).Preload("User").
		Order("created_at DESC, id DESC").Find(&comments).Error
	return comments, err
}

func (s *Service) AddProjectComment(ctx context.Context, actor authz.Actor, projectID uint, text string) (*models.ProjectComment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, invalid("comment text is required")
	}

	var (
		p       *models.Project
		comment *models.ProjectComment
		members []uint
	)
	err := s.inTx(ctx, func(store *database.Database) error {
		var err error
		if p, err = loadProject(store, actor, projectID); err != nil {
			return err
		}
		isMember, err := store.IsProjectMember(p.ID, actor.UserID)
		if err != nil {
			return err
		}
		if err := authz.Authorize(actor, authz.CommentProject, authz.ProjectTarget(p, isMember)).Err(); err != nil {
			return err
		}
		comment = &models.ProjectComment{ProjectID: p.ID, UserID: actor.UserID, Comment: text}
		if err := store.Create(comment).Error; err != nil {
			return err
		}
		return store.Model(&models.ProjectMember{}).Where("project_id = ?", p.ID).
			Order("id").Pluck("user_id", &members).Error
	})
	if err != nil {
		return nil, err
	}

	ev := dispatch.Event{Activity: projectActivity(actor, p, models.ActionComment, fmt.Sprintf("commented on project %q", p.Name))}
	projectCommentNotices(&ev, actor, p, s.displayName(ctx, actor.UserID), members)
	s.emit(ctx, ev)
	return comment, nil
}
