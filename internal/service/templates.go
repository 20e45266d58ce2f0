package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/headless-pm/cloudtask/internal/authz"
	"github.com/headless-pm/cloudtask/internal/models"
)

type TemplateInput struct {
	Name               string              `json:"name"`
	Description        string              `json:"description"`
	DefaultTitle       string              `json:"default_title"`
	DefaultDescription string              `json:"default_description"`
	DefaultPriority    models.TaskPriority `json:"default_priority"`
	EstimatedHours     *float64            `json:"estimated_hours"`
}

func (s *Service) ListTemplates(ctx context.Context, actor authz.Actor) ([]models.TaskTemplate, error) {
	var templates []models.TaskTemplate
	err := s.db.WithContext(ctx).
		Scopes(authz.OrganizationScope(actor, "task_templates")).
		Order("name, id").
		Find(&templates).Error
	return templates, err
}

func (s *Service) CreateTemplate(ctx context.Context, actor authz.Actor, in TemplateInput) (*models.TaskTemplate, error) {
	if err := authz.Authorize(actor, authz.ManageTemplates, authz.OrgTarget(actor.OrganizationID)).Err(); err != nil {
		return nil, err
	}
	in.Name, in.DefaultTitle = strings.TrimSpace(in.Name), strings.TrimSpace(in.DefaultTitle)
	if in.Name == "" || in.DefaultTitle == "" {
		return nil, invalid("template name and default title are required")
	}
	if in.DefaultPriority == "" {
		in.DefaultPriority = models.TaskPriorityMedium
	}
	if !in.DefaultPriority.Valid() {
		return nil, invalid("invalid task priority %q", in.DefaultPriority)
	}
	if in.EstimatedHours != nil && *in.EstimatedHours < 0 {
		return nil, invalid("estimated hours must not be negative")
	}

	tpl := &models.TaskTemplate{
		OrganizationID:     actor.OrganizationID,
		Name:               in.Name,
		Description:        in.Description,
		DefaultTitle:       in.DefaultTitle,
		DefaultDescription: in.DefaultDescription,
		DefaultPriority:    in.DefaultPriority,
		EstimatedHours:     in.EstimatedHours,
		CreatedByID:        actor.UserID,
	}
	if err := s.db.WithContext(ctx).Create(tpl).Error; err != nil {
		return nil, err
	}
	return tpl, nil
}

func (s *Service) loadTemplate(ctx context.Context, actor authz.Actor, id uint) (*models.TaskTemplate, error) {
	var tpl models.TaskTemplate
	err := s.db.WithContext(ctx).Scopes(authz.OrganizationScope(actor, "task_templates")).First(&tpl, id).Error
	return &tpl, lookup(err, "template")
}

func (s *Service) DeleteTemplate(ctx context.Context, actor authz.Actor, id uint) error {
	tpl, err := s.loadTemplate(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := authz.Authorize(actor, authz.ManageTemplates, authz.OrgTarget(tpl.OrganizationID)).Err(); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Delete(tpl).Error
}

// CreateTaskFromTemplate creates a TODO task in projectID from the template defaults.
func (s *Service) CreateTaskFromTemplate(ctx context.Context, actor authz.Actor, templateID, projectID uint, assigneeID *uint) (*models.Task, error) {
	tpl, err := s.loadTemplate(ctx, actor, templateID)
	if err != nil {
		return nil, err
	}
	return s.createTask(ctx, actor, TaskInput{
		ProjectID:    projectID,
		Title:        tpl.DefaultTitle,
		Description:  tpl.DefaultDescription,
		AssignedToID: assigneeID,
		Status:       models.TaskStatusTodo,
		Priority:     tpl.DefaultPriority,
	}, fmt.Sprintf("created task from template %q", tpl.Name))
}
