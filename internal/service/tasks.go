package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/headless-pm/cloudtask/internal/authz"
	"github.com/headless-pm/cloudtask/internal/database"
	"github.com/headless-pm/cloudtask/internal/dispatch"
	"github.com/headless-pm/cloudtask/internal/models"
)

type TaskInput struct {
	ProjectID    uint                `json:"project_id"`
	Title        string              `json:"title"`
	Description  string              `json:"description"`
	AssignedToID *uint               `json:"assigned_to_id"`
	Status       models.TaskStatus   `json:"status"`
	Priority     models.TaskPriority `json:"priority"`
	DueDate      *time.Time          `json:"due_date"`
}

type TaskFilter struct {
	ProjectID *uint
	Status    *models.TaskStatus
	Limit     int
	Offset    int
}

type TaskDetail struct {
	models.Task
	Comments     []models.TaskComment    `json:"comments"`
	Attachments  []models.TaskAttachment `json:"attachments"`
	Dependencies []models.TaskDependency `json:"dependencies"`
	TimeEntries  []models.TimeEntry      `json:"time_entries"`
	TotalMinutes int                     `json:"total_minutes"`
	TotalTime    string                  `json:"total_time"`
	ActiveTimer  *models.TimeEntry       `json:"active_timer,omitempty"`
}

type BoardColumn struct {
	Status models.TaskStatus `json:"status"`
	Label  string            `json:"label"`
	Tasks  []models.Task     `json:"tasks"`
}

func (in *TaskInput) normalize() error {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return invalid("task title is required")
	}
	if in.Status == "" {
		in.Status = models.TaskStatusTodo
	}
	if !in.Status.Valid() {
		return invalid("invalid task status %q", in.Status)
	}
	if in.Priority == "" {
		in.Priority = models.TaskPriorityMedium
	}
	if !in.Priority.Valid() {
		return invalid("invalid task priority %q", in.Priority)
	}
	in.DueDate = utc(in.DueDate)
	return nil
}

// checkAssignee requires the assignee to be the project manager or a team member.
func checkAssignee(store *database.Database, p *models.Project, assigneeID *uint) (*models.User, error) {
	if assigneeID == nil {
		return nil, nil
	}
	u, err := store.GetUserByID(*assigneeID)
	if err != nil || !u.InOrganization(p.OrganizationID) {
		return nil, invalid("assignee must belong to the project team")
	}
	if p.ManagerID != nil && *p.ManagerID == u.ID {
		return u, nil
	}
	member, err := store.IsProjectMember(p.ID, u.ID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, invalid("assignee must belong to the project team")
	}
	return u, nil
}

func (s *Service) CreateTask(ctx context.Context, actor authz.Actor, in TaskInput) (*models.Task, error) {
	return s.createTask(ctx, actor, in, "")
}

func (s *Service) createTask(ctx context.Context, actor authz.Actor, in TaskInput, description string) (*models.Task, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}

	var (
		p        *models.Project
		t        *models.Task
		assignee *models.User
	)
	err := s.inTx(ctx, func(store *database.Database) error {
		var err error
		if p, err = loadProject(store, actor, in.ProjectID); err != nil {
			return err
		}
		if err := authz.Authorize(actor, authz.CreateTask, authz.ProjectTarget(p, false)).Err(); err != nil {
			return err
		}
		if assignee, err = checkAssignee(store, p, in.AssignedToID); err != nil {
			return err
		}
		t = &models.Task{
			ProjectID:    p.ID,
			Title:        in.Title,
			Description:  in.Description,
			AssignedToID: in.AssignedToID,
			CreatedByID:  actor.UserID,
			Status:       in.Status,
			Priority:     in.Priority,
			DueDate:      in.DueDate,
		}
		return store.Create(t).Error
	})
	if err != nil {
		return nil, err
	}

	if description == "" {
		description = fmt.Sprintf("created task %q", t.Title)
	}
	ev := dispatch.Event{Activity: taskActivity(actor, t, models.ActionCreate, description)}
	taskCreatedNotices(&ev, actor, p, t)
	if assignee != nil {
		taskAssignedNotices(&ev, actor, p, t, assignee.DisplayName())
	}
	s.emit(ctx, ev)

	t.Project, t.AssignedTo = p, assignee
	return t, nil
}

func (s *Service) ListTasks(ctx context.Context, actor authz.Actor, filter TaskFilter) ([]models.Task, error) {
	if err := authz.Authorize(actor, authz.ListTasks, authz.OrgTarget(actor.OrganizationID)).Err(); err != nil {
		return nil, err
	}
	store := s.read(ctx)
	q := store.Scopes(authz.TaskScope(actor)).Preload("AssignedTo")
	if filter.ProjectID != nil {
		q = q.Where("tasks.project_id = ?", *filter.ProjectID)
	}
	if filter.Status != nil {
		q = q.Where("tasks.status = ?", *filter.Status)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit).Offset(filter.Offset)
	}
	var tasks []models.Task
	if err := q.Order("tasks.created_at DESC, tasks.id DESC").Find(&tasks).Error; err != nil {
		return nil, err
	}
	if err := store.MarkBlocked(tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// BoardColumns groups the visible tasks by status in board order.
func (s *Service) BoardColumns(ctx context.Context, actor authz.Actor, projectID *uint) ([]BoardColumn, error) {
	tasks, err := s.ListTasks(ctx, actor, TaskFilter{ProjectID: projectID})
	if err != nil {
		return nil, err
	}
	columns := make([]BoardColumn, len(models.TaskStatuses))
	index := make(map[models.TaskStatus]int, len(models.TaskStatuses))
	for i, status := range models.TaskStatuses {
		columns[i] = BoardColumn{Status: status, Label: status.Label(), Tasks: []models.Task{}}
		index[status] = i
	}
	for _, t := range tasks {
		if i, ok := index[t.Status]; ok {
			columns[i].Tasks = append(columns[i].Tasks, t)
		}
	}
	return columns, nil
}

func (s *Service) GetTask(ctx context.Context, actor authz.Actor, id uint) (*TaskDetail, error) {
	store := s.read(ctx)
	t, err := visibleTask(store, actor, id)
	if err != nil {
		return nil, err
	}
	detail := &TaskDetail{Task: *t}

	if err := store.Where("task_id = ?", t.ID).Preload("User").
		Order("created_at, id").Find(&detail.Comments).Error; err != nil {
		return nil, err
	}
	if err := store.Where("task_id = ?", t.ID).
		Order("uploaded_at DESC, id DESC").Find(&detail.Attachments).Error; err != nil {
		return nil, err
	}
	if detail.Dependencies, err = dependencies(store, t.ID); err != nil {
		return nil, err
	}
	summary, err := timeSummary(store, t.ID, 5)
	if err != nil {
		return nil, err
	}
	detail.TimeEntries, detail.TotalMinutes, detail.TotalTime = summary.Entries, summary.TotalMinutes, summary.Display

	var running []models.TimeEntry
	if err := store.Where("task_id = ? AND user_id = ? AND is_running = ?", t.ID, actor.UserID, true).
		Limit(1).Find(&running).Error; err != nil {
		return nil, err
	}
	if len(running) > 0 {
		detail.ActiveTimer = &running[0]
	}
	return detail, nil
}

// UpdateTask replaces the editable fields. A status change goes through the
// same bookkeeping as ChangeStatus.
func (s *Service) UpdateTask(ctx context.Context, actor authz.Actor, id uint, in TaskInput) (*models.Task, error) {
	var (
		t           *models.Task
		p           *models.Project
		assignee    *models.User
		oldAssignee *uint
		oldStatus   models.TaskStatus
	)
	err := s.inTx(ctx, func(store *database.Database) error {
		var err error
		if t, p, err = loadTask(store, actor, id); err != nil {
			return err
		}
		if err := authz.Authorize(actor, authz.EditTask, authz.TaskTarget(p, t)).Err(); err != nil {
			return err
		}
		if in.ProjectID != 0 && in.ProjectID != t.ProjectID {
			return invalid("a task cannot move to another project")
		}
		if in.Status == "" {
			in.Status = t.Status
		}
		if in.Priority == "" {
			in.Priority = t.Priority
		}
		if err := in.normalize(); err != nil {
			return err
		}
		if assignee, err = checkAssignee(store, p, in.AssignedToID); err != nil {
			return err
		}

		oldAssignee, oldStatus = t.AssignedToID, t.Status
		t.Title, t.Description, t.AssignedToID = in.Title, in.Description, in.AssignedToID
		t.Priority, t.DueDate, t.Status = in.Priority, in.DueDate, in.Status
		if err := store.Select("title", "description", "assigned_to_id", "status", "priority", "due_date", "updated_at").
			Updates(t).Error; err != nil {
			return err
		}
		if oldStatus != t.Status {
			return store.Create(statusComment(actor, t, oldStatus, t.Status, "")).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	events := []dispatch.Event{{Activity: taskActivity(actor, t, models.ActionUpdate, fmt.Sprintf("updated task %q", t.Title))}}
	if oldStatus != t.Status {
		events = append(events, dispatch.Event{
			Activity: statusChangeActivity(actor, t, oldStatus, t.Status, fmt.Sprintf("changed status of %q", t.Title)),
		})
	}
	ev := &events[0]
	if assignee != nil && !sameID(oldAssignee, t.AssignedToID) {
		taskAssignedNotices(ev, actor, p, t, assignee.DisplayName())
	}
	taskUpdatedNotices(ev, actor, p, t, fmt.Sprintf("Task %q has been updated", t.Title))
	s.emit(ctx, events...)

	t.AssignedTo = assignee
	return t, nil
}

func sameID(a, b *uint) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (s *Service) DeleteTask(ctx context.Context, actor authz.Actor, id uint) error {
	var (
		t     *models.Task
		paths []string
	)
	err := s.inTx(ctx, func(store *database.Database) error {
		var (
			p   *models.Project
			err error
		)
		if t, p, err = loadTask(store, actor, id); err != nil {
			return err
		}
		if err := authz.Authorize(actor, authz.DeleteTask, authz.TaskTarget(p, t)).Err(); err != nil {
			return err
		}
		if paths, err = store.AttachmentPaths(0, t.ID); err != nil {
			return err
		}
		return store.DeleteTaskCascade(t.ID)
	})
	if err != nil {
		return err
	}

	s.removeFiles(paths)
	s.emit(ctx, dispatch.Event{Activity: taskActivity(actor, t, models.ActionDelete, fmt.Sprintf("deleted task %q", t.Title))})
	return nil
}
