package service

import (
	"fmt"

	"github.com/headless-pm/cloudtask/internal/authz"
	"github.com/headless-pm/cloudtask/internal/dispatch"
	"github.com/headless-pm/cloudtask/internal/models"
)

func taskActivity(actor authz.Actor, t *models.Task, action models.ActivityAction, description string) *models.ActivityLog {
	return &models.ActivityLog{
		UserID:         actor.UserID,
		Action:         action,
		EntityType:     models.EntityTask,
		EntityID:       t.ID,
		EntityName:     t.Title,
		OrganizationID: orgPtr(actor),
		Description:    description,
	}
}

func projectActivity(actor authz.Actor, p *models.Project, action models.ActivityAction, description string) *models.ActivityLog {
	org := p.OrganizationID
	return &models.ActivityLog{
		UserID:         actor.UserID,
		Action:         action,
		EntityType:     models.EntityProject,
		EntityID:       p.ID,
		EntityName:     p.Name,
		OrganizationID: &org,
		Description:    description,
	}
}

func statusChangeActivity(actor authz.Actor, t *models.Task, from, to models.TaskStatus, description string) *models.ActivityLog {
	entry := taskActivity(actor, t, models.ActionStatusChange, description)
	entry.OldValue = strPtr(from.Label())
	entry.NewValue = strPtr(to.Label())
	return entry
}

// Recipient rules. Each returns the notifications a committed change produces.

func taskCreatedNotices(ev *dispatch.Event, actor authz.Actor, p *models.Project, t *models.Task) {
	ev.Add(models.NotificationTaskUpdated, "New Task Created",
		fmt.Sprintf("New task %q was created in project %q", t.Title, p.Name),
		models.TaskLink(t.ID),
		dispatch.Recipients(actor.UserID, p.ManagerID, &p.CreatedByID))
}

func taskAssignedNotices(ev *dispatch.Event, actor authz.Actor, p *models.Project, t *models.Task, assigneeName string) {
	if t.AssignedToID == nil {
		return
	}
	ev.Add(models.NotificationTaskAssigned, "Task Assignment",
		fmt.Sprintf("%q has been assigned to %s", t.Title, assigneeName),
		models.TaskLink(t.ID),
		dispatch.Recipients(actor.UserID, t.AssignedToID, p.ManagerID))
}

func taskUpdatedNotices(ev *dispatch.Event, actor authz.Actor, p *models.Project, t *models.Task, message string) {
	ev.Add(models.NotificationTaskUpdated, "Task Updated", message,
		models.TaskLink(t.ID),
		dispatch.Recipients(actor.UserID, t.AssignedToID, &t.CreatedByID, p.ManagerID))
}

func taskCommentNotices(ev *dispatch.Event, actor authz.Actor, p *models.Project, t *models.Task, commenter string, priorCommenters []uint) {
	candidates := append([]*uint{t.AssignedToID, &t.CreatedByID, p.ManagerID}, dispatch.IDs(priorCommenters...)...)
	ev.Add(models.NotificationTaskCommented, "New Comment on Task",
		fmt.Sprintf("%s commented on %q", commenter, t.Title),
		models.TaskLink(t.ID),
		dispatch.Recipients(actor.UserID, candidates...))
}

func mentionNotices(ev *dispatch.Event, actor authz.Actor, t *models.Task, commenter string, mentioned []uint) {
	ev.Add(models.NotificationMention, "You were mentioned",
		fmt.Sprintf("%s mentioned you on %q", commenter, t.Title),
		models.TaskLink(t.ID),
		dispatch.Recipients(actor.UserID, dispatch.IDs(mentioned...)...))
}

func projectCreatedNotices(ev *dispatch.Event, actor authz.Actor, p *models.Project, creator string, admins []uint) {
	ev.Add(models.NotificationProjectUpdated, "New Project Created",
		fmt.Sprintf("New project %q was created by %s", p.Name, creator),
		models.ProjectLink(p.ID),
		dispatch.Recipients(actor.UserID, dispatch.IDs(admins...)...))
}

func projectUpdatedNotices(ev *dispatch.Event, actor authz.Actor, p *models.Project) {
	ev.Add(models.NotificationProjectUpdated, "Project Updated",
		fmt.Sprintf("Project %q has been updated", p.Name),
		models.ProjectLink(p.ID),
		dispatch.Recipients(actor.UserID, p.ManagerID, &p.CreatedByID))
}

func memberAddedNotices(ev *dispatch.Event, actor authz.Actor, p *models.Project, member *models.User) {
	ev.Add(models.NotificationProjectAssigned, "Added to Project",
		fmt.Sprintf("You have been added to project %q", p.Name),
		models.ProjectLink(p.ID),
		dispatch.Recipients(actor.UserID, &member.ID))

	others := dispatch.Recipients(actor.UserID, p.ManagerID, &p.CreatedByID)
	filtered := others[:0]
	for _, id := range others {
		if id != member.ID {
			filtered = append(filtered, id)
		}
	}
	ev.Add(models.NotificationProjectUpdated, "New Team Member",
		fmt.Sprintf("%s was added to project %q", member.DisplayName(), p.Name),
		models.ProjectLink(p.ID),
		filtered)
}

func projectCommentNotices(ev *dispatch.Event, actor authz.Actor, p *models.Project, commenter string, members []uint) {
	candidates := append([]*uint{p.ManagerID, &p.CreatedByID}, dispatch.IDs(members...)...)
	ev.Add(models.NotificationProjectCommented, "New Comment on Project",
		fmt.Sprintf("%s commented on %q", commenter, p.Name),
		models.ProjectLink(p.ID),
		dispatch.Recipients(actor.UserID, candidates...))
}
