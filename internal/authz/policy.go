// Package authz holds the role and tenant scoped authorization rules.
//
// Every decision is a lookup in a single (role, action) table. Rules only see
// the explicit Actor and a Target snapshot loaded by the caller, so there is no
// ambient request state involved in a decision.
package authz

import (
	"errors"
	"fmt"

	"github.com/headless-pm/cloudtask/internal/models"
)

var (
	// ErrPermissionDenied means the actor is in the right tenant but lacks the role or ownership.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrNotFound covers both missing entities and entities outside the actor's tenant.
	ErrNotFound = errors.New("not found")
)

type Action string

const (
	ListProjects       Action = "list_projects"
	CreateProject      Action = "create_project"
	EditProject        Action = "edit_project"
	DeleteProject      Action = "delete_project"
	ManageMembers      Action = "manage_members"
	CommentProject     Action = "comment_project"
	ListTasks          Action = "list_tasks"
	CreateTask         Action = "create_task"
	EditTask           Action = "edit_task"
	DeleteTask         Action = "delete_task"
	ChangeTaskStatus   Action = "change_task_status"
	CommentTask        Action = "comment_task"
	UploadAttachment   Action = "upload_attachment"
	DeleteAttachment   Action = "delete_attachment"
	ManageDependencies Action = "manage_dependencies"
	TrackTime          Action = "track_time"
	AddStaff           Action = "add_staff"
	ManageTemplates    Action = "manage_templates"
	ViewActivity       Action = "view_activity"
)

// Actor is the authenticated identity every core operation receives explicitly.
type Actor struct {
	UserID         uint
	OrganizationID uint
	Role           models.Role
}

// ActorFor builds an Actor from a stored account. Accounts without an
// organization get a zero OrganizationID and therefore match no tenant.
func ActorFor(u *models.User) Actor {
	a := Actor{UserID: u.ID, Role: u.Role}
	if u.OrganizationID != nil {
		a.OrganizationID = *u.OrganizationID
	}
	return a
}

// Target is the snapshot of the entity an action is applied to.
type Target struct {
	OrganizationID   uint
	ProjectManagerID *uint
	AssigneeID       *uint
	UploaderID       *uint
	IsProjectMember  bool
}

// OrgTarget targets an organization-level resource such as staff or templates.
func OrgTarget(org uint) Target {
	return Target{OrganizationID: org}
}

// ProjectTarget targets a project. isMember tells whether the actor is on the team.
func ProjectTarget(p *models.Project, isMember bool) Target {
	return Target{
		OrganizationID:   p.OrganizationID,
		ProjectManagerID: p.ManagerID,
		IsProjectMember:  isMember,
	}
}

// TaskTarget targets a task inside an already loaded project.
func TaskTarget(p *models.Project, t *models.Task) Target {
	return Target{
		OrganizationID:   p.OrganizationID,
		ProjectManagerID: p.ManagerID,
		AssigneeID:       t.AssignedToID,
	}
}

// Decision is the outcome of Authorize.
type Decision struct {
	Allowed bool
	Reason  string
	err     error
}

// Err returns nil for an allowed decision, otherwise a wrapped ErrNotFound or ErrPermissionDenied.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return fmt.Errorf("%w: %s", d.err, d.Reason)
}

type rule struct {
	check  func(Actor, Target) bool
	reason string
}

func always(Actor, Target) bool { return true }

func never(Actor, Target) bool { return false }

func managesProject(a Actor, t Target) bool {
	return t.ProjectManagerID != nil && *t.ProjectManagerID == a.UserID
}

func isAssignee(a Actor, t Target) bool {
	return t.AssigneeID != nil && *t.AssigneeID == a.UserID
}

func isAssigneeOrUploader(a Actor, t Target) bool {
	return isAssignee(a, t) || (t.UploaderID != nil && *t.UploaderID == a.UserID)
}

func isMember(_ Actor, t Target) bool {
	return t.IsProjectMember
}

func allow() rule { return rule{check: always} }

func deny(reason string) rule { return rule{check: never, reason: reason} }

func when(check func(Actor, Target) bool, reason string) rule {
	return rule{check: check, reason: reason}
}

var policy = map[models.Role]map[Action]rule{
	models.RoleEnterprise: {
		ListProjects:       allow(),
		CreateProject:      allow(),
		EditProject:        allow(),
		DeleteProject:      allow(),
		ManageMembers:      allow(),
		CommentProject:     allow(),
		ListTasks:          allow(),
		CreateTask:         allow(),
		EditTask:           allow(),
		DeleteTask:         allow(),
		ChangeTaskStatus:   allow(),
		CommentTask:        allow(),
		UploadAttachment:   allow(),
		DeleteAttachment:   allow(),
		ManageDependencies: allow(),
		TrackTime:          allow(),
		AddStaff:           allow(),
		ManageTemplates:    allow(),
		ViewActivity:       allow(),
	},
	models.RoleManager: {
		ListProjects:       allow(),
		CreateProject:      deny("only enterprise admins can create projects"),
		EditProject:        deny("only enterprise admins can edit projects"),
		DeleteProject:      deny("only enterprise admins can delete projects"),
		ManageMembers:      deny("only enterprise admins can manage team members"),
		CommentProject:     when(managesProject, "you can only comment on projects you manage"),
		ListTasks:          allow(),
		CreateTask:         when(managesProject, "managers can only create tasks in projects they manage"),
		EditTask:           when(managesProject, "managers can only edit tasks in projects they manage"),
		DeleteTask:         when(managesProject, "managers can only delete tasks in projects they manage"),
		ChangeTaskStatus:   allow(),
		CommentTask:        allow(),
		UploadAttachment:   allow(),
		DeleteAttachment:   allow(),
		ManageDependencies: allow(),
		TrackTime:          allow(),
		AddStaff:           deny("only enterprise admins can add staff"),
		ManageTemplates:    allow(),
		ViewActivity:       allow(),
	},
	models.RoleEmployee: {
		ListProjects:       allow(),
		CreateProject:      deny("only enterprise admins can create projects"),
		EditProject:        deny("only enterprise admins can edit projects"),
		DeleteProject:      deny("only enterprise admins can delete projects"),
		ManageMembers:      deny("only enterprise admins can manage team members"),
		CommentProject:     when(isMember, "you can only comment on projects you belong to"),
		ListTasks:          allow(),
		CreateTask:         deny("only managers can create tasks"),
		EditTask:           deny("only managers can edit tasks"),
		DeleteTask:         deny("only managers can delete tasks"),
		ChangeTaskStatus:   when(isAssignee, "you can only update tasks assigned to you"),
		CommentTask:        when(isAssignee, "you can only comment on tasks assigned to you"),
		UploadAttachment:   when(isAssignee, "you can only upload files to tasks assigned to you"),
		DeleteAttachment:   when(isAssigneeOrUploader, "you do not have permission to delete this file"),
		ManageDependencies: deny("only managers can manage task dependencies"),
		TrackTime:          when(isAssignee, "you can only track time on tasks assigned to you"),
		AddStaff:           deny("only enterprise admins can add staff"),
		ManageTemplates:    deny("only managers can manage task templates"),
		ViewActivity:       allow(),
	},
}

// Authorize decides whether actor may perform action on target.
//
// The tenant boundary is checked first and always reports ErrNotFound so a
// caller cannot learn that an entity exists in another organization.
func Authorize(actor Actor, action Action, target Target) Decision {
	if actor.OrganizationID == 0 || target.OrganizationID != actor.OrganizationID {
		return Decision{Reason: "resource not found", err: ErrNotFound}
	}
	rules, ok := policy[actor.Role]
	if !ok {
		return Decision{Reason: "unknown role", err: ErrPermissionDenied}
	}
	r, ok := rules[action]
	if !ok {
		return Decision{Reason: "action not permitted", err: ErrPermissionDenied}
	}
	if !r.check(actor, target) {
		return Decision{Reason: r.reason, err: ErrPermissionDenied}
	}
	return Decision{Allowed: true}
}

// Can is a shorthand for Authorize(...).Allowed.
func Can(actor Actor, action Action, target Target) bool {
	return Authorize(actor, action, target).Allowed
}
