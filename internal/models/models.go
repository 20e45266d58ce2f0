package models

import (
	"fmt"
	"time"
)

type ProjectStatus string

const (
	ProjectStatusPlanning   ProjectStatus = "PLANNING"
	ProjectStatusInProgress ProjectStatus = "IN_PROGRESS"
	ProjectStatusOnHold     ProjectStatus = "ON_HOLD"
	ProjectStatusCompleted  ProjectStatus = "COMPLETED"
	ProjectStatusCancelled  ProjectStatus = "CANCELLED"
)

func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectStatusPlanning, ProjectStatusInProgress, ProjectStatusOnHold,
		ProjectStatusCompleted, ProjectStatusCancelled:
		return true
	}
	return false
}

type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "TODO"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusInReview   TaskStatus = "IN_REVIEW"
	TaskStatusDone       TaskStatus = "DONE"
)

// TaskStatuses lists the board columns in display order.
var TaskStatuses = []TaskStatus{TaskStatusTodo, TaskStatusInProgress, TaskStatusInReview, TaskStatusDone}

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusInReview, TaskStatusDone:
		return true
	}
	return false
}

// Label is the human readable form recorded in activity entries.
func (s TaskStatus) Label() string {
	switch s {
	case TaskStatusTodo:
		return "To Do"
	case TaskStatusInProgress:
		return "In Progress"
	case TaskStatusInReview:
		return "In Review"
	case TaskStatusDone:
		return "Done"
	}
	return string(s)
}

type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "LOW"
	TaskPriorityMedium TaskPriority = "MEDIUM"
	TaskPriorityHigh   TaskPriority = "HIGH"
	TaskPriorityUrgent TaskPriority = "URGENT"
)

func (p TaskPriority) Valid() bool {
	switch p {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh, TaskPriorityUrgent:
		return true
	}
	return false
}

type MemberRole string

const (
	MemberRoleDeveloper MemberRole = "DEVELOPER"
	MemberRoleDesigner  MemberRole = "DESIGNER"
	MemberRoleQA        MemberRole = "QA"
	MemberRoleDevOps    MemberRole = "DEVOPS"
	MemberRoleOther     MemberRole = "OTHER"
)

func (r MemberRole) Valid() bool {
	switch r {
	case MemberRoleDeveloper, MemberRoleDesigner, MemberRoleQA, MemberRoleDevOps, MemberRoleOther:
		return true
	}
	return false
}

type Project struct {
	ID             uint            `json:"id" gorm:"primaryKey"`
	Name           string          `json:"name" gorm:"not null"`
	Description    string          `json:"description"`
	OrganizationID uint            `json:"organization_id" gorm:"not null;index"`
	ManagerID      *uint           `json:"manager_id" gorm:"index"`
	Status         ProjectStatus   `json:"status" gorm:"not null"`
	StartDate      *time.Time      `json:"start_date,omitempty"`
	EndDate        *time.Time      `json:"end_date,omitempty"`
	CreatedByID    uint            `json:"created_by_id" gorm:"not null"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	Manager        *User           `json:"manager,omitempty" gorm:"foreignKey:ManagerID"`
	Members        []ProjectMember `json:"members,omitempty" gorm:"foreignKey:ProjectID"`
}

type ProjectMember struct {
	ID        uint       `json:"id" gorm:"primaryKey"`
	ProjectID uint       `json:"project_id" gorm:"not null;uniqueIndex:idx_project_member"`
	UserID    uint       `json:"user_id" gorm:"not null;uniqueIndex:idx_project_member"`
	Role      MemberRole `json:"role" gorm:"not null"`
	JoinedAt  time.Time  `json:"joined_at"`
	User      *User      `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

type ProjectComment struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	ProjectID uint      `json:"project_id" gorm:"not null;index"`
	UserID    uint      `json:"user_id" gorm:"not null"`
	Comment   string    `json:"comment" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	User      *User     `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

type Task struct {
	ID           uint         `json:"id" gorm:"primaryKey"`
	ProjectID    uint         `json:"project_id" gorm:"not null;index"`
	Title        string       `json:"title" gorm:"not null"`
	Description  string       `json:"description"`
	AssignedToID *uint        `json:"assigned_to_id" gorm:"index"`
	CreatedByID  uint         `json:"created_by_id" gorm:"not null"`
	Status       TaskStatus   `json:"status" gorm:"not null;index"`
	Priority     TaskPriority `json:"priority" gorm:"not null"`
	DueDate      *time.Time   `json:"due_date,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
	Project      *Project     `json:"project,omitempty" gorm:"foreignKey:ProjectID"`
	AssignedTo   *User        `json:"assigned_to,omitempty" gorm:"foreignKey:AssignedToID"`

	// IsBlocked is derived from the dependency edges on every read.
	IsBlocked bool `json:"is_blocked" gorm:"-"`
}

// IsAssignedTo reports whether userID is the current assignee.
func (t *Task) IsAssignedTo(userID uint) bool {
	return t.AssignedToID != nil && *t.AssignedToID == userID
}

type TaskDependency struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	TaskID      uint      `json:"task_id" gorm:"not null;uniqueIndex:idx_task_dependency"`
	DependsOnID uint      `json:"depends_on_id" gorm:"not null;uniqueIndex:idx_task_dependency;index"`
	CreatedAt   time.Time `json:"created_at"`
	DependsOn   *Task     `json:"depends_on,omitempty" gorm:"foreignKey:DependsOnID"`
}

type TaskComment struct {
	ID              uint        `json:"id" gorm:"primaryKey"`
	TaskID          uint        `json:"task_id" gorm:"not null;index"`
	UserID          uint        `json:"user_id" gorm:"not null"`
	Comment         string      `json:"comment" gorm:"not null"`
	StatusChangedTo *TaskStatus `json:"status_changed_to,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	User            *User       `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

type TaskAttachment struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	TaskID       uint      `json:"task_id" gorm:"not null;index"`
	Filename     string    `json:"filename" gorm:"not null"`
	Path         string    `json:"path" gorm:"not null;uniqueIndex"`
	Size         int64     `json:"size"`
	MimeType     string    `json:"mime_type"`
	UploadedByID uint      `json:"uploaded_by_id" gorm:"not null"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

type TimeEntry struct {
	ID              uint       `json:"id" gorm:"primaryKey"`
	TaskID          uint       `json:"task_id" gorm:"not null;index"`
	UserID          uint       `json:"user_id" gorm:"not null;index"`
	StartTime       time.Time  `json:"start_time" gorm:"not null"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	DurationMinutes int        `json:"duration_minutes"`
	Description     string     `json:"description"`
	IsRunning       bool       `json:"is_running"`
	CreatedAt       time.Time  `json:"created_at"`
	Task            *Task      `json:"task,omitempty" gorm:"foreignKey:TaskID"`
	User            *User      `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

// Stop closes a running entry at now and recomputes the duration.
func (e *TimeEntry) Stop(now time.Time) {
	e.EndTime = &now
	e.IsRunning = false
	e.RecomputeDuration()
}

// RecomputeDuration sets DurationMinutes to whole elapsed minutes when both ends are known.
func (e *TimeEntry) RecomputeDuration() {
	if e.EndTime == nil {
		return
	}
	seconds := int(e.EndTime.Sub(e.StartTime).Seconds())
	if seconds < 0 {
		seconds = 0
	}
	e.DurationMinutes = seconds / 60
}

// FormatMinutes renders a minute total as "Xh Ym".
func FormatMinutes(total int) string {
	return fmt.Sprintf("%dh %dm", total/60, total%60)
}

type TaskTemplate struct {
	ID                 uint         `json:"id" gorm:"primaryKey"`
	OrganizationID     uint         `json:"organization_id" gorm:"not null;index"`
	Name               string       `json:"name" gorm:"not null"`
	Description        string       `json:"description"`
	DefaultTitle       string       `json:"default_title" gorm:"not null"`
	DefaultDescription string       `json:"default_description"`
	DefaultPriority    TaskPriority `json:"default_priority" gorm:"not null"`
	EstimatedHours     *float64     `json:"estimated_hours,omitempty"`
	CreatedByID        uint         `json:"created_by_id"`
	CreatedAt          time.Time    `json:"created_at"`
}
