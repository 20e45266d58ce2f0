package models

import (
	"strconv"
	"time"
)

type ActivityAction string

const (
	ActionCreate       ActivityAction = "CREATE"
	ActionUpdate       ActivityAction = "UPDATE"
	ActionDelete       ActivityAction = "DELETE"
	ActionStatusChange ActivityAction = "STATUS_CHANGE"
	ActionAssign       ActivityAction = "ASSIGN"
	ActionComment      ActivityAction = "COMMENT"
	ActionAttach       ActivityAction = "ATTACH"
)

type EntityType string

const (
	EntityProject EntityType = "PROJECT"
	EntityTask    EntityType = "TASK"
	EntityComment EntityType = "COMMENT"
)

type NotificationKind string

const (
	NotificationTaskAssigned     NotificationKind = "TASK_ASSIGNED"
	NotificationTaskUpdated      NotificationKind = "TASK_UPDATED"
	NotificationTaskCommented    NotificationKind = "TASK_COMMENTED"
	NotificationProjectAssigned  NotificationKind = "PROJECT_ASSIGNED"
	NotificationProjectUpdated   NotificationKind = "PROJECT_UPDATED"
	NotificationProjectCommented NotificationKind = "PROJECT_COMMENTED"
	NotificationMention          NotificationKind = "MENTION"
	NotificationDeadline         NotificationKind = "DEADLINE"
)

// Notification is append-only apart from IsRead.
type Notification struct {
	ID          uint             `json:"id" gorm:"primaryKey"`
	RecipientID uint             `json:"recipient_id" gorm:"not null;index"`
	Kind        NotificationKind `json:"kind" gorm:"not null"`
	Title       string           `json:"title" gorm:"not null"`
	Message     string           `json:"message"`
	Link        string           `json:"link"`
	IsRead      bool             `json:"is_read" gorm:"index"`
	CreatedAt   time.Time        `json:"created_at"`
}

// ActivityLog is append-only.
type ActivityLog struct {
	ID             uint           `json:"id" gorm:"primaryKey"`
	UserID         uint           `json:"user_id" gorm:"not null;index"`
	Action         ActivityAction `json:"action" gorm:"not null"`
	EntityType     EntityType     `json:"entity_type" gorm:"not null"`
	EntityID       uint           `json:"entity_id" gorm:"not null"`
	EntityName     string         `json:"entity_name"`
	OldValue       *string        `json:"old_value,omitempty"`
	NewValue       *string        `json:"new_value,omitempty"`
	OrganizationID *uint          `json:"organization_id" gorm:"index"`
	Description    string         `json:"description"`
	CreatedAt      time.Time      `json:"created_at"`
}

// TaskLink and ProjectLink build the deep links carried by notifications.
func TaskLink(id uint) string {
	return "/tasks/" + strconv.FormatUint(uint64(id), 10)
}

func ProjectLink(id uint) string {
	return "/projects/" + strconv.FormatUint(uint64(id), 10)
}
