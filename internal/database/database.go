package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/headless-pm/cloudtask/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Database struct {
	*gorm.DB
}

// NewDatabase opens (creating if needed) the SQLite file under dataDir and migrates it.
func NewDatabase(dataDir string) (*Database, error) {
	return Open(dataDir, logger.Warn)
}

func Open(dataDir string, level logger.LogLevel) (*Database, error) {
	dbPath := filepath.Join(dataDir, "db", "cloudtask.db")

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_busy_timeout=5000&_journal_mode=WAL"), &gorm.Config{
		Logger:                                   logger.Default.LogMode(level),
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
		NowFunc:                                  func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	d := &Database{DB: db}
	if err := d.Migrate(); err != nil {
		return nil, err
	}
	return d, nil
}

// Wrap binds the store helpers to an open transaction.
func Wrap(tx *gorm.DB) *Database {
	return &Database{DB: tx}
}

func (db *Database) Migrate() error {
	if err := db.AutoMigrate(
		&models.Organization{},
		&models.User{},
		&models.Project{},
		&models.ProjectMember{},
		&models.ProjectComment{},
		&models.Task{},
		&models.TaskDependency{},
		&models.TaskComment{},
		&models.TaskAttachment{},
		&models.TimeEntry{},
		&models.TaskTemplate{},
		&models.Notification{},
		&models.ActivityLog{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	// One running timer per user. gorm tags cannot express a partial index.
	if err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_time_entries_one_running
		ON time_entries(user_id) WHERE is_running = 1`).Error; err != nil {
		return fmt.Errorf("failed to create running timer index: %w", err)
	}
	return nil
}

func (db *Database) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Task dependency queries

// HasDependencyPath reports whether from already depends on to, directly or transitively.
// Adding the edge to -> from would then close a cycle.
func (db *Database) HasDependencyPath(from, to uint) (bool, error) {
	var count int64
	query := `
		WITH RECURSIVE dependency_path AS (
			SELECT task_id, depends_on_id FROM task_dependencies
			WHERE task_id = ?

			UNION

			SELECT td.task_id, td.depends_on_id
			FROM task_dependencies td
			INNER JOIN dependency_path dp ON td.task_id = dp.depends_on_id
		)
		SELECT COUNT(*) FROM dependency_path WHERE depends_on_id = ?
	`
	if err := db.Raw(query, from, to).Scan(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// DependencyChain returns every task that must be done before taskID.
func (db *Database) DependencyChain(taskID uint) ([]models.Task, error) {
	var tasks []models.Task
	query := `
		WITH RECURSIVE dependency_chain AS (
			SELECT depends_on_id FROM task_dependencies
			WHERE task_id = ?

			UNION

			SELECT td.depends_on_id
			FROM task_dependencies td
			INNER JOIN dependency_chain dc ON td.task_id = dc.depends_on_id
		)
		SELECT DISTINCT t.* FROM tasks t
		INNER JOIN dependency_chain dc ON t.id = dc.depends_on_id
		ORDER BY t.id
	`
	if err := db.Raw(query, taskID).Scan(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

func (db *Database) DependenciesOf(taskID uint) ([]models.TaskDependency, error) {
	var deps []models.TaskDependency
	err := db.Where("task_id = ?", taskID).
		Preload("DependsOn").
		Order("id").
		Find(&deps).Error
	return deps, err
}

// BlockedTaskIDs returns the subset of ids that have at least one dependency not yet DONE.
func (db *Database) BlockedTaskIDs(ids []uint) (map[uint]bool, error) {
	blocked := make(map[uint]bool)
	if len(ids) == 0 {
		return blocked, nil
	}
	var rows []uint
	err := db.Raw(`
		SELECT DISTINCT d.task_id FROM task_dependencies d
		JOIN tasks t ON t.id = d.depends_on_id
		WHERE d.task_id IN ? AND t.status <> ?
	`, ids, models.TaskStatusDone).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, id := range rows {
		blocked[id] = true
	}
	return blocked, nil
}

// MarkBlocked fills Task.IsBlocked for every task in the slice.
func (db *Database) MarkBlocked(tasks []models.Task) error {
	ids := make([]uint, len(tasks))
	for i := range tasks {
		ids[i] = tasks[i].ID
	}
	blocked, err := db.BlockedTaskIDs(ids)
	if err != nil {
		return err
	}
	for i := range tasks {
		tasks[i].IsBlocked = blocked[tasks[i].ID]
	}
	return nil
}

// Cascading deletes. Callers run these inside a transaction.

func (db *Database) DeleteTaskCascade(taskID uint) error {
	if err := db.Where("task_id = ? OR depends_on_id = ?", taskID, taskID).
		Delete(&models.TaskDependency{}).Error; err != nil {
		return err
	}
	for _, m := range []interface{}{&models.TaskComment{}, &models.TaskAttachment{}, &models.TimeEntry{}} {
		if err := db.Where("task_id = ?", taskID).Delete(m).Error; err != nil {
			return err
		}
	}
	return db.Delete(&models.Task{}, taskID).Error
}

func (db *Database) DeleteProjectCascade(projectID uint) error {
	const inProject = "task_id IN (SELECT id FROM tasks WHERE project_id = ?)"

	if err := db.Exec(`
		DELETE FROM task_dependencies
		WHERE task_id IN (SELECT id FROM tasks WHERE project_id = ?)
		OR depends_on_id IN (SELECT id FROM tasks WHERE project_id = ?)
	`, projectID, projectID).Error; err != nil {
		return err
	}
	for _, m := range []interface{}{&models.TaskComment{}, &models.TaskAttachment{}, &models.TimeEntry{}} {
		if err := db.Where(inProject, projectID).Delete(m).Error; err != nil {
			return err
		}
	}
	if err := db.Where("project_id = ?", projectID).Delete(&models.Task{}).Error; err != nil {
		return err
	}
	if err := db.Where("project_id = ?", projectID).Delete(&models.ProjectMember{}).Error; err != nil {
		return err
	}
	if err := db.Where("project_id = ?", projectID).Delete(&models.ProjectComment{}).Error; err != nil {
		return err
	}
	return db.Delete(&models.Project{}, projectID).Error
}

// AttachmentPaths lists stored file paths so callers can remove them after a cascade.
func (db *Database) AttachmentPaths(projectID, taskID uint) ([]string, error) {
	var paths []string
	q := db.Model(&models.TaskAttachment{})
	if taskID != 0 {
		q = q.Where("task_id = ?", taskID)
	} else {
		q = q.Where("task_id IN (SELECT id FROM tasks WHERE project_id = ?)", projectID)
	}
	err := q.Pluck("path", &paths).Error
	return paths, err
}

// IsProjectMember reports whether userID belongs to the project team.
func (db *Database) IsProjectMember(projectID, userID uint) (bool, error) {
	var count int64
	err := db.Model(&models.ProjectMember{}).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Count(&count).Error
	return count > 0, err
}

// TasksDueBetween returns unfinished assigned tasks whose due date falls in [from, to].
func (db *Database) TasksDueBetween(from, to time.Time) ([]models.Task, error) {
	var tasks []models.Task
	err := db.Where("due_date IS NOT NULL AND due_date >= ? AND due_date <= ?", from, to).
		Where("status <> ? AND assigned_to_id IS NOT NULL", models.TaskStatusDone).
		Preload("Project").
		Order("due_date").
		Find(&tasks).Error
	return tasks, err
}

// Activity and notification sink

func (db *Database) RecordActivity(ctx context.Context, entry *models.ActivityLog) error {
	return db.WithContext(ctx).Create(entry).Error
}

func (db *Database) CreateNotifications(ctx context.Context, notes []models.Notification) error {
	if len(notes) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&notes).Error
}

func (db *Database) ListNotifications(ctx context.Context, recipientID uint, limit int, unreadOnly bool) ([]models.Notification, error) {
	var notes []models.Notification
	q := db.WithContext(ctx).Where("recipient_id = ?", recipientID)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Order("created_at DESC, id DESC").Find(&notes).Error
	return notes, err
}

// MarkNotificationRead returns gorm.ErrRecordNotFound when the notification is not the recipient's.
func (db *Database) MarkNotificationRead(ctx context.Context, recipientID, id uint) error {
	res := db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND recipient_id = ?", id, recipientID).
		Update("is_read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := db.WithContext(ctx).Model(&models.Notification{}).
			Where("id = ? AND recipient_id = ?", id, recipientID).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return gorm.ErrRecordNotFound
		}
	}
	return nil
}

func (db *Database) MarkAllNotificationsRead(ctx context.Context, recipientID uint) (int64, error) {
	res := db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}

func (db *Database) CountUnread(ctx context.Context, recipientID uint) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Count(&count).Error
	return count, err
}

func (db *Database) ListActivity(ctx context.Context, orgID uint, limit int) ([]models.ActivityLog, error) {
	var entries []models.ActivityLog
	q := db.WithContext(ctx).Where("organization_id = ?", orgID).Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&entries).Error
	return entries, err
}

// EntityActivity returns the history of one entity, oldest first.
func (db *Database) EntityActivity(ctx context.Context, orgID uint, entity models.EntityType, id uint) ([]models.ActivityLog, error) {
	var entries []models.ActivityLog
	err := db.WithContext(ctx).
		Where("organization_id = ? AND entity_type = ? AND entity_id = ?", orgID, entity, id).
		Order("created_at, id").
		Find(&entries).Error
	return entries, err
}

// User lookups

func (db *Database) GetUserByID(id uint) (*models.User, error) {
	var user models.User
	if err := db.First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (db *Database) GetUserByUsername(username string) (*models.User, error) {
	var user models.User
	if err := db.Where("username = ?", username).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (db *Database) GetUserByStaffID(staffID string) (*models.User, error) {
	var user models.User
	if err := db.Where("staff_id = ?", staffID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// UsersByUsername resolves usernames inside one organization.
func (db *Database) UsersByUsername(orgID uint, usernames []string) ([]models.User, error) {
	var users []models.User
	if len(usernames) == 0 {
		return users, nil
	}
	err := db.Where("organization_id = ? AND username IN ?", orgID, usernames).Find(&users).Error
	return users, err
}

func (db *Database) UserIDsByRole(orgID uint, role models.Role) ([]uint, error) {
	var ids []uint
	err := db.Model(&models.User{}).
		Where("organization_id = ? AND role = ?", orgID, role).
		Order("id").
		Pluck("id", &ids).Error
	return ids, err
}
