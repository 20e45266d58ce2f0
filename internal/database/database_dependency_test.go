package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/headless-pm/cloudtask/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *Database {
	db, err := Open(t.TempDir(), logger.Silent)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func createProjectWithTasks(t *testing.T, db *Database, titles ...string) (*models.Project, []*models.Task) {
	project := &models.Project{
		Name:           "Test Project",
		OrganizationID: 1,
		Status:         models.ProjectStatusPlanning,
		CreatedByID:    1,
	}
	require.NoError(t, db.Create(project).Error)

	var tasks []*models.Task
	for _, title := range titles {
		task := &models.Task{
			ProjectID:   project.ID,
			Title:       title,
			CreatedByID: 1,
			Status:      models.TaskStatusTodo,
			Priority:    models.TaskPriorityMedium,
		}
		require.NoError(t, db.Create(task).Error)
		tasks = append(tasks, task)
	}
	return project, tasks
}

func link(t *testing.T, db *Database, task, dependsOn *models.Task) {
	require.NoError(t, db.Create(&models.TaskDependency{TaskID: task.ID, DependsOnID: dependsOn.ID}).Error)
}

func TestTaskDependencyQueries(t *testing.T) {
	db := setupTestDB(t)
	_, tasks := createProjectWithTasks(t, db, "Task 1", "Task 2", "Task 3")
	task1, task2, task3 := tasks[0], tasks[1], tasks[2]

	// task3 -> task2 -> task1
	link(t, db, task2, task1)
	link(t, db, task3, task2)

	t.Run("DuplicateEdgeRejected", func(t *testing.T) {
		err := db.Create(&models.TaskDependency{TaskID: task2.ID, DependsOnID: task1.ID}).Error
		assert.True(t, errors.Is(err, gorm.ErrDuplicatedKey))
	})

	t.Run("HasDependencyPath", func(t *testing.T) {
		has, err := db.HasDependencyPath(task3.ID, task1.ID)
		require.NoError(t, err)
		assert.True(t, has, "task3 transitively depends on task1")

		has, err = db.HasDependencyPath(task1.ID, task3.ID)
		require.NoError(t, err)
		assert.False(t, has)
	})

	t.Run("DependencyChain", func(t *testing.T) {
		chain, err := db.DependencyChain(task3.ID)
		require.NoError(t, err)
		require.Len(t, chain, 2)
		assert.Equal(t, task1.ID, chain[0].ID)
		assert.Equal(t, task2.ID, chain[1].ID)
	})

	t.Run("DependenciesOf", func(t *testing.T) {
		deps, err := db.DependenciesOf(task2.ID)
		require.NoError(t, err)
		require.Len(t, deps, 1)
		require.NotNil(t, deps[0].DependsOn)
		assert.Equal(t, "Task 1", deps[0].DependsOn.Title)
	})

	t.Run("BlockedTaskIDs", func(t *testing.T) {
		blocked, err := db.BlockedTaskIDs([]uint{task1.ID, task2.ID, task3.ID})
		require.NoError(t, err)
		assert.Equal(t, map[uint]bool{task2.ID: true, task3.ID: true}, blocked)

		require.NoError(t, db.Model(task1).Update("status", models.TaskStatusDone).Error)
		blocked, err = db.BlockedTaskIDs([]uint{task1.ID, task2.ID, task3.ID})
		require.NoError(t, err)
		assert.Equal(t, map[uint]bool{task3.ID: true}, blocked)
	})

	t.Run("MarkBlocked", func(t *testing.T) {
		list := []models.Task{*task1, *task2, *task3}
		require.NoError(t, db.MarkBlocked(list))
		assert.False(t, list[0].IsBlocked)
		assert.False(t, list[1].IsBlocked)
		assert.True(t, list[2].IsBlocked)
	})
}

func TestDeleteCascades(t *testing.T) {
	db := setupTestDB(t)
	project, tasks := createProjectWithTasks(t, db, "A", "B")
	link(t, db, tasks[1], tasks[0])
	require.NoError(t, db.Create(&models.TaskComment{TaskID: tasks[0].ID, UserID: 1, Comment: "hi"}).Error)
	require.NoError(t, db.Create(&models.TaskAttachment{TaskID: tasks[0].ID, Filename: "f", Path: "tasks/1/1/f", UploadedByID: 1}).Error)

	paths, err := db.AttachmentPaths(project.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"tasks/1/1/f"}, paths)

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return Wrap(tx).DeleteTaskCascade(tasks[0].ID)
	}))

	var deps, comments int64
	db.Model(&models.TaskDependency{}).Count(&deps)
	db.Model(&models.TaskComment{}).Count(&comments)
	assert.Zero(t, deps)
	assert.Zero(t, comments)

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return Wrap(tx).DeleteProjectCascade(project.ID)
	}))
	var remaining int64
	db.Model(&models.Task{}).Count(&remaining)
	assert.Zero(t, remaining)
	err = db.First(&models.Project{}, project.ID).Error
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestOneRunningTimerPerUserBasic(t *testing.T) {
	db := setupTestDB(t)
	_, tasks := createProjectWithTasks(t, db, "A", "B")
	now := time.Now()

	require.NoError(t, db.Create(&models.TimeEntry{TaskID: tasks[0].ID, UserID: 4, StartTime: now, IsRunning: true}).Error)
	err := db.Create(&models.TimeEntry{TaskID: tasks[1].ID, UserID: 4, StartTime: now, IsRunning: true}).Error
	assert.True(t, errors.Is(err, gorm.ErrDuplicatedKey))

	// Stopped entries and other users are unaffected.
	require.NoError(t, db.Create(&models.TimeEntry{TaskID: tasks[1].ID, UserID: 4, StartTime: now}).Error)
	require.NoError(t, db.Create(&models.TimeEntry{TaskID: tasks[1].ID, UserID: 5, StartTime: now, IsRunning: true}).Error)
}

func TestNotificationStore(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.CreateNotifications(ctx, []models.Notification{
		{RecipientID: 1, Kind: models.NotificationTaskAssigned, Title: "one"},
		{RecipientID: 1, Kind: models.NotificationTaskUpdated, Title: "two"},
		{RecipientID: 2, Kind: models.NotificationTaskUpdated, Title: "other"},
	}))

	count, err := db.CountUnread(ctx, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	notes, err := db.ListNotifications(ctx, 1, 10, false)
	require.NoError(t, err)
	require.Len(t, notes, 2)

	// Another recipient's notification cannot be marked.
	var foreign models.Notification
	require.NoError(t, db.Where("recipient_id = ?", 2).First(&foreign).Error)
	err = db.MarkNotificationRead(ctx, 1, foreign.ID)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))

	require.NoError(t, db.MarkNotificationRead(ctx, 1, notes[0].ID))
	unread, err := db.ListNotifications(ctx, 1, 0, true)
	require.NoError(t, err)
	assert.Len(t, unread, 1)

	n, err := db.MarkAllNotificationsRead(ctx, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	count, _ = db.CountUnread(ctx, 1)
	assert.Zero(t, count)
}

func TestActivityStore(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	org, other := uint(1), uint(2)

	require.NoError(t, db.RecordActivity(ctx, &models.ActivityLog{UserID: 1, Action: models.ActionCreate, EntityType: models.EntityTask, EntityID: 3, OrganizationID: &org}))
	require.NoError(t, db.RecordActivity(ctx, &models.ActivityLog{UserID: 1, Action: models.ActionUpdate, EntityType: models.EntityTask, EntityID: 3, OrganizationID: &org}))
	require.NoError(t, db.RecordActivity(ctx, &models.ActivityLog{UserID: 9, Action: models.ActionCreate, EntityType: models.EntityTask, EntityID: 4, OrganizationID: &other}))

	entries, err := db.ListActivity(ctx, org, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	history, err := db.EntityActivity(ctx, org, models.EntityTask, 3)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.ActionCreate, history[0].Action)
}
