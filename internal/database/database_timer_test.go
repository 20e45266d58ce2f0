package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/headless-pm/cloudtask/internal/models"
)

func TestOneRunningTimerPerUser(t *testing.T) {
	db := setupTestDB(t)
	_, tasks := createProjectWithTasks(t, db, "A", "B")
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	running := func(taskID, userID uint) *models.TimeEntry {
		return &models.TimeEntry{TaskID: taskID, UserID: userID, StartTime: now, IsRunning: true}
	}

	require.NoError(t, db.Create(running(tasks[0].ID, 7)).Error)

	err := db.Create(running(tasks[1].ID, 7)).Error
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	t.Run("OtherUsersUnaffected", func(t *testing.T) {
		assert.NoError(t, db.Create(running(tasks[1].ID, 8)).Error)
	})

	t.Run("StoppedEntriesDoNotCount", func(t *testing.T) {
		end := now.Add(time.Hour)
		for i := 0; i < 2; i++ {
			stopped := &models.TimeEntry{TaskID: tasks[0].ID, UserID: 7, StartTime: now, EndTime: &end, DurationMinutes: 60}
			assert.NoError(t, db.Create(stopped).Error)
		}
	})

	var count int64
	require.NoError(t, db.Model(&models.TimeEntry{}).
		Where("user_id = ? AND is_running = ?", 7, true).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}
