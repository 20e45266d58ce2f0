package authz

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/headless-pm/cloudtask/internal/models"
)

func openScopeDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "scope.db")), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Project{}, &models.ProjectMember{}, &models.Task{}))
	return db
}

func taskTitles(t *testing.T, db *gorm.DB, a Actor) []string {
	var tasks []models.Task
	require.NoError(t, db.Scopes(TaskScope(a)).Order("id").Find(&tasks).Error)
	titles := make([]string, 0, len(tasks))
	for _, task := range tasks {
		titles = append(titles, task.Title)
	}
	return titles
}

func projectNames(t *testing.T, db *gorm.DB, a Actor) []string {
	var projects []models.Project
	require.NoError(t, db.Scopes(ProjectScope(a)).Order("id").Find(&projects).Error)
	names := make([]string, 0, len(projects))
	for _, p := range projects {
		names = append(names, p.Name)
	}
	return names
}

func TestScopes(t *testing.T) {
	db := openScopeDB(t)

	mgrID, empID, otherEmp := uint(2), uint(4), uint(5)
	p1 := models.Project{Name: "P1", OrganizationID: 1, ManagerID: &mgrID, Status: models.ProjectStatusPlanning, CreatedByID: 1}
	p2 := models.Project{Name: "P2", OrganizationID: 1, Status: models.ProjectStatusPlanning, CreatedByID: 1}
	p3 := models.Project{Name: "P3", OrganizationID: 2, ManagerID: &mgrID, Status: models.ProjectStatusPlanning, CreatedByID: 9}
	for _, p := range []*models.Project{&p1, &p2, &p3} {
		require.NoError(t, db.Create(p).Error)
	}
	require.NoError(t, db.Create(&models.ProjectMember{ProjectID: p2.ID, UserID: empID, Role: models.MemberRoleDeveloper}).Error)

	tasks := []models.Task{
		{ProjectID: p1.ID, Title: "T1", AssignedToID: &empID},
		{ProjectID: p1.ID, Title: "T2", AssignedToID: &otherEmp},
		{ProjectID: p2.ID, Title: "T3", AssignedToID: &empID},
		{ProjectID: p3.ID, Title: "T4", AssignedToID: &empID},
	}
	for i := range tasks {
		tasks[i].CreatedByID = 1
		tasks[i].Status = models.TaskStatusTodo
		tasks[i].Priority = models.TaskPriorityMedium
		require.NoError(t, db.Create(&tasks[i]).Error)
	}

	admin := Actor{UserID: 1, OrganizationID: 1, Role: models.RoleEnterprise}
	mgr := Actor{UserID: mgrID, OrganizationID: 1, Role: models.RoleManager}
	emp := Actor{UserID: empID, OrganizationID: 1, Role: models.RoleEmployee}

	t.Run("projects", func(t *testing.T) {
		assert.Equal(t, []string{"P1", "P2"}, projectNames(t, db, admin))
		assert.Equal(t, []string{"P1"}, projectNames(t, db, mgr))
		assert.Equal(t, []string{"P2"}, projectNames(t, db, emp))
	})

	t.Run("tasks", func(t *testing.T) {
		assert.Equal(t, []string{"T1", "T2", "T3"}, taskTitles(t, db, admin))
		assert.Equal(t, []string{"T1", "T2"}, taskTitles(t, db, mgr))
		assert.Equal(t, []string{"T1", "T3"}, taskTitles(t, db, emp))
	})

	t.Run("no organization sees nothing", func(t *testing.T) {
		assert.Empty(t, taskTitles(t, db, Actor{UserID: empID, Role: models.RoleEmployee}))
		assert.Empty(t, projectNames(t, db, Actor{UserID: 1, Role: models.RoleEnterprise}))
	})

	t.Run("tenant scope ignores role", func(t *testing.T) {
		var count int64
		require.NoError(t, db.Model(&models.Task{}).Scopes(TenantTaskScope(emp)).Count(&count).Error)
		assert.EqualValues(t, 3, count)
	})
}
