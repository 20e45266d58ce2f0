package service

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"github.com/headless-pm/cloudtask/internal/authz"
	"github.com/headless-pm/cloudtask/internal/database"
	"github.com/headless-pm/cloudtask/internal/dispatch"
	"github.com/headless-pm/cloudtask/internal/models"
	"github.com/headless-pm/cloudtask/internal/storage"
)

const testPassword = "password123"

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type testEnv struct {
	t     *testing.T
	ctx   context.Context
	svc   *Service
	db    *database.Database
	clock *testClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	db, err := database.Open(dir, logger.Silent)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	files, err := storage.NewFileStorage(filepath.Join(dir, "uploads"))
	require.NoError(t, err)

	quiet := log.New(io.Discard)
	svc := NewService(db, files, dispatch.New(db, quiet), quiet)
	clock := &testClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	svc.Clock = clock.Now

	return &testEnv{t: t, ctx: context.Background(), svc: svc, db: db, clock: clock}
}

// tenant is one organization with an admin, a manager and two employees.
type tenant struct {
	org       *models.Organization
	admin     authz.Actor
	manager   authz.Actor
	employee  authz.Actor
	employee2 authz.Actor
}

func (e *testEnv) register(username, orgName string) (authz.Actor, *models.Organization) {
	e.t.Helper()
	u, org, err := e.svc.RegisterEnterprise(e.ctx, RegisterInput{
		Username:         username,
		Email:            username + "@example.com",
		Password:         testPassword,
		OrganizationName: orgName,
	})
	require.NoError(e.t, err)
	return authz.ActorFor(u), org
}

func (e *testEnv) staff(admin authz.Actor, username, staffID string, role models.Role) authz.Actor {
	e.t.Helper()
	u, err := e.svc.AddStaff(e.ctx, admin, StaffInput{
		Username: username,
		Password: testPassword,
		Role:     role,
		StaffID:  staffID,
	})
	require.NoError(e.t, err)
	return authz.ActorFor(u)
}

// newTenant creates an organization whose usernames are prefixed with prefix.
func (e *testEnv) newTenant(prefix string) *tenant {
	e.t.Helper()
	admin, org := e.register(prefix+"admin", prefix+" Inc")
	return &tenant{
		org:       org,
		admin:     admin,
		manager:   e.staff(admin, prefix+"manager", prefix+"-MGR", models.RoleManager),
		employee:  e.staff(admin, prefix+"dev", prefix+"-EMP1", models.RoleEmployee),
		employee2: e.staff(admin, prefix+"qa", prefix+"-EMP2", models.RoleEmployee),
	}
}

// project creates a project managed by the tenant manager with both employees on the team.
func (e *testEnv) project(tn *tenant, name string) *models.Project {
	e.t.Helper()
	managerID := tn.manager.UserID
	p, err := e.svc.CreateProject(e.ctx, tn.admin, ProjectInput{Name: name, ManagerID: &managerID})
	require.NoError(e.t, err)
	for _, emp := range []authz.Actor{tn.employee, tn.employee2} {
		_, err := e.svc.AddMember(e.ctx, tn.admin, p.ID, emp.UserID, models.MemberRoleDeveloper)
		require.NoError(e.t, err)
	}
	return p
}

func (e *testEnv) task(actor authz.Actor, projectID uint, title string, assignee *authz.Actor) *models.Task {
	e.t.Helper()
	in := TaskInput{ProjectID: projectID, Title: title}
	if assignee != nil {
		id := assignee.UserID
		in.AssignedToID = &id
	}
	task, err := e.svc.CreateTask(e.ctx, actor, in)
	require.NoError(e.t, err)
	return task
}

func (e *testEnv) activity(action models.ActivityAction, taskID uint) []models.ActivityLog {
	e.t.Helper()
	var entries []models.ActivityLog
	require.NoError(e.t, e.db.Where("action = ? AND entity_type = ? AND entity_id = ?",
		action, models.EntityTask, taskID).Order("id").Find(&entries).Error)
	return entries
}

func (e *testEnv) notifications(recipient uint, kind models.NotificationKind) []models.Notification {
	e.t.Helper()
	var notes []models.Notification
	require.NoError(e.t, e.db.Where("recipient_id = ? AND kind = ?", recipient, kind).
		Order("id").Find(&notes).Error)
	return notes
}
