package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/headless-pm/cloudtask/internal/authz"
	"github.com/headless-pm/cloudtask/internal/models"
)

// An enterprise sets up a team and an employee completes an assigned task.
func TestEnterpriseTeamScenario(t *testing.T) {
	env := newTestEnv(t)

	e, org := env.register("eadmin", "Orbit")
	m := env.staff(e, "mgr", "MGR1", models.RoleManager)
	x := env.staff(e, "xavier", "EMP7", models.RoleEmployee)
	assert.Equal(t, org.ID, m.OrganizationID)
	assert.Equal(t, org.ID, x.OrganizationID)

	_, err := env.svc.CreateProject(env.ctx, m, ProjectInput{Name: "Apollo"})
	require.ErrorIs(t, err, ErrPermissionDenied, "managers cannot create projects")

	managerID := m.UserID
	p, err := env.svc.CreateProject(env.ctx, e, ProjectInput{Name: "Apollo", ManagerID: &managerID})
	require.NoError(t, err)
	assert.Equal(t, org.ID, p.OrganizationID)
	_, err = env.svc.AddMember(env.ctx, e, p.ID, x.UserID, models.MemberRoleDeveloper)
	require.NoError(t, err)

	assignee := x.UserID
	task, err := env.svc.CreateTask(env.ctx, m, TaskInput{
		ProjectID:    p.ID,
		Title:        "T",
		AssignedToID: &assignee,
		Status:       models.TaskStatusTodo,
	})
	require.NoError(t, err)

	// MGR1 is the manager's staff id, so X's password does not match it.
	_, err = env.svc.Authenticate(env.ctx, "MGR1", testPassword+"-x", "employee")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = env.svc.Authenticate(env.ctx, "MGR1", testPassword, "employee")
	require.ErrorIs(t, err, ErrValidation, "the manager account cannot use the employee tab")

	user, err := env.svc.Authenticate(env.ctx, "xavier", testPassword, "employee")
	require.NoError(t, err)
	actor := authz.ActorFor(user)
	assert.Equal(t, x, actor)

	done, err := env.svc.ChangeStatus(env.ctx, actor, task.ID, models.TaskStatusDone, "")
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusDone, done.Status)
	require.NotNil(t, done.AssignedToID)
	assert.Equal(t, x.UserID, *done.AssignedToID)

	changes := env.activity(models.ActionStatusChange, task.ID)
	require.Len(t, changes, 1)
	assert.Equal(t, x.UserID, changes[0].UserID)
	assert.Equal(t, "To Do", *changes[0].OldValue)
	assert.Equal(t, "Done", *changes[0].NewValue)
	require.NotNil(t, changes[0].OrganizationID)
	assert.Equal(t, org.ID, *changes[0].OrganizationID)

	tasks, err := env.svc.ListTasks(env.ctx, actor, TaskFilter{})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, task.ID, tasks[0].ID)
}
