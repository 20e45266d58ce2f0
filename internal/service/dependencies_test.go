package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/headless-pm/cloudtask/internal/models"
)

func dependencyCount(t *testing.T, env *testEnv) int64 {
	t.Helper()
	var count int64
	require.NoError(t, env.db.Model(&models.TaskDependency{}).Count(&count).Error)
	return count
}

func TestTaskIsBlocked(t *testing.T) {
	env := newTestEnv(t)
	tn := env.newTenant("acme")
	p := env.project(tn, "Website")
	design := env.task(tn.manager, p.ID, "Design", &tn.employee)
	build := env.task(tn.manager, p.ID, "Build", &tn.employee)
	ship := env.task(tn.manager, p.ID, "Ship", &tn.employee)

	detail, err := env.svc.GetTask(env.ctx, tn.employee, build.ID)
	require.NoError(t, err)
	assert.False(t, detail.IsBlocked, "no dependencies means not blocked")

	_, err = env.svc.AddDependency(env.ctx, tn.manager, build.ID, design.ID)
	require.NoError(t, err)
	_, err = env.svc.AddDependency(env.ctx, tn.manager, ship.ID, build.ID)
	require.NoError(t, err)

	blocked := func(id uint) bool {
		d, err := env.svc.GetTask(env.ctx, tn.employee, id)
		require.NoError(t, err)
		return d.IsBlocked
	}
	assert.False(t, blocked(design.ID))
	assert.True(t, blocked(build.ID))
	assert.True(t, blocked(ship.ID))

	_, err = env.svc.ChangeStatus(env.ctx, tn.employee, design.ID, models.TaskStatusDone, "")
	require.NoError(t, err)
	assert.False(t, blocked(build.ID))
	assert.True(t, blocked(ship.ID))

	tasks, err := env.svc.ListTasks(env.ctx, tn.employee, TaskFilter{ProjectID: &p.ID})
	require.NoError(t, err)
	for _, task := range tasks {
		assert.Equal(t, task.ID == ship.ID, task.IsBlocked, task.Title)
	}

	chain, err := env.svc.DependencyChain(env.ctx, tn.manager, ship.ID)
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, design.ID, chain[0].ID)

	deps, err := env.svc.ListDependencies(env.ctx, tn.manager, ship.ID)
	require.NoError(t, err)
	require.Len(t, deps, 1)
	require.NotNil(t, deps[0].DependsOn)
	assert.Equal(t, "Build", deps[0].DependsOn.Title)
	assert.False(t, deps[0].DependsOn.IsBlocked)
}

func TestAddDependencyRejections(t *testing.T) {
	env := newTestEnv(t)
	tn := env.newTenant("acme")
	p := env.project(tn, "Website")
	other := env.project(tn, "Mobile")
	a := env.task(tn.manager, p.ID, "A", nil)
	b := env.task(tn.manager, p.ID, "B", nil)
	foreign := env.task(tn.manager, other.ID, "Elsewhere", nil)

	_, err := env.svc.AddDependency(env.ctx, tn.manager, b.ID, a.ID)
	require.NoError(t, err)
	before := dependencyCount(t, env)

	cases := map[string]struct {
		task, dependsOn uint
	}{
		"self":          {a.ID, a.ID},
		"other project": {a.ID, foreign.ID},
		"missing task":  {a.ID, 99999},
		"duplicate":     {b.ID, a.ID},
		"cycle":         {a.ID, b.ID},
	}
	for name, tc := range cases {
		_, err := env.svc.AddDependency(env.ctx, tn.manager, tc.task, tc.dependsOn)
		assert.ErrorIs(t, err, ErrInvalidDependency, name)
		assert.Equal(t, before, dependencyCount(t, env), name)
	}

	t.Run("EmployeesCannotManage", func(t *testing.T) {
		c := env.task(tn.manager, p.ID, "C", &tn.employee)
		_, err := env.svc.AddDependency(env.ctx, tn.employee, c.ID, a.ID)
		assert.ErrorIs(t, err, ErrPermissionDenied)
	})
}

func TestRemoveDependency(t *testing.T) {
	env := newTestEnv(t)
	tn := env.newTenant("acme")
	p := env.project(tn, "Website")
	a := env.task(tn.manager, p.ID, "A", nil)
	b := env.task(tn.manager, p.ID, "B", nil)

	_, err := env.svc.AddDependency(env.ctx, tn.manager, b.ID, a.ID)
	require.NoError(t, err)

	require.NoError(t, env.svc.RemoveDependency(env.ctx, tn.manager, b.ID, a.ID))
	assert.Zero(t, dependencyCount(t, env))

	err = env.svc.RemoveDependency(env.ctx, tn.manager, b.ID, a.ID)
	assert.ErrorIs(t, err, ErrNotFound, "removing an absent edge is an error")
}
