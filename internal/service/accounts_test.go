package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/headless-pm/cloudtask/internal/models"
)

func TestRegisterEnterprise(t *testing.T) {
	env := newTestEnv(t)

	admin, org := env.register("founder", "Acme")
	assert.Equal(t, models.RoleEnterprise, admin.Role)
	assert.Equal(t, org.ID, admin.OrganizationID)
	assert.Equal(t, admin.UserID, org.OwnerID)

	t.Run("DuplicateUsername", func(t *testing.T) {
		_, _, err := env.svc.RegisterEnterprise(env.ctx, RegisterInput{
			Username: "founder", Password: testPassword, OrganizationName: "Other",
		})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("Validation", func(t *testing.T) {
		cases := map[string]RegisterInput{
			"missing organization": {Username: "a1", Password: testPassword},
			"bad username":         {Username: "has space", Password: testPassword, OrganizationName: "X"},
			"short password":       {Username: "a2", Password: "short", OrganizationName: "X"},
			"bad email":            {Username: "a3", Email: "nope", Password: testPassword, OrganizationName: "X"},
		}
		for name, in := range cases {
			_, _, err := env.svc.RegisterEnterprise(env.ctx, in)
			assert.ErrorIs(t, err, ErrValidation, name)
		}
	})
}

func TestAuthenticate(t *testing.T) {
	env := newTestEnv(t)
	tn := env.newTenant("acme")

	t.Run("EnterpriseByUsername", func(t *testing.T) {
		u, err := env.svc.Authenticate(env.ctx, "acmeadmin", testPassword, "")
		require.NoError(t, err)
		assert.Equal(t, tn.admin.UserID, u.ID)
		require.NotNil(t, u.LastLogin)
		assert.Equal(t, env.clock.Now(), *u.LastLogin)
	})

	t.Run("StaffByStaffID", func(t *testing.T) {
		u, err := env.svc.Authenticate(env.ctx, "acme-EMP1", testPassword, "employee")
		require.NoError(t, err)
		assert.Equal(t, tn.employee.UserID, u.ID)
	})

	t.Run("WrongPassword", func(t *testing.T) {
		_, err := env.svc.Authenticate(env.ctx, "acmedev", "wrong-password", "employee")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("UnknownIdentifier", func(t *testing.T) {
		_, err := env.svc.Authenticate(env.ctx, "ghost", testPassword, "")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("RoleMismatch", func(t *testing.T) {
		_, err := env.svc.Authenticate(env.ctx, "acmemanager", testPassword, "employee")
		require.ErrorIs(t, err, ErrValidation)
		assert.Contains(t, err.Error(), "please use the Manager login tab")
	})

	t.Run("UnknownLoginType", func(t *testing.T) {
		_, err := env.svc.Authenticate(env.ctx, "acmedev", testPassword, "superuser")
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("InactiveAccount", func(t *testing.T) {
		require.NoError(t, env.db.Model(&models.User{}).Where("id = ?", tn.employee2.UserID).
			Update("is_active", false).Error)
		_, err := env.svc.Authenticate(env.ctx, "acmeqa", testPassword, "employee")
		assert.ErrorIs(t, err, ErrPermissionDenied)
	})
}

func TestAddStaff(t *testing.T) {
	env := newTestEnv(t)
	tn := env.newTenant("acme")

	t.Run("OnlyEnterprise", func(t *testing.T) {
		_, err := env.svc.AddStaff(env.ctx, tn.manager, StaffInput{
			Username: "newbie", Password: testPassword, Role: models.RoleEmployee, StaffID: "N1",
		})
		assert.ErrorIs(t, err, ErrPermissionDenied)
	})

	t.Run("StaffIDRequired", func(t *testing.T) {
		_, err := env.svc.AddStaff(env.ctx, tn.admin, StaffInput{
			Username: "newbie", Password: testPassword, Role: models.RoleEmployee,
		})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("NoEnterpriseStaff", func(t *testing.T) {
		_, err := env.svc.AddStaff(env.ctx, tn.admin, StaffInput{
			Username: "newbie", Password: testPassword, Role: models.RoleEnterprise, StaffID: "N1",
		})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("StaffIDIsGloballyUnique", func(t *testing.T) {
		other, _ := env.register("otheradmin", "Other")
		_, err := env.svc.AddStaff(env.ctx, other, StaffInput{
			Username: "clash", Password: testPassword, Role: models.RoleEmployee, StaffID: "acme-EMP1",
		})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("ListStaff", func(t *testing.T) {
		staff, err := env.svc.ListStaff(env.ctx, tn.admin)
		require.NoError(t, err)
		var names []string
		for _, u := range staff {
			names = append(names, u.Username)
		}
		assert.ElementsMatch(t, []string{"acmemanager", "acmedev", "acmeqa"}, names)
	})
}
