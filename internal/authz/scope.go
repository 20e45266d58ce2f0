package authz

import (
	"gorm.io/gorm"

	"github.com/headless-pm/cloudtask/internal/models"
)

// Scope narrows a gorm query to the rows an actor may see.
type Scope func(*gorm.DB) *gorm.DB

func nothing(db *gorm.DB) *gorm.DB {
	return db.Where("1 = 0")
}

// ProjectScope filters the projects table.
//
//	ENTERPRISE  every project of the organization
//	MANAGER     projects of the organization it manages
//	EMPLOYEE    projects of the organization it is a member of
func ProjectScope(a Actor) Scope {
	return func(db *gorm.DB) *gorm.DB {
		if a.OrganizationID == 0 {
			return nothing(db)
		}
		db = db.Where("projects.organization_id = ?", a.OrganizationID)
		switch a.Role {
		case models.RoleEnterprise:
			return db
		case models.RoleManager:
			return db.Where("projects.manager_id = ?", a.UserID)
		case models.RoleEmployee:
			return db.Where("projects.id IN (SELECT project_id FROM project_members WHERE user_id = ?)", a.UserID)
		}
		return nothing(db)
	}
}

// TaskScope filters the tasks table.
//
//	ENTERPRISE  tasks of every project in the organization
//	MANAGER     tasks of managed projects
//	EMPLOYEE    tasks assigned to the employee
func TaskScope(a Actor) Scope {
	return func(db *gorm.DB) *gorm.DB {
		if a.OrganizationID == 0 {
			return nothing(db)
		}
		switch a.Role {
		case models.RoleEnterprise:
			return db.Where("tasks.project_id IN (SELECT id FROM projects WHERE organization_id = ?)", a.OrganizationID)
		case models.RoleManager:
			return db.Where("tasks.project_id IN (SELECT id FROM projects WHERE organization_id = ? AND manager_id = ?)",
				a.OrganizationID, a.UserID)
		case models.RoleEmployee:
			return db.Where("tasks.assigned_to_id = ?", a.UserID).
				Where("tasks.project_id IN (SELECT id FROM projects WHERE organization_id = ?)", a.OrganizationID)
		}
		return nothing(db)
	}
}

// TenantTaskScope keeps every task of the organization regardless of role.
// Callers must still check ProjectScope before revealing the task.
func TenantTaskScope(a Actor) Scope {
	return func(db *gorm.DB) *gorm.DB {
		if a.OrganizationID == 0 {
			return nothing(db)
		}
		return db.Where("tasks.project_id IN (SELECT id FROM projects WHERE organization_id = ?)", a.OrganizationID)
	}
}

// TenantProjectScope is the project counterpart of TenantTaskScope.
func TenantProjectScope(a Actor) Scope {
	return func(db *gorm.DB) *gorm.DB {
		if a.OrganizationID == 0 {
			return nothing(db)
		}
		return db.Where("projects.organization_id = ?", a.OrganizationID)
	}
}

// OrganizationScope filters any table that carries an organization_id column.
func OrganizationScope(a Actor, table string) Scope {
	return func(db *gorm.DB) *gorm.DB {
		if a.OrganizationID == 0 {
			return nothing(db)
		}
		return db.Where(table+".organization_id = ?", a.OrganizationID)
	}
}
