package models

import (
	"strings"
	"time"
)

// Role is the closed set of account roles. It is fixed when the account is created.
type Role string

const (
	RoleEnterprise Role = "ENTERPRISE"
	RoleManager    Role = "MANAGER"
	RoleEmployee   Role = "EMPLOYEE"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleEnterprise, RoleManager, RoleEmployee:
		return true
	}
	return false
}

// Label returns the human readable role name.
func (r Role) Label() string {
	switch r {
	case RoleEnterprise:
		return "Enterprise"
	case RoleManager:
		return "Manager"
	case RoleEmployee:
		return "Employee"
	}
	return string(r)
}

// ParseRole accepts both the stored form and the lowercase login tab names.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	return r, r.Valid()
}

type Organization struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Name        string    `json:"name" gorm:"not null"`
	Description string    `json:"description"`
	OwnerID     uint      `json:"owner_id" gorm:"not null;index"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type User struct {
	ID             uint       `json:"id" gorm:"primaryKey"`
	Username       string     `json:"username" gorm:"uniqueIndex;not null"`
	Email          string     `json:"email"`
	Password       string     `json:"-" gorm:"not null"`
	FirstName      string     `json:"first_name"`
	LastName       string     `json:"last_name"`
	Role           Role       `json:"role" gorm:"not null;index"`
	OrganizationID *uint      `json:"organization_id" gorm:"index"`
	StaffID        *string    `json:"staff_id,omitempty" gorm:"uniqueIndex"`
	Department     string     `json:"department"`
	PhoneNumber    string     `json:"phone_number"`
	IsActive       bool       `json:"is_active"`
	LastLogin      *time.Time `json:"last_login,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// DisplayName prefers the full name and falls back to the username.
func (u *User) DisplayName() string {
	full := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if full != "" {
		return full
	}
	return u.Username
}

// InOrganization reports whether the user belongs to org.
func (u *User) InOrganization(org uint) bool {
	return u.OrganizationID != nil && *u.OrganizationID == org
}
