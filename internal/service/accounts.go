package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"

	"gorm.io/gorm"

	"github.com/headless-pm/cloudtask/internal/authz"
	"github.com/headless-pm/cloudtask/internal/database"
	"github.com/headless-pm/cloudtask/internal/models"
	"github.com/headless-pm/cloudtask/pkg/auth"
)

var usernamePattern = regexp.MustCompile(`^[\w.@+-]{1,150}$`)

type RegisterInput struct {
	Username                string `json:"username"`
	Email                   string `json:"email"`
	Password                string `json:"password"`
	FirstName               string `json:"first_name"`
	LastName                string `json:"last_name"`
	OrganizationName        string `json:"organization_name"`
	OrganizationDescription string `json:"organization_description"`
}

type StaffInput struct {
	Username    string      `json:"username"`
	Email       string      `json:"email"`
	Password    string      `json:"password"`
	FirstName   string      `json:"first_name"`
	LastName    string      `json:"last_name"`
	Role        models.Role `json:"role"`
	StaffID     string      `json:"staff_id"`
	Department  string      `json:"department"`
	PhoneNumber string      `json:"phone_number"`
}

func validateAccount(username, email, password string) (string, error) {
	if !usernamePattern.MatchString(username) {
		return "", invalid("username may contain only letters, digits and @/./+/-/_")
	}
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return "", invalid("invalid email address")
		}
	}
	hash, err := auth.HashPassword(password)
	if errors.Is(err, auth.ErrWeakPassword) {
		return "", invalid("%v", err)
	}
	return hash, err
}

func ensureUsernameFree(store *database.Database, username string) error {
	_, err := store.GetUserByUsername(username)
	if err == nil {
		return invalid("username %q is already taken", username)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return nil
}

// duplicate maps a unique index violation to a validation error.
func duplicate(err error, what string) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return invalid("%s is already in use", what)
	}
	return err
}

// RegisterEnterprise creates an enterprise account together with the organization it owns.
func (s *Service) RegisterEnterprise(ctx context.Context, in RegisterInput) (*models.User, *models.Organization, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.OrganizationName = strings.TrimSpace(in.OrganizationName)
	if in.OrganizationName == "" {
		return nil, nil, invalid("organization name is required")
	}
	hash, err := validateAccount(in.Username, in.Email, in.Password)
	if err != nil {
		return nil, nil, err
	}

	user := &models.User{
		Username:  in.Username,
		Email:     in.Email,
		Password:  hash,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Role:      models.RoleEnterprise,
		IsActive:  true,
	}
	org := &models.Organization{Name: in.OrganizationName, Description: in.OrganizationDescription}

	err = s.inTx(ctx, func(store *database.Database) error {
		if err := ensureUsernameFree(store, user.Username); err != nil {
			return err
		}
		if err := store.Create(user).Error; err != nil {
			return duplicate(err, "username")
		}
		org.OwnerID = user.ID
		if err := store.Create(org).Error; err != nil {
			return err
		}
		user.OrganizationID = &org.ID
		return store.Model(user).Update("organization_id", org.ID).Error
	})
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("enterprise registered", "user", user.Username, "organization", org.Name, "org_id", org.ID)
	return user, org, nil
}

// ResolveLoginIdentifier looks the identifier up as a staff id first, then as a username.
func (s *Service) ResolveLoginIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, notFound("account")
	}
	store := s.read(ctx)
	u, err := store.GetUserByStaffID(identifier)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	u, err = store.GetUserByUsername(identifier)
	return u, lookup(err, "account")
}

// RoleMatches reports whether the login tab the user chose matches the stored role.
func RoleMatches(u *models.User, claimed models.Role) bool {
	return u.Role == claimed
}

// Authenticate checks credentials for the login tab named by claimedRole
// (empty means enterprise). Unknown identifiers and wrong passwords are
// indistinguishable.
func (s *Service) Authenticate(ctx context.Context, identifier, password, claimedRole string) (*models.User, error) {
	claimed := models.RoleEnterprise
	if strings.TrimSpace(claimedRole) != "" {
		var ok bool
		if claimed, ok = models.ParseRole(claimedRole); !ok {
			return nil, invalid("unknown login type %q", claimedRole)
		}
	}

	u, err := s.ResolveLoginIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: invalid credentials", ErrNotFound)
		}
		return nil, err
	}
	if !auth.CheckPassword(u.Password, password) {
		return nil, fmt.Errorf("%w: invalid credentials", ErrNotFound)
	}
	if !u.IsActive {
		return nil, fmt.Errorf("%w: account is disabled", ErrPermissionDenied)
	}
	if !RoleMatches(u, claimed) {
		label := u.Role.Label()
		return nil, invalid("this account is registered as %s, please use the %s login tab", label, label)
	}

	now := s.now()
	u.LastLogin = &now
	if err := s.db.WithContext(ctx).Model(u).Update("last_login", now).Error; err != nil {
		s.logger.Warn("failed to record last login", "user_id", u.ID, "err", err)
	}
	return u, nil
}

// AddStaff creates a manager or employee in the actor's organization.
func (s *Service) AddStaff(ctx context.Context, actor authz.Actor, in StaffInput) (*models.User, error) {
	if err := authz.Authorize(actor, authz.AddStaff, authz.OrgTarget(actor.OrganizationID)).Err(); err != nil {
		return nil, err
	}
	role, ok := models.ParseRole(string(in.Role))
	if !ok || role == models.RoleEnterprise {
		return nil, invalid("staff role must be MANAGER or EMPLOYEE")
	}
	in.Username = strings.TrimSpace(in.Username)
	staffID := strings.TrimSpace(in.StaffID)
	if staffID == "" {
		return nil, invalid("staff id is required")
	}
	hash, err := validateAccount(in.Username, in.Email, in.Password)
	if err != nil {
		return nil, err
	}

	org := actor.OrganizationID
	user := &models.User{
		Username:       in.Username,
		Email:          in.Email,
		Password:       hash,
		FirstName:      in.FirstName,
		LastName:       in.LastName,
		Role:           role,
		OrganizationID: &org,
		StaffID:        &staffID,
		Department:     in.Department,
		PhoneNumber:    in.PhoneNumber,
		IsActive:       true,
	}

	err = s.inTx(ctx, func(store *database.Database) error {
		if err := ensureUsernameFree(store, user.Username); err != nil {
			return err
		}
		if _, err := store.GetUserByStaffID(staffID); err == nil {
			return invalid("staff id %q is already in use", staffID)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return duplicate(store.Create(user).Error, "username or staff id")
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("staff added", "user", user.Username, "role", user.Role, "org_id", org, "by", actor.UserID)
	return user, nil
}

// ListStaff returns the managers and employees of the actor's organization.
func (s *Service) ListStaff(ctx context.Context, actor authz.Actor) ([]models.User, error) {
	var users []models.User
	err := s.db.WithContext(ctx).
		Scopes(authz.OrganizationScope(actor, "users")).
		Where("role IN ?", []models.Role{models.RoleManager, models.RoleEmployee}).
		Order("role, username").
		Find(&users).Error
	return users, err
}

func (s *Service) GetUser(ctx context.Context, id uint) (*models.User, error) {
	u, err := s.read(ctx).GetUserByID(id)
	return u, lookup(err, "user")
}
