package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/headless-pm/cloudtask/internal/authz"
	"github.com/headless-pm/cloudtask/internal/storage"
)

var (
	ErrNotFound         = authz.ErrNotFound
	ErrPermissionDenied = authz.ErrPermissionDenied
	ErrFileTooLarge     = storage.ErrFileTooLarge

	ErrValidation        = errors.New("validation failed")
	ErrInvalidDependency = errors.New("invalid dependency")
	ErrInvalidDuration   = errors.New("invalid duration")
	ErrNoActiveTimer     = errors.New("no active timer")
	ErrConflict          = errors.New("conflict")
)

func notFound(what string) error {
	return fmt.Errorf("%w: %s not found", ErrNotFound, what)
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func invalidDependency(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidDependency, reason)
}

// lookup converts a gorm miss into ErrNotFound for what.
func lookup(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound(what)
	}
	return err
}
