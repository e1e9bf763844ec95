package rbac

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates that the requested role or permission does not exist.
	ErrNotFound = errors.New("rbac: not found")
	// ErrConflict is the parent of duplicate assignment and grant errors.
	ErrConflict = errors.New("rbac: conflict")
	// ErrAlreadyAssigned is returned when a principal already holds the role.
	ErrAlreadyAssigned = fmt.Errorf("%w: role already assigned", ErrConflict)
	// ErrAlreadyGranted is returned when a role already holds the permission.
	ErrAlreadyGranted = fmt.Errorf("%w: permission already granted", ErrConflict)
	// ErrInvalidName indicates a role or permission name outside the catalog.
	ErrInvalidName = errors.New("rbac: invalid name")
	// ErrInvalidRequirement flags a guard configured with an empty or unknown requirement.
	ErrInvalidRequirement = errors.New("rbac: invalid requirement")
	// ErrLookupFailure means the authorization stores could not answer.
	ErrLookupFailure = errors.New("rbac: lookup failure")
)
