package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned by stores when a document does not exist
	ErrNotFound = errors.New("document not found")
	// ErrInvalidCredentials is returned by the identity provider on a bad email/password pair
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountExists is returned on sign-up when the email is already registered
	ErrAccountExists = errors.New("account already exists")
	// ErrPermissionDenied means the camera permission was not granted
	ErrPermissionDenied = errors.New("camera permission denied")
	// ErrInvalidTransition means the requested action is not allowed in the current check-in state
	ErrInvalidTransition = errors.New("invalid check-in transition")
	// ErrNoSession means the caller has no authenticated identity
	ErrNoSession = errors.New("no authenticated user")
	// ErrInvalidRole means a role or user tab outside the known set
	ErrInvalidRole = errors.New("invalid role")
)

// CooldownError rejects a scan while the gate is still counting down
type CooldownError struct {
	Remaining int
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("cooldown active: %d seconds remaining", e.Remaining)
}

// AccessReason explains why the approval gate redirected a caller
type AccessReason string

const (
	ReasonNotAuthenticated  AccessReason = "not-authenticated"
	ReasonPendingOrDeclined AccessReason = "pending-or-declined"
)

// AccessError is returned when an identity may not enter a role-gated area
type AccessError struct {
	Reason AccessReason
	Role   Role
	Status ApprovalStatus
}

func (e *AccessError) Error() string {
	if e.Reason == ReasonNotAuthenticated {
		return fmt.Sprintf("access denied: no %s account", e.Role)
	}
	return fmt.Sprintf("access denied: %s account is %s", e.Role, e.Status)
}

// WriteStep names one of the independent check-in writes
type WriteStep string

const (
	StepPresence WriteStep = "presence"
	StepHistory  WriteStep = "history"
	StepScans    WriteStep = "scans"
)

// WriteError reports which check-in writes did not land
type WriteError struct {
	Completed []WriteStep
	Failed    map[WriteStep]error
}

func (e *WriteError) Error() string {
	parts := make([]string, 0, len(e.Failed))
	for _, step := range []WriteStep{StepPresence, StepHistory, StepScans} {
		if err, ok := e.Failed[step]; ok {
			parts = append(parts, fmt.Sprintf("%s: %v", step, err))
		}
	}
	return "check-in write failed: " + strings.Join(parts, "; ")
}

// Partial reports whether at least one write landed
func (e *WriteError) Partial() bool {
	return len(e.Completed) > 0
}
