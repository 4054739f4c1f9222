package services

import (
	"context"
	"errors"
	"fmt"

	"campus-locator/internal/metrics"
	"campus-locator/internal/models"
	"campus-locator/internal/repository"
)

// Access is the approval gate verdict
type Access struct {
	Allowed bool
	Reason  models.AccessReason
	Status  models.ApprovalStatus
	Account *models.Account
}

// Err converts a redirect into a *models.AccessError
func (a Access) Err(role models.Role) error {
	if a.Allowed {
		return nil
	}
	return &models.AccessError{Reason: a.Reason, Role: role, Status: a.Status}
}

// ApprovalGate decides whether an identity may enter a role-specific area.
// It reads the account on every call; approval can change at any time.
type ApprovalGate struct {
	accounts repository.AccountRepository
}

// NewApprovalGate creates the gate
func NewApprovalGate(accounts repository.AccountRepository) *ApprovalGate {
	return &ApprovalGate{accounts: accounts}
}

// CheckAccess looks the account up in the partition of the expected role
func (g *ApprovalGate) CheckAccess(ctx context.Context, accountID string, role models.Role) (Access, error) {
	if accountID == "" {
		return g.deny(role, Access{Reason: models.ReasonNotAuthenticated}), nil
	}

	account, err := g.accounts.Get(ctx, role, accountID)
	if errors.Is(err, models.ErrNotFound) {
		return g.deny(role, Access{Reason: models.ReasonNotAuthenticated}), nil
	}
	if err != nil {
		return Access{}, fmt.Errorf("failed to check access for %s: %w", accountID, err)
	}

	if account.ApprovalStatus != models.StatusApproved {
		return g.deny(role, Access{
			Reason:  models.ReasonPendingOrDeclined,
			Status:  account.ApprovalStatus,
			Account: account,
		}), nil
	}
	return Access{Allowed: true, Status: account.ApprovalStatus, Account: account}, nil
}

// Require returns the approved account or an error describing the redirect
func (g *ApprovalGate) Require(ctx context.Context, accountID string, role models.Role) (*models.Account, error) {
	access, err := g.CheckAccess(ctx, accountID, role)
	if err != nil {
		return nil, err
	}
	if err := access.Err(role); err != nil {
		return nil, err
	}
	return access.Account, nil
}

func (g *ApprovalGate) deny(role models.Role, access Access) Access {
	metrics.AccessDenied.WithLabelValues(string(role), string(access.Reason)).Inc()
	return access
}
