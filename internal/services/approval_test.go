package services

import (
	"context"
	"errors"
	"testing"

	"campus-locator/internal/models"
)

func TestCheckAccess(t *testing.T) {
	ctx := context.Background()
	d := newTestDeps()
	d.createAccount(t, models.RoleTeacher, "approved1", models.StatusApproved, "Ana")
	d.createAccount(t, models.RoleTeacher, "pending1", models.StatusPending, "Ben")
	d.createAccount(t, models.RoleStudent, "declined1", models.StatusDeclined, "Cy")
	d.createAccount(t, models.RoleStudent, "student1", models.StatusApproved, "Dee")
	gate := NewApprovalGate(d.accounts)

	tests := []struct {
		name       string
		id         string
		role       models.Role
		wantAllow  bool
		wantReason models.AccessReason
		wantStatus models.ApprovalStatus
	}{
		{"approved teacher", "approved1", models.RoleTeacher, true, "", models.StatusApproved},
		{"pending teacher", "pending1", models.RoleTeacher, false, models.ReasonPendingOrDeclined, models.StatusPending},
		{"declined student", "declined1", models.RoleStudent, false, models.ReasonPendingOrDeclined, models.StatusDeclined},
		{"no identity", "", models.RoleTeacher, false, models.ReasonNotAuthenticated, ""},
		{"unknown id", "ghost", models.RoleStudent, false, models.ReasonNotAuthenticated, ""},
		{"wrong partition", "student1", models.RoleTeacher, false, models.ReasonNotAuthenticated, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			access, err := gate.CheckAccess(ctx, tt.id, tt.role)
			if err != nil {
				t.Fatalf("CheckAccess() error = %v", err)
			}
			if access.Allowed != tt.wantAllow || access.Reason != tt.wantReason || access.Status != tt.wantStatus {
				t.Errorf("CheckAccess() = %+v, want allowed %v reason %q status %q",
					access, tt.wantAllow, tt.wantReason, tt.wantStatus)
			}
		})
	}
}

func TestRequireReturnsAccessError(t *testing.T) {
	ctx := context.Background()
	d := newTestDeps()
	d.createAccount(t, models.RoleTeacher, "pending1", models.StatusPending, "Ben")
	d.createAccount(t, models.RoleStudent, "student1", models.StatusApproved, "Dee")
	gate := NewApprovalGate(d.accounts)

	_, err := gate.Require(ctx, "pending1", models.RoleTeacher)
	var access *models.AccessError
	if !errors.As(err, &access) {
		t.Fatalf("Require() error = %v, want AccessError", err)
	}
	if access.Role != models.RoleTeacher || access.Status != models.StatusPending {
		t.Errorf("AccessError = %+v", access)
	}

	account, err := gate.Require(ctx, "student1", models.RoleStudent)
	if err != nil || account == nil || account.Name != "Dee" {
		t.Errorf("Require() = (%+v, %v), want Dee", account, err)
	}
}

func TestCheckAccessStoreFailure(t *testing.T) {
	gate := NewApprovalGate(brokenAccounts{})
	_, err := gate.CheckAccess(context.Background(), "someone", models.RoleStudent)
	if !errors.Is(err, errStoreDown) {
		t.Fatalf("CheckAccess() error = %v, want the store error", err)
	}
	var access *models.AccessError
	if errors.As(err, &access) {
		t.Error("store failure reported as a redirect")
	}
}

func TestApprovalIsReadEveryTime(t *testing.T) {
	ctx := context.Background()
	d := newTestDeps()
	d.createAccount(t, models.RoleTeacher, "t1", models.StatusPending, "Ana")
	gate := NewApprovalGate(d.accounts)

	if access, _ := gate.CheckAccess(ctx, "t1", models.RoleTeacher); access.Allowed {
		t.Fatal("pending teacher allowed")
	}
	d.accounts.SetStatus(ctx, models.RoleTeacher, "t1", models.StatusApproved)
	if access, _ := gate.CheckAccess(ctx, "t1", models.RoleTeacher); !access.Allowed {
		t.Error("approval not picked up")
	}
	d.accounts.SetStatus(ctx, models.RoleTeacher, "t1", models.StatusDeclined)
	if access, _ := gate.CheckAccess(ctx, "t1", models.RoleTeacher); access.Allowed {
		t.Error("declined teacher still allowed")
	}
}
