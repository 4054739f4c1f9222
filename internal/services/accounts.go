// Package services implements business logic for the application
package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"campus-locator/internal/metrics"
	"campus-locator/internal/models"
	"campus-locator/internal/repository"
)

// DefaultActiveWindow is how recent a teacher's activity must be to count as active
const DefaultActiveWindow = 7 * 24 * time.Hour

// Notifier defines the interface for administrator notifications
type Notifier interface {
	SendNotification(message string)
	NotifyPendingAccount(account models.Account)
}

// UserQuery selects the rows of the administrator's user list
type UserQuery struct {
	Tab    string // all, student or teacher
	Search string
	Sort   string // name, date or activity
}

// AccountService handles sign-up, sign-in and administration of accounts
type AccountService struct {
	identity     repository.IdentityProvider
	accounts     repository.AccountRepository
	presence     repository.PresenceRepository
	notifier     Notifier
	sessions     *CheckInSessions
	now          func() time.Time
	activeWindow time.Duration
}

// NewAccountService creates a new account service. notifier and sessions may be nil.
func NewAccountService(
	identity repository.IdentityProvider,
	accounts repository.AccountRepository,
	presence repository.PresenceRepository,
	notifier Notifier,
	sessions *CheckInSessions,
) *AccountService {
	return &AccountService{
		identity:     identity,
		accounts:     accounts,
		presence:     presence,
		notifier:     notifier,
		sessions:     sessions,
		now:          time.Now,
		activeWindow: DefaultActiveWindow,
	}
}

// SetActiveWindow changes the dashboard's notion of an active teacher
func (s *AccountService) SetActiveWindow(d time.Duration) {
	if d > 0 {
		s.activeWindow = d
	}
}

// SignUp registers the identity and creates a pending account in the role partition
func (s *AccountService) SignUp(ctx context.Context, req *models.SignUpRequest) (*models.Account, error) {
	if req.Role != models.RoleStudent && req.Role != models.RoleTeacher {
		return nil, fmt.Errorf("cannot sign up as %q: %w", req.Role, models.ErrInvalidRole)
	}

	identity, err := s.identity.SignUp(ctx, strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	account := &models.Account{
		ID:             identity.UID,
		Role:           req.Role,
		ApprovalStatus: models.StatusPending,
		Name:           strings.TrimSpace(req.Name),
		Email:          identity.Email,
		CreatedAt:      now,
	}
	if req.Role == models.RoleTeacher {
		account.Phone = strings.TrimSpace(req.Phone)
		account.Profession = strings.TrimSpace(req.Profession)
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, err
	}
	if req.Role == models.RoleTeacher {
		if err := s.presence.Touch(ctx, account.ID, now); err != nil {
			log.Printf("Warning: failed to create presence for teacher %s: %v", account.ID, err)
		} else {
			account.LastActiveTime = &now
		}
	}

	log.Printf("✅ New %s account %s (%s) waiting for approval", account.Role, account.Name, account.Email)
	if s.notifier != nil {
		s.notifier.NotifyPendingAccount(*account)
	}
	return account, nil
}

// EnsureAdmin creates an approved administrator, or approves the existing one.
// Administrators cannot sign up through the API.
func (s *AccountService) EnsureAdmin(ctx context.Context, email, password, name string) (*models.Account, error) {
	identity, err := s.identity.SignUp(ctx, strings.TrimSpace(email), password)
	if errors.Is(err, models.ErrAccountExists) {
		identity, err = s.identity.SignIn(ctx, strings.TrimSpace(email), password)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to prepare admin identity: %w", err)
	}

	account, err := s.accounts.Get(ctx, models.RoleAdmin, identity.UID)
	switch {
	case err == nil:
		if account.ApprovalStatus != models.StatusApproved {
			if err := s.accounts.SetStatus(ctx, models.RoleAdmin, account.ID, models.StatusApproved); err != nil {
				return nil, err
			}
			account.ApprovalStatus = models.StatusApproved
		}
		return account, nil
	case !errors.Is(err, models.ErrNotFound):
		return nil, err
	}

	account = &models.Account{
		ID:             identity.UID,
		Role:           models.RoleAdmin,
		ApprovalStatus: models.StatusApproved,
		Name:           name,
		Email:          identity.Email,
		CreatedAt:      s.now(),
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, err
	}
	log.Printf("✅ Administrator %s ready", account.Email)
	return account, nil
}

// SignIn authenticates and passes the account through the approval gate rules.
// Approved teachers get their lastActiveTime refreshed.
func (s *AccountService) SignIn(ctx context.Context, req *models.SignInRequest) (*models.Account, error) {
	identity, err := s.identity.SignIn(ctx, strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		return nil, err
	}

	account, err := s.accounts.Find(ctx, identity.UID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, &models.AccessError{Reason: models.ReasonNotAuthenticated}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	if account.ApprovalStatus != models.StatusApproved {
		log.Printf("🔍 Sign-in refused for %s account %s: %s", account.Role, account.ID, account.ApprovalStatus)
		return nil, &models.AccessError{
			Reason: models.ReasonPendingOrDeclined,
			Role:   account.Role,
			Status: account.ApprovalStatus,
		}
	}

	if account.Role == models.RoleTeacher {
		now := s.now()
		if err := s.presence.Touch(ctx, account.ID, now); err != nil {
			log.Printf("Warning: failed to update last active time for %s: %v", account.ID, err)
		} else {
			account.LastActiveTime = &now
		}
	}
	return account, nil
}

// SignOut ends the check-in session and the provider session
func (s *AccountService) SignOut(ctx context.Context, uid string) error {
	if uid == "" {
		return models.ErrNoSession
	}
	if s.sessions != nil {
		s.sessions.Drop(uid)
	}
	return s.identity.SignOut(ctx, uid)
}

// FindAccount looks the account up in every partition
func (s *AccountService) FindAccount(ctx context.Context, id string) (*models.Account, error) {
	return s.accounts.Find(ctx, id)
}

// PendingApprovals lists pending students and teachers, newest first
func (s *AccountService) PendingApprovals(ctx context.Context) ([]models.Account, error) {
	var pending []models.Account
	for _, role := range []models.Role{models.RoleStudent, models.RoleTeacher} {
		accounts, err := s.accounts.List(ctx, role, models.StatusPending)
		if err != nil {
			return nil, err
		}
		pending = append(pending, accounts...)
	}
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].CreatedAt.After(pending[j].CreatedAt)
	})
	return pending, nil
}

// ListUsers returns the rows of the administrator's user list
func (s *AccountService) ListUsers(ctx context.Context, q UserQuery) ([]models.UserRow, error) {
	var roles []models.Role
	switch q.Tab {
	case "", "all":
		roles = []models.Role{models.RoleStudent, models.RoleTeacher}
	case string(models.RoleStudent), string(models.RoleTeacher):
		roles = []models.Role{models.Role(q.Tab)}
	default:
		return nil, fmt.Errorf("unknown user tab %q: %w", q.Tab, models.ErrInvalidRole)
	}

	lastActive, err := s.lastActiveByTeacher(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	search := strings.ToLower(strings.TrimSpace(q.Search))
	var rows []models.UserRow
	for _, role := range roles {
		accounts, err := s.accounts.List(ctx, role, "")
		if err != nil {
			return nil, err
		}
		for _, a := range accounts {
			if search != "" &&
				!strings.Contains(strings.ToLower(a.Name), search) &&
				!strings.Contains(strings.ToLower(a.Email), search) {
				continue
			}
			row := models.UserRow{
				ID:             a.ID,
				Role:           a.Role,
				Name:           a.Name,
				Email:          a.Email,
				Phone:          a.Phone,
				Profession:     a.Profession,
				ApprovalStatus: a.ApprovalStatus,
				CreatedAt:      a.CreatedAt,
			}
			if role == models.RoleTeacher {
				row.LastActiveTime = lastActive[a.ID]
			}
			row.Activity = ActivityStatus(now, row.LastActiveTime)
			rows = append(rows, row)
		}
	}

	sortUserRows(rows, q.Sort)
	return rows, nil
}

func sortUserRows(rows []models.UserRow, by string) {
	switch by {
	case "date":
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].CreatedAt.After(rows[j].CreatedAt) })
	case "activity":
		sort.SliceStable(rows, func(i, j int) bool { return newerThan(rows[i].LastActiveTime, rows[j].LastActiveTime) })
	default:
		sort.SliceStable(rows, func(i, j int) bool {
			return strings.ToLower(rows[i].Name) < strings.ToLower(rows[j].Name)
		})
	}
}

// newerThan orders times newest first with missing times last
func newerThan(a, b *time.Time) bool {
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	default:
		return a.After(*b)
	}
}

// managedRole limits administration to student and teacher accounts; administrators
// are only seeded through EnsureAdmin
func managedRole(role models.Role) error {
	if role != models.RoleStudent && role != models.RoleTeacher {
		return fmt.Errorf("cannot manage %q accounts: %w", role, models.ErrInvalidRole)
	}
	return nil
}

// SetStatus records an administrator's approval decision
func (s *AccountService) SetStatus(ctx context.Context, role models.Role, id string, status models.ApprovalStatus) error {
	if err := managedRole(role); err != nil {
		return err
	}
	if !status.Valid() {
		return fmt.Errorf("unknown approval status %q: %w", status, models.ErrInvalidTransition)
	}
	if err := s.accounts.SetStatus(ctx, role, id, status); err != nil {
		return fmt.Errorf("failed to set %s %s to %s: %w", role, id, status, err)
	}

	metrics.ApprovalDecisions.WithLabelValues(string(role), string(status)).Inc()
	log.Printf("✅ %s account %s is now %s", role, id, status)
	return nil
}

// DeleteUser removes the account document and, for teachers, the presence document.
// The identity itself is left to the provider.
func (s *AccountService) DeleteUser(ctx context.Context, role models.Role, id string) error {
	if err := managedRole(role); err != nil {
		return err
	}
	if err := s.accounts.Delete(ctx, role, id); err != nil {
		return fmt.Errorf("failed to delete %s %s: %w", role, id, err)
	}
	if role == models.RoleTeacher {
		if err := s.presence.Delete(ctx, id); err != nil {
			log.Printf("Warning: failed to delete presence of %s: %v", id, err)
		}
		if s.sessions != nil {
			s.sessions.Drop(id)
		}
	}
	log.Printf("🗑️ Deleted %s account %s", role, id)
	if s.notifier != nil {
		s.notifier.SendNotification(fmt.Sprintf("🗑️ Deleted %s account `%s`", role, id))
	}
	return nil
}

// Dashboard counts accounts for the administrator's overview
func (s *AccountService) Dashboard(ctx context.Context) (models.DashboardStats, error) {
	var stats models.DashboardStats

	students, err := s.accounts.List(ctx, models.RoleStudent, "")
	if err != nil {
		return stats, err
	}
	teachers, err := s.accounts.List(ctx, models.RoleTeacher, "")
	if err != nil {
		return stats, err
	}
	stats.TotalStudents = len(students)
	stats.TotalTeachers = len(teachers)

	for _, group := range [][]models.Account{students, teachers} {
		for _, a := range group {
			if a.ApprovalStatus == models.StatusPending {
				stats.PendingApprovals++
			}
		}
	}

	lastActive, err := s.lastActiveByTeacher(ctx)
	if err != nil {
		return stats, err
	}
	cutoff := s.now().Add(-s.activeWindow)
	for _, t := range teachers {
		if last := lastActive[t.ID]; last != nil && last.After(cutoff) {
			stats.ActiveUsers++
		}
	}
	return stats, nil
}

func (s *AccountService) lastActiveByTeacher(ctx context.Context) (map[string]*time.Time, error) {
	presences, err := s.presence.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*time.Time, len(presences))
	for _, p := range presences {
		out[p.TeacherID] = p.LastActiveTime
	}
	return out, nil
}
