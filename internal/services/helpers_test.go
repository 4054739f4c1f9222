package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"campus-locator/internal/models"
	"campus-locator/internal/repository"
)

var errStoreDown = errors.New("store unavailable")

// flakyPresence fails selected presence writes
type flakyPresence struct {
	repository.PresenceRepository
	mu              sync.Mutex
	failSetLocation error
	failPushScan    error
}

func (p *flakyPresence) SetLocation(ctx context.Context, teacherID, room string, at time.Time) error {
	p.mu.Lock()
	err := p.failSetLocation
	p.mu.Unlock()
	if err != nil {
		return err
	}
	return p.PresenceRepository.SetLocation(ctx, teacherID, room, at)
}

func (p *flakyPresence) PushScan(ctx context.Context, teacherID string, scan models.ScanRecord, limit int) error {
	p.mu.Lock()
	err := p.failPushScan
	p.mu.Unlock()
	if err != nil {
		return err
	}
	return p.PresenceRepository.PushScan(ctx, teacherID, scan, limit)
}

func (p *flakyPresence) heal() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failSetLocation = nil
	p.failPushScan = nil
}

// flakyHistory fails every append while err is set
type flakyHistory struct {
	repository.ScanHistoryRepository
	err error
}

func (h *flakyHistory) Append(ctx context.Context, userID string, scan models.ScanRecord) error {
	if h.err != nil {
		return h.err
	}
	return h.ScanHistoryRepository.Append(ctx, userID, scan)
}

// brokenAccounts fails every read
type brokenAccounts struct {
	repository.AccountRepository
}

func (brokenAccounts) Get(ctx context.Context, role models.Role, id string) (*models.Account, error) {
	return nil, errStoreDown
}

// mockRepairQueue records what the machine hands to the repair queue
type mockRepairQueue struct {
	mu       sync.Mutex
	enqueued []CheckInOutcome
	forgot   []string
}

func (q *mockRepairQueue) Enqueue(outcome CheckInOutcome) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.enqueued = append(q.enqueued, outcome)
}

func (q *mockRepairQueue) Forget(teacherID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.forgot = append(q.forgot, teacherID)
}

var _ RepairQueue = (*mockRepairQueue)(nil)

// mockNotifier records notifications
type mockNotifier struct {
	mu       sync.Mutex
	messages []string
	pending  []models.Account
}

func (n *mockNotifier) SendNotification(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
}

func (n *mockNotifier) NotifyPendingAccount(account models.Account) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pending = append(n.pending, account)
}

var _ Notifier = (*mockNotifier)(nil)

type testDeps struct {
	store    *repository.MemoryStore
	accounts *repository.DocumentAccountRepository
	presence *flakyPresence
	history  *flakyHistory
	recorder *CheckInRecorder
}

func newTestDeps() *testDeps {
	store := repository.NewMemoryStore()
	presence := &flakyPresence{PresenceRepository: repository.NewPresenceRepository(store)}
	history := &flakyHistory{ScanHistoryRepository: repository.NewScanHistoryRepository(store)}
	return &testDeps{
		store:    store,
		accounts: repository.NewAccountRepository(store),
		presence: presence,
		history:  history,
		recorder: NewCheckInRecorder(presence, history, DefaultPresenceScanLimit),
	}
}

func (d *testDeps) createAccount(t *testing.T, role models.Role, id string, status models.ApprovalStatus, name string) {
	t.Helper()
	err := d.accounts.Create(context.Background(), &models.Account{
		ID:             id,
		Role:           role,
		ApprovalStatus: status,
		Name:           name,
		Email:          id + "@campus.test",
	})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
}

// waitFor polls cond until it holds or the deadline passes
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}
