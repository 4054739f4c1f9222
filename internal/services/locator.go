package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"campus-locator/internal/models"
	"campus-locator/internal/repository"
)

// Locator shows students where approved teachers were last seen
type Locator struct {
	accounts  repository.AccountRepository
	presence  repository.PresenceRepository
	scanLimit int
	now       func() time.Time
}

// NewLocator creates a locator
func NewLocator(accounts repository.AccountRepository, presence repository.PresenceRepository, scanLimit int) *Locator {
	if scanLimit <= 0 {
		scanLimit = DefaultPresenceScanLimit
	}
	return &Locator{accounts: accounts, presence: presence, scanLimit: scanLimit, now: time.Now}
}

// List returns approved teachers, most recently active first
func (l *Locator) List(ctx context.Context) ([]models.TeacherLocation, error) {
	teachers, err := l.accounts.List(ctx, models.RoleTeacher, models.StatusApproved)
	if err != nil {
		return nil, err
	}
	presences, err := l.presence.List(ctx)
	if err != nil {
		return nil, err
	}
	return l.join(teachers, presences), nil
}

// Watch streams the joined list whenever teachers or presence documents change
func (l *Locator) Watch(ctx context.Context, onChange func([]models.TeacherLocation)) (func(), error) {
	var (
		mu          sync.Mutex
		teachers    []models.Account
		presences   []models.TeacherPresence
		gotTeachers bool
		gotPresence bool
	)
	emit := func() {
		if gotTeachers && gotPresence {
			onChange(l.join(teachers, presences))
		}
	}

	stopTeachers, err := l.accounts.Watch(ctx, models.RoleTeacher, models.StatusApproved, func(accounts []models.Account) {
		mu.Lock()
		defer mu.Unlock()
		teachers, gotTeachers = accounts, true
		emit()
	})
	if err != nil {
		return nil, err
	}

	stopPresence, err := l.presence.Watch(ctx, func(list []models.TeacherPresence) {
		mu.Lock()
		defer mu.Unlock()
		presences, gotPresence = list, true
		emit()
	})
	if err != nil {
		stopTeachers()
		return nil, err
	}

	return func() {
		stopTeachers()
		stopPresence()
	}, nil
}

func (l *Locator) join(teachers []models.Account, presences []models.TeacherPresence) []models.TeacherLocation {
	byID := make(map[string]models.TeacherPresence, len(presences))
	for _, p := range presences {
		byID[p.TeacherID] = p
	}

	now := l.now()
	out := make([]models.TeacherLocation, 0, len(teachers))
	for _, t := range teachers {
		loc := models.TeacherLocation{
			ID:         t.ID,
			Name:       t.Name,
			Email:      t.Email,
			Phone:      t.Phone,
			Profession: t.Profession,
			Scans:      []models.ScanRecord{},
		}
		if p, ok := byID[t.ID]; ok {
			loc.CurrentLocation = p.CurrentLocation
			loc.LastActiveTime = p.LastActiveTime
			loc.Scans = newestScans(p.Scans, l.scanLimit)
		}
		loc.LastSeen = LastSeen(now, loc.LastActiveTime)
		out = append(out, loc)
	}

	sort.SliceStable(out, func(i, j int) bool { return newerThan(out[i].LastActiveTime, out[j].LastActiveTime) })
	return out
}

func newestScans(scans []models.ScanRecord, limit int) []models.ScanRecord {
	out := append([]models.ScanRecord{}, scans...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
