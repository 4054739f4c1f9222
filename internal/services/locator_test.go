package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"campus-locator/internal/models"
)

func TestLocatorList(t *testing.T) {
	ctx := context.Background()
	d := newTestDeps()
	now := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	d.createAccount(t, models.RoleTeacher, "t1", models.StatusApproved, "Maria")
	d.createAccount(t, models.RoleTeacher, "t2", models.StatusApproved, "Bruno")
	d.createAccount(t, models.RoleTeacher, "t3", models.StatusApproved, "Carla")
	d.createAccount(t, models.RoleTeacher, "t4", models.StatusPending, "Pending")
	d.presence.SetLocation(ctx, "t1", "G110", now.Add(-2*time.Hour))
	d.presence.SetLocation(ctx, "t2", "G121", now.Add(-5*time.Minute))
	d.presence.SetLocation(ctx, "t4", "G111", now)

	locator := NewLocator(d.accounts, d.presence, 2)
	locator.now = fixedClock(now)

	teachers, err := locator.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(teachers) != 3 {
		t.Fatalf("List() returned %d teachers, want 3 approved", len(teachers))
	}

	want := []struct{ name, room, seen string }{
		{"Bruno", "G121", "5 minutes ago"},
		{"Maria", "G110", "2 hours ago"},
		{"Carla", "", "Never active"},
	}
	for i, w := range want {
		got := teachers[i]
		if got.Name != w.name || got.CurrentLocation != w.room || got.LastSeen != w.seen {
			t.Errorf("teachers[%d] = {%s %s %s}, want %+v", i, got.Name, got.CurrentLocation, got.LastSeen, w)
		}
	}
	if teachers[2].Scans == nil {
		t.Error("teacher without presence has nil scans")
	}
}

func TestLocatorScanLimit(t *testing.T) {
	ctx := context.Background()
	d := newTestDeps()
	base := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	d.createAccount(t, models.RoleTeacher, "t1", models.StatusApproved, "Maria")
	for i, room := range []string{"G110", "G111", "G112", "G120"} {
		d.recorder.Record(ctx, "t1", testEvent("ev"+room, room, base.Add(time.Duration(i)*time.Minute)))
	}

	teachers, err := NewLocator(d.accounts, d.presence, 2).List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	scans := teachers[0].Scans
	if len(scans) != 2 || scans[0].Room != "G120" || scans[1].Room != "G112" {
		t.Errorf("scans = %+v, want G120 and G112", scans)
	}
}

func TestLocatorWatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d := newTestDeps()
	d.createAccount(t, models.RoleTeacher, "t1", models.StatusApproved, "Maria")

	var mu sync.Mutex
	var updates [][]models.TeacherLocation
	latest := func() []models.TeacherLocation {
		mu.Lock()
		defer mu.Unlock()
		if len(updates) == 0 {
			return nil
		}
		return updates[len(updates)-1]
	}

	stop, err := NewLocator(d.accounts, d.presence, 5).Watch(ctx, func(list []models.TeacherLocation) {
		mu.Lock()
		defer mu.Unlock()
		updates = append(updates, list)
	})
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	defer stop()

	if got := latest(); len(got) != 1 || got[0].CurrentLocation != "" {
		t.Fatalf("initial snapshot = %+v, want Maria without a location", got)
	}

	d.presence.SetLocation(ctx, "t1", "G120", time.Now())
	waitFor(t, func() bool {
		got := latest()
		return len(got) == 1 && got[0].CurrentLocation == "G120"
	})

	d.createAccount(t, models.RoleTeacher, "t2", models.StatusPending, "Bruno")
	d.accounts.SetStatus(ctx, models.RoleTeacher, "t2", models.StatusApproved)
	waitFor(t, func() bool { return len(latest()) == 2 })

	stop()
	mu.Lock()
	seen := len(updates)
	mu.Unlock()
	d.presence.SetLocation(ctx, "t1", "G110", time.Now())
	mu.Lock()
	defer mu.Unlock()
	if len(updates) != seen {
		t.Error("update delivered after stop")
	}
}
