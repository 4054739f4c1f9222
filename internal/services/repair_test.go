package services

import (
	"context"
	"testing"
	"time"

	"campus-locator/internal/models"
)

func partialCheckIn(t *testing.T, d *testDeps, event models.ScanEvent) CheckInOutcome {
	t.Helper()
	outcome := d.recorder.Record(context.Background(), "teacher1", event)
	if outcome.Kind() != OutcomePartialFailure {
		t.Fatalf("setup outcome = %s, want partial_failure", outcome.Kind())
	}
	return outcome
}

func TestRepairReplaysMissingSteps(t *testing.T) {
	ctx := context.Background()
	d := newTestDeps()
	event := testEvent("ev1", "G120", time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC))

	d.history.err = errStoreDown
	repairs := NewRepairService(d.recorder, d.presence, 3)
	repairs.Enqueue(partialCheckIn(t, d, event))
	if repairs.Pending() != 1 {
		t.Fatalf("Pending() = %d, want 1", repairs.Pending())
	}

	if n := repairs.RunOnce(ctx); n != 0 {
		t.Errorf("RunOnce() while the store is down repaired %d", n)
	}
	if repairs.Pending() != 1 {
		t.Fatal("item dropped after one failed attempt")
	}

	d.history.err = nil
	if n := repairs.RunOnce(ctx); n != 1 {
		t.Errorf("RunOnce() = %d, want 1", n)
	}
	if repairs.Pending() != 0 {
		t.Errorf("Pending() = %d after repair", repairs.Pending())
	}

	recent, _ := d.history.Recent(ctx, "teacher1", 10)
	if len(recent) != 1 || recent[0].ID != "ev1" {
		t.Errorf("history = %+v, want ev1", recent)
	}
	presence, _ := d.presence.Get(ctx, "teacher1")
	if len(presence.Scans) != 1 {
		t.Errorf("scans = %d, want 1", len(presence.Scans))
	}
}

func TestRepairSkipsStalePresence(t *testing.T) {
	ctx := context.Background()
	d := newTestDeps()
	old := testEvent("ev1", "G110", time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC))

	d.presence.failSetLocation = errStoreDown
	repairs := NewRepairService(d.recorder, d.presence, 3)
	repairs.Enqueue(partialCheckIn(t, d, old))
	d.presence.heal()

	newer := old.OccurredAt.Add(time.Minute)
	d.presence.PushScan(ctx, "teacher1", models.ScanRecord{ID: "ev2", Room: "G121", Timestamp: newer}, DefaultPresenceScanLimit)
	d.presence.SetLocation(ctx, "teacher1", "G121", newer)

	if n := repairs.RunOnce(ctx); n != 1 {
		t.Fatalf("RunOnce() = %d, want 1", n)
	}
	presence, _ := d.presence.Get(ctx, "teacher1")
	if presence.CurrentLocation != "G121" {
		t.Errorf("currentLocation = %q, replay moved the teacher back in time", presence.CurrentLocation)
	}
}

func TestRepairRestoresPresence(t *testing.T) {
	ctx := context.Background()
	d := newTestDeps()
	event := testEvent("ev1", "G110", time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC))

	d.presence.failSetLocation = errStoreDown
	repairs := NewRepairService(d.recorder, d.presence, 3)
	repairs.Enqueue(partialCheckIn(t, d, event))
	d.presence.heal()

	repairs.RunOnce(ctx)
	presence, _ := d.presence.Get(ctx, "teacher1")
	if presence.CurrentLocation != "G110" {
		t.Errorf("currentLocation = %q, want G110", presence.CurrentLocation)
	}
}

func TestRepairRestoresPresenceAfterSignIn(t *testing.T) {
	ctx := context.Background()
	d := newTestDeps()
	event := testEvent("ev1", "G112", time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC))

	d.presence.failSetLocation = errStoreDown
	repairs := NewRepairService(d.recorder, d.presence, 3)
	repairs.Enqueue(partialCheckIn(t, d, event))
	d.presence.heal()

	// signing in again only refreshes lastActiveTime
	d.presence.Touch(ctx, "teacher1", event.OccurredAt.Add(time.Hour))

	if n := repairs.RunOnce(ctx); n != 1 {
		t.Fatalf("RunOnce() = %d, want 1", n)
	}
	presence, _ := d.presence.Get(ctx, "teacher1")
	if presence.CurrentLocation != "G112" {
		t.Errorf("currentLocation = %q, want G112 after a later sign-in", presence.CurrentLocation)
	}
	if presence.LastActiveTime == nil || !presence.LastActiveTime.Equal(event.OccurredAt.Add(time.Hour)) {
		t.Errorf("lastActiveTime = %v, want the sign-in time kept", presence.LastActiveTime)
	}
}

func TestRepairGivesUp(t *testing.T) {
	d := newTestDeps()
	d.history.err = errStoreDown
	repairs := NewRepairService(d.recorder, d.presence, 2)
	repairs.Enqueue(partialCheckIn(t, d, testEvent("ev1", "G110", time.Now())))

	repairs.RunOnce(context.Background())
	if repairs.Pending() != 1 {
		t.Fatal("gave up after one attempt")
	}
	repairs.RunOnce(context.Background())
	if repairs.Pending() != 0 {
		t.Errorf("Pending() = %d after max attempts, want 0", repairs.Pending())
	}
}

func TestRepairForget(t *testing.T) {
	d := newTestDeps()
	d.history.err = errStoreDown
	repairs := NewRepairService(d.recorder, d.presence, 3)
	repairs.Enqueue(partialCheckIn(t, d, testEvent("ev1", "G110", time.Now())))
	repairs.Enqueue(partialCheckIn(t, d, testEvent("ev2", "G111", time.Now())))
	repairs.Enqueue(CheckInOutcome{
		TeacherID: "teacher2",
		Event:     testEvent("ev3", "G112", time.Now()),
		Completed: []models.WriteStep{models.StepPresence},
		Failed:    map[models.WriteStep]error{models.StepScans: errStoreDown},
	})

	repairs.Forget("teacher1")
	if repairs.Pending() != 1 {
		t.Errorf("Pending() = %d after Forget, want only teacher2's item", repairs.Pending())
	}
}

func TestRepairIgnoresCompleteOutcome(t *testing.T) {
	repairs := NewRepairService(newTestDeps().recorder, newTestDeps().presence, 3)
	repairs.Enqueue(CheckInOutcome{TeacherID: "t1", Event: testEvent("ev1", "G110", time.Now()), Failed: map[models.WriteStep]error{}})
	if repairs.Pending() != 0 {
		t.Error("complete outcome was queued")
	}
}

func TestSuccessfulCheckInSupersedesRepairs(t *testing.T) {
	ctx := context.Background()
	d := newTestDeps()
	repairs := NewRepairService(d.recorder, d.presence, 3)
	m := NewCheckInMachine("teacher1", d.recorder, WithTickInterval(time.Hour), WithRepairQueue(repairs))
	defer m.Close()

	d.history.err = errStoreDown
	m.Activate(true)
	m.Decode("10")
	if _, err := m.Confirm(ctx); err == nil {
		t.Fatal("Confirm() succeeded with history down")
	}
	if repairs.Pending() != 1 {
		t.Fatalf("Pending() = %d, want 1", repairs.Pending())
	}

	d.history.err = nil
	m.Activate(true)
	m.Decode("11")
	if _, err := m.Confirm(ctx); err != nil {
		t.Fatalf("Confirm() error = %v", err)
	}
	if repairs.Pending() != 0 {
		t.Errorf("Pending() = %d after a complete check-in, want 0", repairs.Pending())
	}
}
