package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"campus-locator/internal/models"
)

func TestAccountRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepository(NewMemoryStore())
	created := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

	teacher := &models.Account{
		ID: "t1", Role: models.RoleTeacher, ApprovalStatus: models.StatusPending,
		Name: "Ana", Email: "ana@campus.test", Phone: "555", Profession: "Physics", CreatedAt: created,
	}
	student := &models.Account{
		ID: "s1", Role: models.RoleStudent, ApprovalStatus: models.StatusApproved,
		Name: "Sam", Email: "sam@campus.test", Phone: "ignored",
	}
	for _, a := range []*models.Account{teacher, student} {
		if err := repo.Create(ctx, a); err != nil {
			t.Fatalf("Create(%s) error = %v", a.ID, err)
		}
	}
	if student.CreatedAt.IsZero() {
		t.Error("Create() did not stamp CreatedAt")
	}

	got, err := repo.Get(ctx, models.RoleTeacher, "t1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Name != "Ana" || got.Phone != "555" || got.Profession != "Physics" || !got.CreatedAt.Equal(created) {
		t.Errorf("Get() = %+v", got)
	}

	found, err := repo.Find(ctx, "s1")
	if err != nil || found.Role != models.RoleStudent || found.Phone != "" {
		t.Errorf("Find(s1) = (%+v, %v), want student without phone", found, err)
	}
	if _, err := repo.Find(ctx, "nobody"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Find(nobody) error = %v", err)
	}
	if _, err := repo.Get(ctx, models.RoleStudent, "t1"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Get() in the wrong partition error = %v", err)
	}

	if err := repo.SetStatus(ctx, models.RoleTeacher, "t1", models.StatusApproved); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}
	approved, _ := repo.List(ctx, models.RoleTeacher, models.StatusApproved)
	if len(approved) != 1 || approved[0].ID != "t1" {
		t.Errorf("List(approved teachers) = %+v", approved)
	}
	pending, _ := repo.List(ctx, models.RoleTeacher, models.StatusPending)
	if len(pending) != 0 {
		t.Errorf("List(pending teachers) = %+v", pending)
	}

	if err := repo.Delete(ctx, models.RoleTeacher, "t1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if all, _ := repo.List(ctx, models.RoleTeacher, ""); len(all) != 0 {
		t.Errorf("teachers after delete = %+v", all)
	}
}

func TestPresencePushScan(t *testing.T) {
	ctx := context.Background()
	repo := NewPresenceRepository(NewMemoryStore())
	base := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

	if err := repo.PushScan(ctx, "t1", models.ScanRecord{ID: "a", Room: "G110", Timestamp: base}, 3); err != nil {
		t.Fatalf("PushScan() on a missing document error = %v", err)
	}
	repo.PushScan(ctx, "t1", models.ScanRecord{ID: "a", Room: "G110", Timestamp: base}, 3)
	repo.PushScan(ctx, "t1", models.ScanRecord{ID: "c", Room: "G112", Timestamp: base.Add(2 * time.Minute)}, 3)
	repo.PushScan(ctx, "t1", models.ScanRecord{ID: "b", Room: "G111", Timestamp: base.Add(time.Minute)}, 3)
	repo.PushScan(ctx, "t1", models.ScanRecord{ID: "d", Room: "G120", Timestamp: base.Add(3 * time.Minute)}, 3)

	presence, err := repo.Get(ctx, "t1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	var rooms []string
	for _, s := range presence.Scans {
		rooms = append(rooms, s.Room)
	}
	if len(rooms) != 3 || rooms[0] != "G120" || rooms[1] != "G112" || rooms[2] != "G111" {
		t.Errorf("scans = %v, want [G120 G112 G111]", rooms)
	}
	if !presence.Scans[0].Timestamp.Equal(base.Add(3 * time.Minute)) {
		t.Errorf("timestamp = %v", presence.Scans[0].Timestamp)
	}
}

func TestPresenceLocation(t *testing.T) {
	ctx := context.Background()
	repo := NewPresenceRepository(NewMemoryStore())
	at := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

	repo.PushScan(ctx, "t1", models.ScanRecord{ID: "a", Room: "G110", Timestamp: at}, 5)
	if err := repo.SetLocation(ctx, "t1", "G110", at); err != nil {
		t.Fatalf("SetLocation() error = %v", err)
	}
	if err := repo.Touch(ctx, "t1", at.Add(time.Hour)); err != nil {
		t.Fatalf("Touch() error = %v", err)
	}

	presence, _ := repo.Get(ctx, "t1")
	if presence.CurrentLocation != "G110" || len(presence.Scans) != 1 {
		t.Errorf("merge writes lost fields: %+v", presence)
	}
	if presence.LastActiveTime == nil || !presence.LastActiveTime.Equal(at.Add(time.Hour)) {
		t.Errorf("LastActiveTime = %v", presence.LastActiveTime)
	}

	list, _ := repo.List(ctx)
	if len(list) != 1 || list[0].TeacherID != "t1" {
		t.Errorf("List() = %+v", list)
	}
	repo.Delete(ctx, "t1")
	if _, err := repo.Get(ctx, "t1"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Get() after delete error = %v", err)
	}
}

func TestScanHistory(t *testing.T) {
	ctx := context.Background()
	repo := NewScanHistoryRepository(NewMemoryStore())
	base := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

	repo.Append(ctx, "t1", models.ScanRecord{ID: "a", Room: "G110", Timestamp: base})
	repo.Append(ctx, "t1", models.ScanRecord{ID: "b", Room: "G111", Timestamp: base.Add(time.Minute)})
	repo.Append(ctx, "t1", models.ScanRecord{ID: "a", Room: "G110", Timestamp: base})
	repo.Append(ctx, "t2", models.ScanRecord{Room: "G112", Timestamp: base})

	recent, err := repo.Recent(ctx, "t1", 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(recent) != 2 || recent[0].ID != "b" || recent[1].ID != "a" {
		t.Errorf("Recent(t1) = %+v, want b then a", recent)
	}
	if one, _ := repo.Recent(ctx, "t1", 1); len(one) != 1 {
		t.Errorf("Recent(limit 1) = %d", len(one))
	}
	other, _ := repo.Recent(ctx, "t2", 10)
	if len(other) != 1 || other[0].ID == "" {
		t.Errorf("Recent(t2) = %+v, want one scan with a generated id", other)
	}
}

func TestStoreIdentity(t *testing.T) {
	ctx := context.Background()
	identity := NewStoreIdentity(NewMemoryStore())

	created, err := identity.SignUp(ctx, " Ana@Campus.TEST ", "secret123")
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	if created.Email != "ana@campus.test" || len(created.UID) != 15 {
		t.Errorf("SignUp() = %+v", created)
	}
	if _, err := identity.SignUp(ctx, "ana@campus.test", "other123"); !errors.Is(err, models.ErrAccountExists) {
		t.Errorf("duplicate SignUp() error = %v", err)
	}

	signedIn, err := identity.SignIn(ctx, "ANA@campus.test", "secret123")
	if err != nil || signedIn.UID != created.UID {
		t.Errorf("SignIn() = (%+v, %v)", signedIn, err)
	}
	for _, tc := range []struct{ email, password string }{
		{"ana@campus.test", "wrong"},
		{"nobody@campus.test", "secret123"},
	} {
		if _, err := identity.SignIn(ctx, tc.email, tc.password); !errors.Is(err, models.ErrInvalidCredentials) {
			t.Errorf("SignIn(%s) error = %v, want ErrInvalidCredentials", tc.email, err)
		}
	}

	found, err := identity.Lookup(ctx, created.UID)
	if err != nil || found.Email != "ana@campus.test" {
		t.Errorf("Lookup() = (%+v, %v)", found, err)
	}
	if err := identity.SignOut(ctx, created.UID); err != nil {
		t.Errorf("SignOut() error = %v", err)
	}
}

func TestFieldsTime(t *testing.T) {
	want := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	tests := []struct {
		name  string
		value any
		ok    bool
	}{
		{"rfc3339", "2025-03-14T09:30:00Z", true},
		{"pocketbase", "2025-03-14 09:30:00.000Z", true},
		{"time value", want, true},
		{"empty", "", false},
		{"garbage", "yesterday", false},
		{"number", 12, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Fields{"at": tt.value}.Time("at")
			if (got != nil) != tt.ok {
				t.Fatalf("Time() = %v, want ok %v", got, tt.ok)
			}
			if got != nil && !got.Equal(want) {
				t.Errorf("Time() = %v, want %v", got, want)
			}
		})
	}
}
