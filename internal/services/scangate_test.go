package services

import "testing"

func TestScanGateFullCountdown(t *testing.T) {
	g := NewScanGate(60)
	if !g.CanScan() || g.Active() || g.Remaining() != 60 {
		t.Fatalf("new gate = {active %v, remaining %d}, want {false, 60}", g.Active(), g.Remaining())
	}

	if !g.Arm() {
		t.Fatal("Arm() on an open gate should start the countdown")
	}
	if g.CanScan() || g.Remaining() != 60 {
		t.Fatalf("armed gate = {canScan %v, remaining %d}, want {false, 60}", g.CanScan(), g.Remaining())
	}

	for i := 1; i < 60; i++ {
		if !g.Tick() {
			t.Fatalf("gate closed after %d ticks, want 60", i)
		}
		if g.Remaining() != 60-i {
			t.Fatalf("after %d ticks remaining = %d, want %d", i, g.Remaining(), 60-i)
		}
	}

	if g.Tick() {
		t.Fatal("gate still active after 60 ticks")
	}
	if !g.CanScan() || g.Remaining() != 60 {
		t.Errorf("expired gate = {canScan %v, remaining %d}, want {true, 60}", g.CanScan(), g.Remaining())
	}
}

func TestScanGatePartialCountdown(t *testing.T) {
	g := NewScanGate(60)
	g.Arm()
	for i := 0; i < 59; i++ {
		g.Tick()
	}
	if g.CanScan() {
		t.Fatal("gate open after 59 ticks")
	}
	if g.Remaining() != 1 {
		t.Errorf("Remaining() = %d, want 1", g.Remaining())
	}
}

func TestScanGateNoDoubleArm(t *testing.T) {
	g := NewScanGate(60)
	g.Arm()
	for i := 0; i < 10; i++ {
		g.Tick()
	}

	if g.Arm() {
		t.Error("Arm() on a running countdown should be a no-op")
	}
	if g.Remaining() != 50 {
		t.Errorf("Remaining() = %d after re-arm, want 50", g.Remaining())
	}
}

func TestScanGateTickWhileInactive(t *testing.T) {
	g := NewScanGate(60)
	if g.Tick() {
		t.Error("Tick() on an open gate reported active")
	}
	if g.Remaining() != 60 || !g.CanScan() {
		t.Errorf("open gate changed by Tick(): remaining %d", g.Remaining())
	}
}

func TestNewScanGateDefault(t *testing.T) {
	if got := NewScanGate(0).Remaining(); got != DefaultCooldownSeconds {
		t.Errorf("NewScanGate(0).Remaining() = %d, want %d", got, DefaultCooldownSeconds)
	}
}
