package services

// DefaultCooldownSeconds is the refractory period after a successful check-in
const DefaultCooldownSeconds = 60

// ScanGate is the cooldown countdown. It is not safe for concurrent use on its own;
// the check-in machine serializes access.
type ScanGate struct {
	duration  int
	active    bool
	remaining int
}

// NewScanGate creates an open gate with the given countdown length in seconds
func NewScanGate(seconds int) *ScanGate {
	if seconds <= 0 {
		seconds = DefaultCooldownSeconds
	}
	return &ScanGate{duration: seconds, remaining: seconds}
}

// CanScan reports whether a new scan may start
func (g *ScanGate) CanScan() bool {
	return !g.active
}

// Active reports whether the countdown is running
func (g *ScanGate) Active() bool {
	return g.active
}

// Remaining returns the seconds left; equal to the full duration when inactive
func (g *ScanGate) Remaining() int {
	return g.remaining
}

// Arm starts the countdown. Arming a running countdown does nothing.
func (g *ScanGate) Arm() bool {
	if g.active {
		return false
	}
	g.active = true
	g.remaining = g.duration
	return true
}

// Tick advances the countdown by one second and reports whether it is still running
func (g *ScanGate) Tick() bool {
	if !g.active {
		return false
	}
	g.remaining--
	if g.remaining <= 0 {
		g.active = false
		g.remaining = g.duration
	}
	return g.active
}
