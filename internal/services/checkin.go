package services

import (
	"context"
	"log"
	"sync"
	"time"

	"campus-locator/internal/metrics"
	"campus-locator/internal/models"
	"campus-locator/internal/repository"
)

// SessionHistoryLimit is how many check-ins a session remembers
const SessionHistoryLimit = 10

// CheckInState is a state of the check-in machine
type CheckInState string

const (
	StateIdle                 CheckInState = "idle"
	StateCameraActive         CheckInState = "camera_active"
	StateAwaitingConfirmation CheckInState = "awaiting_confirmation"
	StateWriting              CheckInState = "writing"
)

// CheckInEvent drives the check-in machine
type CheckInEvent string

const (
	EventActivate  CheckInEvent = "activate"
	EventDecode    CheckInEvent = "decode"
	EventConfirm   CheckInEvent = "confirm"
	EventDecline   CheckInEvent = "decline"
	EventScanAgain CheckInEvent = "scan_again"
	EventWriteDone CheckInEvent = "write_done"
	EventCancel    CheckInEvent = "cancel"
)

// Transition is the pure state table of the check-in flow
func Transition(state CheckInState, event CheckInEvent) (CheckInState, bool) {
	if event == EventCancel {
		return StateIdle, true
	}
	switch state {
	case StateIdle:
		if event == EventActivate {
			return StateCameraActive, true
		}
	case StateCameraActive:
		if event == EventDecode {
			return StateAwaitingConfirmation, true
		}
	case StateAwaitingConfirmation:
		switch event {
		case EventConfirm:
			return StateWriting, true
		case EventDecline:
			return StateIdle, true
		case EventScanAgain:
			return StateCameraActive, true
		}
	case StateWriting:
		if event == EventWriteDone {
			return StateIdle, true
		}
	}
	return state, false
}

// RepairQueue receives partially written check-ins
type RepairQueue interface {
	Enqueue(outcome CheckInOutcome)
	Forget(teacherID string)
}

// CheckInSnapshot is what the teacher's screen renders
type CheckInSnapshot struct {
	State             CheckInState        `json:"state"`
	Pending           *models.ScanEvent   `json:"pending,omitempty"`
	CooldownActive    bool                `json:"cooldownActive"`
	CooldownRemaining int                 `json:"cooldownRemaining"`
	History           []models.ScanRecord `json:"history"`
}

// CheckInMachine is one teacher's check-in session: camera activation, decode,
// confirmation and the write, with the cooldown gate re-armed after success.
type CheckInMachine struct {
	mu        sync.Mutex
	teacherID string
	state     CheckInState
	pending   *models.ScanEvent
	gate      *ScanGate
	history   []models.ScanRecord

	recorder     Recorder
	repairs      RepairQueue
	now          func() time.Time
	tickInterval time.Duration
	ticking      bool
	closed       chan struct{}
	closeOnce    sync.Once
}

// CheckInOption customizes a machine
type CheckInOption func(*CheckInMachine)

// WithClock replaces time.Now
func WithClock(now func() time.Time) CheckInOption {
	return func(m *CheckInMachine) { m.now = now }
}

// WithTickInterval changes how often the cooldown ticks
func WithTickInterval(d time.Duration) CheckInOption {
	return func(m *CheckInMachine) { m.tickInterval = d }
}

// WithCooldown sets the cooldown length in seconds
func WithCooldown(seconds int) CheckInOption {
	return func(m *CheckInMachine) { m.gate = NewScanGate(seconds) }
}

// WithRepairQueue hands partial failures to a repair queue
func WithRepairQueue(q RepairQueue) CheckInOption {
	return func(m *CheckInMachine) { m.repairs = q }
}

// NewCheckInMachine creates an idle session for a teacher
func NewCheckInMachine(teacherID string, recorder Recorder, opts ...CheckInOption) *CheckInMachine {
	m := &CheckInMachine{
		teacherID:    teacherID,
		state:        StateIdle,
		gate:         NewScanGate(DefaultCooldownSeconds),
		recorder:     recorder,
		now:          time.Now,
		tickInterval: time.Second,
		closed:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Activate turns the camera on. Refused with *models.CooldownError while the gate is
// closed and models.ErrPermissionDenied without camera permission.
func (m *CheckInMachine) Activate(cameraGranted bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.gate.CanScan() {
		metrics.ScanRejections.WithLabelValues("cooldown").Inc()
		return &models.CooldownError{Remaining: m.gate.Remaining()}
	}
	if !cameraGranted {
		metrics.ScanRejections.WithLabelValues("permission").Inc()
		return models.ErrPermissionDenied
	}
	if m.state == StateCameraActive {
		return nil
	}
	next, ok := Transition(m.state, EventActivate)
	if !ok {
		return models.ErrInvalidTransition
	}
	m.state = next
	return nil
}

// Decode consumes a decoded QR payload. Only the first decode of an activation is
// accepted; anything else is silently dropped and reported as not accepted.
func (m *CheckInMachine) Decode(payload string) (models.ScanEvent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next, ok := Transition(m.state, EventDecode)
	if !ok {
		metrics.DecodesIgnored.Inc()
		return models.ScanEvent{}, false
	}
	event := models.ScanEvent{
		ID:           repository.NewDocumentID(),
		RawPayload:   payload,
		ResolvedRoom: ResolveRoom(payload),
		OccurredAt:   m.now(),
	}
	m.pending = &event
	m.state = next
	return event, true
}

// Confirm writes the pending check-in. The lock is released during the writes so the
// teacher may cancel; a write that completes after a cancel still counts.
func (m *CheckInMachine) Confirm(ctx context.Context) (CheckInOutcome, error) {
	m.mu.Lock()
	next, ok := Transition(m.state, EventConfirm)
	if !ok || m.pending == nil {
		m.mu.Unlock()
		return CheckInOutcome{}, models.ErrInvalidTransition
	}
	event := *m.pending
	m.pending = nil
	m.state = next
	m.mu.Unlock()

	outcome := m.recorder.Record(ctx, m.teacherID, event)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateWriting {
		m.state, _ = Transition(m.state, EventWriteDone)
	}
	metrics.CheckIns.WithLabelValues(string(outcome.Kind())).Inc()

	switch outcome.Kind() {
	case OutcomeSuccess:
		m.history = append([]models.ScanRecord{event.Record()}, m.history...)
		if len(m.history) > SessionHistoryLimit {
			m.history = m.history[:SessionHistoryLimit]
		}
		m.armCooldown()
		if m.repairs != nil {
			m.repairs.Forget(m.teacherID)
		}
	case OutcomePartialFailure:
		if m.repairs != nil {
			m.repairs.Enqueue(outcome)
		}
	}
	return outcome, outcome.Err()
}

// Decline discards the pending scan. With keepScanning the camera stays on and listens
// for the next decode, otherwise the session goes back to idle.
func (m *CheckInMachine) Decline(keepScanning bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	event := EventDecline
	if keepScanning {
		event = EventScanAgain
	}
	next, ok := Transition(m.state, event)
	if !ok {
		return models.ErrInvalidTransition
	}
	m.pending = nil
	m.state = next
	return nil
}

// Cancel leaves the camera from any state
func (m *CheckInMachine) Cancel() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state, _ = Transition(m.state, EventCancel)
	m.pending = nil
}

// Snapshot returns the current session view
func (m *CheckInMachine) Snapshot() CheckInSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := CheckInSnapshot{
		State:             m.state,
		CooldownActive:    m.gate.Active(),
		CooldownRemaining: m.gate.Remaining(),
		History:           append([]models.ScanRecord{}, m.history...),
	}
	if m.pending != nil {
		pending := *m.pending
		snapshot.Pending = &pending
	}
	return snapshot
}

// ClearHistory forgets the session history
func (m *CheckInMachine) ClearHistory() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = nil
}

// Close stops the cooldown ticker
func (m *CheckInMachine) Close() {
	m.closeOnce.Do(func() { close(m.closed) })
}

// armCooldown must be called with the lock held
func (m *CheckInMachine) armCooldown() {
	if !m.gate.Arm() || m.ticking {
		return
	}
	m.ticking = true
	go m.runCooldown()
}

func (m *CheckInMachine) runCooldown() {
	ticker := time.NewTicker(m.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.closed:
			return
		case <-ticker.C:
			m.mu.Lock()
			running := m.gate.Tick()
			if !running {
				m.ticking = false
				m.mu.Unlock()
				log.Printf("✅ Cooldown over for teacher %s", m.teacherID)
				return
			}
			m.mu.Unlock()
		}
	}
}
