package services

import (
	"sync"

	"campus-locator/internal/metrics"
)

// CheckInSessions holds one check-in machine per signed-in teacher. Sessions live in
// memory only: the cooldown and the local history end with the session.
type CheckInSessions struct {
	mu       sync.Mutex
	machines map[string]*CheckInMachine
	recorder Recorder
	opts     []CheckInOption
}

// NewCheckInSessions creates an empty registry; opts apply to every new machine
func NewCheckInSessions(recorder Recorder, opts ...CheckInOption) *CheckInSessions {
	return &CheckInSessions{
		machines: make(map[string]*CheckInMachine),
		recorder: recorder,
		opts:     opts,
	}
}

// Get returns the teacher's machine, creating it on first use
func (s *CheckInSessions) Get(teacherID string) *CheckInMachine {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.machines[teacherID]
	if !ok {
		m = NewCheckInMachine(teacherID, s.recorder, s.opts...)
		s.machines[teacherID] = m
		metrics.ActiveSessions.Set(float64(len(s.machines)))
	}
	return m
}

// Drop ends the teacher's session
func (s *CheckInSessions) Drop(teacherID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m, ok := s.machines[teacherID]; ok {
		m.Close()
		delete(s.machines, teacherID)
		metrics.ActiveSessions.Set(float64(len(s.machines)))
	}
}

// CloseAll stops every session, used on shutdown
func (s *CheckInSessions) CloseAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, m := range s.machines {
		m.Close()
		delete(s.machines, id)
	}
	metrics.ActiveSessions.Set(0)
}
