package services

import (
	"context"
	"errors"
	"log"
	"slices"
	"sort"
	"sync"
	"time"

	"campus-locator/internal/metrics"
	"campus-locator/internal/models"
	"campus-locator/internal/repository"
)

// DefaultRepairAttempts is how many passes a partial check-in gets before it is dropped
const DefaultRepairAttempts = 5

type repairItem struct {
	teacherID string
	event     models.ScanEvent
	steps     []models.WriteStep
	attempts  int
}

// RepairService replays the missing writes of partially recorded check-ins.
// Every step is idempotent: history is keyed by event id, the scans array skips
// ids it already holds and presence is never moved back in time.
type RepairService struct {
	mu          sync.Mutex
	items       map[string]*repairItem
	recorder    Recorder
	presence    repository.PresenceRepository
	maxAttempts int
}

// NewRepairService creates an empty repair queue
func NewRepairService(recorder Recorder, presence repository.PresenceRepository, maxAttempts int) *RepairService {
	if maxAttempts <= 0 {
		maxAttempts = DefaultRepairAttempts
	}
	return &RepairService{
		items:       make(map[string]*repairItem),
		recorder:    recorder,
		presence:    presence,
		maxAttempts: maxAttempts,
	}
}

// Enqueue queues the failed steps of a partial check-in
func (s *RepairService) Enqueue(outcome CheckInOutcome) {
	steps := outcome.FailedSteps()
	if len(steps) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[outcome.Event.ID] = &repairItem{
		teacherID: outcome.TeacherID,
		event:     outcome.Event,
		steps:     steps,
	}
	log.Printf("🔁 Queued repair of check-in %s for teacher %s: %v", outcome.Event.ID, outcome.TeacherID, steps)
	metrics.RepairsPending.Set(float64(len(s.items)))
}

// Forget drops the teacher's queued repairs; a newer complete check-in supersedes them
func (s *RepairService) Forget(teacherID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, item := range s.items {
		if item.teacherID == teacherID {
			delete(s.items, id)
		}
	}
	metrics.RepairsPending.Set(float64(len(s.items)))
}

// Pending returns the number of queued repairs
func (s *RepairService) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// RunOnce makes one pass over the queue and returns how many check-ins became complete
func (s *RepairService) RunOnce(ctx context.Context) int {
	s.mu.Lock()
	batch := make([]repairItem, 0, len(s.items))
	for _, item := range s.items {
		batch = append(batch, *item)
	}
	s.mu.Unlock()

	sort.Slice(batch, func(i, j int) bool { return batch[i].event.OccurredAt.Before(batch[j].event.OccurredAt) })

	repaired := 0
	for _, item := range batch {
		if ctx.Err() != nil {
			break
		}
		steps, lastActive := s.dropStalePresence(ctx, item)
		var remaining []models.WriteStep
		if len(steps) > 0 {
			outcome := s.recorder.Record(ctx, item.teacherID, item.event, steps...)
			remaining = outcome.FailedSteps()
			s.keepLastActive(ctx, item, steps, remaining, lastActive)
		}
		if s.settle(item, remaining) {
			repaired++
		}
	}
	return repaired
}

// dropStalePresence skips the location write when a newer check-in is already recorded.
// Sign-in also moves lastActiveTime, so only the scans array says where the teacher went.
// It also returns the lastActiveTime seen before the replay.
func (s *RepairService) dropStalePresence(ctx context.Context, item repairItem) ([]models.WriteStep, *time.Time) {
	var lastActive *time.Time
	steps := make([]models.WriteStep, 0, len(item.steps))
	for _, step := range item.steps {
		if step == models.StepPresence {
			current, err := s.presence.Get(ctx, item.teacherID)
			if err != nil && !errors.Is(err, models.ErrNotFound) {
				log.Printf("Warning: repair could not read presence of %s: %v", item.teacherID, err)
			}
			if err == nil {
				if newerScan(current.Scans, item.event) {
					continue
				}
				lastActive = current.LastActiveTime
			}
		}
		steps = append(steps, step)
	}
	return steps, lastActive
}

// keepLastActive puts back a lastActiveTime the replayed location write moved into the past
func (s *RepairService) keepLastActive(ctx context.Context, item repairItem, steps, failed []models.WriteStep, lastActive *time.Time) {
	if lastActive == nil || !lastActive.After(item.event.OccurredAt) {
		return
	}
	if !slices.Contains(steps, models.StepPresence) || slices.Contains(failed, models.StepPresence) {
		return
	}
	if err := s.presence.Touch(ctx, item.teacherID, *lastActive); err != nil {
		log.Printf("Warning: repair could not restore lastActiveTime of %s: %v", item.teacherID, err)
	}
}

func newerScan(scans []models.ScanRecord, event models.ScanEvent) bool {
	for _, scan := range scans {
		if scan.ID != event.ID && scan.Timestamp.After(event.OccurredAt) {
			return true
		}
	}
	return false
}

// settle records the result of one replay and reports whether the item is complete
func (s *RepairService) settle(item repairItem, remaining []models.WriteStep) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { metrics.RepairsPending.Set(float64(len(s.items))) }()

	queued, ok := s.items[item.event.ID]
	if !ok {
		// forgotten while the replay ran
		return false
	}
	if len(remaining) == 0 {
		delete(s.items, item.event.ID)
		log.Printf("✅ Repaired check-in %s for teacher %s", item.event.ID, item.teacherID)
		return true
	}

	queued.steps = remaining
	queued.attempts++
	if queued.attempts >= s.maxAttempts {
		delete(s.items, item.event.ID)
		log.Printf("❌ Giving up on check-in %s for teacher %s after %d attempts: %v",
			item.event.ID, item.teacherID, queued.attempts, remaining)
	}
	return false
}
