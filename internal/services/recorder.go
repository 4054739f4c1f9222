package services

import (
	"context"
	"log"

	"campus-locator/internal/models"
	"campus-locator/internal/repository"
)

// DefaultPresenceScanLimit bounds the scans array kept on the presence document
const DefaultPresenceScanLimit = 5

var allWriteSteps = []models.WriteStep{models.StepPresence, models.StepHistory, models.StepScans}

// OutcomeKind classifies a check-in write attempt
type OutcomeKind string

const (
	OutcomeSuccess        OutcomeKind = "success"
	OutcomePartialFailure OutcomeKind = "partial_failure"
	OutcomeFailure        OutcomeKind = "failure"
)

// CheckInOutcome lists which of the independent writes of one check-in landed
type CheckInOutcome struct {
	TeacherID string
	Event     models.ScanEvent
	Completed []models.WriteStep
	Failed    map[models.WriteStep]error
}

// Kind reports success, partial failure or failure
func (o CheckInOutcome) Kind() OutcomeKind {
	switch {
	case len(o.Failed) == 0:
		return OutcomeSuccess
	case len(o.Completed) > 0:
		return OutcomePartialFailure
	default:
		return OutcomeFailure
	}
}

// Err returns a *models.WriteError unless every write landed
func (o CheckInOutcome) Err() error {
	if len(o.Failed) == 0 {
		return nil
	}
	return &models.WriteError{Completed: o.Completed, Failed: o.Failed}
}

// FailedSteps returns the steps that did not land, in write order
func (o CheckInOutcome) FailedSteps() []models.WriteStep {
	var steps []models.WriteStep
	for _, step := range allWriteSteps {
		if _, ok := o.Failed[step]; ok {
			steps = append(steps, step)
		}
	}
	return steps
}

// Recorder persists a confirmed check-in
type Recorder interface {
	Record(ctx context.Context, teacherID string, event models.ScanEvent, steps ...models.WriteStep) CheckInOutcome
}

// CheckInRecorder issues the presence, history and scans writes of a check-in.
// The writes are independent; every requested step is attempted even if an earlier
// one failed, so the outcome names exactly what is missing.
type CheckInRecorder struct {
	presence  repository.PresenceRepository
	history   repository.ScanHistoryRepository
	scanLimit int
}

// NewCheckInRecorder creates a recorder
func NewCheckInRecorder(presence repository.PresenceRepository, history repository.ScanHistoryRepository, scanLimit int) *CheckInRecorder {
	if scanLimit <= 0 {
		scanLimit = DefaultPresenceScanLimit
	}
	return &CheckInRecorder{presence: presence, history: history, scanLimit: scanLimit}
}

// Record runs the given steps, or all of them when none are given
func (r *CheckInRecorder) Record(ctx context.Context, teacherID string, event models.ScanEvent, steps ...models.WriteStep) CheckInOutcome {
	if len(steps) == 0 {
		steps = allWriteSteps
	}
	outcome := CheckInOutcome{TeacherID: teacherID, Event: event, Failed: map[models.WriteStep]error{}}
	record := event.Record()

	for _, step := range steps {
		var err error
		switch step {
		case models.StepPresence:
			err = r.presence.SetLocation(ctx, teacherID, event.ResolvedRoom, event.OccurredAt)
		case models.StepHistory:
			err = r.history.Append(ctx, teacherID, record)
		case models.StepScans:
			err = r.presence.PushScan(ctx, teacherID, record, r.scanLimit)
		default:
			continue
		}
		if err != nil {
			log.Printf("❌ Check-in %s write for teacher %s failed: %v", step, teacherID, err)
			outcome.Failed[step] = err
			continue
		}
		outcome.Completed = append(outcome.Completed, step)
	}

	if outcome.Kind() == OutcomeSuccess {
		log.Printf("💾 Teacher %s checked in to %s", teacherID, event.ResolvedRoom)
	}
	return outcome
}
