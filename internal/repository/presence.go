package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"campus-locator/internal/models"
)

// DocumentPresenceRepository implements PresenceRepository over a DocumentStore
type DocumentPresenceRepository struct {
	store DocumentStore
}

// NewPresenceRepository creates the presence repository
func NewPresenceRepository(store DocumentStore) *DocumentPresenceRepository {
	return &DocumentPresenceRepository{store: store}
}

func presenceFromDocument(doc Document) models.TeacherPresence {
	return models.TeacherPresence{
		TeacherID:       doc.ID,
		CurrentLocation: doc.Fields.String("current_location"),
		LastActiveTime:  doc.Fields.Time("last_active_time"),
		Scans:           scansFromField(doc.Fields["scans"]),
	}
}

func scansFromField(v any) []models.ScanRecord {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	scans := make([]models.ScanRecord, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		fields := Fields(m)
		scan := models.ScanRecord{ID: fields.String("id"), Room: fields.String("room")}
		if ts := fields.Time("timestamp"); ts != nil {
			scan.Timestamp = *ts
		}
		scans = append(scans, scan)
	}
	return scans
}

func scansToField(scans []models.ScanRecord) []any {
	out := make([]any, 0, len(scans))
	for _, scan := range scans {
		out = append(out, map[string]any{
			"id":        scan.ID,
			"room":      scan.Room,
			"timestamp": formatTime(scan.Timestamp),
		})
	}
	return out
}

func (r *DocumentPresenceRepository) Get(ctx context.Context, teacherID string) (*models.TeacherPresence, error) {
	doc, err := r.store.Get(ctx, CollectionPresence, teacherID)
	if err != nil {
		return nil, err
	}
	presence := presenceFromDocument(*doc)
	return &presence, nil
}

func (r *DocumentPresenceRepository) List(ctx context.Context) ([]models.TeacherPresence, error) {
	docs, err := r.store.Query(ctx, CollectionPresence, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list presence: %w", err)
	}
	return presencesFromDocuments(docs), nil
}

func (r *DocumentPresenceRepository) Touch(ctx context.Context, teacherID string, at time.Time) error {
	return r.store.Set(ctx, CollectionPresence, teacherID, Fields{
		"last_active_time": formatTime(at),
	}, true)
}

func (r *DocumentPresenceRepository) SetLocation(ctx context.Context, teacherID, room string, at time.Time) error {
	return r.store.Set(ctx, CollectionPresence, teacherID, Fields{
		"last_active_time": formatTime(at),
		"current_location": room,
	}, true)
}

// PushScan keeps the array newest first and skips a scan already present, so replays
// of the same check-in are harmless
func (r *DocumentPresenceRepository) PushScan(ctx context.Context, teacherID string, scan models.ScanRecord, limit int) error {
	var scans []models.ScanRecord
	current, err := r.Get(ctx, teacherID)
	switch {
	case err == nil:
		scans = current.Scans
	case !errors.Is(err, models.ErrNotFound):
		return err
	}

	for _, existing := range scans {
		if existing.ID != "" && existing.ID == scan.ID {
			return nil
		}
	}
	scans = append([]models.ScanRecord{scan}, scans...)
	sort.SliceStable(scans, func(i, j int) bool { return scans[i].Timestamp.After(scans[j].Timestamp) })
	if limit > 0 && len(scans) > limit {
		scans = scans[:limit]
	}

	if current == nil {
		return r.store.Set(ctx, CollectionPresence, teacherID, Fields{"scans": scansToField(scans)}, true)
	}
	return r.store.Update(ctx, CollectionPresence, teacherID, Fields{"scans": scansToField(scans)})
}

func (r *DocumentPresenceRepository) Delete(ctx context.Context, teacherID string) error {
	return r.store.Delete(ctx, CollectionPresence, teacherID)
}

func (r *DocumentPresenceRepository) Watch(ctx context.Context, onChange func([]models.TeacherPresence)) (func(), error) {
	return r.store.Subscribe(ctx, CollectionPresence, nil, func(docs []Document) {
		onChange(presencesFromDocuments(docs))
	})
}

func presencesFromDocuments(docs []Document) []models.TeacherPresence {
	out := make([]models.TeacherPresence, 0, len(docs))
	for _, doc := range docs {
		out = append(out, presenceFromDocument(doc))
	}
	return out
}
