package repository

import (
	"context"
	"fmt"
	"sort"

	"campus-locator/internal/models"
)

// DocumentScanHistoryRepository implements ScanHistoryRepository. The per-user
// sub-collection is flattened into one collection with a user field.
type DocumentScanHistoryRepository struct {
	store DocumentStore
}

// NewScanHistoryRepository creates the scan history repository
func NewScanHistoryRepository(store DocumentStore) *DocumentScanHistoryRepository {
	return &DocumentScanHistoryRepository{store: store}
}

func (r *DocumentScanHistoryRepository) Append(ctx context.Context, userID string, scan models.ScanRecord) error {
	id := scan.ID
	if id == "" {
		id = NewDocumentID()
	}
	fields := Fields{
		"user":      userID,
		"room":      scan.Room,
		"timestamp": formatTime(scan.Timestamp),
	}
	if err := r.store.Set(ctx, CollectionScans, id, fields, false); err != nil {
		return fmt.Errorf("failed to append scan for %s: %w", userID, err)
	}
	return nil
}

func (r *DocumentScanHistoryRepository) Recent(ctx context.Context, userID string, limit int) ([]models.ScanRecord, error) {
	docs, err := r.store.Query(ctx, CollectionScans, Filter{"user": userID})
	if err != nil {
		return nil, fmt.Errorf("failed to load scans for %s: %w", userID, err)
	}

	scans := make([]models.ScanRecord, 0, len(docs))
	for _, doc := range docs {
		scan := models.ScanRecord{ID: doc.ID, Room: doc.Fields.String("room")}
		if ts := doc.Fields.Time("timestamp"); ts != nil {
			scan.Timestamp = *ts
		}
		scans = append(scans, scan)
	}
	sort.SliceStable(scans, func(i, j int) bool { return scans[i].Timestamp.After(scans[j].Timestamp) })
	if limit > 0 && len(scans) > limit {
		scans = scans[:limit]
	}
	return scans, nil
}
