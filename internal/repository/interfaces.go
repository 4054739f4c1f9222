// Package repository defines repository interfaces for data access
package repository

import (
	"context"
	"time"

	"campus-locator/internal/models"
)

// DocumentStore is the hosted document database the application is bound to.
// Writes are last-writer-wins; nothing is transactional.
type DocumentStore interface {
	// Get returns the document or models.ErrNotFound
	Get(ctx context.Context, collection, id string) (*Document, error)
	// Set creates the document, or replaces it (merge=false) or merges fields into it (merge=true)
	Set(ctx context.Context, collection, id string, fields Fields, merge bool) error
	// Update merges fields into an existing document, models.ErrNotFound otherwise
	Update(ctx context.Context, collection, id string, fields Fields) error
	// Delete removes the document; deleting a missing document is not an error
	Delete(ctx context.Context, collection, id string) error
	// Query returns every document matching all equality conditions of filter
	Query(ctx context.Context, collection string, filter Filter) ([]Document, error)
	// Subscribe delivers the matching snapshot now and again after every change
	// to the collection until the returned function is called or ctx ends
	Subscribe(ctx context.Context, collection string, filter Filter, onChange func([]Document)) (func(), error)
}

// IdentityProvider authenticates people by email and password
type IdentityProvider interface {
	// SignIn fails with models.ErrInvalidCredentials
	SignIn(ctx context.Context, email, password string) (models.Identity, error)
	// SignUp fails with models.ErrAccountExists
	SignUp(ctx context.Context, email, password string) (models.Identity, error)
	// SignOut ends the provider-side session if the provider keeps one
	SignOut(ctx context.Context, uid string) error
	// Lookup returns the identity for uid, models.ErrNotFound otherwise
	Lookup(ctx context.Context, uid string) (models.Identity, error)
}

// AccountRepository defines the interface for the role-partitioned account data
type AccountRepository interface {
	// Get retrieves an account from the partition of the given role
	Get(ctx context.Context, role models.Role, id string) (*models.Account, error)
	// Find looks the id up in the teacher, student and admin partitions in that order
	Find(ctx context.Context, id string) (*models.Account, error)
	// Create stores a new account in its role partition
	Create(ctx context.Context, account *models.Account) error
	// List returns accounts of a role, optionally only those with the given status
	List(ctx context.Context, role models.Role, status models.ApprovalStatus) ([]models.Account, error)
	// SetStatus records an administrator's decision
	SetStatus(ctx context.Context, role models.Role, id string, status models.ApprovalStatus) error
	// Delete removes the account document
	Delete(ctx context.Context, role models.Role, id string) error
	// Watch streams the accounts of a role with the given status
	Watch(ctx context.Context, role models.Role, status models.ApprovalStatus, onChange func([]models.Account)) (func(), error)
}

// PresenceRepository defines the interface for teacher presence documents
type PresenceRepository interface {
	// Get retrieves the presence of one teacher
	Get(ctx context.Context, teacherID string) (*models.TeacherPresence, error)
	// List returns all presence documents
	List(ctx context.Context) ([]models.TeacherPresence, error)
	// Touch merges lastActiveTime
	Touch(ctx context.Context, teacherID string, at time.Time) error
	// SetLocation merges lastActiveTime and currentLocation
	SetLocation(ctx context.Context, teacherID, room string, at time.Time) error
	// PushScan prepends a scan to the bounded scans array
	PushScan(ctx context.Context, teacherID string, scan models.ScanRecord, limit int) error
	// Delete removes the presence document
	Delete(ctx context.Context, teacherID string) error
	// Watch streams all presence documents
	Watch(ctx context.Context, onChange func([]models.TeacherPresence)) (func(), error)
}

// ScanHistoryRepository defines the interface for the per-user append-only scan history
type ScanHistoryRepository interface {
	// Append stores a scan keyed by its ID so replays do not duplicate it
	Append(ctx context.Context, userID string, scan models.ScanRecord) error
	// Recent returns the newest scans of a user, newest first
	Recent(ctx context.Context, userID string, limit int) ([]models.ScanRecord, error)
}
