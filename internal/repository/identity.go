package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"campus-locator/internal/models"
)

// StoreIdentity implements IdentityProvider on any DocumentStore, keeping bcrypt
// hashes in the credentials collection. Used with the redis, postgres and memory drivers.
type StoreIdentity struct {
	store DocumentStore
}

// NewStoreIdentity creates an identity provider over store
func NewStoreIdentity(store DocumentStore) *StoreIdentity {
	return &StoreIdentity{store: store}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (p *StoreIdentity) findByEmail(ctx context.Context, email string) (*Document, error) {
	docs, err := p.store.Query(ctx, CollectionCredentials, Filter{"email": normalizeEmail(email)})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, models.ErrNotFound
	}
	return &docs[0], nil
}

func (p *StoreIdentity) SignIn(ctx context.Context, email, password string) (models.Identity, error) {
	doc, err := p.findByEmail(ctx, email)
	if errors.Is(err, models.ErrNotFound) {
		return models.Identity{}, models.ErrInvalidCredentials
	}
	if err != nil {
		return models.Identity{}, fmt.Errorf("failed to look up credentials: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(doc.Fields.String("password_hash")), []byte(password)); err != nil {
		return models.Identity{}, models.ErrInvalidCredentials
	}
	return models.Identity{UID: doc.ID, Email: doc.Fields.String("email")}, nil
}

func (p *StoreIdentity) SignUp(ctx context.Context, email, password string) (models.Identity, error) {
	_, err := p.findByEmail(ctx, email)
	if err == nil {
		return models.Identity{}, models.ErrAccountExists
	}
	if !errors.Is(err, models.ErrNotFound) {
		return models.Identity{}, fmt.Errorf("failed to look up credentials: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.Identity{}, fmt.Errorf("failed to hash password: %w", err)
	}
	uid := NewDocumentID()
	fields := Fields{
		"email":         normalizeEmail(email),
		"password_hash": string(hash),
		"created_at":    formatTime(time.Now()),
	}
	if err := p.store.Set(ctx, CollectionCredentials, uid, fields, false); err != nil {
		return models.Identity{}, fmt.Errorf("failed to store credentials: %w", err)
	}
	return models.Identity{UID: uid, Email: normalizeEmail(email)}, nil
}

func (p *StoreIdentity) SignOut(ctx context.Context, uid string) error {
	return nil
}

func (p *StoreIdentity) Lookup(ctx context.Context, uid string) (models.Identity, error) {
	doc, err := p.store.Get(ctx, CollectionCredentials, uid)
	if err != nil {
		return models.Identity{}, err
	}
	return models.Identity{UID: doc.ID, Email: doc.Fields.String("email")}, nil
}
