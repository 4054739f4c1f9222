package auth

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

func jwtID() string {
	return uuid.NewString()
}

// Revocations remembers tokens ended by sign-out until they would have expired
type Revocations struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	now     func() time.Time
}

// NewRevocations creates an empty revocation list
func NewRevocations() *Revocations {
	return &Revocations{revoked: make(map[string]time.Time), now: time.Now}
}

// Revoke ends the token with the given id
func (r *Revocations) Revoke(claims *Claims) {
	if claims == nil || claims.ID == "" {
		return
	}
	expires := r.now().Add(24 * time.Hour)
	if claims.ExpiresAt != nil {
		expires = claims.ExpiresAt.Time
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.revoked[claims.ID] = expires
	r.pruneLocked()
}

// Revoked reports whether the token was signed out
func (r *Revocations) Revoked(claims *Claims) bool {
	if claims == nil {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.revoked[claims.ID]
	return ok
}

func (r *Revocations) pruneLocked() {
	now := r.now()
	for id, expires := range r.revoked {
		if expires.Before(now) {
			delete(r.revoked, id)
		}
	}
}
