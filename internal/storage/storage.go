package storage

import (
	"context"
	"errors"

	"github.com/hongminglow/carepoint/internal/models"
)

// ErrNotFound indicates no credential record exists.
var ErrNotFound = errors.New("record not found")

// ErrInvalidIdentity is returned when saving an identity without a token or a known role.
var ErrInvalidIdentity = errors.New("identity requires a token and a known role")

// CredentialStore persists the current session's identity across restarts.
//
// Load never fails: a missing, unreadable or malformed record reports ok=false.
// Clear is idempotent.
type CredentialStore interface {
	Save(ctx context.Context, identity models.Identity) error
	Load(ctx context.Context) (models.Identity, bool)
	Clear(ctx context.Context) error
}

// Record is the persisted form of an identity, keyed the same way the browser client stored it.
type Record struct {
	Token    string `json:"token"`
	UserRole string `json:"userRole"`
}

// NewRecord converts an identity into its persisted form.
func NewRecord(identity models.Identity) Record {
	return Record{Token: identity.Token, UserRole: identity.Role.String()}
}

// Identity converts the record back, reporting false when either entry is missing or unknown.
func (r Record) Identity() (models.Identity, bool) {
	role, ok := models.ParseRole(r.UserRole)
	if !ok {
		return models.Identity{}, false
	}
	id := models.Identity{Token: r.Token, Role: role}
	if !id.Valid() {
		return models.Identity{}, false
	}
	return id, true
}
