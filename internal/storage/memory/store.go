package memory

import (
	"context"
	"sync"

	"github.com/hongminglow/carepoint/internal/models"
	"github.com/hongminglow/carepoint/internal/storage"
)

var _ storage.CredentialStore = (*Store)(nil)

// Store keeps the credential record in process memory. It does not survive a restart.
type Store struct {
	mu     sync.Mutex
	record *storage.Record
}

func New() *Store {
	return &Store{}
}

func (s *Store) Save(_ context.Context, identity models.Identity) error {
	if !identity.Valid() {
		return storage.ErrInvalidIdentity
	}
	rec := storage.NewRecord(identity)
	s.mu.Lock()
	s.record = &rec
	s.mu.Unlock()
	return nil
}

func (s *Store) Load(_ context.Context) (models.Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.record == nil {
		return models.Identity{}, false
	}
	return s.record.Identity()
}

func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	s.record = nil
	s.mu.Unlock()
	return nil
}
