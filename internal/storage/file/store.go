package file

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/hongminglow/carepoint/internal/models"
	"github.com/hongminglow/carepoint/internal/storage"
)

// Ensure Store satisfies the storage.CredentialStore interface at compile time.
var _ storage.CredentialStore = (*Store)(nil)

const (
	sealedVersion = 1
	keyInfo       = "carepoint credential file v1"
)

// Store keeps the credential record in a JSON file readable only by the current user.
type Store struct {
	path   string
	key    []byte
	logger zerolog.Logger
	mu     sync.Mutex
}

// Option configures a Store.
type Option func(*Store) error

// WithSecret seals the file with a key derived from secret. An empty secret leaves the file in plain JSON.
func WithSecret(secret string) Option {
	return func(s *Store) error {
		if secret == "" {
			return nil
		}
		key := make([]byte, chacha20poly1305.KeySize)
		kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte(keyInfo))
		if _, err := io.ReadFull(kdf, key); err != nil {
			return fmt.Errorf("derive credential key: %w", err)
		}
		s.key = key
		return nil
	}
}

// WithLogger sets the logger used to report unreadable records.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) error {
		s.logger = logger
		return nil
	}
}

// New creates a Store writing to path.
func New(path string, opts ...Option) (*Store, error) {
	if path == "" {
		return nil, errors.New("credential file path is required")
	}
	s := &Store{path: path, logger: zerolog.Nop()}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// DefaultPath returns the per-user credential file location.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config directory: %w", err)
	}
	return filepath.Join(dir, "carepoint", "credentials.json"), nil
}

// Path returns the file the store writes to.
func (s *Store) Path() string {
	return s.path
}

// Sealed reports whether records are encrypted at rest.
func (s *Store) Sealed() bool {
	return s.key != nil
}

type sealedFile struct {
	Version int    `json:"v"`
	Sealed  string `json:"sealed"`
}

// Save writes the identity, replacing any previous record atomically.
func (s *Store) Save(_ context.Context, identity models.Identity) error {
	if !identity.Valid() {
		return storage.ErrInvalidIdentity
	}
	body, err := json.Marshal(storage.NewRecord(identity))
	if err != nil {
		return fmt.Errorf("encode credential record: %w", err)
	}
	if s.key != nil {
		if body, err = s.seal(body); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return writeAtomic(s.path, body)
}

// Load reads the record. Missing, unreadable or malformed files yield ok=false.
func (s *Store) Load(_ context.Context) (models.Identity, bool) {
	s.mu.Lock()
	body, err := os.ReadFile(s.path)
	s.mu.Unlock()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn().Err(err).Str("path", s.path).Msg("credential file unreadable")
		}
		return models.Identity{}, false
	}

	if s.key != nil {
		if body, err = s.open(body); err != nil {
			s.logger.Warn().Err(err).Str("path", s.path).Msg("credential file could not be opened")
			return models.Identity{}, false
		}
	}

	var rec storage.Record
	if err := json.Unmarshal(body, &rec); err != nil {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("credential file malformed")
		return models.Identity{}, false
	}
	return rec.Identity()
}

// Clear removes the record. Removing a missing file is not an error.
func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove credential file: %w", err)
	}
	return nil
}

func (s *Store) seal(plain []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plain)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	out := aead.Seal(nonce, nonce, plain, nil)
	return json.Marshal(sealedFile{Version: sealedVersion, Sealed: base64.StdEncoding.EncodeToString(out)})
}

func (s *Store) open(body []byte) ([]byte, error) {
	var sf sealedFile
	if err := json.Unmarshal(body, &sf); err != nil {
		return nil, fmt.Errorf("decode sealed file: %w", err)
	}
	if sf.Version != sealedVersion || sf.Sealed == "" {
		return nil, errors.New("credential file is not sealed")
	}
	raw, err := base64.StdEncoding.DecodeString(sf.Sealed)
	if err != nil {
		return nil, fmt.Errorf("decode sealed payload: %w", err)
	}
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	if len(raw) < aead.NonceSize() {
		return nil, errors.New("sealed payload too short")
	}
	nonce, ct := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, fmt.Errorf("open sealed payload: %w", err)
	}
	return plain, nil
}

func writeAtomic(path string, body []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create credential directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".credentials-*")
	if err != nil {
		return fmt.Errorf("create temp credential file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod credential file: %w", err)
	}
	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return fmt.Errorf("write credential file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close credential file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace credential file: %w", err)
	}
	return nil
}
