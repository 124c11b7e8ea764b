package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/hongminglow/carepoint/internal/models"
	"github.com/hongminglow/carepoint/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Ensure Store satisfies the storage.CredentialStore interface at compile time.
var _ storage.CredentialStore = (*Store)(nil)

// Store provides Postgres-backed persistence for one named credential profile.
type Store struct {
	pool    *pgxpool.Pool
	profile string
	logger  zerolog.Logger
}

// NewCredentialStore connects, runs migrations and returns a store bound to profile.
func NewCredentialStore(ctx context.Context, databaseURL, profile string, logger zerolog.Logger) (*Store, error) {
	if profile == "" {
		return nil, errors.New("credential profile is required")
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	s := &Store{pool: pool, profile: profile, logger: logger}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

// Close releases database resources.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// migrationLockID keys the advisory lock that serializes schema setup across
// processes sharing the database.
const migrationLockID = 0x63617265706f696e

func (s *Store) migrate(ctx context.Context) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	defer tx.Rollback(ctx)

	stmts := []string{
		`SELECT pg_advisory_xact_lock(` + strconv.FormatInt(migrationLockID, 10) + `);`,
		`CREATE TABLE IF NOT EXISTS portal_credentials (
			profile TEXT PRIMARY KEY,
			token TEXT NOT NULL,
			role TEXT NOT NULL CONSTRAINT portal_credentials_role_check CHECK (role IN ('patient', 'doctor', 'admin')),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Save upserts the profile's record.
func (s *Store) Save(ctx context.Context, identity models.Identity) error {
	if !identity.Valid() {
		return storage.ErrInvalidIdentity
	}
	const query = `
	INSERT INTO portal_credentials (profile, token, role, updated_at)
	VALUES ($1, $2, $3, NOW())
	ON CONFLICT (profile) DO UPDATE
	SET token = EXCLUDED.token, role = EXCLUDED.role, updated_at = NOW();
	`
	if _, err := s.pool.Exec(ctx, query, s.profile, identity.Token, identity.Role.String()); err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}
	return nil
}

// Load fetches the profile's record. Database errors are logged and reported as absent.
func (s *Store) Load(ctx context.Context) (models.Identity, bool) {
	const query = `SELECT token, role FROM portal_credentials WHERE profile = $1;`
	rec, err := scanRecord(s.pool.QueryRow(ctx, query, s.profile))
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn().Err(err).Str("profile", s.profile).Msg("load credentials failed")
		}
		return models.Identity{}, false
	}
	return rec.Identity()
}

// Clear deletes the profile's record.
func (s *Store) Clear(ctx context.Context) error {
	const query = `DELETE FROM portal_credentials WHERE profile = $1;`
	if _, err := s.pool.Exec(ctx, query, s.profile); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	return nil
}

func scanRecord(row pgx.Row) (storage.Record, error) {
	var rec storage.Record
	if err := row.Scan(&rec.Token, &rec.UserRole); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return storage.Record{}, storage.ErrNotFound
		}
		return storage.Record{}, err
	}
	return rec, nil
}
