// Package app wires configuration into the client core shared by the portal
// server and the CLI.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/hongminglow/carepoint/internal/config"
	"github.com/hongminglow/carepoint/internal/gateway"
	"github.com/hongminglow/carepoint/internal/session"
	"github.com/hongminglow/carepoint/internal/storage"
	"github.com/hongminglow/carepoint/internal/storage/file"
	"github.com/hongminglow/carepoint/internal/storage/memory"
	"github.com/hongminglow/carepoint/internal/storage/postgres"
)

// Core is the assembled client core.
type Core struct {
	Config  config.Config
	Store   storage.CredentialStore
	Gateway *gateway.Client
	Session *session.Session

	closers []func()
}

// Close releases resources held by the credential store.
func (c *Core) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

// New opens the configured credential store, builds the gateway and restores
// the session.
func New(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*Core, error) {
	core := &Core{Config: cfg}

	store, closer, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	core.Store = store
	if closer != nil {
		core.closers = append(core.closers, closer)
	}

	gw, err := gateway.New(cfg.APIBaseURL,
		gateway.WithTimeout(cfg.RequestTimeout),
		gateway.WithLogger(logger.With().Str("component", "gateway").Logger()),
	)
	if err != nil {
		core.Close()
		return nil, fmt.Errorf("init gateway: %w", err)
	}
	core.Gateway = gw

	core.Session = session.New(ctx, store, gw,
		session.WithLogger(logger.With().Str("component", "session").Logger()),
		session.WithRestoreValidation(cfg.ValidateOnRestore),
	)
	return core, nil
}

// OpenStore returns the credential store selected by cfg and an optional closer.
func OpenStore(ctx context.Context, cfg config.Config, logger zerolog.Logger) (storage.CredentialStore, func(), error) {
	logger = logger.With().Str("component", "credentials").Str("backend", cfg.CredentialBackend).Logger()

	switch cfg.CredentialBackend {
	case config.BackendMemory:
		return memory.New(), nil, nil
	case config.BackendPostgres:
		store, err := postgres.NewCredentialStore(ctx, cfg.DatabaseURL, cfg.CredentialProfile, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("init credential database: %w", err)
		}
		return store, store.Close, nil
	case config.BackendFile, "":
		path := cfg.CredentialPath
		if path == "" {
			var err error
			if path, err = file.DefaultPath(); err != nil {
				return nil, nil, err
			}
		}
		store, err := file.New(path, file.WithSecret(cfg.CredentialKey), file.WithLogger(logger))
		if err != nil {
			return nil, nil, fmt.Errorf("init credential file: %w", err)
		}
		logger.Debug().Str("path", store.Path()).Bool("sealed", store.Sealed()).Msg("credential file store ready")
		return store, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown credential backend %q", cfg.CredentialBackend)
	}
}
