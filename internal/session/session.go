// Package session holds the single authenticated identity of a client process.
//
// A Session is created once at startup from the persisted credential record and
// is then mutated only by Login, Logout and Invalidate. The in-memory identity
// and the credential record are updated together by each of those operations.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/hongminglow/carepoint/internal/auth"
	"github.com/hongminglow/carepoint/internal/gateway"
	"github.com/hongminglow/carepoint/internal/guard"
	"github.com/hongminglow/carepoint/internal/models"
	"github.com/hongminglow/carepoint/internal/storage"
)

const (
	// FallbackReason is shown when the backend gives no usable message.
	FallbackReason     = "Login failed. Please try again."
	missingCredentials = "Username and password are required"
)

// LoginError is returned by Login. Reason is safe to show to the user.
type LoginError struct {
	Reason string
	Err    error
}

func (e *LoginError) Error() string {
	return e.Reason
}

func (e *LoginError) Unwrap() error {
	return e.Err
}

// Listener observes identity changes. present is false after logout.
type Listener func(identity models.Identity, present bool)

// Session is the process-wide source of truth for who is logged in.
type Session struct {
	store     storage.CredentialStore
	client    *gateway.Client
	inspector *auth.Inspector
	logger    zerolog.Logger
	validate  bool

	// opMu serializes the store write and identity update of Login, Logout
	// and Invalidate so the two never diverge.
	opMu sync.Mutex

	mu       sync.RWMutex
	identity models.Identity
	present  bool

	subMu   sync.Mutex
	subs    map[int]Listener
	nextSub int
}

// Option configures a Session.
type Option func(*Session)

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// WithRestoreValidation checks a restored token before trusting it: tokens whose
// exp claim has passed are dropped, others are confirmed with a profile call.
func WithRestoreValidation(enabled bool) Option {
	return func(s *Session) { s.validate = enabled }
}

// WithInspector replaces the token inspector.
func WithInspector(in *auth.Inspector) Option {
	return func(s *Session) { s.inspector = in }
}

// New restores the session from store and binds it to client: the client takes
// its bearer token from the session, and a rejected token logs the session out.
func New(ctx context.Context, store storage.CredentialStore, client *gateway.Client, opts ...Option) *Session {
	s := &Session{
		store:     store,
		client:    client,
		inspector: auth.NewInspector(0),
		logger:    zerolog.Nop(),
		subs:      map[int]Listener{},
	}
	for _, opt := range opts {
		opt(s)
	}

	client.SetTokenSource(s)
	client.OnUnauthenticated(s.Invalidate)
	s.restore(ctx)
	return s
}

func (s *Session) restore(ctx context.Context) {
	id, ok := s.store.Load(ctx)
	if !ok {
		return
	}
	if s.validate && s.inspector.Expired(id.Token) {
		s.logger.Info().Str("role", id.Role.String()).Msg("stored session expired; discarding")
		s.clear(ctx)
		return
	}

	s.set(id, true)
	s.logger.Debug().Str("role", id.Role.String()).Msg("session restored")
	if !s.validate {
		return
	}

	// A 401 here reaches Invalidate through the client hook.
	if _, err := s.client.Profile(ctx); err != nil && !gateway.IsKind(err, gateway.Unauthenticated) {
		s.logger.Warn().Err(err).Msg("could not validate restored session; keeping it")
	}
}

// Login authenticates against the backend. On success the identity is persisted
// and published, and the role's landing path is returned. On failure nothing is
// changed and the error is a *LoginError.
func (s *Session) Login(ctx context.Context, username, password string) (string, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return "", &LoginError{Reason: missingCredentials}
	}

	resp, err := s.client.Login(ctx, strings.TrimSpace(username), password)
	if err != nil {
		s.logger.Info().Err(err).Str("username", username).Msg("login failed")
		return "", &LoginError{Reason: reasonFor(err), Err: err}
	}

	role, ok := models.ParseRole(resp.Role)
	if !ok {
		err := &gateway.Error{Kind: gateway.MalformedResponse, Detail: fmt.Sprintf("unknown role %q", resp.Role)}
		s.logger.Warn().Err(err).Msg("login response rejected")
		return "", &LoginError{Reason: FallbackReason, Err: err}
	}

	id := models.Identity{Token: resp.Access, Role: role}
	s.opMu.Lock()
	defer s.opMu.Unlock()
	if err := s.store.Save(ctx, id); err != nil {
		s.logger.Error().Err(err).Msg("persist credentials failed")
		return "", &LoginError{Reason: FallbackReason, Err: fmt.Errorf("persist credentials: %w", err)}
	}
	s.set(id, true)

	s.logger.Info().Str("username", username).Str("role", role.String()).Msg("logged in")
	return guard.LandingFor(role), nil
}

// Logout clears the credential record and the identity and returns the login
// path. It never fails; calling it without a session is a no-op.
func (s *Session) Logout(ctx context.Context) string {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	_, was := s.Identity()
	s.clear(ctx)
	if was {
		s.logger.Info().Msg("logged out")
	}
	return guard.LoginPath
}

// Invalidate logs out when token is still the active one. It runs when the
// backend rejects a token, so a newer login is not undone by a stale call.
func (s *Session) Invalidate(ctx context.Context, token string) {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	s.mu.RLock()
	current := s.present && s.identity.Token == token
	s.mu.RUnlock()
	if !current {
		return
	}
	s.logger.Warn().Msg("backend rejected session token; logging out")
	s.clear(ctx)
}

func (s *Session) clear(ctx context.Context) {
	if err := s.store.Clear(ctx); err != nil {
		s.logger.Error().Err(err).Msg("clear credentials failed")
	}
	s.set(models.Identity{}, false)
}

// Identity returns the current identity and whether one is present.
func (s *Session) Identity() (models.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity, s.present
}

// IsAuthenticated reports whether an identity is present.
func (s *Session) IsAuthenticated() bool {
	_, ok := s.Identity()
	return ok
}

// Token implements gateway.TokenSource.
func (s *Session) Token() string {
	id, ok := s.Identity()
	if !ok {
		return ""
	}
	return id.Token
}

// Claims decodes the current access token, when there is one and it is a JWT.
func (s *Session) Claims() (auth.Claims, bool) {
	id, ok := s.Identity()
	if !ok {
		return auth.Claims{}, false
	}
	c, err := s.inspector.Inspect(id.Token)
	if err != nil {
		if !errors.Is(err, auth.ErrNotJWT) {
			s.logger.Debug().Err(err).Msg("inspect token")
		}
		return auth.Claims{}, false
	}
	return c, true
}

// Subscribe registers fn for identity changes and returns a function that
// removes it. Listeners must not call Login, Logout or Invalidate.
func (s *Session) Subscribe(fn Listener) (cancel func()) {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()
	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Session) set(id models.Identity, present bool) {
	s.mu.Lock()
	s.identity, s.present = id, present
	s.mu.Unlock()

	s.subMu.Lock()
	listeners := make([]Listener, 0, len(s.subs))
	for _, fn := range s.subs {
		listeners = append(listeners, fn)
	}
	s.subMu.Unlock()
	for _, fn := range listeners {
		fn(id, present)
	}
}

func reasonFor(err error) string {
	var gwErr *gateway.Error
	if errors.As(err, &gwErr) {
		if gwErr.Kind == gateway.NetworkError {
			return FallbackReason
		}
		if msg := gwErr.Message(); msg != "" {
			return msg
		}
	}
	return FallbackReason
}
