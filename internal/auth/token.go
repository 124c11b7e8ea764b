package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNotJWT is returned when a bearer token is not a decodable JWT.
var ErrNotJWT = errors.New("token is not a JWT")

// Claims are the fields the client reads from the backend's access token.
// The signature is not verified; the backend remains the authority.
type Claims struct {
	Subject   string    `json:"sub,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	TokenType string    `json:"token_type,omitempty"`
	IssuedAt  time.Time `json:"issued_at,omitzero"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

// Inspector decodes access tokens without holding the signing key.
type Inspector struct {
	parser *jwt.Parser
	now    func() time.Time
	leeway time.Duration
}

// NewInspector creates an inspector that treats tokens within leeway of expiry as expired.
func NewInspector(leeway time.Duration) *Inspector {
	return &Inspector{
		parser: jwt.NewParser(),
		now:    time.Now,
		leeway: leeway,
	}
}

// Inspect decodes the token's claims.
func (i *Inspector) Inspect(token string) (Claims, error) {
	mc := jwt.MapClaims{}
	if _, _, err := i.parser.ParseUnverified(strings.TrimSpace(token), mc); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrNotJWT, err)
	}

	var c Claims
	c.Subject, _ = mc.GetSubject()
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}
	if iat, err := mc.GetIssuedAt(); err == nil && iat != nil {
		c.IssuedAt = iat.Time
	}
	if tt, ok := mc["token_type"].(string); ok {
		c.TokenType = tt
	}
	switch v := mc["user_id"].(type) {
	case string:
		c.UserID = v
	case float64:
		c.UserID = fmt.Sprintf("%.0f", v)
	}
	return c, nil
}

// Expired reports whether the token carries an exp claim in the past.
// Opaque tokens and tokens without exp are never considered expired.
func (i *Inspector) Expired(token string) bool {
	c, err := i.Inspect(token)
	if err != nil || c.ExpiresAt.IsZero() {
		return false
	}
	return !i.now().Before(c.ExpiresAt.Add(-i.leeway))
}
