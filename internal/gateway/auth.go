package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/hongminglow/carepoint/internal/models/dto"
)

const (
	loginPath    = "/api/auth/login/"
	registerPath = "/api/auth/register/"
	profilePath  = "/api/auth/profile/"
)

// Login exchanges credentials for tokens. It never sends a bearer token.
// A 401, or a 400 carrying only a message, comes back as InvalidCredentials;
// field errors and other statuses keep their kind.
func (c *Client) Login(ctx context.Context, username, password string) (dto.LoginResponse, error) {
	raw, err := c.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   loginPath,
		Body:   dto.LoginRequest{Username: username, Password: password},
	})
	if err != nil {
		var gwErr *Error
		if errors.As(err, &gwErr) && rejectsCredentials(gwErr) {
			gwErr.Kind = InvalidCredentials
		}
		return dto.LoginResponse{}, err
	}

	var out dto.LoginResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return dto.LoginResponse{}, &Error{Kind: MalformedResponse, Status: http.StatusOK, Method: http.MethodPost, Path: loginPath, Err: fmt.Errorf("decode login response: %w", err)}
	}
	if strings.TrimSpace(out.Access) == "" {
		return dto.LoginResponse{}, &Error{Kind: MalformedResponse, Status: http.StatusOK, Method: http.MethodPost, Path: loginPath, Detail: "login response has no access token"}
	}
	return out, nil
}

func rejectsCredentials(e *Error) bool {
	switch e.Status {
	case http.StatusUnauthorized:
		return true
	case http.StatusBadRequest:
		return len(e.Fields) == 0
	}
	return false
}

// Register creates an account. The backend answers with the created user.
func (c *Client) Register(ctx context.Context, req dto.RegisterRequest) (json.RawMessage, error) {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: registerPath, Body: req})
}

// Profile returns the caller's profile.
func (c *Client) Profile(ctx context.Context) (json.RawMessage, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: profilePath, Auth: true})
}

// UpdateProfile updates the caller's profile.
func (c *Client) UpdateProfile(ctx context.Context, body any) (json.RawMessage, error) {
	return c.Do(ctx, Request{Method: http.MethodPut, Path: profilePath, Body: body, Auth: true})
}
