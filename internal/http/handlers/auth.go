package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"github.com/rs/zerolog"

	"github.com/hongminglow/carepoint/internal/auth"
	"github.com/hongminglow/carepoint/internal/gateway"
	"github.com/hongminglow/carepoint/internal/guard"
	"github.com/hongminglow/carepoint/internal/http/respond"
	"github.com/hongminglow/carepoint/internal/models"
	"github.com/hongminglow/carepoint/internal/models/dto"
	"github.com/hongminglow/carepoint/internal/session"
)

// AuthHandler owns login, logout, registration and session introspection.
type AuthHandler struct {
	sess   *session.Session
	gw     *gateway.Client
	logger zerolog.Logger
}

// NewAuthHandler constructs the handler.
func NewAuthHandler(sess *session.Session, gw *gateway.Client, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{sess: sess, gw: gw, logger: logger}
}

// Register attaches auth routes to the mux.
func (h *AuthHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /login", h.handleLogin)
	mux.HandleFunc("POST /logout", h.handleLogout)
	mux.HandleFunc("POST /register", h.handleRegister)
	mux.HandleFunc("GET /session", h.handleSession)
}

// SessionView describes the portal session to the browser.
type SessionView struct {
	Authenticated bool         `json:"authenticated"`
	Role          models.Role  `json:"role,omitempty"`
	Landing       string       `json:"landing"`
	Claims        *auth.Claims `json:"claims,omitempty"`
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	landing, err := h.sess.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		var loginErr *session.LoginError
		if errors.As(err, &loginErr) {
			respond.Error(w, http.StatusUnauthorized, loginErr.Reason)
			return
		}
		respond.Error(w, http.StatusUnauthorized, session.FallbackReason)
		return
	}

	id, _ := h.sess.Identity()
	respond.JSON(w, http.StatusOK, "login successful", map[string]string{
		"role":    id.Role.String(),
		"landing": landing,
	})
}

func (h *AuthHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	landing := h.sess.Logout(r.Context())
	respond.JSON(w, http.StatusOK, "logged out", map[string]string{"landing": landing})
}

func (h *AuthHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	req.Role = strings.ToLower(strings.TrimSpace(req.Role))
	if err := validateRegistration(req); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.gw.Register(r.Context(), req)
	if err != nil {
		h.logger.Info().Err(err).Str("username", req.Username).Msg("register failed")
		respond.GatewayError(w, err)
		return
	}
	respond.JSON(w, http.StatusCreated, "User created successfully", created)
}

func (h *AuthHandler) handleSession(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sess.Identity()
	view := SessionView{Authenticated: ok, Landing: guard.LoginPath}
	if ok {
		view.Role = id.Role
		view.Landing = guard.LandingFor(id.Role)
		if claims, ok := h.sess.Claims(); ok {
			view.Claims = &claims
		}
	}
	respond.JSON(w, http.StatusOK, "ok", view)
}

func validateRegistration(req dto.RegisterRequest) error {
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return errors.New("username, email, and password are required")
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return errors.New("email is not valid")
	}
	if _, ok := models.ParseRole(req.Role); !ok {
		return errors.New("role must be one of patient, doctor, admin")
	}
	return nil
}
