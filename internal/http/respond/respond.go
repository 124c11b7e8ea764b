package respond

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/hongminglow/carepoint/internal/gateway"
	"github.com/hongminglow/carepoint/internal/guard"
)

// Envelope is the standard API response wrapper used across handlers.
type Envelope struct {
	Code     int                 `json:"code"`
	Message  string              `json:"message"`
	Data     any                 `json:"data,omitempty"`
	Kind     string              `json:"kind,omitempty"`
	Fields   map[string][]string `json:"fields,omitempty"`
	Redirect string              `json:"redirect,omitempty"`
}

// JSON writes a success or informational response using the common envelope.
func JSON(w http.ResponseWriter, status int, message string, data any) {
	write(w, status, Envelope{Code: status, Message: message, Data: data})
}

// Error writes an error response with the shared envelope structure.
func Error(w http.ResponseWriter, status int, message string) {
	write(w, status, Envelope{Code: status, Message: message})
}

// Denied writes a guard rejection carrying the redirect target.
func Denied(w http.ResponseWriter, status int, message, redirect string) {
	write(w, status, Envelope{Code: status, Message: message, Redirect: redirect})
}

// GatewayError maps a backend failure onto the envelope, keeping the backend's
// message and field errors.
func GatewayError(w http.ResponseWriter, err error) {
	var gwErr *gateway.Error
	if !errors.As(err, &gwErr) {
		Error(w, http.StatusInternalServerError, "unexpected error")
		return
	}
	status := StatusFor(gwErr.Kind)
	msg := gwErr.Message()
	if msg == "" {
		msg = gwErr.Kind.String()
	}
	env := Envelope{Code: status, Message: msg, Kind: gwErr.Kind.String(), Fields: gwErr.Fields}
	if gwErr.Kind == gateway.Unauthenticated {
		env.Redirect = guard.LoginPath
	}
	write(w, status, env)
}

// StatusFor is the portal status used for each gateway error kind.
func StatusFor(kind gateway.Kind) int {
	switch kind {
	case gateway.InvalidCredentials, gateway.Unauthenticated:
		return http.StatusUnauthorized
	case gateway.Forbidden:
		return http.StatusForbidden
	case gateway.NotFound:
		return http.StatusNotFound
	case gateway.Validation:
		return http.StatusBadRequest
	case gateway.NetworkError:
		return http.StatusGatewayTimeout
	case gateway.ServerError, gateway.MalformedResponse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func write(w http.ResponseWriter, status int, payload Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("respond: encode payload failed")
	}
}
