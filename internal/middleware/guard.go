package middleware

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/hongminglow/carepoint/internal/guard"
	"github.com/hongminglow/carepoint/internal/http/respond"
	"github.com/hongminglow/carepoint/internal/models"
)

// IdentitySource reports the identity of the current session.
type IdentitySource interface {
	Identity() (models.Identity, bool)
}

// Guard runs the route guard on every request. Browser navigations are
// redirected; API callers get a JSON envelope naming the redirect target.
func Guard(routes guard.Routes, identities IdentitySource, logger zerolog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, present := identities.Identity()
		decision := routes.Check(r.URL.Path, identity, present)
		if decision.Allowed {
			next.ServeHTTP(w, r)
			return
		}

		logger.Debug().
			Str("request_id", RequestID(r.Context())).
			Str("path", r.URL.Path).
			Bool("authenticated", present).
			Str("role", identity.Role.String()).
			Str("redirect", decision.Redirect).
			Msg("navigation denied")

		if wantsHTML(r) {
			http.Redirect(w, r, decision.Redirect, http.StatusSeeOther)
			return
		}
		if decision.Redirect == guard.LoginPath {
			respond.Denied(w, http.StatusUnauthorized, "login required", decision.Redirect)
			return
		}
		respond.Denied(w, http.StatusForbidden, "this area is not available for your role", decision.Redirect)
	})
}

func wantsHTML(r *http.Request) bool {
	return r.Method == http.MethodGet && strings.Contains(r.Header.Get("Accept"), "text/html")
}
