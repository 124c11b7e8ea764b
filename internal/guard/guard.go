// Package guard decides whether a navigation target is reachable for the
// current identity.
package guard

import (
	"slices"
	"strings"

	"github.com/hongminglow/carepoint/internal/models"
)

// Well-known navigation targets.
const (
	LoginPath = "/login"
	HomePath  = "/"
)

// Decision is the outcome of one navigation attempt.
type Decision struct {
	Allowed bool
	// Redirect is set when Allowed is false.
	Redirect string
}

// Evaluate applies the guard rule: no identity goes to login, an identity whose
// role is outside a non-empty required set goes home, anything else is allowed.
func Evaluate(identity models.Identity, present bool, required []models.Role) Decision {
	if !present {
		return Decision{Redirect: LoginPath}
	}
	if len(required) == 0 || slices.Contains(required, identity.Role) {
		return Decision{Allowed: true}
	}
	return Decision{Redirect: HomePath}
}

// LandingFor returns the portal a role lands on after login.
func LandingFor(role models.Role) string {
	switch role {
	case models.Patient:
		return "/patient-portal"
	case models.Doctor:
		return "/doctor-portal"
	case models.Admin:
		return "/admin-portal"
	}
	return HomePath
}

// Route guards every path under Prefix.
type Route struct {
	Prefix string
	// Roles is the allow-list; empty means any authenticated role.
	Roles []models.Role
}

// Routes is a navigation table. Paths not covered by any route are public.
type Routes []Route

// DefaultRoutes guards the three role portals.
func DefaultRoutes() Routes {
	return Routes{
		{Prefix: LandingFor(models.Patient), Roles: []models.Role{models.Patient}},
		{Prefix: LandingFor(models.Doctor), Roles: []models.Role{models.Doctor}},
		{Prefix: LandingFor(models.Admin), Roles: []models.Role{models.Admin}},
	}
}

// Match returns the route with the longest prefix covering path.
func (rs Routes) Match(path string) (Route, bool) {
	var best Route
	found := false
	for _, r := range rs {
		if !covers(r.Prefix, path) {
			continue
		}
		if !found || len(r.Prefix) > len(best.Prefix) {
			best, found = r, true
		}
	}
	return best, found
}

// Check evaluates path against the table.
func (rs Routes) Check(path string, identity models.Identity, present bool) Decision {
	r, ok := rs.Match(path)
	if !ok {
		return Decision{Allowed: true}
	}
	return Evaluate(identity, present, r.Roles)
}

func covers(prefix, path string) bool {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		return true
	}
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
