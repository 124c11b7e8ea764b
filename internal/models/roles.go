package models

import "strings"

// Role is the portal a user belongs to.
type Role string

const (
	Patient Role = "patient"
	Doctor  Role = "doctor"
	Admin   Role = "admin"
)

// Roles lists every role the backend issues.
var Roles = []Role{Patient, Doctor, Admin}

// ParseRole normalizes a role string and reports whether it is known.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case Patient, Doctor, Admin:
		return r, true
	}
	return "", false
}

// Valid reports whether r is one of the known roles in canonical form.
func (r Role) Valid() bool {
	p, ok := ParseRole(string(r))
	return ok && p == r
}

func (r Role) String() string {
	return string(r)
}
