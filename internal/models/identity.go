package models

import "strings"

// Identity is the authenticated user held by a session: the backend's bearer token and role.
type Identity struct {
	Token string `json:"token"`
	Role  Role   `json:"userRole"`
}

// Valid reports whether the identity carries a token and a known role.
func (i Identity) Valid() bool {
	return strings.TrimSpace(i.Token) != "" && i.Role.Valid()
}
