package models

import "strings"

// Identity is whoever the process writes as. Identities are never used for
// access control; they only stamp remote writes.
type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name,omitempty"`
	Anonymous   bool   `json:"anonymous"`
}

// Name returns the best display name for the identity.
func (i *Identity) Name() string {
	if i.DisplayName != "" {
		return i.DisplayName
	}
	if i.Anonymous {
		return "anonymous"
	}
	return i.ID
}

// IsAnonymousID reports whether id was minted for an anonymous session.
func IsAnonymousID(id string) bool {
	return strings.HasPrefix(id, "anon-")
}
