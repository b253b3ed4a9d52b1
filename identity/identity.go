// Package identity is the boundary to the external identity provider.
//
// The engine's only dependency on identity is the Principal shape and a
// pure admin predicate. Registration, credentials, and session lifecycle
// live entirely outside this repository.
package identity

// Principal describes the authenticated caller as supplied by the
// identity provider.
type Principal struct {
	ID          string
	Email       string
	DisplayName string
}

// IsAdmin reports whether the principal is the single privileged
// administrator. The comparison is against the configured admin email,
// nothing else.
func IsAdmin(p Principal, adminEmail string) bool {
	return adminEmail != "" && p.Email == adminEmail
}
