// Package contextkeys defines the typed keys under which the auth middleware
// stores the caller's identity in the request context.
package contextkeys

type key int

const (
	// UserID is the authenticated account id.
	UserID key = iota
	// UserEmail is the authenticated account email.
	UserEmail
	// UserRole gates the admin surface.
	UserRole
)
