// Package user owns the identity records Gatekeeper authenticates against:
// the domain model, input validation/normalization rules, and the MySQL
// repository. The core treats identities as read-mostly and references
// them only by ID once the credential check has resolved one.
package user

import "time"

// User represents a registered identity. PasswordHash never leaves the
// server; it is excluded from every JSON response.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
