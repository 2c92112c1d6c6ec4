package user

import (
	"regexp"
	"strings"

	"github.com/keyxmakerx/gatekeeper/internal/apperror"
)

// Username shape: 3-50 chars of letters, digits, dot, underscore, hyphen.
const (
	usernameMinLen = 3
	usernameMaxLen = 50
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// Loose shape check only; deliverability is the mail server's problem.
var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Password policy: 8-100 chars with at least one upper, lower, and digit.
const (
	passwordMinLen = 8
	passwordMaxLen = 100
)

// NormalizeUsername trims and lowercases a username for storage and lookup.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateUsername checks the username shape. Call before normalization or
// after; the rules are case-insensitive.
func ValidateUsername(username string) error {
	trimmed := strings.TrimSpace(username)
	if trimmed == "" {
		return apperror.NewValidation("username", "username is required")
	}
	if len(trimmed) < usernameMinLen || len(trimmed) > usernameMaxLen {
		return apperror.NewValidation("username", "username must be between 3 and 50 characters")
	}
	if !usernamePattern.MatchString(trimmed) {
		return apperror.NewValidation("username", "username may only contain letters, numbers, dots, underscores and hyphens")
	}
	return nil
}

// ValidateEmail checks the email shape.
func ValidateEmail(email string) error {
	trimmed := strings.TrimSpace(email)
	if trimmed == "" {
		return apperror.NewValidation("email", "email is required")
	}
	if !emailPattern.MatchString(trimmed) {
		return apperror.NewValidation("email", "invalid email format")
	}
	return nil
}

// ValidatePassword enforces the password policy on the raw (pre-hash) value.
func ValidatePassword(password string) error {
	if password == "" {
		return apperror.NewValidation("password", "password is required")
	}
	if len(password) < passwordMinLen {
		return apperror.NewValidation("password", "password must be at least 8 characters")
	}
	if len(password) > passwordMaxLen {
		return apperror.NewValidation("password", "password must be at most 100 characters")
	}
	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasDigit = true
		}
	}
	if !hasUpper {
		return apperror.NewValidation("password", "password must contain at least one uppercase letter")
	}
	if !hasLower {
		return apperror.NewValidation("password", "password must contain at least one lowercase letter")
	}
	if !hasDigit {
		return apperror.NewValidation("password", "password must contain at least one digit")
	}
	return nil
}
