// Package monitor is the security signal sink: it receives failure signals
// from the credential and MFA flows, applies the fixed escalation
// thresholds, forwards structured events to the audit sink, and triggers
// user notifications for high-severity findings.
package monitor

import "time"

// Event kinds. Each kind string follows the "resource.verb" pattern for
// consistent filtering in the audit store.
const (
	// KindLoginFailure is emitted on every failed password check against
	// an existing account.
	KindLoginFailure = "login.failure"

	// KindMFAFailure is emitted on every wrong one-time code.
	KindMFAFailure = "mfa.failure"

	// KindAccountBlocked is emitted when a failure threshold locks the
	// account out.
	KindAccountBlocked = "account.blocked"

	// KindSuspiciousActivity is emitted when failure counts cross the
	// suspicious threshold or sessions are force-invalidated.
	KindSuspiciousActivity = "suspicious.activity"
)

// Severity grades an event for escalation. HIGH and CRITICAL additionally
// trigger a user-facing notification.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Event is an immutable security event record. One struct covers all kinds;
// AttemptNumber and BlockedForSeconds are only meaningful for the kinds
// that set them.
type Event struct {
	UserID     string    `json:"user_id"`
	Kind       string    `json:"kind"`
	Severity   Severity  `json:"severity"`
	IPAddress  string    `json:"ip_address"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`

	// AttemptNumber is the failure count at emission time. LoginFailure
	// and MFAFailure only.
	AttemptNumber int `json:"attempt_number,omitempty"`

	// BlockedForSeconds is the lockout duration. AccountBlocked only.
	BlockedForSeconds int64 `json:"blocked_for_seconds,omitempty"`
}
