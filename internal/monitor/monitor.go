package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/keyxmakerx/gatekeeper/internal/config"
	"github.com/keyxmakerx/gatekeeper/internal/mfa"
	"github.com/keyxmakerx/gatekeeper/internal/notify"
	"github.com/keyxmakerx/gatekeeper/internal/user"
)

// EventSink receives security events for durable storage. Append-only,
// best-effort: a sink failure must never fail the authentication request
// that produced the event.
type EventSink interface {
	Record(ctx context.Context, event Event) error
}

// Service applies the escalation rules. It holds no persistent state of its
// own -- failure counts live in the MFA manager's store-backed counters.
type Service struct {
	mfa                 *mfa.Manager
	users               user.Repository
	sink                EventSink
	mailer              notify.Mailer
	maxLoginFailures    int
	suspiciousThreshold int
}

// NewService creates the signal sink service.
func NewService(
	mfaMgr *mfa.Manager,
	users user.Repository,
	sink EventSink,
	mailer notify.Mailer,
	cfg config.SecurityConfig,
) *Service {
	return &Service{
		mfa:                 mfaMgr,
		users:               users,
		sink:                sink,
		mailer:              mailer,
		maxLoginFailures:    cfg.MaxLoginFailures,
		suspiciousThreshold: cfg.SuspiciousThreshold,
	}
}

// RecordLoginFailure counts a failed password check and escalates: the
// failure that reaches maxLoginFailures blocks the account; counts at or
// above the suspicious threshold (but under the block threshold) emit a
// MEDIUM suspicious-activity event.
func (s *Service) RecordLoginFailure(ctx context.Context, userID, ipAddress, reason string) {
	s.record(ctx, Event{
		UserID:     userID,
		Kind:       KindLoginFailure,
		Severity:   SeverityLow,
		IPAddress:  ipAddress,
		Detail:     reason,
		OccurredAt: time.Now().UTC(),
	})

	failures, err := s.mfa.IncrementAttempts(ctx, userID)
	if err != nil {
		slog.Error("failed to count login failure", slog.String("user_id", userID), slog.Any("error", err))
		return
	}

	slog.Warn("login failure",
		slog.Int("count", failures),
		slog.String("user_id", userID),
		slog.String("ip", ipAddress),
	)

	switch {
	case failures >= s.maxLoginFailures:
		s.BlockAccount(ctx, userID, ipAddress, "too many failed login attempts")
	case failures >= s.suspiciousThreshold:
		s.ReportSuspiciousActivity(ctx, userID, ipAddress,
			fmt.Sprintf("multiple login failures: %d", failures), SeverityMedium)
	}
}

// RecordMFAFailure counts a wrong one-time code. The MFA manager has
// already advanced the counter and decided on blocking; this only emits
// the event and escalates at the suspicious threshold. MFA failures are
// graded HIGH because repeated wrong codes suggest code interception.
func (s *Service) RecordMFAFailure(ctx context.Context, userID, ipAddress string, attemptNumber int) {
	s.record(ctx, Event{
		UserID:        userID,
		Kind:          KindMFAFailure,
		Severity:      SeverityLow,
		IPAddress:     ipAddress,
		OccurredAt:    time.Now().UTC(),
		AttemptNumber: attemptNumber,
	})

	slog.Warn("mfa failure",
		slog.Int("attempt", attemptNumber),
		slog.String("user_id", userID),
		slog.String("ip", ipAddress),
	)

	if attemptNumber >= s.suspiciousThreshold {
		s.ReportSuspiciousActivity(ctx, userID, ipAddress,
			"multiple mfa failures may indicate code interception", SeverityHigh)
	}
}

// BlockAccount sets the block flag (destroying any live challenge), emits
// an AccountBlocked event, and notifies the user.
func (s *Service) BlockAccount(ctx context.Context, userID, ipAddress, reason string) {
	if err := s.mfa.Block(ctx, userID); err != nil {
		slog.Error("failed to block account", slog.String("user_id", userID), slog.Any("error", err))
		return
	}
	blockTTL, err := s.mfa.BlockTTL(ctx, userID)
	if err != nil {
		slog.Error("failed to read block ttl", slog.String("user_id", userID), slog.Any("error", err))
	}

	s.record(ctx, Event{
		UserID:            userID,
		Kind:              KindAccountBlocked,
		Severity:          SeverityHigh,
		IPAddress:         ipAddress,
		Detail:            reason,
		OccurredAt:        time.Now().UTC(),
		BlockedForSeconds: blockTTL,
	})

	slog.Error("account blocked",
		slog.String("user_id", userID),
		slog.String("ip", ipAddress),
		slog.String("reason", reason),
	)

	s.notifyUser(ctx, userID, "Account temporarily blocked",
		fmt.Sprintf("Your account has been blocked for %d minutes: %s.", blockTTL/60, reason))
}

// ReportSuspiciousActivity emits a SuspiciousActivity event at the given
// severity. HIGH and CRITICAL additionally notify the user.
func (s *Service) ReportSuspiciousActivity(ctx context.Context, userID, ipAddress, description string, severity Severity) {
	s.record(ctx, Event{
		UserID:     userID,
		Kind:       KindSuspiciousActivity,
		Severity:   severity,
		IPAddress:  ipAddress,
		Detail:     description,
		OccurredAt: time.Now().UTC(),
	})

	slog.Warn("suspicious activity",
		slog.String("severity", string(severity)),
		slog.String("user_id", userID),
		slog.String("ip", ipAddress),
		slog.String("description", description),
	)

	if severity == SeverityHigh || severity == SeverityCritical {
		s.notifyUser(ctx, userID, "Suspicious activity on your account", description)
	}
}

// InvalidateAllSessions reports a compromise-driven session wipe at
// CRITICAL severity. The actual token revocation is the session manager's
// job; this records the decision.
func (s *Service) InvalidateAllSessions(ctx context.Context, userID, reason string) {
	slog.Warn("invalidating all sessions",
		slog.String("user_id", userID),
		slog.String("reason", reason),
	)
	s.ReportSuspiciousActivity(ctx, userID, "system",
		"all sessions invalidated: "+reason, SeverityCritical)
}

// RecordSuccessfulLogin clears the consumed MFA challenge after a
// successful verification. Success emits no event.
func (s *Service) RecordSuccessfulLogin(ctx context.Context, userID, ipAddress string) {
	if err := s.mfa.DeleteChallenge(ctx, userID); err != nil {
		slog.Error("failed to clear consumed challenge", slog.String("user_id", userID), slog.Any("error", err))
	}
	slog.Info("successful login",
		slog.String("user_id", userID),
		slog.String("ip", ipAddress),
	)
}

// record forwards an event to the audit sink, best-effort.
func (s *Service) record(ctx context.Context, event Event) {
	if err := s.sink.Record(ctx, event); err != nil {
		slog.Error("failed to record security event",
			slog.String("kind", event.Kind),
			slog.String("user_id", event.UserID),
			slog.Any("error", err),
		)
	}
}

// notifyUser resolves the user's email and sends an alert, fire-and-forget.
func (s *Service) notifyUser(ctx context.Context, userID, subject, body string) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		slog.Warn("cannot notify unknown user", slog.String("user_id", userID), slog.Any("error", err))
		return
	}
	if err := s.mailer.Send(ctx, u.Email, subject, body); err != nil {
		slog.Error("failed to send security notification",
			slog.String("user_id", userID),
			slog.Any("error", err),
		)
	}
}
