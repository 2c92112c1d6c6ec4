package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/keyxmakerx/gatekeeper/internal/apperror"
	"github.com/keyxmakerx/gatekeeper/internal/mfa"
	"github.com/keyxmakerx/gatekeeper/internal/notify"
	"github.com/keyxmakerx/gatekeeper/internal/session"
	"github.com/keyxmakerx/gatekeeper/internal/token"
	"github.com/keyxmakerx/gatekeeper/internal/user"
)

// SecurityMonitor receives the failure signals the login flow produces.
// Satisfied by monitor.Service.
type SecurityMonitor interface {
	RecordLoginFailure(ctx context.Context, userID, ipAddress, reason string)
	RecordMFAFailure(ctx context.Context, userID, ipAddress string, attemptNumber int)
	BlockAccount(ctx context.Context, userID, ipAddress, reason string)
	RecordSuccessfulLogin(ctx context.Context, userID, ipAddress string)
}

// AuthService defines the business logic contract for the authentication
// flow. Handlers call these methods -- they never touch the stores directly.
type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*user.User, error)
	Login(ctx context.Context, username, password, ipAddress string) (MFAResponse, error)
	VerifyMFA(ctx context.Context, mfaToken, code, ipAddress string) (token.Pair, error)
	Refresh(ctx context.Context, refreshToken string) (token.Pair, error)
	Logout(ctx context.Context, accessToken, refreshToken string) error
	CurrentUser(ctx context.Context, userID string) (*user.User, error)
}

// authService implements AuthService over the identity store, the MFA
// challenge manager, the session manager, and the security monitor.
type authService struct {
	users    user.Repository
	mfa      *mfa.Manager
	sessions *session.Manager
	codec    *token.Codec
	monitor  SecurityMonitor
	mailer   notify.Mailer
}

// NewAuthService creates a new auth service with the given dependencies.
func NewAuthService(
	users user.Repository,
	mfaMgr *mfa.Manager,
	sessions *session.Manager,
	codec *token.Codec,
	mon SecurityMonitor,
	mailer notify.Mailer,
) AuthService {
	return &authService{
		users:    users,
		mfa:      mfaMgr,
		sessions: sessions,
		codec:    codec,
		monitor:  mon,
		mailer:   mailer,
	}
}

// Register creates a new identity. It validates the inputs, checks
// uniqueness before doing expensive hashing, and persists the user.
func (s *authService) Register(ctx context.Context, req RegisterRequest) (*user.User, error) {
	if err := user.ValidateUsername(req.Username); err != nil {
		return nil, err
	}
	if err := user.ValidateEmail(req.Email); err != nil {
		return nil, err
	}
	if err := user.ValidatePassword(req.Password); err != nil {
		return nil, err
	}

	username := user.NormalizeUsername(req.Username)
	email := user.NormalizeEmail(req.Email)

	taken, err := s.users.UsernameExists(ctx, username)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("checking username: %w", err))
	}
	if taken {
		return nil, apperror.NewAlreadyExists("username")
	}

	taken, err = s.users.EmailExists(ctx, email)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("checking email: %w", err))
	}
	if taken {
		return nil, apperror.NewAlreadyExists("email")
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}

	u := &user.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.users.Create(ctx, u); err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("creating user: %w", err))
	}

	slog.Info("user registered",
		slog.String("user_id", u.ID),
		slog.String("username", u.Username),
	)

	return u, nil
}

// Login is the first authentication step. On a correct password it issues a
// fresh one-time code, emails it, and returns an intermediate MFA token.
// The block flag is checked only after the password matched, so the lockout
// state is never revealed to a caller who does not know the password.
func (s *authService) Login(ctx context.Context, username, password, ipAddress string) (MFAResponse, error) {
	u, err := s.users.FindByUsername(ctx, user.NormalizeUsername(username))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			// No user id to count against; same vague message either way.
			return MFAResponse{}, apperror.NewInvalidCredentials()
		}
		return MFAResponse{}, apperror.NewInternal(fmt.Errorf("finding user: %w", err))
	}

	if !verifyPassword(password, u.PasswordHash) {
		s.monitor.RecordLoginFailure(ctx, u.ID, ipAddress, "invalid password")
		return MFAResponse{}, apperror.NewInvalidCredentials()
	}

	blocked, err := s.mfa.IsBlocked(ctx, u.ID)
	if err != nil {
		return MFAResponse{}, apperror.NewInternal(err)
	}
	if blocked {
		ttl, err := s.mfa.BlockTTL(ctx, u.ID)
		if err != nil {
			return MFAResponse{}, apperror.NewInternal(err)
		}
		return MFAResponse{}, apperror.NewAccountBlocked(ttl)
	}

	code, err := s.mfa.Issue(ctx, u.ID)
	if err != nil {
		return MFAResponse{}, apperror.NewInternal(err)
	}

	// Delivery failures are logged, never surfaced: the challenge is live
	// and the user can retry login to get a fresh code.
	if err := s.mailer.Send(ctx, u.Email, "Your verification code",
		fmt.Sprintf("Your verification code is %s. It expires in 5 minutes.", code)); err != nil {
		slog.Error("failed to send mfa code",
			slog.String("user_id", u.ID),
			slog.Any("error", err),
		)
	}

	mfaToken, expiresIn, err := s.codec.GenerateMFAToken(u.ID)
	if err != nil {
		return MFAResponse{}, apperror.NewInternal(err)
	}

	slog.Info("mfa challenge issued",
		slog.String("user_id", u.ID),
		slog.String("ip", ipAddress),
	)

	return MFAResponse{MFAToken: mfaToken, ExpiresIn: expiresIn}, nil
}

// VerifyMFA is the second authentication step: it exchanges the intermediate
// token plus the correct code for a full session grant.
func (s *authService) VerifyMFA(ctx context.Context, mfaToken, code, ipAddress string) (token.Pair, error) {
	userID, err := s.codec.ValidateMFA(mfaToken)
	if err != nil {
		return token.Pair{}, invalidToken(err)
	}

	attempt, err := s.mfa.Verify(ctx, userID, code)
	if err != nil {
		// attempt is non-zero only when a wrong code advanced the counter.
		if attempt > 0 {
			s.monitor.RecordMFAFailure(ctx, userID, ipAddress, attempt)
			if apperror.IsKind(err, apperror.KindAccountBlocked) {
				s.monitor.BlockAccount(ctx, userID, ipAddress, "too many failed verification attempts")
			}
		}
		return token.Pair{}, err
	}

	s.monitor.RecordSuccessfulLogin(ctx, userID, ipAddress)

	pair, err := s.sessions.IssuePair(ctx, userID)
	if err != nil {
		return token.Pair{}, err
	}

	slog.Info("session issued",
		slog.String("user_id", userID),
		slog.String("ip", ipAddress),
	)

	return pair, nil
}

// Refresh rotates a refresh token into a new pair.
func (s *authService) Refresh(ctx context.Context, refreshToken string) (token.Pair, error) {
	return s.sessions.Refresh(ctx, refreshToken)
}

// Logout revokes the presented tokens. Succeeds even when the access token
// is already expired so clients can always log out cleanly.
func (s *authService) Logout(ctx context.Context, accessToken, refreshToken string) error {
	return s.sessions.RevokeForLogout(ctx, accessToken, refreshToken)
}

// CurrentUser resolves an authenticated user id to its identity.
func (s *authService) CurrentUser(ctx context.Context, userID string) (*user.User, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, apperror.NewInvalidToken("unknown user")
		}
		return nil, apperror.NewInternal(fmt.Errorf("finding user: %w", err))
	}
	return u, nil
}

// invalidToken maps codec failures to the client-facing invalid-token error.
func invalidToken(err error) *apperror.AppError {
	switch {
	case errors.Is(err, token.ErrExpired):
		return apperror.NewInvalidToken("token expired")
	case errors.Is(err, token.ErrWrongType):
		return apperror.NewInvalidToken("wrong token type")
	default:
		return apperror.NewInvalidToken("malformed token")
	}
}
