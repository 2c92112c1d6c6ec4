package auth

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/keyxmakerx/gatekeeper/internal/apperror"
	"github.com/keyxmakerx/gatekeeper/internal/config"
	"github.com/keyxmakerx/gatekeeper/internal/kvstore"
	"github.com/keyxmakerx/gatekeeper/internal/mfa"
	"github.com/keyxmakerx/gatekeeper/internal/session"
	"github.com/keyxmakerx/gatekeeper/internal/token"
	"github.com/keyxmakerx/gatekeeper/internal/user"
)

// --- Mock Repository ---

// mockUserRepo implements user.Repository for testing.
type mockUserRepo struct {
	createFn         func(ctx context.Context, u *user.User) error
	findByIDFn       func(ctx context.Context, id string) (*user.User, error)
	findByUsernameFn func(ctx context.Context, username string) (*user.User, error)
	usernameExistsFn func(ctx context.Context, username string) (bool, error)
	emailExistsFn    func(ctx context.Context, email string) (bool, error)
}

func (m *mockUserRepo) Create(ctx context.Context, u *user.User) error {
	if m.createFn != nil {
		return m.createFn(ctx, u)
	}
	return nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*user.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, user.ErrNotFound
}

func (m *mockUserRepo) FindByUsername(ctx context.Context, username string) (*user.User, error) {
	if m.findByUsernameFn != nil {
		return m.findByUsernameFn(ctx, username)
	}
	return nil, user.ErrNotFound
}

func (m *mockUserRepo) UsernameExists(ctx context.Context, username string) (bool, error) {
	if m.usernameExistsFn != nil {
		return m.usernameExistsFn(ctx, username)
	}
	return false, nil
}

func (m *mockUserRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	if m.emailExistsFn != nil {
		return m.emailExistsFn(ctx, email)
	}
	return false, nil
}

// --- Mock Monitor ---

// mockMonitor implements SecurityMonitor and counts calls.
type mockMonitor struct {
	loginFailures []int // attempt is unknown to the caller; track count
	mfaFailures   []int
	blocks        int
	successes     int
}

func (m *mockMonitor) RecordLoginFailure(ctx context.Context, userID, ipAddress, reason string) {
	m.loginFailures = append(m.loginFailures, 1)
}

func (m *mockMonitor) RecordMFAFailure(ctx context.Context, userID, ipAddress string, attemptNumber int) {
	m.mfaFailures = append(m.mfaFailures, attemptNumber)
}

func (m *mockMonitor) BlockAccount(ctx context.Context, userID, ipAddress, reason string) {
	m.blocks++
}

func (m *mockMonitor) RecordSuccessfulLogin(ctx context.Context, userID, ipAddress string) {
	m.successes++
}

// --- Mock Mailer ---

type mockMailer struct {
	bodies []string
	to     []string
}

func (m *mockMailer) Send(ctx context.Context, to, subject, body string) error {
	m.to = append(m.to, to)
	m.bodies = append(m.bodies, body)
	return nil
}

// lastCode pulls the 6-digit code out of the most recent mail body.
func (m *mockMailer) lastCode(t *testing.T) string {
	t.Helper()
	if len(m.bodies) == 0 {
		t.Fatal("no mail sent")
	}
	code := regexp.MustCompile(`\d{6}`).FindString(m.bodies[len(m.bodies)-1])
	if code == "" {
		t.Fatalf("no code in mail body %q", m.bodies[len(m.bodies)-1])
	}
	return code
}

// --- Fixture ---

type fixture struct {
	svc      AuthService
	user     *user.User
	repo     *mockUserRepo
	monitor  *mockMonitor
	mailer   *mockMailer
	mfa      *mfa.Manager
	sessions *session.Manager
	codec    *token.Codec
}

const testPassword = "Sup3rSecret"

// newFixture builds the service on an in-process Redis with one known user
// (alice / Sup3rSecret) behind the repository mock.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	store := kvstore.New(client)

	codec := token.NewCodec(config.JWTConfig{
		Secret:     "test-secret-test-secret-test-secret",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
		MFATTL:     5 * time.Minute,
	})
	mfaMgr := mfa.NewManager(store, config.MFAConfig{
		CodeTTL:     5 * time.Minute,
		BlockTTL:    30 * time.Minute,
		MaxAttempts: 3,
	})
	sessions := session.NewManager(store, codec)

	hash, err := hashPassword(testPassword)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	alice := &user.User{
		ID:           "11111111-1111-1111-1111-111111111111",
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}

	repo := &mockUserRepo{
		findByUsernameFn: func(ctx context.Context, username string) (*user.User, error) {
			if username == alice.Username {
				return alice, nil
			}
			return nil, user.ErrNotFound
		},
		findByIDFn: func(ctx context.Context, id string) (*user.User, error) {
			if id == alice.ID {
				return alice, nil
			}
			return nil, user.ErrNotFound
		},
	}
	mon := &mockMonitor{}
	mailer := &mockMailer{}

	return &fixture{
		svc:      NewAuthService(repo, mfaMgr, sessions, codec, mon, mailer),
		user:     alice,
		repo:     repo,
		monitor:  mon,
		mailer:   mailer,
		mfa:      mfaMgr,
		sessions: sessions,
		codec:    codec,
	}
}

// assertKind checks that err is an *apperror.AppError with the expected kind.
func assertKind(t *testing.T, err error, kind string) *apperror.AppError {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	appErr, ok := err.(*apperror.AppError)
	if !ok {
		t.Fatalf("expected *apperror.AppError, got %T: %v", err, err)
	}
	if appErr.Kind != kind {
		t.Fatalf("expected kind %s, got %s (%s)", kind, appErr.Kind, appErr.Message)
	}
	return appErr
}

// login runs the password step and returns the challenge.
func (f *fixture) login(t *testing.T) MFAResponse {
	t.Helper()
	resp, err := f.svc.Login(context.Background(), "alice", testPassword, "10.0.0.1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return resp
}

// --- Register ---

func TestRegister_Success(t *testing.T) {
	f := newFixture(t)
	var created *user.User
	f.repo.createFn = func(ctx context.Context, u *user.User) error {
		created = u
		return nil
	}

	u, err := f.svc.Register(context.Background(), RegisterRequest{
		Username: " Bob.Smith ",
		Email:    " Bob@Example.COM ",
		Password: "Sup3rSecret",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if u.Username != "bob.smith" {
		t.Errorf("expected normalized username, got %q", u.Username)
	}
	if u.Email != "bob@example.com" {
		t.Errorf("expected normalized email, got %q", u.Email)
	}
	if u.ID == "" {
		t.Error("expected a generated id")
	}
	if created == nil {
		t.Fatal("expected Create to be called")
	}
	if !verifyPassword("Sup3rSecret", created.PasswordHash) {
		t.Error("stored hash does not verify against the password")
	}
	if created.PasswordHash == "Sup3rSecret" {
		t.Error("password stored in plaintext")
	}
}

func TestRegister_DuplicateUsername(t *testing.T) {
	f := newFixture(t)
	f.repo.usernameExistsFn = func(ctx context.Context, username string) (bool, error) {
		return true, nil
	}

	_, err := f.svc.Register(context.Background(), RegisterRequest{
		Username: "alice",
		Email:    "new@example.com",
		Password: "Sup3rSecret",
	})
	appErr := assertKind(t, err, apperror.KindAlreadyExists)
	if appErr.Field != "username" {
		t.Errorf("expected field username, got %q", appErr.Field)
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	f := newFixture(t)
	f.repo.emailExistsFn = func(ctx context.Context, email string) (bool, error) {
		return true, nil
	}

	_, err := f.svc.Register(context.Background(), RegisterRequest{
		Username: "bob",
		Email:    "alice@example.com",
		Password: "Sup3rSecret",
	})
	appErr := assertKind(t, err, apperror.KindAlreadyExists)
	if appErr.Field != "email" {
		t.Errorf("expected field email, got %q", appErr.Field)
	}
}

func TestRegister_WeakPassword(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Register(context.Background(), RegisterRequest{
		Username: "bob",
		Email:    "bob@example.com",
		Password: "short",
	})
	assertKind(t, err, apperror.KindValidation)
}

// --- Login ---

func TestLogin_UnknownUser(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Login(context.Background(), "nobody", "whatever", "10.0.0.1")
	assertKind(t, err, apperror.KindInvalidCredentials)
	if len(f.monitor.loginFailures) != 0 {
		t.Error("unknown usernames must not be counted")
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Login(context.Background(), "alice", "wrong", "10.0.0.1")
	assertKind(t, err, apperror.KindInvalidCredentials)
	if len(f.monitor.loginFailures) != 1 {
		t.Errorf("expected 1 recorded login failure, got %d", len(f.monitor.loginFailures))
	}
	if len(f.mailer.bodies) != 0 {
		t.Error("no code may be issued for a wrong password")
	}
}

func TestLogin_Success(t *testing.T) {
	f := newFixture(t)

	resp := f.login(t)

	if resp.ExpiresIn != int64((5 * time.Minute).Seconds()) {
		t.Errorf("expected 300s expiry, got %d", resp.ExpiresIn)
	}
	userID, err := f.codec.ValidateMFA(resp.MFAToken)
	if err != nil {
		t.Fatalf("mfa token does not validate: %v", err)
	}
	if userID != f.user.ID {
		t.Errorf("mfa token subject %q, want %q", userID, f.user.ID)
	}
	if _, err := f.codec.ValidateAccess(resp.MFAToken); err == nil {
		t.Error("mfa token must not pass as an access token")
	}

	if len(f.mailer.to) != 1 || f.mailer.to[0] != "alice@example.com" {
		t.Fatalf("expected one mail to alice, got %v", f.mailer.to)
	}
	code := f.mailer.lastCode(t)

	stored, ok, err := f.mfa.Code(context.Background(), f.user.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || stored != code {
		t.Errorf("mailed code %q does not match stored challenge %q", code, stored)
	}
}

func TestLogin_BlockedAfterPasswordMatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.mfa.Block(ctx, f.user.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Wrong password still reads as invalid credentials, not as blocked.
	_, err := f.svc.Login(ctx, "alice", "wrong", "10.0.0.1")
	assertKind(t, err, apperror.KindInvalidCredentials)

	// Correct password reveals the lockout with a retry hint.
	_, err = f.svc.Login(ctx, "alice", testPassword, "10.0.0.1")
	appErr := assertKind(t, err, apperror.KindAccountBlocked)
	if appErr.RetryAfterSeconds <= 0 {
		t.Errorf("expected positive retry-after, got %d", appErr.RetryAfterSeconds)
	}
}

// --- Verify ---

func TestVerifyMFA_FullFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp := f.login(t)
	code := f.mailer.lastCode(t)

	pair, err := f.svc.VerifyMFA(ctx, resp.MFAToken, code, "10.0.0.1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	userID, err := f.sessions.ValidateAccess(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("access token rejected: %v", err)
	}
	if userID != f.user.ID {
		t.Errorf("access token subject %q, want %q", userID, f.user.ID)
	}
	if f.monitor.successes != 1 {
		t.Errorf("expected 1 recorded success, got %d", f.monitor.successes)
	}

	// The challenge is single-use.
	_, err = f.svc.VerifyMFA(ctx, resp.MFAToken, code, "10.0.0.1")
	assertKind(t, err, apperror.KindChallengeExpired)
}

func TestVerifyMFA_WrongCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp := f.login(t)
	code := f.mailer.lastCode(t)
	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}

	_, err := f.svc.VerifyMFA(ctx, resp.MFAToken, wrong, "10.0.0.1")
	appErr := assertKind(t, err, apperror.KindCodeInvalid)
	if appErr.RemainingAttempts != 2 {
		t.Errorf("expected 2 remaining attempts, got %d", appErr.RemainingAttempts)
	}
	if len(f.monitor.mfaFailures) != 1 || f.monitor.mfaFailures[0] != 1 {
		t.Errorf("expected recorded failure with attempt 1, got %v", f.monitor.mfaFailures)
	}

	// The correct code still works after a wrong guess.
	if _, err := f.svc.VerifyMFA(ctx, resp.MFAToken, code, "10.0.0.1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestVerifyMFA_BlocksAtThirdWrongCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp := f.login(t)
	code := f.mailer.lastCode(t)
	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}

	_, err := f.svc.VerifyMFA(ctx, resp.MFAToken, wrong, "10.0.0.1")
	assertKind(t, err, apperror.KindCodeInvalid)
	_, err = f.svc.VerifyMFA(ctx, resp.MFAToken, wrong, "10.0.0.1")
	assertKind(t, err, apperror.KindCodeInvalid)
	_, err = f.svc.VerifyMFA(ctx, resp.MFAToken, wrong, "10.0.0.1")
	assertKind(t, err, apperror.KindAccountBlocked)

	if f.monitor.blocks != 1 {
		t.Errorf("expected 1 recorded block, got %d", f.monitor.blocks)
	}
	if len(f.monitor.mfaFailures) != 3 {
		t.Errorf("expected 3 recorded failures, got %d", len(f.monitor.mfaFailures))
	}

	// Even the right code is refused now.
	_, err = f.svc.VerifyMFA(ctx, resp.MFAToken, code, "10.0.0.1")
	assertKind(t, err, apperror.KindAccountBlocked)
}

func TestVerifyMFA_RejectsNonMFAToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.sessions.IssuePair(ctx, f.user.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = f.svc.VerifyMFA(ctx, pair.AccessToken, "123456", "10.0.0.1")
	assertKind(t, err, apperror.KindInvalidToken)
}

// --- Refresh and Logout ---

func TestRefresh_RotatesThroughService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp := f.login(t)
	pair, err := f.svc.VerifyMFA(ctx, resp.MFAToken, f.mailer.lastCode(t), "10.0.0.1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rotated, err := f.svc.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rotated.RefreshToken == pair.RefreshToken {
		t.Error("expected a new refresh token")
	}

	// The spent token is single-use.
	_, err = f.svc.Refresh(ctx, pair.RefreshToken)
	assertKind(t, err, apperror.KindInvalidToken)
}

func TestLogout_RevokesAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp := f.login(t)
	pair, err := f.svc.VerifyMFA(ctx, resp.MFAToken, f.mailer.lastCode(t), "10.0.0.1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := f.svc.Logout(ctx, pair.AccessToken, pair.RefreshToken); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = f.sessions.ValidateAccess(ctx, pair.AccessToken)
	assertKind(t, err, apperror.KindInvalidToken)
	_, err = f.svc.Refresh(ctx, pair.RefreshToken)
	assertKind(t, err, apperror.KindInvalidToken)
}

// --- CurrentUser ---

func TestCurrentUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.svc.CurrentUser(ctx, f.user.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Username != "alice" {
		t.Errorf("unexpected user %q", u.Username)
	}

	_, err = f.svc.CurrentUser(ctx, "ghost")
	assertKind(t, err, apperror.KindInvalidToken)
}
