package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound is returned when no identity matches the lookup. Callers map
// it to whatever client-facing error fits their flow -- the credential
// verifier, for instance, collapses it into InvalidCredentials so the
// response never reveals whether the username exists.
var ErrNotFound = errors.New("user not found")

// Repository defines the data access contract for identity records.
// All SQL lives in the concrete implementation -- no SQL leaks out.
type Repository interface {
	Create(ctx context.Context, user *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	EmailExists(ctx context.Context, email string) (bool, error)
}

// repository implements Repository with hand-written MySQL queries.
type repository struct {
	db *sql.DB
}

// NewRepository creates a user repository backed by the given DB pool.
func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

// Create inserts a new identity row.
func (r *repository) Create(ctx context.Context, user *User) error {
	query := `INSERT INTO users (id, username, email, password_hash, created_at)
	          VALUES (?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting user: %w", err)
	}

	return nil
}

// FindByID retrieves an identity by its UUID.
// Returns ErrNotFound if no user exists with this ID.
func (r *repository) FindByID(ctx context.Context, id string) (*User, error) {
	query := `SELECT id, username, email, password_hash, created_at
	          FROM users WHERE id = ?`

	return r.scanOne(r.db.QueryRowContext(ctx, query, id), "id")
}

// FindByUsername retrieves an identity by its normalized username.
// Returns ErrNotFound if no user exists with this username.
func (r *repository) FindByUsername(ctx context.Context, username string) (*User, error) {
	query := `SELECT id, username, email, password_hash, created_at
	          FROM users WHERE username = ?`

	return r.scanOne(r.db.QueryRowContext(ctx, query, username), "username")
}

// UsernameExists reports whether a username is already taken.
func (r *repository) UsernameExists(ctx context.Context, username string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE username = ?)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, username).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking username: %w", err)
	}
	return exists, nil
}

// EmailExists reports whether an email is already registered.
func (r *repository) EmailExists(ctx context.Context, email string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE email = ?)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking email: %w", err)
	}
	return exists, nil
}

// scanOne scans a single user row, translating sql.ErrNoRows to ErrNotFound.
func (r *repository) scanOne(row *sql.Row, by string) (*User, error) {
	user := &User{}
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user by %s: %w", by, err)
	}
	return user, nil
}
