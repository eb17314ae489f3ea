package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Role decides which routes a user may reach.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleCommercial Role = "comercial"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleCommercial
}

// User is an account without its password hash.
type User struct {
	ID        int64
	Username  string
	Email     string
	Role      Role
	CreatedAt time.Time
}

// IsAdmin reports whether u may manage users, items and rates.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

var (
	ErrInvalidUser        = errors.New("invalid user")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// UserStore persists accounts with bcrypt-hashed passwords.
type UserStore struct {
	db *sql.DB
}

// NewUserStore returns a UserStore backed by db.
func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

// HashPassword returns the bcrypt hash stored for a password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Create normalizes the email, defaults the role to commercial and hashes
// the password. A taken email yields ErrDuplicate.
func (s *UserStore) Create(username, email, password string, role Role) (User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if role == "" {
		role = RoleCommercial
	}

	switch {
	case username == "":
		return User{}, fmt.Errorf("%w: username is required", ErrInvalidUser)
	case !strings.Contains(email, "@"):
		return User{}, fmt.Errorf("%w: email %q is not valid", ErrInvalidUser, email)
	case password == "":
		return User{}, fmt.Errorf("%w: password is required", ErrInvalidUser)
	case !role.Valid():
		return User{}, fmt.Errorf("%w: unknown role %q", ErrInvalidUser, role)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return User{}, err
	}

	now := time.Now().UTC()
	result, err := s.db.Exec(`
		INSERT INTO users (username, email, password_hash, role, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, username, email, hash, string(role), formatTimestamp(now))
	if isUniqueViolation(err) {
		return User{}, fmt.Errorf("user %s: %w", email, ErrDuplicate)
	}
	if err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return User{}, fmt.Errorf("read user id: %w", err)
	}

	return User{ID: id, Username: username, Email: email, Role: role, CreatedAt: now}, nil
}

// Authenticate checks an email and password pair. Unknown emails and wrong
// passwords both return ErrInvalidCredentials.
func (s *UserStore) Authenticate(email, password string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var hash string
	u, err := s.scanUser(s.db.QueryRow(`
		SELECT id, username, email, role, created_at, password_hash
		FROM users
		WHERE email = ?
	`, email), &hash)
	if errors.Is(err, ErrNotFound) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

// ByID returns ErrNotFound for an unknown id.
func (s *UserStore) ByID(id int64) (User, error) {
	var hash string
	return s.scanUser(s.db.QueryRow(`
		SELECT id, username, email, role, created_at, password_hash
		FROM users
		WHERE id = ?
	`, id), &hash)
}

// Exists reports whether a user with the email is registered.
func (s *UserStore) Exists(email string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM users WHERE email = ?)`, strings.ToLower(strings.TrimSpace(email))).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check user existence: %w", err)
	}
	return exists, nil
}

// List returns every user ordered by id.
func (s *UserStore) List() ([]User, error) {
	rows, err := s.db.Query(`
		SELECT id, username, email, role, created_at
		FROM users
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := make([]User, 0)
	for rows.Next() {
		var (
			u         User
			role      string
			createdAt string
		)
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &role, &createdAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.Role = Role(role)
		if u.CreatedAt, err = parseTimestamp(createdAt); err != nil {
			return nil, fmt.Errorf("parse user created_at %q: %w", createdAt, err)
		}
		users = append(users, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

// Delete removes a user, returning ErrNotFound when nothing was deleted.
func (s *UserStore) Delete(id int64) error {
	result, err := s.db.Exec(`DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	return nil
}

func (s *UserStore) scanUser(row *sql.Row, hash *string) (User, error) {
	var (
		u         User
		role      string
		createdAt string
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &role, &createdAt, hash)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("scan user: %w", err)
	}

	u.Role = Role(role)
	if u.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return User{}, fmt.Errorf("parse user created_at %q: %w", createdAt, err)
	}
	return u, nil
}
