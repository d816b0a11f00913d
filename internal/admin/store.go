package admin

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Store keeps administrator accounts and the e-mail allowlist.
type Store interface {
	IsAllowed(ctx context.Context, email string) (bool, error)
	Allow(ctx context.Context, email string) error
	CreateUser(ctx context.Context, email, passwordHash string) error
	PasswordHash(ctx context.Context, email string) (string, error)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// PGStore is the Postgres Store.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) IsAllowed(ctx context.Context, email string) (bool, error) {
	var found int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM admin_emails WHERE email = $1`, email).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check admin allowlist: %w", err)
	}
	return true, nil
}

// Allow adds email to the allowlist. ErrExists when it is already there.
func (s *PGStore) Allow(ctx context.Context, email string) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO admin_emails (email) VALUES ($1)
		ON CONFLICT (email) DO NOTHING
	`, email)
	if err != nil {
		return fmt.Errorf("allowlist admin: %w", err)
	}
	return existsIfUnchanged(res)
}

// CreateUser stores a new account. An existing account is left untouched
// and ErrExists is returned.
func (s *PGStore) CreateUser(ctx context.Context, email, passwordHash string) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO admin_users (email, password_hash) VALUES ($1, $2)
		ON CONFLICT (email) DO NOTHING
	`, email, passwordHash)
	if err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}
	return existsIfUnchanged(res)
}

func (s *PGStore) PasswordHash(ctx context.Context, email string) (string, error) {
	var hash string
	err := s.db.QueryRowContext(ctx, `SELECT password_hash FROM admin_users WHERE email = $1`, email).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoUser
	}
	if err != nil {
		return "", fmt.Errorf("load admin user: %w", err)
	}
	return hash, nil
}

func existsIfUnchanged(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrExists
	}
	return nil
}

// MemoryStore is an in-process Store for development and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	allowed map[string]bool
	users   map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{allowed: map[string]bool{}, users: map[string]string{}}
}

func (m *MemoryStore) IsAllowed(_ context.Context, email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.allowed[email], nil
}

func (m *MemoryStore) Allow(_ context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.allowed[email] {
		return ErrExists
	}
	m.allowed[email] = true
	return nil
}

func (m *MemoryStore) CreateUser(_ context.Context, email, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[email]; ok {
		return ErrExists
	}
	m.users[email] = passwordHash
	return nil
}

func (m *MemoryStore) PasswordHash(_ context.Context, email string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.users[email]
	if !ok {
		return "", ErrNoUser
	}
	return h, nil
}
