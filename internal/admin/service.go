package admin

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"go.uber.org/zap"

	"portal/internal/auth"
)

// Service creates administrators and signs them in.
type Service struct {
	store     Store
	setupCode string
	issuer    string
	key       string
	ttl       time.Duration
	log       *zap.SugaredLogger
}

// NewService wires the account store to token settings. An empty setupCode
// disables Setup.
func NewService(store Store, setupCode, issuer, signingKey string, ttl time.Duration, log *zap.SugaredLogger) *Service {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Service{store: store, setupCode: setupCode, issuer: issuer, key: signingKey, ttl: ttl, log: log}
}

// Setup creates the first administrators when the caller knows the shared
// setup code.
func (s *Service) Setup(ctx context.Context, email, password, code string) error {
	email = normalizeEmail(email)
	if email == "" || password == "" || code == "" {
		return ErrMissingFields
	}
	if s.setupCode == "" {
		return ErrSetupDisabled
	}
	if subtle.ConstantTimeCompare([]byte(code), []byte(s.setupCode)) != 1 {
		s.log.Warnw("admin setup rejected", "email", email)
		return ErrInvalidSetupCode
	}
	return s.CreateAdmin(ctx, email, password)
}

// CreateAdmin creates the account and allowlists it. Either part may already
// exist; an existing account keeps its password.
func (s *Service) CreateAdmin(ctx context.Context, email, password string) error {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return ErrMissingFields
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	switch err := s.store.CreateUser(ctx, email, hash); {
	case errors.Is(err, ErrExists):
		s.log.Infow("admin user already exists, password unchanged", "email", email)
	case err != nil:
		return err
	}
	if err := s.store.Allow(ctx, email); err != nil && !errors.Is(err, ErrExists) {
		return err
	}
	s.log.Infow("admin allowlisted", "email", email)
	return nil
}

// Login checks credentials and issues an access token.
func (s *Service) Login(ctx context.Context, email, password string) (auth.Token, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return auth.Token{}, ErrInvalidCredentials
	}
	hash, err := s.store.PasswordHash(ctx, email)
	if errors.Is(err, ErrNoUser) {
		return auth.Token{}, ErrInvalidCredentials
	}
	if err != nil {
		return auth.Token{}, err
	}
	if !auth.CheckPassword(hash, password) {
		return auth.Token{}, ErrInvalidCredentials
	}
	return auth.Issue(email, s.issuer, s.key, s.ttl)
}
