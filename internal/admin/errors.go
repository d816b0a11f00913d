package admin

import "errors"

var (
	ErrUnauthenticated    = errors.New("authentication required")
	ErrForbidden          = errors.New("forbidden")
	ErrMissingFields      = errors.New("email, password and code are required")
	ErrSetupDisabled      = errors.New("admin setup is disabled")
	ErrInvalidSetupCode   = errors.New("invalid setup code")
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrExists and ErrNoUser are returned by stores.
	ErrExists = errors.New("already exists")
	ErrNoUser = errors.New("admin user not found")
)
