package admin

import "context"

// Gate decides whether an authenticated identity may use admin operations.
type Gate struct {
	store Store
}

func NewGate(store Store) *Gate {
	return &Gate{store: store}
}

// Authorize returns nil only for allowlisted e-mails.
func (g *Gate) Authorize(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return ErrUnauthenticated
	}
	ok, err := g.store.IsAllowed(ctx, email)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}
