package registration

import (
	"context"
	"time"
)

// Store persists registrations. Implementations return ErrNotFound for
// missing UIDs and ErrConflict when an insert collides with an existing UID.
type Store interface {
	Insert(ctx context.Context, reg *Registration) error
	Get(ctx context.Context, uid string) (Registration, error)
	List(ctx context.Context, f Filter) (Page, error)
	Update(ctx context.Context, uid string, ch Change) error
	// CheckIn marks uid checked in at the given instant and reports whether it
	// already was. found is false when uid does not exist.
	CheckIn(ctx context.Context, uid string, at time.Time) (wasCheckedIn, found bool, err error)
}
