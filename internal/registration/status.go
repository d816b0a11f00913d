package registration

import (
	"fmt"
	"strings"
)

// Status is the review state an administrator assigns to a registration.
type Status string

const (
	StatusNew         Status = "new"
	StatusReviewing   Status = "reviewing"
	StatusShortlisted Status = "shortlisted"
	StatusRejected    Status = "rejected"
	StatusHired       Status = "hired"
	StatusCheckedIn   Status = "checked_in"
)

// Statuses lists every assignable status.
var Statuses = []Status{
	StatusNew,
	StatusReviewing,
	StatusShortlisted,
	StatusRejected,
	StatusHired,
	StatusCheckedIn,
}

// ParseStatus accepts only members of Statuses. Any member may replace any
// other; there is no ordering between them.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.TrimSpace(s))
	for _, known := range Statuses {
		if st == known {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}
