package registration

import (
	"strings"
	"time"
)

// Kind is the category of a submission.
type Kind string

const (
	KindInternship Kind = "internship"
	KindJob        Kind = "job"
	KindInquiry    Kind = "inquiry"
	KindDrive      Kind = "drive"
)

var kindCodes = map[Kind]string{
	KindInternship: "INT",
	KindJob:        "JOB",
	KindInquiry:    "INQ",
	KindDrive:      "DRV",
}

// ParseKind maps free text onto a Kind. Unrecognized values become KindInquiry.
func ParseKind(s string) Kind {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := kindCodes[k]; ok {
		return k
	}
	return KindInquiry
}

// Code is the three-letter code used inside registration IDs.
func (k Kind) Code() string {
	if c, ok := kindCodes[k]; ok {
		return c
	}
	return kindCodes[KindInquiry]
}

// Registration is one applicant submission.
type Registration struct {
	UID     string `json:"uid"`
	Kind    Kind   `json:"type"`
	Purpose string `json:"purpose,omitempty"`

	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`

	College         *string  `json:"college"`
	Degree          *string  `json:"degree"`
	GraduationYear  *int     `json:"graduation_year"`
	ExperienceYears *int     `json:"experience_years"`
	ReferredBy      *string  `json:"referred_by"`
	PortfolioURL    *string  `json:"portfolio_url"`
	GithubURL       *string  `json:"github_url"`
	Skills          []string `json:"skills"`
	Notes           *string  `json:"notes"`
	Source          *string  `json:"source"`
	DriveLocation   *string  `json:"drive_location"`
	DriveDate       *string  `json:"drive_date"`

	PhotoPath  *string `json:"photo_path"`
	ResumePath *string `json:"resume_path"`
	PhotoURL   string  `json:"photo_url,omitempty"`
	ResumeURL  string  `json:"resume_url,omitempty"`

	Status    Status     `json:"status"`
	CheckedIn bool       `json:"checked_in"`
	CheckInAt *time.Time `json:"checkin_at"`
	CreatedAt time.Time  `json:"created_at"`
}

// Filter narrows an admin listing.
type Filter struct {
	Query  string
	Kind   string
	Status string
	Limit  int
	Offset int
}

const (
	DefaultListLimit = 200
	MaxListLimit     = 500
)

func (f Filter) normalized() Filter {
	f.Query = strings.TrimSpace(f.Query)
	f.Kind = strings.ToLower(strings.TrimSpace(f.Kind))
	f.Status = strings.ToLower(strings.TrimSpace(f.Status))
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// Page is one slice of a listing plus the total match count.
type Page struct {
	Data  []Registration `json:"data"`
	Count int            `json:"count"`
}

// Change is a validated admin update applied by a Store.
type Change struct {
	CheckedIn *bool
	CheckInAt *time.Time
	Status    *Status
}

// CheckInResult reports the outcome of a check-in. Found is false when no
// record carries the UID; that is a normal result, not an error.
type CheckInResult struct {
	UID              string    `json:"uid"`
	Found            bool      `json:"found"`
	AlreadyCheckedIn bool      `json:"already_checked_in"`
	CheckedInAt      time.Time `json:"checkin_at"`
}
