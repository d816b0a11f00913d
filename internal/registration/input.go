package registration

import (
	"encoding/json"
	"io"
	"path"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// LooseString accepts a JSON string, number or bool. Form values bind to it
// as plain strings.
type LooseString string

func (l *LooseString) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case nil:
		*l = ""
	case string:
		*l = LooseString(t)
	case float64:
		*l = LooseString(strconv.FormatFloat(t, 'f', -1, 64))
	case bool:
		*l = LooseString(strconv.FormatBool(t))
	default:
		// objects and arrays are treated as absent
		*l = ""
	}
	return nil
}

// LooseList is a LooseString that also accepts a JSON array, joined with
// commas. Non-scalar elements are dropped.
type LooseList string

func (l *LooseList) UnmarshalJSON(b []byte) error {
	var items []any
	if err := json.Unmarshal(b, &items); err != nil {
		var s LooseString
		if err := s.UnmarshalJSON(b); err != nil {
			return err
		}
		*l = LooseList(s)
		return nil
	}
	parts := make([]string, 0, len(items))
	for _, it := range items {
		raw, err := json.Marshal(it)
		if err != nil {
			continue
		}
		var s LooseString
		if err := s.UnmarshalJSON(raw); err == nil && s != "" {
			parts = append(parts, string(s))
		}
	}
	*l = LooseList(strings.Join(parts, ","))
	return nil
}

// Input is the submission schema accepted from multipart forms and JSON
// bodies. Form keys follow the web form; JSON keys are snake_case. Every
// optional field tolerates any JSON type so a malformed value reads as absent.
type Input struct {
	Kind    LooseString `form:"type" json:"type"`
	Purpose LooseString `form:"purpose" json:"purpose"`

	Name  string `form:"name" json:"name" validate:"required,min=2"`
	Email string `form:"email" json:"email" validate:"required,email"`
	Phone string `form:"phone" json:"phone" validate:"required,min=8"`

	College         LooseString `form:"college" json:"college"`
	Degree          LooseString `form:"degree" json:"degree"`
	GraduationYear  LooseString `form:"graduationYear" json:"graduation_year"`
	ExperienceYears LooseString `form:"experienceYears" json:"experience_years"`
	Experience      LooseString `form:"experience" json:"experience"`
	ReferredBy      LooseString `form:"referredBy" json:"referred_by"`
	PortfolioURL    LooseString `form:"portfolioUrl" json:"portfolio_url"`
	GithubURL       LooseString `form:"githubUrl" json:"github_url"`
	Skills          LooseList   `form:"skills" json:"skills"`
	Notes           LooseString `form:"notes" json:"notes"`
	Source          LooseString `form:"source" json:"source"`
	DriveLocation   LooseString `form:"driveLocation" json:"drive_location"`
	DriveDate       LooseString `form:"driveDate" json:"drive_date"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate trims the required fields and checks them.
func (in *Input) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)

	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	ve := &ValidationError{}
	for _, fe := range verrs {
		ve.Fields = append(ve.Fields, FieldError{Field: fe.Field(), Message: fieldMessage(fe)})
	}
	return ve
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return "email must be a valid email address"
	case "min":
		return fe.Field() + " must be at least " + fe.Param() + " characters"
	default:
		return fe.Field() + " is invalid"
	}
}

// toRegistration builds the new record. Optional values that are empty or
// malformed are left nil.
func (in *Input) toRegistration(uid string, kind Kind) Registration {
	purpose := strings.TrimSpace(string(in.Purpose))
	if purpose == "" {
		purpose = string(kind)
	}
	exp := optionalInt(string(in.ExperienceYears))
	if exp == nil {
		exp = optionalInt(string(in.Experience))
	}
	return Registration{
		UID:             uid,
		Kind:            kind,
		Purpose:         purpose,
		Name:            in.Name,
		Email:           strings.ToLower(in.Email),
		Phone:           in.Phone,
		College:         optional(string(in.College)),
		Degree:          optional(string(in.Degree)),
		GraduationYear:  optionalInt(string(in.GraduationYear)),
		ExperienceYears: exp,
		ReferredBy:      optional(string(in.ReferredBy)),
		PortfolioURL:    optionalURL(string(in.PortfolioURL)),
		GithubURL:       optionalURL(string(in.GithubURL)),
		Skills:          splitSkills(string(in.Skills)),
		Notes:           optional(string(in.Notes)),
		Source:          optional(string(in.Source)),
		DriveLocation:   optional(string(in.DriveLocation)),
		DriveDate:       optional(string(in.DriveDate)),
		Status:          StatusNew,
		CheckedIn:       false,
	}
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func optionalInt(s string) *int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return &n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int(f)) {
		n := int(f)
		return &n
	}
	return nil
}

func optionalURL(s string) *string {
	p := optional(s)
	if p == nil || validate.Var(*p, "url") != nil {
		return nil
	}
	return p
}

func splitSkills(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// AttachmentKind names an uploaded file slot.
type AttachmentKind string

const (
	AttachmentPhoto  AttachmentKind = "photo"
	AttachmentResume AttachmentKind = "resume"
)

// Attachment is an uploaded file awaiting storage.
type Attachment struct {
	Kind        AttachmentKind
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// AttachmentKey is the storage key for an attachment: submissions/<uid>/<kind>[.<ext>].
func AttachmentKey(uid string, kind AttachmentKind, filename string) string {
	key := "submissions/" + uid + "/" + string(kind)
	if ext := cleanExt(filename); ext != "" {
		key += "." + ext
	}
	return key
}

func cleanExt(filename string) string {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(filename)), ".")
	if ext == "" || len(ext) > 10 {
		return ""
	}
	for _, r := range ext {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
