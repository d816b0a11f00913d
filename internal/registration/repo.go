package registration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

const (
	pgUniqueViolation = "23505"
	pgUndefinedColumn = "42703"
)

type column struct {
	name    string
	sqlType string
	// core columns are written on every insert; the rest are dropped when the
	// deployed table does not have them.
	core bool
}

// registrationColumns is the scan order used by scanRegistration.
var registrationColumns = []column{
	{"uid", "text", true},
	{"type", "text", true},
	{"purpose", "text", false},
	{"name", "text", true},
	{"email", "text", true},
	{"phone", "text", true},
	{"college", "text", false},
	{"degree", "text", false},
	{"graduation_year", "integer", false},
	{"experience", "integer", false},
	{"referred_by", "text", false},
	{"portfolio_url", "text", false},
	{"github_url", "text", false},
	{"skills", "text", false},
	{"notes", "text", false},
	{"source", "text", false},
	{"drive_location", "text", false},
	{"drive_date", "text", false},
	{"photo_path", "text", true},
	{"resume_path", "text", true},
	{"status", "text", true},
	{"checked_in", "boolean", true},
	{"checkin_at", "timestamptz", true},
	{"created_at", "timestamptz", true},
}

// Repository persists registrations in Postgres.
type Repository struct {
	db  *sql.DB
	log *zap.SugaredLogger

	mu      sync.RWMutex
	columns map[string]bool // nil until LoadColumns succeeds; nil means "assume all"
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB, log *zap.SugaredLogger) *Repository {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Repository{db: db, log: log}
}

// LoadColumns records which registration columns the deployed table has.
// Inserts and reads skip optional columns the table lacks.
func (r *Repository) LoadColumns(ctx context.Context) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT column_name FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = 'registrations'
	`)
	if err != nil {
		return fmt.Errorf("load registration columns: %w", err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("scan registration column: %w", err)
		}
		cols[name] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("load registration columns: %w", err)
	}
	if len(cols) == 0 {
		return errors.New("registrations table not found")
	}

	r.mu.Lock()
	r.columns = cols
	r.mu.Unlock()
	return nil
}

// HasColumn reports whether the deployed table is known to carry name.
func (r *Repository) HasColumn(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.columns == nil || r.columns[name]
}

// Insert writes a new registration. A schema mismatch on optional columns is
// retried once with the core columns only.
func (r *Repository) Insert(ctx context.Context, reg *Registration) error {
	cols, vals := r.insertColumns(reg, false)
	err := r.insert(ctx, reg, cols, vals)
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || !schemaMismatch(pgErr.Code) {
		return r.insertError(err)
	}

	r.log.Warnw("registration insert does not match the table, retrying with core columns",
		"uid", reg.UID, "code", pgErr.Code, "detail", pgErr.Message)
	if pgErr.Code == pgUndefinedColumn {
		if lerr := r.LoadColumns(ctx); lerr != nil {
			r.log.Warnw("reload registration columns failed", "err", lerr)
		}
	}
	cols, vals = r.insertColumns(reg, true)
	if err := r.insert(ctx, reg, cols, vals); err != nil {
		return r.insertError(err)
	}
	return nil
}

func (r *Repository) insert(ctx context.Context, reg *Registration, cols []string, vals []any) error {
	marks := make([]string, len(cols))
	for i := range cols {
		marks[i] = "$" + strconv.Itoa(i+1)
	}
	query := "INSERT INTO registrations (" + strings.Join(cols, ", ") + ") VALUES (" +
		strings.Join(marks, ", ") + ") RETURNING created_at"
	return r.db.QueryRowContext(ctx, query, vals...).Scan(&reg.CreatedAt)
}

// schemaMismatch reports SQLSTATE classes 22 (data exception) and 42 (syntax
// error or access rule violation), which an optional column of an unexpected
// name or type raises.
func schemaMismatch(code string) bool {
	return strings.HasPrefix(code, "22") || strings.HasPrefix(code, "42")
}

func (r *Repository) insertError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf("%w: %s", ErrConflict, pgErr.Detail)
	}
	return fmt.Errorf("insert registration: %w", err)
}

func (r *Repository) insertColumns(reg *Registration, coreOnly bool) ([]string, []any) {
	values := map[string]any{
		"uid":             reg.UID,
		"type":            string(reg.Kind),
		"purpose":         nullString(&reg.Purpose),
		"name":            reg.Name,
		"email":           reg.Email,
		"phone":           reg.Phone,
		"college":         nullString(reg.College),
		"degree":          nullString(reg.Degree),
		"graduation_year": nullInt(reg.GraduationYear),
		"experience":      nullInt(reg.ExperienceYears),
		"referred_by":     nullString(reg.ReferredBy),
		"portfolio_url":   nullString(reg.PortfolioURL),
		"github_url":      nullString(reg.GithubURL),
		"skills":          joinSkills(reg.Skills),
		"notes":           nullString(reg.Notes),
		"source":          nullString(reg.Source),
		"drive_location":  nullString(reg.DriveLocation),
		"drive_date":      nullString(reg.DriveDate),
		"photo_path":      nullString(reg.PhotoPath),
		"resume_path":     nullString(reg.ResumePath),
		"status":          string(reg.Status),
		"checked_in":      reg.CheckedIn,
		"checkin_at":      nullTime(reg.CheckInAt),
	}

	var cols []string
	var vals []any
	for _, c := range registrationColumns {
		v, ok := values[c.name]
		if !ok {
			continue
		}
		if !c.core && (coreOnly || !r.HasColumn(c.name)) {
			continue
		}
		cols = append(cols, c.name)
		vals = append(vals, v)
	}
	return cols, vals
}

func (r *Repository) selectList() string {
	parts := make([]string, len(registrationColumns))
	for i, c := range registrationColumns {
		if c.core || r.HasColumn(c.name) {
			parts[i] = c.name
		} else {
			parts[i] = "NULL::" + c.sqlType + " AS " + c.name
		}
	}
	return strings.Join(parts, ", ")
}

// Get returns a single registration by uid.
func (r *Repository) Get(ctx context.Context, uid string) (Registration, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+r.selectList()+" FROM registrations WHERE uid = $1", uid)
	reg, err := scanRegistration(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Registration{}, ErrNotFound
		}
		return Registration{}, fmt.Errorf("get registration: %w", err)
	}
	return reg, nil
}

// List returns registrations matching f, newest first, plus the total count.
func (r *Repository) List(ctx context.Context, f Filter) (Page, error) {
	f = f.normalized()

	var clauses []string
	var args []any
	if f.Query != "" {
		args = append(args, "%"+escapeLike(f.Query)+"%")
		n := "$" + strconv.Itoa(len(args))
		clauses = append(clauses, "(name ILIKE "+n+" OR email ILIKE "+n+" OR phone ILIKE "+n+")")
	}
	if f.Kind != "" {
		args = append(args, f.Kind)
		clauses = append(clauses, "type = $"+strconv.Itoa(len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		clauses = append(clauses, "status = $"+strconv.Itoa(len(args)))
	}
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	page := Page{Data: []Registration{}}
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM registrations"+where, args...).Scan(&page.Count); err != nil {
		return Page{}, fmt.Errorf("count registrations: %w", err)
	}

	query := "SELECT " + r.selectList() + " FROM registrations" + where +
		" ORDER BY created_at DESC LIMIT $" + strconv.Itoa(len(args)+1) + " OFFSET $" + strconv.Itoa(len(args)+2)
	args = append(args, f.Limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return Page{}, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return Page{}, fmt.Errorf("scan registration: %w", err)
		}
		page.Data = append(page.Data, reg)
	}
	if err := rows.Err(); err != nil {
		return Page{}, fmt.Errorf("list registrations: %w", err)
	}
	return page, nil
}

// Update applies an admin change to one row.
func (r *Repository) Update(ctx context.Context, uid string, ch Change) error {
	var sets []string
	var args []any
	if ch.CheckedIn != nil {
		args = append(args, *ch.CheckedIn)
		sets = append(sets, "checked_in = $"+strconv.Itoa(len(args)))
		args = append(args, nullTime(ch.CheckInAt))
		sets = append(sets, "checkin_at = $"+strconv.Itoa(len(args)))
	}
	if ch.Status != nil {
		args = append(args, string(*ch.Status))
		sets = append(sets, "status = $"+strconv.Itoa(len(args)))
	}
	if len(sets) == 0 {
		return ErrNothingToUpdate
	}
	args = append(args, uid)
	query := "UPDATE registrations SET " + strings.Join(sets, ", ") + " WHERE uid = $" + strconv.Itoa(len(args))

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update registration: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update registration: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CheckIn marks uid checked in and returns the prior flag in the same statement.
func (r *Repository) CheckIn(ctx context.Context, uid string, at time.Time) (bool, bool, error) {
	var was bool
	err := r.db.QueryRowContext(ctx, `
		UPDATE registrations AS r
		SET checked_in = TRUE, status = 'checked_in', checkin_at = $2
		FROM (SELECT uid, checked_in FROM registrations WHERE uid = $1 FOR UPDATE) AS prev
		WHERE r.uid = prev.uid
		RETURNING prev.checked_in
	`, uid, at.UTC()).Scan(&was)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, false, nil
		}
		return false, false, fmt.Errorf("check in registration: %w", err)
	}
	return was, true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRegistration(s rowScanner) (Registration, error) {
	var reg Registration
	var kind, status string
	var purpose, college, degree, referredBy, portfolio, github, skills sql.NullString
	var notes, source, driveLocation, driveDate, photoPath, resumePath sql.NullString
	var graduationYear, experience sql.NullInt64
	var checkinAt sql.NullTime
	err := s.Scan(
		&reg.UID, &kind, &purpose, &reg.Name, &reg.Email, &reg.Phone,
		&college, &degree, &graduationYear, &experience, &referredBy,
		&portfolio, &github, &skills, &notes, &source, &driveLocation, &driveDate,
		&photoPath, &resumePath, &status, &reg.CheckedIn, &checkinAt, &reg.CreatedAt,
	)
	if err != nil {
		return Registration{}, err
	}
	reg.Kind = Kind(kind)
	reg.Status = Status(status)
	reg.Purpose = purpose.String
	reg.College = stringPtr(college)
	reg.Degree = stringPtr(degree)
	reg.GraduationYear = intPtr(graduationYear)
	reg.ExperienceYears = intPtr(experience)
	reg.ReferredBy = stringPtr(referredBy)
	reg.PortfolioURL = stringPtr(portfolio)
	reg.GithubURL = stringPtr(github)
	reg.Skills = splitSkills(skills.String)
	reg.Notes = stringPtr(notes)
	reg.Source = stringPtr(source)
	reg.DriveLocation = stringPtr(driveLocation)
	reg.DriveDate = stringPtr(driveDate)
	reg.PhotoPath = stringPtr(photoPath)
	reg.ResumePath = stringPtr(resumePath)
	if checkinAt.Valid {
		t := checkinAt.Time
		reg.CheckInAt = &t
	}
	return reg, nil
}

func nullString(p *string) any {
	if p == nil || *p == "" {
		return nil
	}
	return *p
}

func nullInt(p *int) any {
	if p == nil {
		return nil
	}
	return int64(*p)
}

func nullTime(p *time.Time) any {
	if p == nil {
		return nil
	}
	return p.UTC()
}

func joinSkills(skills []string) any {
	if len(skills) == 0 {
		return nil
	}
	return strings.Join(skills, ", ")
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func intPtr(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	n := int(ni.Int64)
	return &n
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
