package registration

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return NewRepository(db, nil), mock
}

func columnNames() []string {
	names := make([]string, len(registrationColumns))
	for i, c := range registrationColumns {
		names[i] = c.name
	}
	return names
}

func registrationRow(uid string, created time.Time) []driver.Value {
	return []driver.Value{
		uid, "internship", "internship", "Ada Lovelace", "ada@example.com", "5551234567",
		"MIT", nil, int64(2025), nil, nil,
		"https://ada.dev", nil, "go, sql", nil, nil, nil, nil,
		"submissions/" + uid + "/photo.png", nil,
		"new", false, nil, created,
	}
}

func sampleRegistration() *Registration {
	return &Registration{
		UID:     "RWT-INT-250101-AB12",
		Kind:    KindInternship,
		Purpose: "internship",
		Name:    "Ada",
		Email:   "ada@example.com",
		Phone:   "5551234567",
		Skills:  []string{"go"},
		Status:  StatusNew,
	}
}

func TestRepositoryLoadColumns(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("SELECT column_name FROM information_schema.columns").
		WillReturnRows(sqlmock.NewRows([]string{"column_name"}).AddRow("uid").AddRow("name").AddRow("skills"))

	require.NoError(t, repo.LoadColumns(context.Background()))
	assert.True(t, repo.HasColumn("skills"))
	assert.False(t, repo.HasColumn("portfolio_url"))
}

func TestRepositoryLoadColumnsMissingTable(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("SELECT column_name FROM information_schema.columns").
		WillReturnRows(sqlmock.NewRows([]string{"column_name"}))

	assert.Error(t, repo.LoadColumns(context.Background()))
	assert.True(t, repo.HasColumn("portfolio_url"))
}

func TestRepositoryInsertReturnsCreatedAt(t *testing.T) {
	repo, mock := newMockRepo(t)
	created := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`INSERT INTO registrations \(uid, type, purpose, name`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))

	reg := sampleRegistration()
	require.NoError(t, repo.Insert(context.Background(), reg))
	assert.Equal(t, created, reg.CreatedAt)
}

func TestRepositoryInsertSkipsColumnsTheTableLacks(t *testing.T) {
	repo, mock := newMockRepo(t)
	repo.columns = map[string]bool{"skills": true}
	mock.ExpectQuery(regexp.QuoteMeta(
		"INSERT INTO registrations (uid, type, name, email, phone, skills, photo_path, resume_path, status, checked_in, checkin_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING created_at")).
		WithArgs("RWT-INT-250101-AB12", "internship", "Ada", "ada@example.com", "5551234567", "go", nil, nil, "new", false, nil).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	require.NoError(t, repo.Insert(context.Background(), sampleRegistration()))
}

func TestRepositoryInsertRetriesWithCoreColumns(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(`INSERT INTO registrations \(uid, type, purpose`).
		WillReturnError(&pgconn.PgError{Code: pgUndefinedColumn, Message: `column "skills" does not exist`})
	mock.ExpectQuery("SELECT column_name FROM information_schema.columns").
		WillReturnRows(sqlmock.NewRows([]string{"column_name"}).AddRow("uid").AddRow("type"))
	mock.ExpectQuery(regexp.QuoteMeta(
		"INSERT INTO registrations (uid, type, name, email, phone, photo_path, resume_path, status, checked_in, checkin_at) VALUES")).
		WithArgs("RWT-INT-250101-AB12", "internship", "Ada", "ada@example.com", "5551234567", nil, nil, "new", false, nil).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	require.NoError(t, repo.Insert(context.Background(), sampleRegistration()))
}

func TestRepositoryInsertRetriesOnColumnTypeMismatch(t *testing.T) {
	for _, code := range []string{"42804", "22P02"} {
		t.Run(code, func(t *testing.T) {
			repo, mock := newMockRepo(t)
			mock.ExpectQuery(`INSERT INTO registrations \(uid, type, purpose`).
				WillReturnError(&pgconn.PgError{Code: code, Message: `column "skills" is of type text[]`})
			mock.ExpectQuery(regexp.QuoteMeta(
				"INSERT INTO registrations (uid, type, name, email, phone, photo_path, resume_path, status, checked_in, checkin_at) VALUES")).
				WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

			require.NoError(t, repo.Insert(context.Background(), sampleRegistration()))
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRepositoryInsertRetriesOnlyOnce(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("INSERT INTO registrations").
		WillReturnError(&pgconn.PgError{Code: "42804"})
	mock.ExpectQuery("INSERT INTO registrations").
		WillReturnError(&pgconn.PgError{Code: "42804"})

	err := repo.Insert(context.Background(), sampleRegistration())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "42804")
}

func TestRepositoryInsertDoesNotRetryOtherErrors(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("INSERT INTO registrations").WillReturnError(errors.New("connection reset"))

	err := repo.Insert(context.Background(), sampleRegistration())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrConflict)
}

func TestRepositoryInsertUniqueViolation(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("INSERT INTO registrations").
		WillReturnError(&pgconn.PgError{Code: pgUniqueViolation, Detail: "Key (uid) already exists."})

	err := repo.Insert(context.Background(), sampleRegistration())
	assert.ErrorIs(t, err, ErrConflict)
}

func TestRepositoryGet(t *testing.T) {
	repo, mock := newMockRepo(t)
	created := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT uid, type, purpose, .* FROM registrations WHERE uid = \$1`).
		WithArgs("A").
		WillReturnRows(sqlmock.NewRows(columnNames()).AddRow(registrationRow("A", created)...))

	reg, err := repo.Get(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, "A", reg.UID)
	assert.Equal(t, KindInternship, reg.Kind)
	assert.Equal(t, StatusNew, reg.Status)
	require.NotNil(t, reg.College)
	assert.Equal(t, "MIT", *reg.College)
	assert.Nil(t, reg.Degree)
	require.NotNil(t, reg.GraduationYear)
	assert.Equal(t, 2025, *reg.GraduationYear)
	assert.Equal(t, []string{"go", "sql"}, reg.Skills)
	require.NotNil(t, reg.PhotoPath)
	assert.Nil(t, reg.CheckInAt)
	assert.Equal(t, created, reg.CreatedAt)
}

func TestRepositoryGetSelectsNullForMissingColumns(t *testing.T) {
	repo, mock := newMockRepo(t)
	repo.columns = map[string]bool{"purpose": true}
	mock.ExpectQuery(regexp.QuoteMeta("NULL::text AS portfolio_url")).
		WithArgs("A").
		WillReturnRows(sqlmock.NewRows(columnNames()))

	_, err := repo.Get(context.Background(), "A")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepositoryListWithSearch(t *testing.T) {
	repo, mock := newMockRepo(t)
	created := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT COUNT(*) FROM registrations WHERE (name ILIKE $1 OR email ILIKE $1 OR phone ILIKE $1) AND status = $2")).
		WithArgs(`%ada\_l%`, "new").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))
	mock.ExpectQuery(`ORDER BY created_at DESC LIMIT \$3 OFFSET \$4`).
		WithArgs(`%ada\_l%`, "new", DefaultListLimit, 0).
		WillReturnRows(sqlmock.NewRows(columnNames()).
			AddRow(registrationRow("B", created.Add(time.Hour))...).
			AddRow(registrationRow("A", created)...))

	page, err := repo.List(context.Background(), Filter{Query: " ada_l ", Status: "NEW"})
	require.NoError(t, err)
	assert.Equal(t, 7, page.Count)
	require.Len(t, page.Data, 2)
	assert.Equal(t, "B", page.Data[0].UID)
}

func TestRepositoryListClampsLimit(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM registrations")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`LIMIT \$1 OFFSET \$2`).
		WithArgs(MaxListLimit, 0).
		WillReturnRows(sqlmock.NewRows(columnNames()))

	page, err := repo.List(context.Background(), Filter{Limit: 10000, Offset: -5})
	require.NoError(t, err)
	assert.NotNil(t, page.Data)
	assert.Empty(t, page.Data)
}

func TestRepositoryUpdate(t *testing.T) {
	repo, mock := newMockRepo(t)
	hired := StatusHired
	yes := true
	at := time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE registrations SET checked_in = $1, checkin_at = $2, status = $3 WHERE uid = $4")).
		WithArgs(true, at, "hired", "A").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Update(context.Background(), "A", Change{CheckedIn: &yes, CheckInAt: &at, Status: &hired}))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE registrations SET status = $1 WHERE uid = $2")).
		WithArgs("hired", "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Update(context.Background(), "missing", Change{Status: &hired}), ErrNotFound)

	assert.ErrorIs(t, repo.Update(context.Background(), "A", Change{}), ErrNothingToUpdate)
}

func TestRepositoryCheckIn(t *testing.T) {
	repo, mock := newMockRepo(t)
	at := time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`UPDATE registrations AS r`).
		WithArgs("A", at).
		WillReturnRows(sqlmock.NewRows([]string{"checked_in"}).AddRow(true))
	was, found, err := repo.CheckIn(context.Background(), "A", at)
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, was)

	mock.ExpectQuery(`UPDATE registrations AS r`).
		WithArgs("missing", at).
		WillReturnRows(sqlmock.NewRows([]string{"checked_in"}))
	_, found, err = repo.CheckIn(context.Background(), "missing", at)
	require.NoError(t, err)
	assert.False(t, found)
}
