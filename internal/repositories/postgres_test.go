package repositories

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"obogportal/internal/models"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

func TestUserRepository_GetByEmail(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)
	created := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`(?s)SELECT id::text, email, role, created_at\s+FROM users\s+WHERE lower\(email\) = lower\(\$1\)`).
		WithArgs("user@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "role", "created_at"}).
			AddRow("3f1c", "user@example.com", "obog", created))

	u, err := repo.GetByEmail(context.Background(), "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, "3f1c", u.ID)
	assert.Equal(t, "obog", u.Role)
	assert.Equal(t, created, u.CreatedAt)
}

func TestUserRepository_GetByEmail_NotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(`FROM users`).WithArgs("nobody@example.com").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserRepository_GetByID_MalformedUUID(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(`WHERE id = \$1::uuid`).WithArgs("not-a-uuid").
		WillReturnError(&pq.Error{Code: "22P02", Message: "invalid input syntax for type uuid"})

	_, err := repo.GetByID(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserRepository_GetByEmail_DBError(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(`FROM users`).WillReturnError(errors.New("connection refused"))

	_, err := repo.GetByEmail(context.Background(), "user@example.com")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "get user by email")
}

func TestProfileRepository_GetByUserID(t *testing.T) {
	db, mock := newMock(t)
	repo := NewProfileRepository(db)

	mock.ExpectQuery(`FROM profiles WHERE user_id = \$1::uuid`).WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "display_name", "avatar_url", "graduation_year", "department"}).
			AddRow("u1", "Hanako", "", int64(2019), nil))

	p, err := repo.GetByUserID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "Hanako", p.DisplayName)
	require.NotNil(t, p.GraduationYear)
	assert.Equal(t, 2019, *p.GraduationYear)
	assert.Nil(t, p.Department)
}

func TestOTPLogRepository_Create(t *testing.T) {
	db, mock := newMock(t)
	repo := NewOTPLogRepository(db)
	now := time.Now()

	mock.ExpectQuery(`(?s)INSERT INTO otp_logs \(email, purpose, issued_at, expires_at\).*RETURNING id`).
		WithArgs("user@example.com", "login", now, now.Add(10*time.Minute)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	l := &models.OTPLog{Email: "user@example.com", Purpose: "login", IssuedAt: now, ExpiresAt: now.Add(10 * time.Minute)}
	require.NoError(t, repo.Create(context.Background(), l))
	assert.Equal(t, int64(7), l.ID)
}

func TestChallengeRepository_SaveUpserts(t *testing.T) {
	db, mock := newMock(t)
	repo := NewChallengeRepository(db)
	now := time.Now()

	mock.ExpectExec(`(?s)INSERT INTO otp_challenges.*ON CONFLICT \(email, purpose\) DO UPDATE`).
		WithArgs("c1", "user@example.com", "login", "hash", now, now.Add(time.Minute)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ch := &models.OTPChallenge{ID: "c1", Email: "user@example.com", Purpose: "login", CodeHash: "hash", Attempts: 3, IssuedAt: now, ExpiresAt: now.Add(time.Minute)}
	require.NoError(t, repo.Save(context.Background(), ch))
	assert.Zero(t, ch.Attempts)
}

func TestChallengeRepository_Get(t *testing.T) {
	db, mock := newMock(t)
	repo := NewChallengeRepository(db)
	now := time.Now()

	mock.ExpectQuery(`FROM otp_challenges\s+WHERE email = \$1 AND purpose = \$2`).
		WithArgs("user@example.com", "login").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "purpose", "code_hash", "attempts", "issued_at", "expires_at"}).
			AddRow("c1", "user@example.com", "login", "hash", 2, now, now.Add(time.Minute)))

	ch, err := repo.Get(context.Background(), "user@example.com", "login")
	require.NoError(t, err)
	assert.Equal(t, "c1", ch.ID)
	assert.Equal(t, 2, ch.Attempts)

	mock.ExpectQuery(`FROM otp_challenges`).WithArgs("user@example.com", "register").WillReturnError(sql.ErrNoRows)
	_, err = repo.Get(context.Background(), "user@example.com", "register")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestChallengeRepository_IncrementAttempts(t *testing.T) {
	db, mock := newMock(t)
	repo := NewChallengeRepository(db)

	mock.ExpectQuery(`(?s)UPDATE otp_challenges\s+SET attempts = attempts \+ 1.*RETURNING attempts`).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"attempts"}).AddRow(4))

	n, err := repo.IncrementAttempts(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestChallengeRepository_ConsumeOnce(t *testing.T) {
	db, mock := newMock(t)
	repo := NewChallengeRepository(db)

	mock.ExpectExec(`DELETE FROM otp_challenges WHERE id = \$1::uuid`).WithArgs("c1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM otp_challenges WHERE id = \$1::uuid`).WithArgs("c1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Consume(context.Background(), "c1"))
	assert.ErrorIs(t, repo.Consume(context.Background(), "c1"), ErrNotFound)
}

func TestPostRepository_CreateAndDelete(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostRepository(db)
	now := time.Now()

	mock.ExpectExec(`(?s)INSERT INTO posts \(id, author_id, title, body, image_url, created_at\)`).
		WithArgs(int64(42), "u1", "Hello", "First post", "", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM posts WHERE id = \$1`).WithArgs(int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Create(context.Background(), &models.Post{ID: 42, AuthorID: "u1", Title: "Hello", Body: "First post", CreatedAt: now}))
	assert.ErrorIs(t, repo.Delete(context.Background(), 99), ErrNotFound)
}

func TestMigrate_UsesEmbeddedMigrations(t *testing.T) {
	db, _ := newMock(t)

	var gotDir string
	orig := gooseUp
	gooseUp = func(_ context.Context, _ *sql.DB, dir string) error {
		gotDir = dir
		return nil
	}
	t.Cleanup(func() { gooseUp = orig })

	require.NoError(t, Migrate(context.Background(), db))
	assert.Equal(t, ".", gotDir)

	gooseUp = func(context.Context, *sql.DB, string) error { return errors.New("boom") }
	err := Migrate(context.Background(), db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migrate")
}
