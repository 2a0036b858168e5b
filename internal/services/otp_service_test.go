package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"obogportal/internal/models"
	"obogportal/internal/repositories"
	"obogportal/internal/repositories/memory"
)

type fakeEmail struct {
	mu     sync.Mutex
	result SendResult
	sent   []string
}

func (f *fakeEmail) SendOTPEmail(_ context.Context, email, code, _ string) SendResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, email+":"+code)
	return f.result
}

func (f *fakeEmail) CheckConfig() EmailConfigStatus {
	return EmailConfigStatus{IsConfigured: f.result.Success, Mode: "gas"}
}

type failingLogs struct{}

func (failingLogs) Create(context.Context, *models.OTPLog) error { return errors.New("audit down") }
func (failingLogs) ListRecent(context.Context, int) ([]*models.OTPLog, error) {
	return nil, errors.New("audit down")
}

type otpFixture struct {
	svc    *otpService
	store  *memory.Store
	repos  *repositories.Repositories
	email  *fakeEmail
	clock  time.Time
	codes  []string
	userID string
}

func newOTPFixture(t *testing.T) *otpFixture {
	t.Helper()
	store := memory.NewStore()
	u := store.AddUser(models.User{Email: "hanako@example.com", Role: "obog"}, "Hanako")
	repos := store.Repositories()
	log := zaptest.NewLogger(t)

	f := &otpFixture{
		store:  store,
		repos:  repos,
		email:  &fakeEmail{result: SendResult{Success: true}},
		clock:  time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC),
		userID: u.ID,
	}
	sessions := NewSessionService("test-secret", 7*24*time.Hour, repos.Profiles, log)
	f.svc = NewOTPService(repos, f.email, sessions, OTPOptions{MaxAttempts: 3}, log).(*otpService)
	f.svc.now = func() time.Time { return f.clock }
	f.svc.generate = func(n int) (string, error) {
		code, err := GenerateCode(n)
		f.codes = append(f.codes, code)
		return code, err
	}
	return f
}

func (f *otpFixture) lastCode() string {
	return f.codes[len(f.codes)-1]
}

func wrongCode(code string) string {
	if code == "000000" {
		return "111111"
	}
	return "000000"
}

func TestRequestOTP_IssuesChallenge(t *testing.T) {
	f := newOTPFixture(t)
	ctx := context.Background()

	issue, err := f.svc.RequestOTP(ctx, "  Hanako@Example.com ", "")
	require.NoError(t, err)
	assert.Equal(t, "hanako@example.com", issue.Email)
	assert.Equal(t, models.PurposeLogin, issue.Purpose)
	assert.Equal(t, f.clock.Add(10*time.Minute), issue.ExpiresAt)
	assert.Len(t, issue.Code, 6)
	assert.True(t, issue.Delivered)

	ch, err := f.repos.Challenges.Get(ctx, "hanako@example.com", models.PurposeLogin)
	require.NoError(t, err)
	assert.NotEqual(t, issue.Code, ch.CodeHash)

	logs, err := f.repos.OTPLogs.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "hanako@example.com", logs[0].Email)
}

func TestRequestOTP_InvalidInput(t *testing.T) {
	f := newOTPFixture(t)
	for _, tc := range []struct{ email, purpose string }{
		{"", "login"},
		{"not-an-email", "login"},
		{"Hanako <hanako@example.com>", "login"},
		{"hanako@example.com", "reset"},
	} {
		_, err := f.svc.RequestOTP(context.Background(), tc.email, tc.purpose)
		assert.ErrorIs(t, err, ErrInvalidInput, "email=%q purpose=%q", tc.email, tc.purpose)
	}
	assert.Empty(t, f.email.sent)
}

func TestRequestOTP_UnknownUserForLogin(t *testing.T) {
	f := newOTPFixture(t)

	_, err := f.svc.RequestOTP(context.Background(), "nobody@example.com", "login")
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = f.repos.Challenges.Get(context.Background(), "nobody@example.com", "login")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	assert.Empty(t, f.email.sent)
}

func TestRequestOTP_RegisterDoesNotNeedUser(t *testing.T) {
	f := newOTPFixture(t)

	issue, err := f.svc.RequestOTP(context.Background(), "new@example.com", "register")
	require.NoError(t, err)
	assert.Equal(t, models.PurposeRegister, issue.Purpose)
}

func TestRequestOTP_DispatchFailureStillSucceeds(t *testing.T) {
	f := newOTPFixture(t)
	f.email.result = SendResult{Success: false, Error: "email service not configured"}

	issue, err := f.svc.RequestOTP(context.Background(), "hanako@example.com", "login")
	require.NoError(t, err)
	assert.False(t, issue.Delivered)
	assert.NotEmpty(t, issue.Code)
}

func TestRequestOTP_AuditFailureIsSwallowed(t *testing.T) {
	f := newOTPFixture(t)
	f.svc.logs = failingLogs{}

	_, err := f.svc.RequestOTP(context.Background(), "hanako@example.com", "login")
	assert.NoError(t, err)
}

func TestVerifyOTP_IssuesSessionOnce(t *testing.T) {
	f := newOTPFixture(t)
	ctx := context.Background()
	_, err := f.svc.RequestOTP(ctx, "hanako@example.com", "login")
	require.NoError(t, err)
	code := f.lastCode()

	f.clock = f.clock.Add(9 * time.Minute)
	session, err := f.svc.VerifyOTP(ctx, "HANAKO@example.com", code, "login")
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, f.userID, session.User.ID)
	assert.Equal(t, "obog", session.User.Role)
	assert.Equal(t, "Hanako", session.User.DisplayName)

	_, err = f.svc.VerifyOTP(ctx, "hanako@example.com", code, "login")
	assert.ErrorIs(t, err, ErrChallengeNotFound)
}

func TestVerifyOTP_Expired(t *testing.T) {
	f := newOTPFixture(t)
	ctx := context.Background()
	_, err := f.svc.RequestOTP(ctx, "hanako@example.com", "login")
	require.NoError(t, err)

	f.clock = f.clock.Add(10 * time.Minute)
	_, err = f.svc.VerifyOTP(ctx, "hanako@example.com", f.lastCode(), "login")
	assert.ErrorIs(t, err, ErrChallengeExpired)
}

func TestVerifyOTP_PurposeMismatchIsNotFound(t *testing.T) {
	f := newOTPFixture(t)
	ctx := context.Background()
	_, err := f.svc.RequestOTP(ctx, "hanako@example.com", "login")
	require.NoError(t, err)

	_, err = f.svc.VerifyOTP(ctx, "hanako@example.com", f.lastCode(), "register")
	assert.ErrorIs(t, err, ErrChallengeNotFound)
}

func TestVerifyOTP_ReissueSupersedes(t *testing.T) {
	f := newOTPFixture(t)
	ctx := context.Background()
	_, err := f.svc.RequestOTP(ctx, "hanako@example.com", "login")
	require.NoError(t, err)
	first := f.lastCode()
	_, err = f.svc.RequestOTP(ctx, "hanako@example.com", "login")
	require.NoError(t, err)
	second := f.lastCode()

	if first != second {
		_, err = f.svc.VerifyOTP(ctx, "hanako@example.com", first, "login")
		assert.ErrorIs(t, err, ErrCodeMismatch)
	}
	_, err = f.svc.VerifyOTP(ctx, "hanako@example.com", second, "login")
	assert.NoError(t, err)
}

func TestVerifyOTP_MismatchThenLockout(t *testing.T) {
	f := newOTPFixture(t)
	ctx := context.Background()
	_, err := f.svc.RequestOTP(ctx, "hanako@example.com", "login")
	require.NoError(t, err)
	bad := wrongCode(f.lastCode())

	_, err = f.svc.VerifyOTP(ctx, "hanako@example.com", bad, "login")
	assert.ErrorIs(t, err, ErrCodeMismatch)
	_, err = f.svc.VerifyOTP(ctx, "hanako@example.com", bad, "login")
	assert.ErrorIs(t, err, ErrCodeMismatch)
	_, err = f.svc.VerifyOTP(ctx, "hanako@example.com", bad, "login")
	assert.ErrorIs(t, err, ErrTooManyAttempts)

	_, err = f.svc.VerifyOTP(ctx, "hanako@example.com", f.lastCode(), "login")
	assert.ErrorIs(t, err, ErrChallengeNotFound)
}

func TestVerifyOTP_UserRemovedAfterIssue(t *testing.T) {
	f := newOTPFixture(t)
	ctx := context.Background()
	_, err := f.svc.RequestOTP(ctx, "newcomer@example.com", "register")
	require.NoError(t, err)

	_, err = f.svc.VerifyOTP(ctx, "newcomer@example.com", f.lastCode(), "register")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestVerifyOTP_ConcurrentSingleUse(t *testing.T) {
	f := newOTPFixture(t)
	ctx := context.Background()
	_, err := f.svc.RequestOTP(ctx, "hanako@example.com", "login")
	require.NoError(t, err)
	code := f.lastCode()

	var ok, notFound int32
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.VerifyOTP(ctx, "hanako@example.com", code, "login")
			switch {
			case err == nil:
				atomic.AddInt32(&ok, 1)
			case errors.Is(err, ErrChallengeNotFound):
				atomic.AddInt32(&notFound, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), ok)
	assert.Equal(t, int32(3), notFound)
}

func TestVerifyOTP_InvalidInput(t *testing.T) {
	f := newOTPFixture(t)
	_, err := f.svc.VerifyOTP(context.Background(), "hanako@example.com", " ", "login")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.svc.VerifyOTP(context.Background(), "", "123456", "login")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestVerifyOTP_PaddedCodeIsRejected(t *testing.T) {
	f := newOTPFixture(t)
	ctx := context.Background()
	_, err := f.svc.RequestOTP(ctx, "hanako@example.com", "login")
	require.NoError(t, err)
	code := f.lastCode()

	_, err = f.svc.VerifyOTP(ctx, "hanako@example.com", " "+code+" ", "login")
	assert.ErrorIs(t, err, ErrInvalidInput)

	ch, err := f.repos.Challenges.Get(ctx, "hanako@example.com", models.PurposeLogin)
	require.NoError(t, err)
	assert.Zero(t, ch.Attempts)

	_, err = f.svc.VerifyOTP(ctx, "hanako@example.com", code, "login")
	assert.NoError(t, err)
}
