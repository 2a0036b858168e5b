package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"obogportal/internal/logging"
	"obogportal/internal/models"
	"obogportal/internal/repositories"
)

const (
	defaultOTPTTL         = 10 * time.Minute
	defaultMaxAttempts    = 5
	defaultDispatchBudget = 15 * time.Second
)

// OTPIssue is the result of a successful RequestOTP. Code is the raw code; callers decide
// whether it may leave the process.
type OTPIssue struct {
	Email     string
	Purpose   string
	ExpiresAt time.Time
	Code      string
	Delivered bool
}

type OTPOptions struct {
	CodeLength  int
	TTL         time.Duration
	MaxAttempts int
}

type OTPService interface {
	RequestOTP(ctx context.Context, email, purpose string) (*OTPIssue, error)
	VerifyOTP(ctx context.Context, email, code, purpose string) (*Session, error)
}

type otpService struct {
	users      repositories.UserRepository
	profiles   repositories.ProfileRepository
	logs       repositories.OTPLogRepository
	challenges repositories.ChallengeRepository
	emails     EmailService
	sessions   SessionService
	opts       OTPOptions
	logger     *zap.Logger

	now      func() time.Time
	generate func(int) (string, error)
}

func NewOTPService(
	repos *repositories.Repositories,
	emails EmailService,
	sessions SessionService,
	opts OTPOptions,
	logger *zap.Logger,
) OTPService {
	if opts.TTL <= 0 {
		opts.TTL = defaultOTPTTL
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	return &otpService{
		users:      repos.Users,
		profiles:   repos.Profiles,
		logs:       repos.OTPLogs,
		challenges: repos.Challenges,
		emails:     emails,
		sessions:   sessions,
		opts:       opts,
		logger:     logger.Named("otp"),
		now:        time.Now,
		generate:   GenerateCode,
	}
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: malformed email", ErrInvalidInput)
	}
	return email, nil
}

func normalizePurpose(purpose string) (string, error) {
	switch p := strings.ToLower(strings.TrimSpace(purpose)); p {
	case "":
		return models.PurposeLogin, nil
	case models.PurposeLogin, models.PurposeRegister:
		return p, nil
	default:
		return "", fmt.Errorf("%w: unknown purpose %q", ErrInvalidInput, purpose)
	}
}

func (s *otpService) RequestOTP(ctx context.Context, email, purpose string) (*OTPIssue, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	purpose, err = normalizePurpose(purpose)
	if err != nil {
		return nil, err
	}

	if purpose == models.PurposeLogin {
		if _, err := s.users.GetByEmail(ctx, email); err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return nil, ErrUserNotFound
			}
			return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
		}
	}

	code, err := s.generate(s.opts.CodeLength)
	if err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("bcrypt generate: %w", err)
	}

	now := s.now()
	ch := &models.OTPChallenge{
		ID:        uuid.NewString(),
		Email:     email,
		Purpose:   purpose,
		CodeHash:  string(hash),
		IssuedAt:  now,
		ExpiresAt: now.Add(s.opts.TTL),
	}
	if err := s.challenges.Save(ctx, ch); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	if err := s.logs.Create(ctx, &models.OTPLog{
		Email:     email,
		Purpose:   purpose,
		IssuedAt:  ch.IssuedAt,
		ExpiresAt: ch.ExpiresAt,
	}); err != nil {
		s.logger.Warn("otp audit log failed", zap.String("email", logging.MaskEmail(email)), zap.Error(err))
	}

	// The dispatch outcome never changes the issuance result; the challenge already exists.
	dispatchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultDispatchBudget)
	defer cancel()
	res := s.emails.SendOTPEmail(dispatchCtx, email, code, purpose)
	if !res.Success {
		s.logger.Warn("otp dispatch failed", zap.String("email", logging.MaskEmail(email)), zap.String("error", res.Error))
	}

	s.logger.Info("otp issued",
		zap.String("email", logging.MaskEmail(email)),
		zap.String("purpose", purpose),
		zap.Time("expires_at", ch.ExpiresAt),
		zap.Bool("delivered", res.Success),
	)
	return &OTPIssue{
		Email:     email,
		Purpose:   purpose,
		ExpiresAt: ch.ExpiresAt,
		Code:      code,
		Delivered: res.Success,
	}, nil
}

func (s *otpService) VerifyOTP(ctx context.Context, email, code, purpose string) (*Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	// codes compare byte for byte; padding is rejected rather than trimmed
	switch {
	case code == "":
		return nil, fmt.Errorf("%w: code is required", ErrInvalidInput)
	case strings.TrimSpace(code) != code:
		return nil, fmt.Errorf("%w: code must not contain surrounding whitespace", ErrInvalidInput)
	}
	purpose, err = normalizePurpose(purpose)
	if err != nil {
		return nil, err
	}

	ch, err := s.challenges.Get(ctx, email, purpose)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrChallengeNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if !s.now().Before(ch.ExpiresAt) {
		return nil, ErrChallengeExpired
	}

	if err := bcrypt.CompareHashAndPassword([]byte(ch.CodeHash), []byte(code)); err != nil {
		attempts, incErr := s.challenges.IncrementAttempts(ctx, ch.ID)
		if incErr != nil {
			if errors.Is(incErr, repositories.ErrNotFound) {
				return nil, ErrChallengeNotFound
			}
			return nil, fmt.Errorf("%w: %v", ErrUpstream, incErr)
		}
		if attempts >= s.opts.MaxAttempts {
			if err := s.challenges.Consume(ctx, ch.ID); err != nil && !errors.Is(err, repositories.ErrNotFound) {
				s.logger.Warn("discard exhausted challenge failed", zap.String("challenge_id", ch.ID), zap.Error(err))
			}
			s.logger.Info("otp attempts exhausted", zap.String("email", logging.MaskEmail(email)), zap.String("purpose", purpose))
			return nil, ErrTooManyAttempts
		}
		return nil, ErrCodeMismatch
	}

	// Consume before issuing: of two concurrent verifications only one gets a session.
	if err := s.challenges.Consume(ctx, ch.ID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrChallengeNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	profile, err := s.profiles.GetByUserID(ctx, user.ID)
	if err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			s.logger.Warn("profile lookup failed", zap.String("user_id", user.ID), zap.Error(err))
		}
		profile = nil
	}

	session, err := s.sessions.Issue(user, profile)
	if err != nil {
		return nil, err
	}
	s.logger.Info("otp verified", zap.String("user_id", user.ID), zap.String("purpose", purpose))
	return session, nil
}
