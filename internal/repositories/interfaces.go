package repositories

import (
	"context"
	"errors"

	"obogportal/internal/models"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context, limit, offset int) ([]*models.User, error)
}

type ProfileRepository interface {
	GetByUserID(ctx context.Context, userID string) (*models.Profile, error)
	List(ctx context.Context, limit, offset int) ([]*models.Profile, error)
}

type OTPLogRepository interface {
	Create(ctx context.Context, log *models.OTPLog) error
	ListRecent(ctx context.Context, limit int) ([]*models.OTPLog, error)
}

// ChallengeRepository keeps at most one active challenge per (email, purpose).
type ChallengeRepository interface {
	// Save replaces whatever challenge exists for the same email and purpose.
	Save(ctx context.Context, ch *models.OTPChallenge) error
	Get(ctx context.Context, email, purpose string) (*models.OTPChallenge, error)
	// IncrementAttempts returns the new attempt count.
	IncrementAttempts(ctx context.Context, id string) (int, error)
	// Consume deletes the challenge with the given id. Only one caller can win; the
	// others get ErrNotFound.
	Consume(ctx context.Context, id string) error
}

type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id int64) (*models.Post, error)
	List(ctx context.Context, limit, offset int) ([]*models.Post, error)
	Delete(ctx context.Context, id int64) error
}

// Repositories groups one backend's implementations for wiring.
type Repositories struct {
	Users      UserRepository
	Profiles   ProfileRepository
	OTPLogs    OTPLogRepository
	Challenges ChallengeRepository
	Posts      PostRepository
}
