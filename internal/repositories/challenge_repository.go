package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"obogportal/internal/models"
)

type challengeRepository struct {
	DB *sql.DB
}

func NewChallengeRepository(db *sql.DB) ChallengeRepository {
	return &challengeRepository{DB: db}
}

// Save upserts on (email, purpose): the latest issuance wins and resets the attempt counter.
func (r *challengeRepository) Save(ctx context.Context, ch *models.OTPChallenge) error {
	const q = `
		INSERT INTO otp_challenges (id, email, purpose, code_hash, attempts, issued_at, expires_at)
		VALUES ($1::uuid, $2, $3, $4, 0, $5, $6)
		ON CONFLICT (email, purpose) DO UPDATE
		SET id = EXCLUDED.id,
		    code_hash = EXCLUDED.code_hash,
		    attempts = 0,
		    issued_at = EXCLUDED.issued_at,
		    expires_at = EXCLUDED.expires_at
	`
	if _, err := r.DB.ExecContext(ctx, q, ch.ID, ch.Email, ch.Purpose, ch.CodeHash, ch.IssuedAt, ch.ExpiresAt); err != nil {
		return fmt.Errorf("otp_challenge save: %w", err)
	}
	ch.Attempts = 0
	return nil
}

func (r *challengeRepository) Get(ctx context.Context, email, purpose string) (*models.OTPChallenge, error) {
	const q = `
		SELECT id::text, email, purpose, code_hash, attempts, issued_at, expires_at
		FROM otp_challenges
		WHERE email = $1 AND purpose = $2
	`
	ch := &models.OTPChallenge{}
	err := r.DB.QueryRowContext(ctx, q, email, purpose).Scan(
		&ch.ID, &ch.Email, &ch.Purpose, &ch.CodeHash, &ch.Attempts, &ch.IssuedAt, &ch.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("otp_challenge get: %w", err)
	}
	return ch, nil
}

func (r *challengeRepository) IncrementAttempts(ctx context.Context, id string) (int, error) {
	const q = `
		UPDATE otp_challenges
		SET attempts = attempts + 1
		WHERE id = $1::uuid
		RETURNING attempts
	`
	var attempts int
	if err := r.DB.QueryRowContext(ctx, q, id).Scan(&attempts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("otp_challenge increment attempts: %w", err)
	}
	return attempts, nil
}

func (r *challengeRepository) Consume(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM otp_challenges WHERE id = $1::uuid`, id)
	if err != nil {
		return fmt.Errorf("otp_challenge consume: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("otp_challenge consume: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
