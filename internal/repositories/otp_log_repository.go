package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"obogportal/internal/models"
)

type otpLogRepository struct {
	DB *sql.DB
}

func NewOTPLogRepository(db *sql.DB) OTPLogRepository {
	return &otpLogRepository{DB: db}
}

// Create appends an audit row; every issuance is a new row.
func (r *otpLogRepository) Create(ctx context.Context, l *models.OTPLog) error {
	const q = `
		INSERT INTO otp_logs (email, purpose, issued_at, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	if err := r.DB.QueryRowContext(ctx, q, l.Email, l.Purpose, l.IssuedAt, l.ExpiresAt).Scan(&l.ID); err != nil {
		return fmt.Errorf("otp_log create: %w", err)
	}
	return nil
}

func (r *otpLogRepository) ListRecent(ctx context.Context, limit int) ([]*models.OTPLog, error) {
	const q = `
		SELECT id, email, purpose, issued_at, expires_at
		FROM otp_logs
		ORDER BY issued_at DESC
		LIMIT $1
	`
	rows, err := r.DB.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("otp_log list: %w", err)
	}
	defer rows.Close()

	var logs []*models.OTPLog
	for rows.Next() {
		l := &models.OTPLog{}
		if err := rows.Scan(&l.ID, &l.Email, &l.Purpose, &l.IssuedAt, &l.ExpiresAt); err != nil {
			return nil, fmt.Errorf("otp_log scan: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
