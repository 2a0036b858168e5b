package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"obogportal/internal/models"
)

type profileRepository struct {
	DB *sql.DB
}

func NewProfileRepository(db *sql.DB) ProfileRepository {
	return &profileRepository{DB: db}
}

const profileColumns = `user_id::text, COALESCE(display_name, ''), COALESCE(avatar_url, ''), graduation_year, department`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*models.Profile, error) {
	p := &models.Profile{}
	var (
		year sql.NullInt64
		dept sql.NullString
	)
	if err := row.Scan(&p.UserID, &p.DisplayName, &p.AvatarURL, &year, &dept); err != nil {
		return nil, err
	}
	if year.Valid {
		y := int(year.Int64)
		p.GraduationYear = &y
	}
	if dept.Valid {
		d := dept.String
		p.Department = &d
	}
	return p, nil
}

func (r *profileRepository) GetByUserID(ctx context.Context, userID string) (*models.Profile, error) {
	q := `SELECT ` + profileColumns + ` FROM profiles WHERE user_id = $1::uuid`
	p, err := scanProfile(r.DB.QueryRowContext(ctx, q, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidText(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

func (r *profileRepository) List(ctx context.Context, limit, offset int) ([]*models.Profile, error) {
	q := `SELECT ` + profileColumns + ` FROM profiles ORDER BY user_id LIMIT $1 OFFSET $2`
	rows, err := r.DB.QueryContext(ctx, q, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*models.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}
