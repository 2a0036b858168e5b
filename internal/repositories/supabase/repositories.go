package supabase

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"obogportal/internal/models"
	"obogportal/internal/repositories"
)

type userRepo struct{ c *Client }

func (r userRepo) one(ctx context.Context, column, value string) (*models.User, error) {
	q := url.Values{}
	q.Set("select", "id,email,role,created_at")
	q.Set(column, eq(value))
	q.Set("limit", "1")

	var rows []*models.User
	if err := r.c.do(ctx, http.MethodGet, "users", q, nil, &rows); err != nil {
		if isInvalidInput(err) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("get user by %s: %w", column, err)
	}
	if len(rows) == 0 {
		return nil, repositories.ErrNotFound
	}
	return rows[0], nil
}

// GetByEmail relies on emails being stored lower-cased, as the sign-up flow does.
func (r userRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.one(ctx, "email", strings.ToLower(email))
}

func (r userRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.one(ctx, "id", id)
}

func (r userRepo) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	q := pageQuery(url.Values{"select": {"id,email,role,created_at"}}, "created_at.desc", limit, offset)
	var rows []*models.User
	if err := r.c.do(ctx, http.MethodGet, "users", q, nil, &rows); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return rows, nil
}

type profileRow struct {
	UserID         string  `json:"user_id"`
	DisplayName    *string `json:"display_name"`
	AvatarURL      *string `json:"avatar_url"`
	GraduationYear *int    `json:"graduation_year"`
	Department     *string `json:"department"`
}

func (p profileRow) model() *models.Profile {
	m := &models.Profile{UserID: p.UserID, GraduationYear: p.GraduationYear, Department: p.Department}
	if p.DisplayName != nil {
		m.DisplayName = *p.DisplayName
	}
	if p.AvatarURL != nil {
		m.AvatarURL = *p.AvatarURL
	}
	return m
}

const profileSelect = "user_id,display_name,avatar_url,graduation_year,department"

type profileRepo struct{ c *Client }

func (r profileRepo) GetByUserID(ctx context.Context, userID string) (*models.Profile, error) {
	q := url.Values{"select": {profileSelect}, "user_id": {eq(userID)}, "limit": {"1"}}
	var rows []profileRow
	if err := r.c.do(ctx, http.MethodGet, "profiles", q, nil, &rows); err != nil {
		if isInvalidInput(err) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	if len(rows) == 0 {
		return nil, repositories.ErrNotFound
	}
	return rows[0].model(), nil
}

func (r profileRepo) List(ctx context.Context, limit, offset int) ([]*models.Profile, error) {
	q := pageQuery(url.Values{"select": {profileSelect}}, "user_id.asc", limit, offset)
	var rows []profileRow
	if err := r.c.do(ctx, http.MethodGet, "profiles", q, nil, &rows); err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	out := make([]*models.Profile, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.model())
	}
	return out, nil
}

type otpLogRepo struct{ c *Client }

func (r otpLogRepo) Create(ctx context.Context, l *models.OTPLog) error {
	body := map[string]any{
		"email":      l.Email,
		"purpose":    l.Purpose,
		"issued_at":  l.IssuedAt,
		"expires_at": l.ExpiresAt,
	}
	var rows []*models.OTPLog
	if err := r.c.do(ctx, http.MethodPost, "otp_logs", nil, body, &rows); err != nil {
		return fmt.Errorf("otp_log create: %w", err)
	}
	if len(rows) > 0 {
		l.ID = rows[0].ID
	}
	return nil
}

func (r otpLogRepo) ListRecent(ctx context.Context, limit int) ([]*models.OTPLog, error) {
	q := pageQuery(url.Values{"select": {"id,email,purpose,issued_at,expires_at"}}, "issued_at.desc", limit, 0)
	var rows []*models.OTPLog
	if err := r.c.do(ctx, http.MethodGet, "otp_logs", q, nil, &rows); err != nil {
		return nil, fmt.Errorf("otp_log list: %w", err)
	}
	return rows, nil
}

// postRow carries the id as a plain JSON number; models.Post renders it as a string for
// browsers.
type postRow struct {
	ID        int64     `json:"id"`
	AuthorID  string    `json:"author_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	ImageURL  *string   `json:"image_url"`
	CreatedAt time.Time `json:"created_at"`
}

func (p postRow) model() *models.Post {
	m := &models.Post{ID: p.ID, AuthorID: p.AuthorID, Title: p.Title, Body: p.Body, CreatedAt: p.CreatedAt}
	if p.ImageURL != nil {
		m.ImageURL = *p.ImageURL
	}
	return m
}

const postSelect = "id,author_id,title,body,image_url,created_at"

type postRepo struct{ c *Client }

func (r postRepo) Create(ctx context.Context, p *models.Post) error {
	body := map[string]any{
		"id":         p.ID,
		"author_id":  p.AuthorID,
		"title":      p.Title,
		"body":       p.Body,
		"created_at": p.CreatedAt,
	}
	if p.ImageURL != "" {
		body["image_url"] = p.ImageURL
	}
	if err := r.c.do(ctx, http.MethodPost, "posts", nil, body, nil); err != nil {
		if apiErr, ok := err.(*apiError); ok && apiErr.Code == "23505" {
			return repositories.ErrConflict
		}
		return fmt.Errorf("create post: %w", err)
	}
	return nil
}

func (r postRepo) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	q := url.Values{"select": {postSelect}, "id": {eq(strconv.FormatInt(id, 10))}, "limit": {"1"}}
	var rows []postRow
	if err := r.c.do(ctx, http.MethodGet, "posts", q, nil, &rows); err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}
	if len(rows) == 0 {
		return nil, repositories.ErrNotFound
	}
	return rows[0].model(), nil
}

func (r postRepo) List(ctx context.Context, limit, offset int) ([]*models.Post, error) {
	q := pageQuery(url.Values{"select": {postSelect}}, "created_at.desc,id.desc", limit, offset)
	var rows []postRow
	if err := r.c.do(ctx, http.MethodGet, "posts", q, nil, &rows); err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	out := make([]*models.Post, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.model())
	}
	return out, nil
}

func (r postRepo) Delete(ctx context.Context, id int64) error {
	q := url.Values{"id": {eq(strconv.FormatInt(id, 10))}}
	var rows []postRow
	if err := r.c.do(ctx, http.MethodDelete, "posts", q, nil, &rows); err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	if len(rows) == 0 {
		return repositories.ErrNotFound
	}
	return nil
}
