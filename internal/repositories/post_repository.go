package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"obogportal/internal/models"
)

type postRepository struct {
	DB *sql.DB
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{DB: db}
}

func (r *postRepository) Create(ctx context.Context, p *models.Post) error {
	const q = `
		INSERT INTO posts (id, author_id, title, body, image_url, created_at)
		VALUES ($1, $2::uuid, $3, $4, NULLIF($5, ''), $6)
	`
	if _, err := r.DB.ExecContext(ctx, q, p.ID, p.AuthorID, p.Title, p.Body, p.ImageURL, p.CreatedAt); err != nil {
		return fmt.Errorf("create post: %w", err)
	}
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	const q = `
		SELECT id, author_id::text, title, body, COALESCE(image_url, ''), created_at
		FROM posts
		WHERE id = $1
	`
	p := &models.Post{}
	err := r.DB.QueryRowContext(ctx, q, id).Scan(&p.ID, &p.AuthorID, &p.Title, &p.Body, &p.ImageURL, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get post: %w", err)
	}
	return p, nil
}

func (r *postRepository) List(ctx context.Context, limit, offset int) ([]*models.Post, error) {
	const q = `
		SELECT id, author_id::text, title, body, COALESCE(image_url, ''), created_at
		FROM posts
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.DB.QueryContext(ctx, q, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		p := &models.Post{}
		if err := rows.Scan(&p.ID, &p.AuthorID, &p.Title, &p.Body, &p.ImageURL, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

func (r *postRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
