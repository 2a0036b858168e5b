package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	"obogportal/internal/authz"
	"obogportal/internal/models"
	"obogportal/internal/repositories"
)

const (
	maxTitleLength   = 200
	maxBodyLength    = 10000
	defaultPageLimit = 20
	maxPageLimit     = 100
)

type PostService interface {
	Create(ctx context.Context, author *models.Identity, req models.CreatePostRequest) (*models.Post, error)
	Get(ctx context.Context, id int64) (*models.Post, error)
	List(ctx context.Context, limit, offset int) ([]*models.Post, error)
	Delete(ctx context.Context, actor *models.Identity, id int64) error
}

type postService struct {
	repo   repositories.PostRepository
	ids    *snowflake.Node
	logger *zap.Logger
	now    func() time.Time
}

func NewPostService(repo repositories.PostRepository, ids *snowflake.Node, logger *zap.Logger) PostService {
	return &postService{repo: repo, ids: ids, logger: logger.Named("posts"), now: time.Now}
}

func (s *postService) Create(ctx context.Context, author *models.Identity, req models.CreatePostRequest) (*models.Post, error) {
	if author == nil {
		return nil, ErrUnauthenticated
	}
	if !authz.CanPost(author.Role) {
		return nil, ErrForbidden
	}
	title := strings.TrimSpace(req.Title)
	body := strings.TrimSpace(req.Body)
	switch {
	case title == "" || body == "":
		return nil, fmt.Errorf("%w: title and body are required", ErrInvalidInput)
	case utf8.RuneCountInString(title) > maxTitleLength:
		return nil, fmt.Errorf("%w: title is longer than %d characters", ErrInvalidInput, maxTitleLength)
	case utf8.RuneCountInString(body) > maxBodyLength:
		return nil, fmt.Errorf("%w: body is longer than %d characters", ErrInvalidInput, maxBodyLength)
	}

	p := &models.Post{
		ID:        s.ids.Generate().Int64(),
		AuthorID:  author.ID,
		Title:     title,
		Body:      body,
		ImageURL:  strings.TrimSpace(req.ImageURL),
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	s.logger.Info("post created", zap.Int64("post_id", p.ID), zap.String("author_id", p.AuthorID))
	return p, nil
}

func (s *postService) Get(ctx context.Context, id int64) (*models.Post, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return p, nil
}

func (s *postService) List(ctx context.Context, limit, offset int) ([]*models.Post, error) {
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	posts, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if posts == nil {
		posts = []*models.Post{}
	}
	return posts, nil
}

// Delete lets authors remove their own posts and admins remove any post.
func (s *postService) Delete(ctx context.Context, actor *models.Identity, id int64) error {
	if actor == nil {
		return ErrUnauthenticated
	}
	p, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if p.AuthorID != actor.ID && !authz.IsAdmin(actor.Role) {
		return ErrForbidden
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrPostNotFound
		}
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	s.logger.Info("post deleted", zap.Int64("post_id", id), zap.String("by", actor.ID))
	return nil
}
