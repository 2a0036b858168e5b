package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"obogportal/internal/models"
	"obogportal/internal/repositories"
)

// SessionClaims is the signed session payload.
type SessionClaims struct {
	UserID      string `json:"userId"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	DisplayName string `json:"displayName"`
	jwt.RegisteredClaims
}

// Session is a freshly issued token with the identity it was issued for.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      models.Identity
}

type SessionService interface {
	Issue(user *models.User, profile *models.Profile) (*Session, error)
	// Resolve validates token and returns the identity, with the display name refreshed from
	// the profile table when possible.
	Resolve(ctx context.Context, token string) (*models.Identity, error)
	TTL() time.Duration
}

type sessionService struct {
	secret   []byte
	ttl      time.Duration
	profiles repositories.ProfileRepository
	logger   *zap.Logger
	now      func() time.Time
}

func NewSessionService(secret string, ttl time.Duration, profiles repositories.ProfileRepository, logger *zap.Logger) SessionService {
	return &sessionService{
		secret:   []byte(secret),
		ttl:      ttl,
		profiles: profiles,
		logger:   logger.Named("session"),
		now:      time.Now,
	}
}

func (s *sessionService) TTL() time.Duration {
	return s.ttl
}

func (s *sessionService) Issue(user *models.User, profile *models.Profile) (*Session, error) {
	ident := identityOf(user, profile)
	now := s.now()
	exp := now.Add(s.ttl)

	claims := &SessionClaims{
		UserID:      ident.ID,
		Email:       ident.Email,
		Role:        ident.Role,
		DisplayName: ident.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ident.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign session: %w", err)
	}
	return &Session{Token: signed, ExpiresAt: exp, User: ident}, nil
}

func (s *sessionService) Resolve(ctx context.Context, token string) (*models.Identity, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}

	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		// v5 checks the signature before the claims, so an expired token here is authentic.
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrUnauthenticated
		}
		return nil, ErrInvalidToken
	}
	if claims.UserID == "" {
		return nil, ErrInvalidToken
	}

	ident := &models.Identity{
		ID:          claims.UserID,
		Email:       claims.Email,
		Role:        claims.Role,
		DisplayName: claims.DisplayName,
	}
	if s.profiles == nil {
		return ident, nil
	}
	p, err := s.profiles.GetByUserID(ctx, claims.UserID)
	switch {
	case err == nil:
		if p.DisplayName != "" {
			ident.DisplayName = p.DisplayName
		}
		ident.AvatarURL = p.AvatarURL
	case errors.Is(err, repositories.ErrNotFound):
	default:
		s.logger.Warn("profile lookup failed, using token claims", zap.String("user_id", claims.UserID), zap.Error(err))
	}
	return ident, nil
}

func identityOf(user *models.User, profile *models.Profile) models.Identity {
	ident := models.Identity{ID: user.ID, Email: user.Email, Role: user.Role}
	if profile != nil {
		ident.DisplayName = profile.DisplayName
		ident.AvatarURL = profile.AvatarURL
	}
	return ident
}
