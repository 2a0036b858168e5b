package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"obogportal/internal/models"
	"obogportal/internal/repositories"
)

const challengeKeyPrefix = "otp:challenge"

// Keys are left alive this long past expires_at so that a late verify sees "expired"
// rather than "not found".
const defaultExpiredGrace = time.Hour

var (
	incrementScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'id') ~= ARGV[1] then
	return -1
end
return redis.call('HINCRBY', KEYS[1], 'attempts', 1)
`)

	consumeScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'id') ~= ARGV[1] then
	return 0
end
redis.call('DEL', KEYS[1], KEYS[2])
return 1
`)
)

// RedisChallengeStore implements ChallengeRepository with one hash per (email, purpose) and
// an id index pointing at it.
type RedisChallengeStore struct {
	client redis.UniversalClient
	grace  time.Duration
	now    func() time.Time
}

var _ repositories.ChallengeRepository = (*RedisChallengeStore)(nil)

func NewRedisChallengeStore(client redis.UniversalClient, grace time.Duration) *RedisChallengeStore {
	if grace <= 0 {
		grace = defaultExpiredGrace
	}
	return &RedisChallengeStore{client: client, grace: grace, now: time.Now}
}

// NewRedisClient parses a redis:// URL and pings the server.
func NewRedisClient(ctx context.Context, url string) (redis.UniversalClient, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

func challengeKey(email, purpose string) string {
	return challengeKeyPrefix + ":" + purpose + ":" + email
}

func idKey(id string) string {
	return challengeKeyPrefix + ":id:" + id
}

// Save overwrites the hash for (email, purpose), resetting attempts.
func (s *RedisChallengeStore) Save(ctx context.Context, ch *models.OTPChallenge) error {
	key := challengeKey(ch.Email, ch.Purpose)
	ttl := ch.ExpiresAt.Sub(s.now()) + s.grace
	if ttl <= 0 {
		ttl = s.grace
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			"id", ch.ID,
			"email", ch.Email,
			"purpose", ch.Purpose,
			"code_hash", ch.CodeHash,
			"attempts", 0,
			"issued_at", ch.IssuedAt.UTC().Format(time.RFC3339Nano),
			"expires_at", ch.ExpiresAt.UTC().Format(time.RFC3339Nano),
		)
		pipe.Expire(ctx, key, ttl)
		pipe.Set(ctx, idKey(ch.ID), key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("persist challenge: %w", err)
	}
	ch.Attempts = 0
	return nil
}

func (s *RedisChallengeStore) Get(ctx context.Context, email, purpose string) (*models.OTPChallenge, error) {
	fields, err := s.client.HGetAll(ctx, challengeKey(email, purpose)).Result()
	if err != nil {
		return nil, fmt.Errorf("load challenge: %w", err)
	}
	if len(fields) == 0 {
		return nil, repositories.ErrNotFound
	}
	return decodeChallenge(fields)
}

func (s *RedisChallengeStore) IncrementAttempts(ctx context.Context, id string) (int, error) {
	key, err := s.lookup(ctx, id)
	if err != nil {
		return 0, err
	}
	n, err := incrementScript.Run(ctx, s.client, []string{key}, id).Int()
	if err != nil {
		return 0, fmt.Errorf("increment attempts: %w", err)
	}
	if n < 0 {
		return 0, repositories.ErrNotFound
	}
	return n, nil
}

// Consume deletes the challenge only if it still carries id, so a superseded or already
// consumed challenge cannot be used twice.
func (s *RedisChallengeStore) Consume(ctx context.Context, id string) error {
	key, err := s.lookup(ctx, id)
	if err != nil {
		return err
	}
	n, err := consumeScript.Run(ctx, s.client, []string{key, idKey(id)}, id).Int()
	if err != nil {
		return fmt.Errorf("consume challenge: %w", err)
	}
	if n == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

func (s *RedisChallengeStore) lookup(ctx context.Context, id string) (string, error) {
	key, err := s.client.Get(ctx, idKey(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", repositories.ErrNotFound
		}
		return "", fmt.Errorf("load challenge index: %w", err)
	}
	return key, nil
}

func decodeChallenge(f map[string]string) (*models.OTPChallenge, error) {
	attempts, err := strconv.Atoi(f["attempts"])
	if err != nil {
		return nil, fmt.Errorf("decode challenge attempts: %w", err)
	}
	issued, err := time.Parse(time.RFC3339Nano, f["issued_at"])
	if err != nil {
		return nil, fmt.Errorf("decode challenge issued_at: %w", err)
	}
	expires, err := time.Parse(time.RFC3339Nano, f["expires_at"])
	if err != nil {
		return nil, fmt.Errorf("decode challenge expires_at: %w", err)
	}
	return &models.OTPChallenge{
		ID:        f["id"],
		Email:     f["email"],
		Purpose:   f["purpose"],
		CodeHash:  f["code_hash"],
		Attempts:  attempts,
		IssuedAt:  issued,
		ExpiresAt: expires,
	}, nil
}
