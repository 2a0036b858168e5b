package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"obogportal/internal/models"
	"obogportal/internal/repositories"
)

func newStore(t *testing.T) (*RedisChallengeStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisChallengeStore(client, time.Minute), mr
}

func challenge(id string, expiresIn time.Duration) *models.OTPChallenge {
	now := time.Now()
	return &models.OTPChallenge{
		ID:        id,
		Email:     "user@example.com",
		Purpose:   models.PurposeLogin,
		CodeHash:  "$2a$10$hash",
		IssuedAt:  now,
		ExpiresAt: now.Add(expiresIn),
	}
}

func TestRedisChallengeStore_SaveAndGet(t *testing.T) {
	s, mr := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, challenge("c1", 10*time.Minute)))

	got, err := s.Get(ctx, "user@example.com", models.PurposeLogin)
	require.NoError(t, err)
	assert.Equal(t, "c1", got.ID)
	assert.Equal(t, "$2a$10$hash", got.CodeHash)
	assert.Zero(t, got.Attempts)

	ttl := mr.TTL(challengeKey("user@example.com", models.PurposeLogin))
	assert.Greater(t, ttl, 10*time.Minute)
	assert.LessOrEqual(t, ttl, 11*time.Minute)

	_, err = s.Get(ctx, "user@example.com", models.PurposeRegister)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestRedisChallengeStore_KeyOutlivesExpiry(t *testing.T) {
	s, mr := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, challenge("c1", 10*time.Minute)))

	mr.FastForward(10*time.Minute + 30*time.Second)
	got, err := s.Get(ctx, "user@example.com", models.PurposeLogin)
	require.NoError(t, err)
	assert.Equal(t, "c1", got.ID)

	mr.FastForward(time.Minute)
	_, err = s.Get(ctx, "user@example.com", models.PurposeLogin)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestRedisChallengeStore_IncrementAttempts(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, challenge("c1", time.Minute)))

	n, err := s.IncrementAttempts(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = s.IncrementAttempts(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := s.Get(ctx, "user@example.com", models.PurposeLogin)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Attempts)

	_, err = s.IncrementAttempts(ctx, "missing")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestRedisChallengeStore_SupersededIDIsDead(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, challenge("c1", time.Minute)))
	_, err := s.IncrementAttempts(ctx, "c1")
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, challenge("c2", time.Minute)))

	got, err := s.Get(ctx, "user@example.com", models.PurposeLogin)
	require.NoError(t, err)
	assert.Equal(t, "c2", got.ID)
	assert.Zero(t, got.Attempts)

	_, err = s.IncrementAttempts(ctx, "c1")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	assert.ErrorIs(t, s.Consume(ctx, "c1"), repositories.ErrNotFound)
	require.NoError(t, s.Consume(ctx, "c2"))
}

func TestRedisChallengeStore_ConsumeHasOneWinner(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, challenge("c1", time.Minute)))

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Consume(ctx, "c1") == nil {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins)
	_, err := s.Get(ctx, "user@example.com", models.PurposeLogin)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}
