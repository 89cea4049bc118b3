package auth

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const otpKeyPrefix = "otp:challenge:"

func otpKey(id string) string {
	return otpKeyPrefix + id
}

// RedisOTPStore keeps challenges as Redis hashes that expire with the code.
type RedisOTPStore struct {
	Client *redis.Client
}

// NewRedis creates a client for addr.
func NewRedis(addr, password string) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr, Password: password})
}

func (s *RedisOTPStore) Save(ctx context.Context, c Challenge, ttl time.Duration) error {
	key := otpKey(c.ID)
	_, err := s.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"user_id", c.UserID,
			"code_hash", c.CodeHash,
			"attempts", c.Attempts,
			"expires_at", c.ExpiresAt.Unix(),
		)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	return err
}

func (s *RedisOTPStore) Get(ctx context.Context, id string) (*Challenge, error) {
	vals, err := s.Client.HGetAll(ctx, otpKey(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return nil, ErrChallengeNotFound
	}

	attempts, err := strconv.Atoi(vals["attempts"])
	if err != nil {
		return nil, fmt.Errorf("otp challenge %s: bad attempts: %w", id, err)
	}
	expires, err := strconv.ParseInt(vals["expires_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("otp challenge %s: bad expiry: %w", id, err)
	}
	return &Challenge{
		ID:        id,
		UserID:    vals["user_id"],
		CodeHash:  vals["code_hash"],
		Attempts:  attempts,
		ExpiresAt: time.Unix(expires, 0).UTC(),
	}, nil
}

func (s *RedisOTPStore) IncrementAttempts(ctx context.Context, id string) (int, error) {
	n, err := s.Client.HIncrBy(ctx, otpKey(id), "attempts", 1).Result()
	return int(n), err
}

func (s *RedisOTPStore) Delete(ctx context.Context, id string) error {
	return s.Client.Del(ctx, otpKey(id)).Err()
}

// MemoryOTPStore keeps challenges in process. Expiry is left to the
// OTPService check.
type MemoryOTPStore struct {
	mu         sync.Mutex
	challenges map[string]Challenge
}

func NewMemoryOTPStore() *MemoryOTPStore {
	return &MemoryOTPStore{challenges: make(map[string]Challenge)}
}

func (s *MemoryOTPStore) Save(_ context.Context, c Challenge, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.challenges[c.ID] = c
	return nil
}

func (s *MemoryOTPStore) Get(_ context.Context, id string) (*Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.challenges[id]
	if !ok {
		return nil, ErrChallengeNotFound
	}
	return &c, nil
}

func (s *MemoryOTPStore) IncrementAttempts(_ context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.challenges[id]
	if !ok {
		return 0, ErrChallengeNotFound
	}
	c.Attempts++
	s.challenges[id] = c
	return c.Attempts, nil
}

func (s *MemoryOTPStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.challenges, id)
	return nil
}
