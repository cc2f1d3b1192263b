package redis

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// OTPStore holds one-time login codes with TTL eviction. Codes live in
// Redis, not in process memory, so restarts and multiple instances
// behave the same.
type OTPStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewOTPStore creates a new OTPStore with the given code lifetime.
func NewOTPStore(client *redis.Client, ttl time.Duration) *OTPStore {
	return &OTPStore{client: client, ttl: ttl}
}

// Put stores the code for a phone number, replacing any earlier one.
func (s *OTPStore) Put(ctx context.Context, phone, code string) error {
	return s.client.Set(ctx, otpKey(phone), code, s.ttl).Err()
}

// Verify checks the submitted code and consumes it on success. Returns
// false for a missing, expired, or wrong code.
func (s *OTPStore) Verify(ctx context.Context, phone, code string) (bool, error) {
	key := otpKey(phone)

	stored, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}

	if subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
		return false, nil
	}

	// Single use: a verified code must not verify twice.
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return false, err
	}

	return true, nil
}

func otpKey(phone string) string {
	return fmt.Sprintf("otp:%s", phone)
}
