package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// OTPThrottle rate-limits OTP issuance per email using Redis.
// Key format: otp:cooldown:<email>
type OTPThrottle struct {
	client   *redis.Client
	cooldown time.Duration
}

// NewOTPThrottle creates an OTPThrottle wrapping the given Redis client.
func NewOTPThrottle(client *redis.Client, cooldown time.Duration) *OTPThrottle {
	return &OTPThrottle{client: client, cooldown: cooldown}
}

// Allow reports whether a new OTP may be sent to the email. The first call
// within a cooldown window wins (SET NX); subsequent calls are rejected
// until the key expires.
func (t *OTPThrottle) Allow(ctx context.Context, email string) (bool, error) {
	ok, err := t.client.SetNX(ctx, t.key(email), "1", t.cooldown).Result()
	if err != nil {
		return false, fmt.Errorf("otp throttle: %w", err)
	}
	return ok, nil
}

func (t *OTPThrottle) key(email string) string {
	return fmt.Sprintf("otp:cooldown:%s", email)
}
