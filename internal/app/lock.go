// internal/app/lock.go
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const lockKeyTpl = "ringsync:lock:%s" // ringsync:lock:${license_key}

// SessionLock keeps two operators from syncing the same show at once.
// The protocol itself tolerates that gap; sites with a shared redis can
// close it. Disabled, every call is a no-op.
type SessionLock struct {
	enabled bool
	redis   *redis.Client
	ttl     time.Duration
}

func NewSessionLock(config *Config) (*SessionLock, error) {
	if !config.Lock.Enabled {
		return &SessionLock{enabled: false}, nil
	}

	opt, err := redis.ParseURL(config.Lock.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	ttl := time.Duration(config.Lock.TTLSeconds) * time.Second
	if ttl == 0 {
		ttl = 15 * time.Minute
	}

	return &SessionLock{
		enabled: true,
		redis:   client,
		ttl:     ttl,
	}, nil
}

func (l *SessionLock) Close() error {
	if l.redis != nil {
		return l.redis.Close()
	}
	return nil
}

// Acquire takes the per-show lock or reports who can't have it. The TTL
// bounds the damage of a crashed sync holding the key.
func (l *SessionLock) Acquire(ctx context.Context, licenseKey string) error {
	if !l.enabled {
		return nil
	}

	key := fmt.Sprintf(lockKeyTpl, licenseKey)
	ok, err := l.redis.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), l.ttl).Result()
	if err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	if !ok {
		return fmt.Errorf("another sync for license %s is already running", licenseKey)
	}
	return nil
}

func (l *SessionLock) Release(ctx context.Context, licenseKey string) error {
	if !l.enabled {
		return nil
	}
	key := fmt.Sprintf(lockKeyTpl, licenseKey)
	return l.redis.Del(ctx, key).Err()
}
