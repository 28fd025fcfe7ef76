package redisclient

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("schedule lock not acquired")
)

// Locker is used by the scheduling service to serialize read-modify-write
// of a clinician's day.
type Locker interface {
	WithDayLock(ctx context.Context, days []DayKey, fn func(ctx context.Context) error) error
}

// DayKey names one clinician's calendar date.
type DayKey struct {
	ClinicianID string
	Date        string // YYYY-MM-DD
}

func (k DayKey) String() string {
	return fmt.Sprintf("lock:day:%s:%s", k.ClinicianID, k.Date)
}

// lockKeys dedupes and sorts so every caller acquires in the same order.
func lockKeys(days []DayKey) []string {
	seen := make(map[string]struct{}, len(days))
	keys := make([]string, 0, len(days))
	for _, d := range days {
		k := d.String()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type redisDayLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDayLocker creates a locker that uses a Redis key per clinician day
func NewRedisDayLocker(client *redis.Client, ttl time.Duration) Locker {
	return &redisDayLocker{
		client: client,
		ttl:    ttl,
	}
}

func (l *redisDayLocker) WithDayLock(ctx context.Context, days []DayKey, fn func(ctx context.Context) error) error {
	token := uuid.NewString()
	keys := lockKeys(days)

	var held []string
	defer func() {
		for _, key := range held {
			_ = l.release(ctx, key, token)
		}
	}()

	for _, key := range keys {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("acquire day lock: %w", err)
		}
		if !ok {
			return ErrLockNotAcquired
		}
		held = append(held, key)
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisDayLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(context.WithoutCancel(ctx), l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release day lock: %w", err)
	}
	return nil
}
