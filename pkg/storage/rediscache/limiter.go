package rediscache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// incrWindow increments a counter and starts its window on the first hit.
// The expiry is only set once so a steady stream of attempts cannot keep
// extending the window.
var incrWindow = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// Limiter is a fixed-window attempt counter shared by every instance.
// It guards password guesses and share-token lookups.
type Limiter struct {
	client   redis.UniversalClient
	limit    int
	window   time.Duration
	prefix   string
	failOpen bool
	logger   logrus.FieldLogger
}

// NewLimiter allows limit attempts per key in each window
func NewLimiter(client redis.UniversalClient, limit int, window time.Duration, prefix string) *Limiter {
	if prefix == "" {
		prefix = "attempts"
	}
	return &Limiter{
		client: client,
		limit:  limit,
		window: window,
		prefix: prefix,
		logger: logrus.StandardLogger(),
	}
}

// WithFailOpen makes Allow admit attempts when redis is unreachable, logging the error
func (l *Limiter) WithFailOpen(logger logrus.FieldLogger) *Limiter {
	l.failOpen = true
	if logger != nil {
		l.logger = logger
	}
	return l
}

func (l *Limiter) key(key string) string {
	return fmt.Sprintf("%s:%s", l.prefix, key)
}

// Allow records an attempt for key and reports whether it is within the limit
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	window := l.window.Milliseconds()
	if window <= 0 {
		window = 1
	}

	count, err := incrWindow.Run(ctx, l.client, []string{l.key(key)}, window).Int64()
	if err != nil {
		if l.failOpen {
			l.logger.WithError(err).WithField("prefix", l.prefix).Warn("attempt limiter unavailable, allowing")
			return true, nil
		}
		return false, fmt.Errorf("redis error: %w", err)
	}

	return count <= int64(l.limit), nil
}

// Remaining returns the attempts left in the current window
func (l *Limiter) Remaining(ctx context.Context, key string) (int, error) {
	count, err := l.client.Get(ctx, l.key(key)).Int()
	if err == redis.Nil {
		return l.limit, nil
	} else if err != nil {
		return 0, err
	}

	return max(l.limit-count, 0), nil
}

// TTL returns the time until the window for key resets
func (l *Limiter) TTL(ctx context.Context, key string) (time.Duration, error) {
	return l.client.PTTL(ctx, l.key(key)).Result()
}

// Reset clears the counter for key
func (l *Limiter) Reset(ctx context.Context, key string) error {
	return l.client.Del(ctx, l.key(key)).Err()
}
