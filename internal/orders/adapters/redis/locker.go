package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/JulesNsenda/chakucart/internal/orders/ports"
)

const (
	defaultLockTTL      = 75 * time.Second
	defaultPollInterval = 25 * time.Millisecond
	keyPrefix           = "chakucart:lock:"
)

// releaseScript deletes the key only while it still holds the caller's token.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// cmdable is the subset of the go-redis client used by Locker.
type cmdable interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *goredis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...any) *goredis.Cmd
	Ping(ctx context.Context) *goredis.StatusCmd
}

// Locker is a ports.Locker shared by every API replica. The TTL bounds how long a crashed
// holder can block an order.
type Locker struct {
	client       cmdable
	ttl          time.Duration
	pollInterval time.Duration
	logger       *slog.Logger
}

type Option func(*Locker)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Locker) {
		if logger != nil {
			l.logger = logger
		}
	}
}

func NewLocker(client cmdable, ttl time.Duration, opts ...Option) *Locker {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	l := &Locker{client: client, ttl: ttl, pollInterval: defaultPollInterval, logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Lock polls SET NX until it wins or ctx is done.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := keyPrefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("lock %s: %w: %w", key, ports.ErrLockTimeout, ctx.Err())
			}
			return nil, fmt.Errorf("lock %s: %w", key, err)
		}
		if ok {
			return l.unlockFunc(redisKey, token), nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("lock %s: %w: %w", key, ports.ErrLockTimeout, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (l *Locker) unlockFunc(redisKey, token string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			// Release must run even when the request context is already cancelled.
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			released, err := l.client.Eval(ctx, releaseScript, []string{redisKey}, token).Int64()
			switch {
			case err != nil:
				// The key still expires with its TTL.
				l.logger.ErrorContext(ctx, "release order lock failed", "error", err, "key", redisKey)
			case released == 0:
				l.logger.WarnContext(ctx, "order lock expired before release", "key", redisKey, "ttl", l.ttl)
			}
		})
	}
}

// Ping reports whether redis is reachable.
func (l *Locker) Ping(ctx context.Context) error {
	if err := l.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

// NewClient parses a redis:// URL into a go-redis client.
func NewClient(url string) (*goredis.Client, error) {
	if url == "" {
		return nil, errors.New("redis url is required")
	}
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return goredis.NewClient(opts), nil
}
