package redis

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/laikahq/sync-engine/redis/config"
)

// Locker is a best-effort distributed mutex over a single key. The TTL
// bounds how long a crashed holder can block the others.
type Locker struct {
	client *goredis.Client
	key    string
	ttl    time.Duration
}

func NewLocker(cfg *config.RedisConfig, key string, ttl time.Duration) (*Locker, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.GetRedisAddr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return &Locker{client: client, key: key, ttl: ttl}, nil
}

// Acquire reports whether this process now holds the lock. The lock
// expires on its own; holders that finish early may Release it.
func (l *Locker) Acquire(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.key, "1", l.ttl).Result()
}

func (l *Locker) Release(ctx context.Context) error {
	return l.client.Del(ctx, l.key).Err()
}

func (l *Locker) Close() error {
	return l.client.Close()
}
