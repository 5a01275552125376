package runlock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"encore/pkg/sentinel"
)

// RedisLocker coordinates entity runs across processes with SET NX and a
// TTL, so a crashed worker's lock expires instead of wedging the entity.
// Release only deletes the key when the token still matches, so an expired
// lock reclaimed by another worker is never released by the first.
type RedisLocker struct {
	client redis.Cmdable
	ttl    time.Duration
}

const lockPrefix = "encore:runlock:"

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func NewRedisLocker(client redis.Cmdable, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &RedisLocker{client: client, ttl: ttl}
}

func (l *RedisLocker) Acquire(ctx context.Context, entity string) (func(), error) {
	key := lockPrefix + entity
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, sentinel.ErrLocked
	}
	release := func() {
		// Release must not inherit a canceled run context.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, _ = releaseScript.Run(ctx, l.client, []string{key}, token).Result()
	}
	return release, nil
}
