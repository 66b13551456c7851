package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a single-instance SET NX lock shared by every worker that talks
// to the same redis. The TTL bounds how long a crashed holder blocks others.
type Redis struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	retry  time.Duration
}

func NewRedis(client redis.UniversalClient, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Redis{client: client, prefix: "nayose:lock:", ttl: ttl, retry: 100 * time.Millisecond}
}

func (r *Redis) Lock(ctx context.Context, key string) (Unlock, error) {
	token := uuid.NewString()
	full := r.prefix + key
	for {
		ok, err := r.client.SetNX(ctx, full, token, r.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			var once sync.Once
			return func(ctx context.Context) error {
				var rErr error
				once.Do(func() {
					rErr = releaseScript.Run(ctx, r.client, []string{full}, token).Err()
					if errors.Is(rErr, redis.Nil) {
						rErr = nil
					}
				})
				return rErr
			}, nil
		}

		t := time.NewTimer(r.retry)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, errors.Join(ErrNotAcquired, ctx.Err())
		case <-t.C:
		}
	}
}
