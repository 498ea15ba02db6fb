package providers

import "github.com/go-redis/redis/v8"

// NewRedisProvider returns a lazily connecting client; the first command dials.
func NewRedisProvider(addr, password string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
}
