package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/iwvelando/project-feasibility/pkg/engine"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "pf:result:"

// Redis shares results between server instances. Entries expire after the
// configured TTL.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis wraps a connected client.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

// DialRedis connects to addr and checks the connection.
func DialRedis(ctx context.Context, addr string, ttl time.Duration) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   0,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return NewRedis(client, ttl), nil
}

// Key returns the redis key a fingerprint is stored under.
func Key(fingerprint string) string {
	return keyPrefix + fingerprint
}

func (r *Redis) Get(ctx context.Context, fingerprint string) (*engine.Result, bool, error) {
	data, err := r.client.Get(ctx, Key(fingerprint)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var result engine.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached result %s: %w", fingerprint, err)
	}
	return &result, true, nil
}

func (r *Redis) Set(ctx context.Context, fingerprint string, result *engine.Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode result %s: %w", fingerprint, err)
	}
	return r.client.Set(ctx, Key(fingerprint), data, r.ttl).Err()
}

// Close releases the client's connections.
func (r *Redis) Close() error {
	return r.client.Close()
}
