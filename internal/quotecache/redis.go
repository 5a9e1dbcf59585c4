package quotecache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sakif/portfolio-tracker/internal/marketdata"
)

const keyPrefix = "quote:"

// Redis stores snapshots as JSON strings with a TTL, so several server
// instances can share one cache.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

var _ Cache = (*Redis)(nil)

// RedisOptions configures NewRedis.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// NewRedis connects and pings the server.
func NewRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("quotecache: connecting to redis at %s: %w", opts.Addr, err)
	}

	return &Redis{client: client, ttl: opts.TTL}, nil
}

func (r *Redis) Get(ctx context.Context, symbol string) (*marketdata.Snapshot, bool, error) {
	data, err := r.client.Get(ctx, keyPrefix+Key(symbol)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("quotecache: get %s: %w", symbol, err)
	}

	var snap marketdata.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, false, fmt.Errorf("quotecache: decoding %s: %w", symbol, err)
	}
	return &snap, true, nil
}

func (r *Redis) Set(ctx context.Context, symbol string, snap *marketdata.Snapshot) error {
	if snap == nil {
		return nil
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("quotecache: encoding %s: %w", symbol, err)
	}

	if err := r.client.Set(ctx, keyPrefix+Key(symbol), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("quotecache: set %s: %w", symbol, err)
	}
	return nil
}

// Close releases the connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}
