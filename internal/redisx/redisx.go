package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned when a key does not exist.
var ErrMiss = errors.New("redis: key not found")

type Client struct{ Rdb *redis.Client }

func New(addr string, password string, db int) *Client {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	return &Client{Rdb: rdb}
}

func (c *Client) Ping(ctx context.Context) error {
	return c.Rdb.Ping(ctx).Err()
}

func (c *Client) Close() error { return c.Rdb.Close() }

func (c *Client) GetJSON(ctx context.Context, key string, out any) error {
	return getJSON(ctx, c.Rdb, key, out)
}

func (c *Client) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Rdb.Set(ctx, key, b, ttl).Err()
}

// Update runs a read-modify-write of one value under WATCH, retrying a few
// times when another writer got there first. The TTL is preserved.
func (c *Client) Update(ctx context.Context, key string, modify func(cur []byte) ([]byte, error)) error {
	const attempts = 5
	for i := 0; i < attempts; i++ {
		err := c.Rdb.Watch(ctx, func(tx *redis.Tx) error {
			cur, err := tx.Get(ctx, key).Bytes()
			if errors.Is(err, redis.Nil) {
				return ErrMiss
			}
			if err != nil {
				return err
			}
			next, err := modify(cur)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, next, redis.KeepTTL)
				return nil
			})
			return err
		}, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return redis.TxFailedErr
}

func getJSON(ctx context.Context, rdb *redis.Client, key string, out any) error {
	b, err := rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}
