package catalog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis is a Store on a redis server. Modules live in a set and runs in a
// list, newest at the head.
type Redis struct {
	client *redis.Client
	prefix string
}

// OpenRedis connects to addr and verifies the connection.
func OpenRedis(ctx context.Context, addr string, db int, prefix string) (*Redis, error) {
	c := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if err := c.Ping(ctx).Err(); err != nil {
		c.Close()
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}
	if prefix == "" {
		prefix = "droidprobe"
	}
	return &Redis{client: c, prefix: prefix}, nil
}

func (r *Redis) key(name string) string {
	return r.prefix + ":" + name
}

func (r *Redis) ReplaceModules(ctx context.Context, names []string) error {
	key := r.key("modules")
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, key)
		if len(names) > 0 {
			members := make([]interface{}, len(names))
			for i, n := range names {
				members[i] = n
			}
			p.SAdd(ctx, key, members...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replace modules: %w", err)
	}
	return nil
}

func (r *Redis) Modules(ctx context.Context) ([]string, error) {
	names, err := r.client.SMembers(ctx, r.key("modules")).Result()
	if err != nil {
		return nil, fmt.Errorf("read modules: %w", err)
	}
	return sortedCopy(names), nil
}

func (r *Redis) RecordRun(ctx context.Context, run Run) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("encode run: %w", err)
	}
	if err := r.client.LPush(ctx, r.key("runs"), data).Err(); err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

func (r *Redis) Runs(ctx context.Context, limit int) ([]Run, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	items, err := r.client.LRange(ctx, r.key("runs"), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("read runs: %w", err)
	}
	runs := make([]Run, 0, len(items))
	for _, it := range items {
		var run Run
		if err := json.Unmarshal([]byte(it), &run); err != nil {
			return nil, fmt.Errorf("decode run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
