// Package privileged supplies the set of players whose stored rows are not
// carried across ranking rebuilds when exclusion is enabled.
package privileged

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/toprank/pkg/logger"
)

// Provider lists privileged player ids.
type Provider interface {
	PrivilegedPlayerIDs(ctx context.Context) ([]string, error)
}

// Static is a fixed privileged set, usually loaded from config.
type Static []string

// PrivilegedPlayerIDs returns a copy of the set without blank ids.
func (s Static) PrivilegedPlayerIDs(context.Context) ([]string, error) {
	out := make([]string, 0, len(s))
	for _, id := range s {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out, nil
}

// setReader is the subset of *redis.Client the provider needs.
type setReader interface {
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
}

// RedisProvider reads the privileged set from a Redis SET maintained by the
// game server (one member per operator id).
type RedisProvider struct {
	client  setReader
	key     string
	timeout time.Duration
	logger  logger.Logger
}

// NewRedisProvider reads members of key through client.
func NewRedisProvider(client setReader, key string, opts ...RedisOption) *RedisProvider {
	p := &RedisProvider{
		client:  client,
		key:     key,
		timeout: 2 * time.Second,
		logger:  logger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PrivilegedPlayerIDs returns the current members of the Redis set.
func (p *RedisProvider) PrivilegedPlayerIDs(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	ids, err := p.client.SMembers(ctx, p.key).Result()
	if err != nil {
		p.logger.Warn(ctx, "privileged set read failed", logger.String("key", p.key), logger.Error(err))
		return nil, fmt.Errorf("%w: smembers %s: %w", ErrProvider, p.key, err)
	}
	return ids, nil
}

// Union merges several providers. Any failing member fails the call.
type Union []Provider

// PrivilegedPlayerIDs returns the distinct ids of every member, in order.
func (u Union) PrivilegedPlayerIDs(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	for _, p := range u {
		ids, err := p.PrivilegedPlayerIDs(ctx)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out, nil
}

// Dial opens a Redis client and verifies it with a ping.
func Dial(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}
	return client, nil
}
