package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"
)

const scanBatch = 200

// Redis stores each key as a JSON string value.
type Redis struct {
	client *redis.Client
}

// NewRedis wraps a connected client. Ping is left to the caller.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// Load implements Store.
func (r *Redis) Load(ctx context.Context, key string, dest any) (bool, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load %s: %w: %w", key, ErrUnavailable, err)
	}

	if err := json.Unmarshal(val, dest); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// Save implements Store.
func (r *Redis) Save(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := r.client.Set(ctx, key, raw, 0).Err(); err != nil {
		return fmt.Errorf("save %s: %w: %w", key, ErrUnavailable, err)
	}
	return nil
}

// Delete implements Store.
func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("delete %s: %w: %w", key, ErrUnavailable, err)
	}
	return nil
}

// globEscaper quotes the characters SCAN MATCH treats as patterns.
var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

// prefixPattern matches keys starting with prefix taken literally.
func prefixPattern(prefix string) string {
	return globEscaper.Replace(prefix) + "*"
}

// Keys implements Store using SCAN so large keyspaces are not blocked.
func (r *Redis) Keys(ctx context.Context, prefix string) ([]string, error) {
	keys := make([]string, 0)
	iter := r.client.Scan(ctx, 0, prefixPattern(prefix), scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("keys %s: %w: %w", prefix, ErrUnavailable, err)
	}
	sort.Strings(keys)
	return keys, nil
}
