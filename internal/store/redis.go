package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
)

const templatesKey = "compilex:templates"

// Redis is a template store backed by a Redis hash.
type Redis struct {
	client *redis.Client
	key    string
}

// NewRedis creates a template store in the hash at key. An empty key uses
// the default hash.
func NewRedis(client *redis.Client, key string) *Redis {
	if key == "" {
		key = templatesKey
	}
	return &Redis{client: client, key: key}
}

// Get retrieves a template by name.
func (r *Redis) Get(ctx context.Context, name string) (string, error) {
	body, err := r.client.HGet(ctx, r.key, name).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
		}
		return "", fmt.Errorf("failed to load template: %w", err)
	}
	return body, nil
}

// Put stores a template by name.
func (r *Redis) Put(ctx context.Context, name, body string) error {
	if err := validName(name); err != nil {
		return err
	}
	if err := r.client.HSet(ctx, r.key, name, body).Err(); err != nil {
		return fmt.Errorf("failed to save template: %w", err)
	}
	return nil
}

// Delete removes a template by name.
func (r *Redis) Delete(ctx context.Context, name string) error {
	if err := r.client.HDel(ctx, r.key, name).Err(); err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}
	return nil
}

// List returns the stored template names.
func (r *Redis) List(ctx context.Context) ([]string, error) {
	names, err := r.client.HKeys(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// Close is a no-op; the client is owned by the caller.
func (r *Redis) Close() error {
	return nil
}
