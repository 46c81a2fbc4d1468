package store

import (
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Open creates the template store for kind. path is used by the SQLite
// backend and client by the Redis backend.
func Open(kind Kind, path string, client *redis.Client) (TemplateStore, error) {
	switch kind {
	case "", KindMemory:
		return NewMemory(), nil
	case KindSQLite:
		if path == "" {
			return nil, fmt.Errorf("sqlite template store requires a path")
		}
		return NewSQLite(path)
	case KindRedis:
		if client == nil {
			return nil, fmt.Errorf("redis template store requires a client")
		}
		return NewRedis(client, ""), nil
	default:
		return nil, fmt.Errorf("unknown template store: %s", kind)
	}
}
