package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrTemplateNotFound is returned when a named template does not exist
var ErrTemplateNotFound = errors.New("template not found")

// TemplateStore is the interface for named template persistence.
type TemplateStore interface {
	// Get retrieves a template body by name.
	Get(ctx context.Context, name string) (string, error)
	// Put stores a template by name, overwriting if it exists.
	Put(ctx context.Context, name, body string) error
	// Delete removes a template by name.
	Delete(ctx context.Context, name string) error
	// List returns the stored template names in order.
	List(ctx context.Context) ([]string, error)
	// Close releases resources.
	Close() error
}

// Kind names a template store backend
type Kind string

const (
	KindMemory Kind = "memory"
	KindSQLite Kind = "sqlite"
	KindRedis  Kind = "redis"
)

func validName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("template name is required")
	}
	return nil
}

// Memory is an in-memory template store.
type Memory struct {
	mu        sync.RWMutex
	templates map[string]string
}

// NewMemory creates a new in-memory store.
func NewMemory() *Memory {
	return &Memory{templates: make(map[string]string)}
}

// Get retrieves a template by name.
func (m *Memory) Get(_ context.Context, name string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	body, ok := m.templates[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	return body, nil
}

// Put stores a template by name.
func (m *Memory) Put(_ context.Context, name, body string) error {
	if err := validName(name); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.templates[name] = body
	return nil
}

// Delete removes a template by name.
func (m *Memory) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.templates, name)
	return nil
}

// List returns the stored template names.
func (m *Memory) List(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.templates))
	for name := range m.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Close is a no-op for memory store.
func (m *Memory) Close() error {
	return nil
}
