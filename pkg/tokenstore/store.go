// Package tokenstore persists the single bearer token a client session owns.
//
// Stores are synchronous and never validate what they hold; decoding and
// expiry checks belong to the session layer.
package tokenstore

import (
	"context"
	"errors"
	"sync"
)

// Key is the name the token is stored under in every backend.
const Key = "access_token"

var ErrNotFound = errors.New("tokenstore: not found")

// Store holds at most one bearer token.
type Store interface {
	// Read returns the stored token or ErrNotFound.
	Read(ctx context.Context) (string, error)

	// Write replaces the stored token.
	Write(ctx context.Context, token string) error

	// Clear removes the token. Clearing an empty store is not an error.
	Clear(ctx context.Context) error
}

// Memory is a process-local Store.
type Memory struct {
	mu    sync.RWMutex
	token string
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Read(context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.token == "" {
		return "", ErrNotFound
	}
	return m.token, nil
}

func (m *Memory) Write(_ context.Context, token string) error {
	m.mu.Lock()
	m.token = token
	m.mu.Unlock()
	return nil
}

func (m *Memory) Clear(context.Context) error {
	m.mu.Lock()
	m.token = ""
	m.mu.Unlock()
	return nil
}
