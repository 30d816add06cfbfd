package storage

import (
	"context"
	"sync"
)

// Credentials supplies the bearer token attached to task API calls.
type Credentials interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed token, used by the terminal client.
type StaticToken string

func (s StaticToken) Token(context.Context) (string, error) {
	if s == "" {
		return "", ErrNoToken
	}
	return string(s), nil
}

// TokenSlot holds the latest token presented by a board session's user.
// It is set on every request and cleared when the session ends.
type TokenSlot struct {
	mu    sync.RWMutex
	token string
}

func (s *TokenSlot) Set(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

func (s *TokenSlot) Clear() {
	s.Set("")
}

func (s *TokenSlot) Token(context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return "", ErrNoToken
	}
	return s.token, nil
}
