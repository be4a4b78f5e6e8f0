// Package session provides storage backends for admin session tokens.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"
)

// Store holds opaque admin session tokens. A token either exists and is
// unexpired (the session is authenticated) or it does not (anonymous); there
// are no other states. Valid touches the token so the idle window slides.
type Store interface {
	Create(ctx context.Context, ttl time.Duration) (string, error)
	Valid(ctx context.Context, token string) (bool, error)
	Revoke(ctx context.Context, token string) error
	Close() error
}

func newToken() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

// MemoryStore keeps sessions in-process. It is the default backend for
// single-instance deployments without Redis.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]memorySession
}

type memorySession struct {
	expiresAt time.Time
	ttl       time.Duration
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]memorySession)}
}

func (s *MemoryStore) Create(_ context.Context, ttl time.Duration) (string, error) {
	token := newToken()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[token] = memorySession{expiresAt: time.Now().Add(ttl), ttl: ttl}
	return token, nil
}

func (s *MemoryStore) Valid(_ context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.sessions[token]
	if !ok {
		return false, nil
	}
	if time.Now().After(record.expiresAt) {
		delete(s.sessions, token)
		return false, nil
	}
	record.expiresAt = time.Now().Add(record.ttl)
	s.sessions[token] = record
	return true, nil
}

func (s *MemoryStore) Revoke(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
