package auth

import (
	"context"
	"sync"
)

// MemoryStore holds a credential for the lifetime of the process. It backs
// --token and tests.
type MemoryStore struct {
	mu   sync.Mutex
	cred *Credential
}

func NewMemoryStore(cred *Credential) *MemoryStore {
	s := &MemoryStore{}
	if cred != nil {
		c := *cred
		s.cred = &c
	}
	return s
}

func (s *MemoryStore) Load(context.Context) (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cred == nil {
		return nil, nil
	}
	c := *s.cred
	return &c, nil
}

func (s *MemoryStore) Save(_ context.Context, cred Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = &cred
	return nil
}

func (s *MemoryStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = nil
	return nil
}
