package tokenstore

import "sync"

// MemoryStore keeps tokens in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	access  string
	refresh string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) AccessToken() (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.access, nil
}

func (m *MemoryStore) RefreshToken() (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.refresh, nil
}

func (m *MemoryStore) SetTokens(access, refresh string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.access, m.refresh = access, refresh
	return nil
}

func (m *MemoryStore) SetAccessToken(access string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.access = access
	return nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.access, m.refresh = "", ""
	return nil
}
