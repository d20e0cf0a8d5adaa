package gotrue

import (
	"sync"

	auth "github.com/papajo/agile-pim"
)

// TokenStorage persists the client's session between calls. The default is
// process memory; hosts with their own persistence (keychain, encrypted
// file) supply an implementation.
type TokenStorage interface {
	Load() (*auth.Session, error)
	Save(sess *auth.Session) error
	Clear() error
}

type memoryStorage struct {
	mu   sync.Mutex
	sess *auth.Session
}

// NewMemoryStorage returns the default in-process TokenStorage.
func NewMemoryStorage() TokenStorage {
	return &memoryStorage{}
}

func (m *memoryStorage) Load() (*auth.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sess, nil
}

func (m *memoryStorage) Save(sess *auth.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess = sess
	return nil
}

func (m *memoryStorage) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess = nil
	return nil
}
