package keystore

import "sync"

type memoryStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

// NewMemory returns a process-local Store.
func NewMemory() Store {
	return &memoryStore{data: make(map[string][]byte)}
}

func (m *memoryStore) Name() string { return "memory" }

func (m *memoryStore) Get(service, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[service+"/"+key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *memoryStore) Set(service, key string, value []byte) error {
	m.mu.Lock()
	m.data[service+"/"+key] = append([]byte(nil), value...)
	m.mu.Unlock()
	return nil
}

func (m *memoryStore) Delete(service, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[service+"/"+key]; !ok {
		return ErrNotFound
	}
	delete(m.data, service+"/"+key)
	return nil
}
