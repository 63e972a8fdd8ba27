package keystore

import (
	"errors"
	"fmt"
	"log/slog"
)

// Manager owns the clipboard key's identity in a Store. It is the
// source of truth; callers cache what Load returns at their own risk.
type Manager struct {
	store    Store
	generate func() ([]byte, error)
}

// NewManager returns a Manager over store. generate creates fresh key
// material for Ensure and Regenerate.
func NewManager(store Store, generate func() ([]byte, error)) *Manager {
	return &Manager{store: store, generate: generate}
}

// Backend returns the name of the underlying Store.
func (m *Manager) Backend() string { return m.store.Name() }

// Load returns the stored key, or ErrNotFound.
func (m *Manager) Load() ([]byte, error) {
	return m.store.Get(Service, KeyName)
}

// Ensure returns the stored key, generating and storing one if none exists.
// created reports whether a new key was generated.
func (m *Manager) Ensure() (key []byte, created bool, err error) {
	key, err = m.Load()
	if err == nil {
		return key, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}
	key, err = m.Regenerate()
	if err != nil {
		return nil, false, err
	}
	return key, true, nil
}

// Regenerate replaces the stored key with fresh material and returns it.
// Content encrypted under the previous key can no longer be decrypted.
func (m *Manager) Regenerate() ([]byte, error) {
	key, err := m.generate()
	if err != nil {
		return nil, fmt.Errorf("%w: generate: %v", ErrKeyStore, err)
	}
	if err := m.Import(key); err != nil {
		return nil, err
	}
	slog.Info("generated new encryption key", "backend", m.store.Name())
	return key, nil
}

// Import stores key as the clipboard key, replacing any existing one.
func (m *Manager) Import(key []byte) error {
	return m.store.Set(Service, KeyName, key)
}

// Delete removes the stored key. Deleting an absent key is not an error.
func (m *Manager) Delete() error {
	err := m.store.Delete(Service, KeyName)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	slog.Info("deleted encryption key", "backend", m.store.Name())
	return nil
}
