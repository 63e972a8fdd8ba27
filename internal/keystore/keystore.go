// Package keystore persists the single symmetric clipboard key.
//
// A Store is a minimal get/set/delete abstraction over a secret backend,
// addressed by (service, key). Three backends exist:
//
//	keyring: the OS credential store via github.com/zalando/go-keyring
//	file:    a TOML file guarded by an advisory lock (plaintext at rest)
//	memory:  process-local, for tests and headless experiments
//
// Manager layers the fixed (Service, KeyName) identity on top of a Store.
package keystore

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// Service is the fixed service name the key is stored under.
	Service = "SecureClipboard"
	// KeyName is the fixed key name within Service.
	KeyName = "encryption_key"
)

var (
	// ErrNotFound reports that no secret is stored for (service, key).
	ErrNotFound = errors.New("keystore: secret not found")
	// ErrKeyStore wraps every backend failure other than ErrNotFound.
	ErrKeyStore = errors.New("keystore: backend failure")
)

// Store is a secret backend.
type Store interface {
	// Name returns a human-readable backend name.
	Name() string
	// Get returns the secret, or ErrNotFound.
	Get(service, key string) ([]byte, error)
	// Set stores or replaces the secret.
	Set(service, key string, value []byte) error
	// Delete removes the secret. Returns ErrNotFound if it was absent.
	Delete(service, key string) error
}

// Backend selects a Store implementation.
type Backend string

const (
	BackendKeyring Backend = "keyring"
	BackendFile    Backend = "file"
	BackendMemory  Backend = "memory"
)

// ParseBackend converts a string to a Backend.
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(s))); b {
	case BackendKeyring, BackendFile, BackendMemory:
		return b, nil
	case "":
		return BackendKeyring, nil
	default:
		return "", fmt.Errorf("unknown keystore backend %q (want keyring|file|memory)", s)
	}
}

// Open returns the Store for backend. path is only used by the file backend.
func Open(backend Backend, path string) (Store, error) {
	switch backend {
	case BackendKeyring:
		return NewKeyring(), nil
	case BackendFile:
		return NewFile(path)
	case BackendMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown keystore backend %q", backend)
	}
}

func storeErr(op string, err error) error {
	if errors.Is(err, ErrNotFound) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", ErrKeyStore, op, err)
}
