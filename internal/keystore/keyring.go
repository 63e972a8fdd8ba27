package keystore

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// keyringStore keeps secrets in the OS credential store (macOS Keychain,
// Windows Credential Manager, Secret Service on Linux). Values are stored
// base64url-encoded because the backends only accept strings.
type keyringStore struct{}

// NewKeyring returns a Store backed by the OS credential store.
func NewKeyring() Store { return keyringStore{} }

func (keyringStore) Name() string { return "os keyring" }

func (keyringStore) Get(service, key string) ([]byte, error) {
	s, err := keyring.Get(service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storeErr("get", err)
	}
	b, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return nil, storeErr("get", fmt.Errorf("stored value is not base64: %w", err))
	}
	return b, nil
}

func (keyringStore) Set(service, key string, value []byte) error {
	if err := keyring.Set(service, key, base64.URLEncoding.EncodeToString(value)); err != nil {
		return storeErr("set", err)
	}
	return nil
}

func (keyringStore) Delete(service, key string) error {
	err := keyring.Delete(service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return storeErr("delete", err)
	}
	return nil
}
