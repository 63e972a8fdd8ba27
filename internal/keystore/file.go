package keystore

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/pelletier/go-toml/v2"
)

// fileStore keeps secrets in a TOML document:
//
//	[SecureClipboard]
//	encryption_key = "<base64url>"
//
// The file is plaintext at rest; its protection is the 0600 mode. Every
// operation takes an advisory lock on "<path>.lock" so that the daemon and
// the key CLI never interleave a read-modify-write.
type fileStore struct {
	path string
	lock *flock.Flock
}

// NewFile returns a Store persisted at path, creating the parent directory.
func NewFile(path string) (Store, error) {
	if path == "" {
		return nil, fmt.Errorf("keystore: file backend needs a path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, storeErr("mkdir", err)
	}
	return &fileStore{path: path, lock: flock.New(path + ".lock")}, nil
}

// DefaultFilePath returns $HOME/.config/secureclip/keyring.toml.
func DefaultFilePath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "secureclip", "keyring.toml")
	}
	return filepath.Join(os.TempDir(), "secureclip-keyring.toml")
}

func (s *fileStore) Name() string { return "file " + s.path }

func (s *fileStore) Get(service, key string) ([]byte, error) {
	var out []byte
	err := s.withLock(func(doc map[string]map[string]string) (bool, error) {
		v, ok := doc[service][key]
		if !ok {
			return false, ErrNotFound
		}
		b, err := base64.URLEncoding.DecodeString(v)
		if err != nil {
			return false, fmt.Errorf("stored value is not base64: %w", err)
		}
		out = b
		return false, nil
	})
	if err != nil {
		return nil, storeErr("get", err)
	}
	return out, nil
}

func (s *fileStore) Set(service, key string, value []byte) error {
	err := s.withLock(func(doc map[string]map[string]string) (bool, error) {
		if doc[service] == nil {
			doc[service] = make(map[string]string)
		}
		doc[service][key] = base64.URLEncoding.EncodeToString(value)
		return true, nil
	})
	if err != nil {
		return storeErr("set", err)
	}
	return nil
}

func (s *fileStore) Delete(service, key string) error {
	err := s.withLock(func(doc map[string]map[string]string) (bool, error) {
		if _, ok := doc[service][key]; !ok {
			return false, ErrNotFound
		}
		delete(doc[service], key)
		if len(doc[service]) == 0 {
			delete(doc, service)
		}
		return true, nil
	})
	if err != nil {
		return storeErr("delete", err)
	}
	return nil
}

// withLock loads the document under the file lock, runs fn, and writes the
// document back when fn reports a change.
func (s *fileStore) withLock(fn func(map[string]map[string]string) (bool, error)) error {
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("lock: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	doc := make(map[string]map[string]string)
	data, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return fmt.Errorf("read: %w", err)
	default:
		if err := toml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parse %s: %w", s.path, err)
		}
	}

	changed, err := fn(doc)
	if err != nil || !changed {
		return err
	}

	out, err := toml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, out, 0o600); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
