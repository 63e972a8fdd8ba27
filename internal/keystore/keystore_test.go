package keystore

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/zalando/go-keyring"
)

func counterKeys() func() ([]byte, error) {
	n := byte(0)
	return func() ([]byte, error) {
		n++
		return bytes.Repeat([]byte{n}, 32), nil
	}
}

func testStore(t *testing.T, s Store) {
	t.Helper()

	if _, err := s.Get(Service, KeyName); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get on empty store: err = %v, want ErrNotFound", err)
	}
	if err := s.Set(Service, KeyName, []byte("first")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set(Service, KeyName, []byte("second")); err != nil {
		t.Fatalf("Set (replace): %v", err)
	}
	got, err := s.Get(Service, KeyName)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "second" {
		t.Fatalf("Get = %q, want %q", got, "second")
	}
	if err := s.Delete(Service, KeyName); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(Service, KeyName); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second Delete: err = %v, want ErrNotFound", err)
	}
	if _, err := s.Get(Service, KeyName); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after Delete: err = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemory())
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()
	testStore(t, NewKeyring())
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "keyring.toml")
	s, err := NewFile(path)
	if err != nil {
		t.Fatal(err)
	}
	testStore(t, s)
}

func TestFileStorePersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keyring.toml")
	a, err := NewFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Set(Service, KeyName, []byte{0, 1, 2, 255}); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("file mode = %o, want 600", perm)
	}

	b, err := NewFile(path)
	if err != nil {
		t.Fatal(err)
	}
	got, err := b.Get(Service, KeyName)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, []byte{0, 1, 2, 255}) {
		t.Fatalf("Get = %v", got)
	}
}

func TestFileStoreCorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keyring.toml")
	if err := os.WriteFile(path, []byte("not = [valid"), 0o600); err != nil {
		t.Fatal(err)
	}
	s, err := NewFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(Service, KeyName); !errors.Is(err, ErrKeyStore) {
		t.Fatalf("err = %v, want ErrKeyStore", err)
	}
}

func TestManagerEnsure(t *testing.T) {
	m := NewManager(NewMemory(), counterKeys())

	first, created, err := m.Ensure()
	if err != nil {
		t.Fatal(err)
	}
	if !created {
		t.Fatal("Ensure on empty store did not create a key")
	}

	again, created, err := m.Ensure()
	if err != nil {
		t.Fatal(err)
	}
	if created {
		t.Fatal("Ensure regenerated an existing key")
	}
	if !bytes.Equal(first, again) {
		t.Fatal("Ensure returned a different key")
	}
}

func TestManagerRegenerateAndDelete(t *testing.T) {
	m := NewManager(NewMemory(), counterKeys())
	first, _, err := m.Ensure()
	if err != nil {
		t.Fatal(err)
	}
	second, err := m.Regenerate()
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(first, second) {
		t.Fatal("Regenerate returned the same key")
	}
	loaded, err := m.Load()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(loaded, second) {
		t.Fatal("Load did not return the regenerated key")
	}

	if err := m.Delete(); err != nil {
		t.Fatal(err)
	}
	if err := m.Delete(); err != nil {
		t.Fatalf("Delete of absent key: %v", err)
	}
	if _, err := m.Load(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load after Delete: err = %v, want ErrNotFound", err)
	}
}

func TestManagerGenerateFailure(t *testing.T) {
	m := NewManager(NewMemory(), func() ([]byte, error) { return nil, errors.New("no entropy") })
	if _, _, err := m.Ensure(); !errors.Is(err, ErrKeyStore) {
		t.Fatalf("err = %v, want ErrKeyStore", err)
	}
}

func TestParseBackend(t *testing.T) {
	tests := []struct {
		in      string
		want    Backend
		wantErr bool
	}{
		{"", BackendKeyring, false},
		{"keyring", BackendKeyring, false},
		{" FILE ", BackendFile, false},
		{"memory", BackendMemory, false},
		{"vault", "", true},
	}
	for _, tt := range tests {
		got, err := ParseBackend(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseBackend(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseBackend(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
