// Package codec turns clipboard text into an encrypted envelope and back.
//
// The cipher is NaCl secretbox (XSalsa20-Poly1305) under a single 32-byte
// key. An envelope is the canonical padded base64url encoding of
//
//	[ 24-byte nonce ][ secretbox ciphertext incl. 16-byte tag ]
//
// Decoding only accepts that exact alphabet and padding so that
// Decrypt(Encrypt(p)) == p and Classify(Encrypt(p)) hold for every p.
//
// The key is resolved lazily from a KeySource and cached. The source stays
// the source of truth: a key rotated elsewhere is picked up when
// encryption finds no key, or when a well-formed envelope fails to open
// under the cached one.
package codec

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	// KeySize is the length of the symmetric key in bytes.
	KeySize   = 32
	nonceSize = 24
	minSealed = nonceSize + secretbox.Overhead
)

var (
	// ErrEncryptionUnavailable reports that no key could be resolved.
	ErrEncryptionUnavailable = errors.New("codec: encryption unavailable")
	// ErrDecryptionFailed reports a malformed envelope, a failed
	// authentication check, or a missing key.
	ErrDecryptionFailed = errors.New("codec: decryption failed")
)

var (
	envelopeEncoding = base64.URLEncoding.Strict()
	hkdfInfo         = []byte("secureclip-v1")
)

// KeySource supplies the current key. keystore.Manager satisfies it.
type KeySource interface {
	Load() ([]byte, error)
}

// Codec encrypts, decrypts and classifies clipboard text. It is safe for
// concurrent use, though the engine only calls it from its own goroutine.
type Codec struct {
	src KeySource

	mu  sync.Mutex
	key *[KeySize]byte

	// digest of the last envelope Classify reloaded the key for
	missed [sha256.Size]byte
}

// New returns a Codec resolving its key from src on first use.
func New(src KeySource) *Codec {
	return &Codec{src: src}
}

// GenerateKey returns a fresh random key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("key generation: %w", err)
	}
	return key, nil
}

// DeriveKey derives a key from a passphrase using HKDF-SHA256, so that two
// machines importing the same passphrase can read each other's envelopes.
func DeriveKey(passphrase string) ([]byte, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("key derivation: empty passphrase")
	}
	h := hkdf.New(sha256.New, []byte(passphrase), nil, hkdfInfo)
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(h, key); err != nil {
		return nil, fmt.Errorf("key derivation: %w", err)
	}
	return key, nil
}

// SetKey installs key as the cached key, e.g. right after regeneration.
func (c *Codec) SetKey(key []byte) error {
	k, err := toKey(key)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.key = k
	c.mu.Unlock()
	return nil
}

// Encrypt seals plaintext into an envelope.
func (c *Codec) Encrypt(plaintext string) (string, error) {
	key, err := c.resolve()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncryptionUnavailable, err)
	}
	sealed, err := Seal([]byte(plaintext), key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncryptionUnavailable, err)
	}
	return envelopeEncoding.EncodeToString(sealed), nil
}

// Decrypt opens an envelope. If the cached key fails to authenticate it,
// the key is re-resolved once in case it was rotated externally.
func (c *Codec) Decrypt(envelope string) (string, error) {
	sealed, ok := decodeEnvelope(envelope)
	if !ok {
		return "", fmt.Errorf("%w: malformed envelope", ErrDecryptionFailed)
	}
	key, err := c.resolve()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	plain, err := c.open(sealed, key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	return string(plain), nil
}

// Classify reports whether text is an envelope that authenticates under
// the current key. It never fails: anything else, including envelopes
// sealed under a rotated-out key, is reported as not encrypted.
//
// A well-formed envelope that fails under the cached key triggers one
// reload from the source, so a key rotated by another process is adopted.
// Classify runs on every poll, so the reload happens once per distinct
// envelope.
func (c *Codec) Classify(text string) bool {
	sealed, ok := decodeEnvelope(text)
	if !ok {
		return false
	}
	key, err := c.resolve()
	if err != nil {
		return false
	}
	if _, err := Open(sealed, key); err == nil {
		return true
	}

	sum := sha256.Sum256(sealed)
	c.mu.Lock()
	seen := c.missed == sum
	c.missed = sum
	c.mu.Unlock()
	if seen {
		return false
	}
	_, err = c.open(sealed, key)
	return err == nil
}

// open authenticates sealed under key, re-resolving the key once from the
// source if key fails.
func (c *Codec) open(sealed []byte, key *[KeySize]byte) ([]byte, error) {
	plain, err := Open(sealed, key)
	if err == nil {
		return plain, nil
	}
	fresh, rerr := c.reload()
	if rerr != nil || *fresh == *key {
		return nil, err
	}
	slog.Info("encryption key changed in key store, reloaded")
	return Open(sealed, fresh)
}

// resolve returns the cached key, loading it from the source if absent.
func (c *Codec) resolve() (*[KeySize]byte, error) {
	c.mu.Lock()
	key := c.key
	c.mu.Unlock()
	if key != nil {
		return key, nil
	}
	return c.reload()
}

// reload fetches the key from the source and replaces the cache.
func (c *Codec) reload() (*[KeySize]byte, error) {
	if c.src == nil {
		return nil, fmt.Errorf("no key source")
	}
	raw, err := c.src.Load()
	if err != nil {
		return nil, fmt.Errorf("load key: %w", err)
	}
	key, err := toKey(raw)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.key = key
	c.mu.Unlock()
	return key, nil
}

func toKey(raw []byte) (*[KeySize]byte, error) {
	if len(raw) != KeySize {
		return nil, fmt.Errorf("key has %d bytes, want %d", len(raw), KeySize)
	}
	var key [KeySize]byte
	copy(key[:], raw)
	return &key, nil
}

// decodeEnvelope strictly decodes text, tolerating surrounding whitespace
// picked up by copy/paste.
func decodeEnvelope(text string) ([]byte, bool) {
	text = strings.TrimSpace(text)
	if len(text) < envelopeEncoding.EncodedLen(minSealed) {
		return nil, false
	}
	sealed, err := envelopeEncoding.DecodeString(text)
	if err != nil || len(sealed) < minSealed {
		return nil, false
	}
	// Reject non-canonical encodings that Strict still lets through.
	if !bytes.Equal([]byte(envelopeEncoding.EncodeToString(sealed)), []byte(text)) {
		return nil, false
	}
	return sealed, true
}

// Seal encrypts plaintext with key, prepending a random nonce.
// Returns nonce+ciphertext.
func Seal(plaintext []byte, key *[KeySize]byte) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("nonce generation: %w", err)
	}
	return secretbox.Seal(nonce[:], plaintext, &nonce, key), nil
}

// Open decrypts ciphertext (nonce+ciphertext) with key.
func Open(ciphertext []byte, key *[KeySize]byte) ([]byte, error) {
	if len(ciphertext) < minSealed {
		return nil, fmt.Errorf("ciphertext too short")
	}
	var nonce [nonceSize]byte
	copy(nonce[:], ciphertext[:nonceSize])
	plain, ok := secretbox.Open(nil, ciphertext[nonceSize:], &nonce, key)
	if !ok {
		return nil, fmt.Errorf("authentication failed (wrong key?)")
	}
	return plain, nil
}
