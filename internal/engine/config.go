package engine

import (
	"fmt"
	"strings"
	"time"
)

// DecryptAction selects what happens to recovered plaintext.
type DecryptAction string

const (
	// DecryptReplace writes the plaintext over the ciphertext in the clipboard.
	DecryptReplace DecryptAction = "replace"
	// DecryptDisplay leaves the ciphertext in place and only surfaces the
	// plaintext through a decrypted event.
	DecryptDisplay DecryptAction = "display"
)

// ParseDecryptAction converts a string to a DecryptAction.
func ParseDecryptAction(s string) (DecryptAction, error) {
	switch a := DecryptAction(strings.ToLower(strings.TrimSpace(s))); a {
	case DecryptReplace, DecryptDisplay:
		return a, nil
	case "":
		return DecryptReplace, nil
	default:
		return "", fmt.Errorf("unknown decrypt action %q (want replace|display)", s)
	}
}

const (
	minCooldown = 2 * time.Second
	maxCooldown = 5 * time.Second
)

// Config tunes the poll loop. Zero fields take the defaults of
// DefaultConfig.
type Config struct {
	// PollInterval is the tick cadence.
	PollInterval time.Duration
	// ReadAttempts bounds clipboard read (and write) attempts per operation.
	ReadAttempts int
	// ReadBackoff is the pause between attempts.
	ReadBackoff time.Duration
	// MaxConsecutiveErrors is how many failed ticks are tolerated before a
	// cooldown.
	MaxConsecutiveErrors int
	// Cooldown is the pause after too many failed ticks, within [2s, 5s].
	Cooldown time.Duration
	// ClearAfter is how long content written by the engine stays in the
	// clipboard.
	ClearAfter time.Duration
	// ForceDecryptWindow is how long force-decrypt mode lasts.
	ForceDecryptWindow time.Duration
	// AutoDecrypt decrypts detected ciphertext in Auto mode too.
	AutoDecrypt bool
	// DecryptAction selects replace or display.
	DecryptAction DecryptAction
}

// DefaultConfig returns the standard timings.
func DefaultConfig() Config {
	return Config{
		PollInterval:         100 * time.Millisecond,
		ReadAttempts:         3,
		ReadBackoff:          100 * time.Millisecond,
		MaxConsecutiveErrors: 5,
		Cooldown:             minCooldown,
		ClearAfter:           30 * time.Second,
		ForceDecryptWindow:   10 * time.Second,
		DecryptAction:        DecryptReplace,
	}
}

func (c Config) normalize() Config {
	d := DefaultConfig()
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.ReadAttempts <= 0 {
		c.ReadAttempts = d.ReadAttempts
	}
	if c.ReadBackoff <= 0 {
		c.ReadBackoff = d.ReadBackoff
	}
	if c.MaxConsecutiveErrors <= 0 {
		c.MaxConsecutiveErrors = d.MaxConsecutiveErrors
	}
	switch {
	case c.Cooldown == 0:
		c.Cooldown = d.Cooldown
	case c.Cooldown < minCooldown:
		c.Cooldown = minCooldown
	case c.Cooldown > maxCooldown:
		c.Cooldown = maxCooldown
	}
	if c.ClearAfter <= 0 {
		c.ClearAfter = d.ClearAfter
	}
	if c.ForceDecryptWindow <= 0 {
		c.ForceDecryptWindow = d.ForceDecryptWindow
	}
	if c.DecryptAction == "" {
		c.DecryptAction = d.DecryptAction
	}
	return c
}
