// Package clip provides text access to the system clipboard.
//
// Implementations:
//
//	native:   golang.design/x/clipboard (cgo on macOS/Linux, Win32 on Windows)
//	exec:     github.com/atotto/clipboard (pbcopy, xclip/xsel/wl-copy, Win32)
//	headless: no-op for machines without a display server
//	memory:   in-process buffer, used by tests and for dry runs
//
// Ports are not safe for concurrent use; the engine only touches the port
// from its poll goroutine.
package clip

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ErrUnavailable reports that the clipboard could not be read or written.
var ErrUnavailable = errors.New("clipboard unavailable")

// Port is the text clipboard as seen by the engine.
type Port interface {
	// Name returns a human-readable name for the backend.
	Name() string
	// Read returns the clipboard text, "" if it is empty or holds no text.
	Read() (string, error)
	// Write replaces the clipboard contents with text.
	Write(text string) error
}

// Kind selects a Port implementation.
type Kind string

const (
	KindAuto     Kind = "auto"
	KindNative   Kind = "native"
	KindExec     Kind = "exec"
	KindHeadless Kind = "headless"
	KindMemory   Kind = "memory"
)

// ParseKind converts a string to a Kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindAuto, KindNative, KindExec, KindHeadless, KindMemory:
		return k, nil
	case "":
		return KindAuto, nil
	default:
		return "", fmt.Errorf("unknown clipboard backend %q (want auto|native|exec|headless|memory)", s)
	}
}

// New returns the Port for kind. KindAuto tries native, then exec, and
// falls back to headless when neither is usable (e.g. a server without X11
// or Wayland).
func New(kind Kind) (Port, error) {
	switch kind {
	case KindNative:
		return newNative()
	case KindExec:
		return newExec()
	case KindHeadless:
		return headless{}, nil
	case KindMemory:
		return NewMemory(), nil
	case KindAuto, "":
		p, err := newNative()
		if err == nil {
			return p, nil
		}
		slog.Debug("native clipboard unavailable", "err", err)
		if p, err = newExec(); err == nil {
			return p, nil
		}
		slog.Debug("exec clipboard unavailable", "err", err)
		slog.Warn("clipboard unavailable, running headless")
		return headless{}, nil
	default:
		return nil, fmt.Errorf("unknown clipboard backend %q", kind)
	}
}

// headless is a no-op Port. Reads are always empty; writes are discarded.
type headless struct{}

func (headless) Name() string          { return "headless (no-op)" }
func (headless) Read() (string, error) { return "", nil }
func (headless) Write(string) error    { return nil }
