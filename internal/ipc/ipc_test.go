//go:build !windows

package ipc

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSocketPathOverride(t *testing.T) {
	t.Setenv("SECURECLIP_SOCKET", "/tmp/custom.sock")
	if got := SocketPath(); got != "/tmp/custom.sock" {
		t.Errorf("SocketPath() = %q", got)
	}
	if got := Resolve("/run/explicit.sock"); got != "/run/explicit.sock" {
		t.Errorf("Resolve(explicit) = %q", got)
	}
	if got := Resolve(""); got != "/tmp/custom.sock" {
		t.Errorf("Resolve(\"\") = %q", got)
	}
}

func TestSocketPathRuntimeDir(t *testing.T) {
	t.Setenv("SECURECLIP_SOCKET", "")
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")
	if got := SocketPath(); got != "/run/user/1000/secureclip.sock" {
		t.Errorf("SocketPath() = %q", got)
	}
}

// shortSocket returns a socket path short enough for sun_path limits.
func shortSocket(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "sc")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return filepath.Join(dir, "s.sock")
}

func TestListenDialAndStale(t *testing.T) {
	path := shortSocket(t)
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatal(err)
	}

	ln, err := Listen(path)
	if err != nil {
		t.Fatalf("Listen over stale file: %v", err)
	}
	defer ln.Close()

	fi, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := fi.Mode().Perm(); perm != 0o600 {
		t.Errorf("socket mode = %v, want 0600", perm)
	}

	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			_ = c.Close()
		}
	}()

	if !IsRunning(path) {
		t.Fatal("IsRunning = false with a live listener")
	}
	if _, err := Listen(path); err == nil {
		t.Fatal("second Listen on a live socket succeeded")
	}
	c, err := Dial(path)
	if err != nil {
		t.Fatal(err)
	}
	_ = c.Close()
}

func TestIsRunningWithoutDaemon(t *testing.T) {
	if IsRunning(shortSocket(t)) {
		t.Error("IsRunning = true with nothing listening")
	}
}
