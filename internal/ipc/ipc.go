// Package ipc provides the local socket the secureclip daemon listens on.
//
// Control commands (toggle, reveal, status, ...) reach a running daemon
// through it. On Linux and macOS it is a Unix domain socket; on Windows a
// named pipe.
package ipc

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
)

// SocketPath returns the platform-appropriate path for the IPC socket.
//
//   - Linux:   $XDG_RUNTIME_DIR/secureclip.sock
//   - macOS:   $TMPDIR/secureclip.sock
//   - Windows: \\.\pipe\secureclip
//
// $SECURECLIP_SOCKET overrides all of them.
func SocketPath() string {
	if s := os.Getenv("SECURECLIP_SOCKET"); s != "" {
		return s
	}
	return socketPath()
}

// Resolve returns path, or SocketPath when path is empty.
func Resolve(path string) string {
	if path != "" {
		return path
	}
	return SocketPath()
}

// IsRunning reports whether a daemon appears to be listening at path. It
// does a cheap dial-and-close; no data is exchanged.
func IsRunning(path string) bool {
	c, err := dialIPC(Resolve(path))
	if err != nil {
		return false
	}
	_ = c.Close()
	return true
}

// Listen creates a listener at path. A stale socket left by a crashed run
// is removed first; a live one is an error.
func Listen(path string) (net.Listener, error) {
	path = Resolve(path)
	if IsRunning(path) {
		return nil, fmt.Errorf("ipc: a daemon is already listening on %s", path)
	}
	if err := removeStale(path); err != nil {
		return nil, err
	}
	ln, err := listenIPC(path)
	if err != nil {
		return nil, fmt.Errorf("ipc: listen %s: %w", path, err)
	}
	return ln, nil
}

// Dial connects to the daemon at path.
func Dial(path string) (net.Conn, error) {
	return dialIPC(Resolve(path))
}

func removeStale(path string) error {
	if isPipe(path) {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("ipc: remove stale socket: %w", err)
	}
	return nil
}
