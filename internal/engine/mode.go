package engine

import "time"

// Mode is the engine's decryption policy.
type Mode int

const (
	// ModeAuto encrypts plaintext and leaves ciphertext alone (unless
	// Config.AutoDecrypt is set).
	ModeAuto Mode = iota
	// ModeForceDecrypt decrypts detected ciphertext until its deadline.
	ModeForceDecrypt
)

func (m Mode) String() string {
	switch m {
	case ModeForceDecrypt:
		return "force_decrypt"
	default:
		return "auto"
	}
}

// modeController holds the mode and the force-decrypt deadline. It is
// owned by the engine goroutine.
type modeController struct {
	window   time.Duration
	mode     Mode
	deadline time.Time
}

// toggle flips the mode. Entering ModeForceDecrypt always arms a fresh
// deadline of now+window.
func (m *modeController) toggle(now time.Time) Mode {
	if m.mode == ModeForceDecrypt {
		m.reset()
		return m.mode
	}
	m.mode = ModeForceDecrypt
	m.deadline = now.Add(m.window)
	return m.mode
}

// expired reports whether force-decrypt mode has reached its deadline.
// There is no grace period: now == deadline is expired.
func (m *modeController) expired(now time.Time) bool {
	return m.mode == ModeForceDecrypt && !now.Before(m.deadline)
}

func (m *modeController) reset() {
	m.mode = ModeAuto
	m.deadline = time.Time{}
}
