package engine

import (
	"context"
	"fmt"
	"log/slog"

	"go.klb.dev/secureclip/internal/clip"
	"go.klb.dev/secureclip/internal/events"
	"go.klb.dev/secureclip/internal/logging"
)

// tick is one iteration of the poll loop.
func (e *Engine) tick(ctx context.Context) {
	if e.clear.due(e.clock.Now()) {
		e.clearClipboard(ctx)
	}

	content, err := e.read(ctx)
	if err != nil {
		e.readFailed(ctx, err)
		return
	}
	e.consecutiveErrors = 0

	current := content
	if content != "" && content != e.previous {
		// Recorded before dispatch so a failing transform is not retried
		// on every tick.
		e.previous = content
		e.lastChange = e.clock.Now()
		slog.Debug("clipboard changed", "preview", logging.Preview(content))
		current = e.process(ctx, content)
	}

	if e.mode.mode == ModeForceDecrypt && current != "" && current != e.decryptTried {
		if e.codec.Classify(current) {
			e.decrypt(ctx, current)
		}
	}

	if e.mode.expired(e.clock.Now()) {
		e.expireMode()
	}
}

// readFailed counts a failed tick and cools down after too many in a row.
func (e *Engine) readFailed(ctx context.Context, err error) {
	e.consecutiveErrors++
	slog.Warn("clipboard read failed", "err", err, "consecutive", e.consecutiveErrors)
	if e.consecutiveErrors <= e.cfg.MaxConsecutiveErrors {
		return
	}
	slog.Error("multiple consecutive clipboard errors, cooling down",
		"consecutive", e.consecutiveErrors,
		"cooldown", e.cfg.Cooldown,
	)
	e.emitError(fmt.Errorf("%d consecutive clipboard read failures: %w", e.consecutiveErrors, err))
	_ = e.clock.Sleep(ctx, e.cfg.Cooldown)
	e.consecutiveErrors = 0
}

// process transforms changed content and returns what the clipboard holds
// afterwards.
func (e *Engine) process(ctx context.Context, content string) string {
	if e.codec.Classify(content) {
		if e.mode.mode == ModeForceDecrypt || e.cfg.AutoDecrypt {
			return e.decrypt(ctx, content)
		}
		slog.Debug("encrypted content left untouched", "mode", e.mode.mode)
		return content
	}

	envelope, err := e.codec.Encrypt(content)
	if err != nil {
		slog.Error("encryption failed", "err", err)
		e.emitError(err)
		return content
	}
	if err := e.writeBack(ctx, envelope); err != nil {
		slog.Error("writing encrypted content failed", "err", err)
		e.emitError(err)
		return content
	}
	e.lastDecrypted = ""
	e.emit(events.KindEncrypted, content)
	return envelope
}

// decrypt opens envelope and either replaces the clipboard with the
// plaintext or only surfaces it, per Config.DecryptAction. It returns what
// the clipboard holds afterwards.
func (e *Engine) decrypt(ctx context.Context, envelope string) string {
	e.decryptTried = envelope
	plain, err := e.codec.Decrypt(envelope)
	if err != nil {
		slog.Error("decryption failed", "err", err)
		e.emitError(err)
		return envelope
	}
	if e.cfg.DecryptAction == DecryptDisplay {
		e.lastDecrypted = plain
		e.emit(events.KindDecrypted, plain)
		return envelope
	}
	if err := e.writeBack(ctx, plain); err != nil {
		slog.Error("writing decrypted content failed", "err", err)
		e.emitError(err)
		return envelope
	}
	e.lastDecrypted = plain
	e.emit(events.KindDecrypted, plain)
	return plain
}

// manualDecrypt handles an explicit decrypt request: it reads the
// clipboard afresh and decrypts whatever envelope is there.
func (e *Engine) manualDecrypt(ctx context.Context) {
	content, err := e.read(ctx)
	if err != nil {
		e.emitError(err)
		return
	}
	if content == "" || !e.codec.Classify(content) {
		slog.Info("manual decrypt: clipboard holds no decryptable content")
		return
	}
	slog.Info("manual decryption attempt")
	e.previous = content
	e.decrypt(ctx, content)
}

// clearClipboard wipes the clipboard when the clear deadline has passed.
func (e *Engine) clearClipboard(ctx context.Context) {
	e.clear.fired()
	if err := e.write(ctx, ""); err != nil {
		slog.Error("clearing clipboard failed", "err", err)
		e.emitError(err)
		return
	}
	e.previous = ""
	slog.Info("cleared clipboard contents")
	e.emit(events.KindCleared, "")
}

// writeBack writes text produced by the engine, records it as the
// previous content so the next tick sees no change, and re-arms the clear
// deadline.
func (e *Engine) writeBack(ctx context.Context, text string) error {
	if err := e.write(ctx, text); err != nil {
		return err
	}
	e.previous = text
	e.clear.arm(e.clock.Now())
	return nil
}

func (e *Engine) read(ctx context.Context) (string, error) {
	var text string
	err := e.retry(ctx, "read", func() error {
		var err error
		text, err = e.port.Read()
		return err
	})
	return text, err
}

func (e *Engine) write(ctx context.Context, text string) error {
	return e.retry(ctx, "write", func() error {
		return e.port.Write(text)
	})
}

// retry runs op up to Config.ReadAttempts times with a fixed backoff
// between attempts.
func (e *Engine) retry(ctx context.Context, what string, op func() error) error {
	var err error
	for attempt := 1; attempt <= e.cfg.ReadAttempts; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		slog.Debug("clipboard "+what+" failed", "attempt", attempt, "err", err)
		if attempt < e.cfg.ReadAttempts {
			if serr := e.clock.Sleep(ctx, e.cfg.ReadBackoff); serr != nil {
				break
			}
		}
	}
	return fmt.Errorf("%w: %s failed after %d attempts: %v", clip.ErrUnavailable, what, e.cfg.ReadAttempts, err)
}
