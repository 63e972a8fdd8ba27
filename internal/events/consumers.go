package events

import (
	"context"
	"log/slog"

	"github.com/gen2brain/beeep"

	"go.klb.dev/secureclip/internal/logging"
)

// Drain calls handle for every event on sub until ctx is done, then closes
// sub.
func Drain(ctx context.Context, sub *Subscription, handle func(Event)) {
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-sub.C():
			handle(ev)
		}
	}
}

// LogEvent logs ev at INFO (kind only) or WARN for errors; clipboard text
// is only ever logged as a DEBUG preview.
func LogEvent(ev Event) {
	switch ev.Kind {
	case KindError:
		slog.Warn("clipboard engine error", "err", ev.Payload)
	case KindModeChanged:
		slog.Info("mode changed", "mode", ev.Payload)
	default:
		slog.Info("clipboard "+string(ev.Kind), "at", ev.At.Format("15:04:05.000"))
		if ev.Payload != "" && slog.Default().Enabled(context.Background(), slog.LevelDebug) {
			slog.Debug("clipboard text", "kind", ev.Kind, "preview", logging.Preview(ev.Payload))
		}
	}
}

// Notifier shows desktop notifications for engine events.
type Notifier struct {
	// Reveal includes a preview of the clipboard text in the notification.
	Reveal bool
	notify func(title, message string) error
}

// NewNotifier returns a Notifier using the platform notification service.
func NewNotifier(reveal bool) *Notifier {
	return &Notifier{
		Reveal: reveal,
		notify: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
	}
}

// Handle shows a notification for ev. Failures are logged, not returned.
func (n *Notifier) Handle(ev Event) {
	title, message := n.render(ev)
	if title == "" {
		return
	}
	if err := n.notify(title, message); err != nil {
		slog.Debug("desktop notification failed", "err", err)
	}
}

func (n *Notifier) render(ev Event) (title, message string) {
	preview := func(fallback string) string {
		if n.Reveal && ev.Payload != "" {
			return logging.Preview(ev.Payload)
		}
		return fallback
	}
	switch ev.Kind {
	case KindEncrypted:
		return "Content Encrypted", preview("Clipboard text was encrypted.")
	case KindDecrypted:
		return "Content Decrypted", preview("Clipboard text was decrypted.")
	case KindModeChanged:
		if ev.Payload == "force_decrypt" {
			return "Force Decrypt Mode", "Encrypted clipboard content will be decrypted for a short while."
		}
		return "Auto Mode", "Clipboard text will be encrypted."
	case KindError:
		return "Secure Clipboard Error", ev.Payload
	default:
		return "", ""
	}
}
