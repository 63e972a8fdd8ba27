package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"go.klb.dev/secureclip/internal/clip"
	"go.klb.dev/secureclip/internal/codec"
	"go.klb.dev/secureclip/internal/control"
	"go.klb.dev/secureclip/internal/engine"
	"go.klb.dev/secureclip/internal/events"
	"go.klb.dev/secureclip/internal/ipc"
)

func newRunCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the clipboard encryption daemon",
		Long: `Starts the secureclip daemon. Text copied to the clipboard is replaced
with an encrypted envelope; envelopes are decrypted while force-decrypt mode
is active (see "secureclip toggle") or on request ("secureclip reveal").

An encryption key is generated and stored on first start if none exists.

Config file search order:
  /etc/secureclip/secureclip.toml
  $HOME/.config/secureclip/secureclip.toml
  path supplied via --config

Precedence (lowest → highest): defaults → config file → SECURECLIP_* env vars → flags`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(_ *cobra.Command, _ []string) error { return runDaemon(v) },
	}

	f := cmd.Flags()
	f.String("clipboard", string(clip.KindAuto), "clipboard backend: auto|native|exec|headless")
	f.Bool("notify", false, "show desktop notifications")
	f.Bool("notify-reveal", false, "include a preview of the clipboard text in notifications")
	addEngineFlags(cmd)
	addKeystoreFlags(cmd)
	addSocketFlag(cmd)
	addLoggingFlags(cmd)
	addConfigFlag(cmd)

	return cmd
}

func runDaemon(v *viper.Viper) error {
	setupLogging(v)

	cfg, err := engineConfig(v)
	if err != nil {
		return err
	}

	keys, err := openKeys(v)
	if err != nil {
		return err
	}
	key, _, err := keys.Ensure()
	if err != nil {
		return fmt.Errorf("encryption key: %w", err)
	}
	cdc := codec.New(keys)
	if err := cdc.SetKey(key); err != nil {
		return fmt.Errorf("encryption key: %w", err)
	}

	kind, err := clip.ParseKind(v.GetString("clipboard"))
	if err != nil {
		return err
	}
	port, err := clip.New(kind)
	if err != nil {
		return err
	}
	// A failure here is not fatal; the poll loop's backoff takes over.
	if _, err := port.Read(); err != nil {
		slog.Warn("initial clipboard read failed", "backend", port.Name(), "err", err)
	}

	slog.Info("secureclip starting",
		"version", Version,
		"clipboard", port.Name(),
		"keystore", keys.Backend(),
	)

	bus := events.NewBus()
	eng := engine.New(engine.Params{
		Config: cfg,
		Port:   port,
		Codec:  cdc,
		Sink:   bus,
		Keys:   keys,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	logSub := bus.Subscribe("log", 64)
	g.Go(func() error {
		events.Drain(gctx, logSub, events.LogEvent)
		return nil
	})
	if v.GetBool("notify") {
		n := events.NewNotifier(v.GetBool("notify-reveal"))
		notifySub := bus.Subscribe("notify", 16)
		g.Go(func() error {
			events.Drain(gctx, notifySub, n.Handle)
			return nil
		})
	}

	g.Go(func() error {
		// Run also returns on a Shutdown request; take everything else down
		// with it.
		defer cancel()
		return eng.Run(gctx)
	})

	ln, err := ipc.Listen(v.GetString("socket"))
	if err != nil {
		slog.Warn("control socket unavailable", "err", err)
	} else {
		slog.Info("control socket listening", "path", ipc.Resolve(v.GetString("socket")))
		svc := control.New(eng, bus, eng.Shutdown)
		g.Go(func() error { return svc.Serve(gctx, ln) })
	}

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("secureclip stopped")
	return nil
}
