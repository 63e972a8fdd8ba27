package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/secureclip/internal/control"
	"go.klb.dev/secureclip/internal/events"
	"go.klb.dev/secureclip/internal/ipc"
)

const rpcTimeout = 5 * time.Second

// newControlCmd builds a command that performs one call against the
// running daemon.
func newControlCmd(use, short, long string, call func(context.Context, *control.Client) error) *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:     use,
		Short:   short,
		Long:    long,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE: func(_ *cobra.Command, _ []string) error {
			client, err := dialDaemon(v)
			if err != nil {
				return err
			}
			defer client.Close()
			ctx, cancel := context.WithTimeout(context.Background(), rpcTimeout)
			defer cancel()
			return call(ctx, client)
		},
	}
	addSocketFlag(cmd)
	addConfigFlag(cmd)
	return cmd
}

// dialDaemon connects to the daemon's control socket.
func dialDaemon(v *viper.Viper) (*control.Client, error) {
	path := ipc.Resolve(v.GetString("socket"))
	if !ipc.IsRunning(path) {
		return nil, fmt.Errorf("no secureclip daemon listening on %s (start one with \"secureclip run\")", path)
	}
	return control.Dial(path)
}

func newToggleCmd() *cobra.Command {
	return newControlCmd("toggle", "Toggle force-decrypt mode",
		`Flips the daemon between auto mode (encrypt everything) and force-decrypt
mode, in which envelopes in the clipboard are decrypted. Force-decrypt mode
ends by itself after --force-decrypt-window (10s by default).`,
		func(ctx context.Context, c *control.Client) error {
			mode, err := c.Toggle(ctx)
			if err != nil {
				return fmt.Errorf("toggle: %w", err)
			}
			fmt.Printf("mode: %s\n", mode)
			return nil
		})
}

func newRevealCmd() *cobra.Command {
	return newControlCmd("reveal", "Decrypt the envelope currently in the clipboard",
		`Asks the daemon to decrypt the clipboard content once, regardless of mode.
Nothing happens if the clipboard does not hold an envelope sealed with the
current key.`,
		func(ctx context.Context, c *control.Client) error {
			if err := c.Reveal(ctx); err != nil {
				return fmt.Errorf("reveal: %w", err)
			}
			return nil
		})
}

func newRekeyCmd() *cobra.Command {
	return newControlCmd("rekey", "Generate a new encryption key in the running daemon",
		`Replaces the stored encryption key with a freshly generated one and
installs it in the daemon. Envelopes sealed with the old key can no longer be
decrypted and are treated as plain text.`,
		func(ctx context.Context, c *control.Client) error {
			if err := c.Rekey(ctx); err != nil {
				return fmt.Errorf("rekey: %w", err)
			}
			fmt.Println("new encryption key generated")
			return nil
		})
}

func newStopCmd() *cobra.Command {
	return newControlCmd("stop", "Stop the running daemon", "",
		func(ctx context.Context, c *control.Client) error {
			if err := c.Shutdown(ctx); err != nil {
				return fmt.Errorf("stop: %w", err)
			}
			return nil
		})
}

func newStatusCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:     "status",
		Short:   "Show the daemon's state",
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(_ *cobra.Command, _ []string) error { return runStatus(v) },
	}

	f := cmd.Flags()
	f.Bool("json", false, "output raw JSON")
	f.Bool("reveal", false, "include the last decrypted text")
	addSocketFlag(cmd)
	addConfigFlag(cmd)

	return cmd
}

func runStatus(v *viper.Viper) error {
	client, err := dialDaemon(v)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), rpcTimeout)
	defer cancel()
	rep, err := client.Status(ctx)
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}
	if !v.GetBool("reveal") {
		rep.LastDecrypted = ""
	}

	if v.GetBool("json") {
		enc, _ := json.MarshalIndent(rep, "", "  ")
		fmt.Println(string(enc))
		return nil
	}
	printStatus(rep, time.Now())
	return nil
}

func printStatus(rep control.Report, now time.Time) {
	w := tabwriter.NewWriter(os.Stdout, 1, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Mode:\t%s\n", rep.Mode)
	if !rep.ForceDecryptUntil.IsZero() {
		fmt.Fprintf(w, "Force decrypt ends:\t%s\n", fmtUntil(rep.ForceDecryptUntil, now))
	}
	if rep.ClearAt.IsZero() {
		fmt.Fprintf(w, "Clipboard clear:\t-\n")
	} else {
		fmt.Fprintf(w, "Clipboard clear:\t%s\n", fmtUntil(rep.ClearAt, now))
	}
	fmt.Fprintf(w, "Clipboard backend:\t%s\n", rep.Backend)
	fmt.Fprintf(w, "Consecutive errors:\t%d\n", rep.ConsecutiveErrors)
	fmt.Fprintf(w, "Last change:\t%s\n", fmtAge(rep.LastChange, now))
	fmt.Fprintf(w, "Watchers:\t%d\n", rep.Watchers)
	if rep.LastError != "" {
		fmt.Fprintf(w, "Last error:\t%s (%s)\n", rep.LastError, fmtAge(rep.LastErrorAt, now))
	}
	if rep.LastDecrypted != "" {
		fmt.Fprintf(w, "Last decrypted:\t%q\n", rep.LastDecrypted)
	}
	_ = w.Flush()
}

func fmtUntil(t, now time.Time) string {
	left := t.Sub(now).Round(100 * time.Millisecond)
	if left < 0 {
		left = 0
	}
	return fmt.Sprintf("%s (in %s)", t.Local().Format("15:04:05"), left)
}

func fmtAge(t, now time.Time) string {
	if t.IsZero() {
		return "-"
	}
	age := now.Sub(t).Round(time.Second)
	if age < time.Minute {
		return fmt.Sprintf("%ds ago", int(age.Seconds()))
	}
	if age < time.Hour {
		return fmt.Sprintf("%dm ago", int(age.Minutes()))
	}
	return t.Local().Format("15:04:05")
}

func newWatchCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream the daemon's clipboard events",
		Long: `Prints every event of the running daemon (encrypted, decrypted,
mode_changed, cleared, error) until interrupted. Clipboard text is withheld
unless --reveal is given.`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(_ *cobra.Command, _ []string) error { return runWatch(v) },
	}

	cmd.Flags().Bool("reveal", false, "print clipboard text")
	addSocketFlag(cmd)
	addConfigFlag(cmd)

	return cmd
}

func runWatch(v *viper.Viper) error {
	client, err := dialDaemon(v)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = client.Watch(ctx, v.GetBool("reveal"), func(ev control.Event) {
		fmt.Println(formatEvent(ev))
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func formatEvent(ev control.Event) string {
	line := fmt.Sprintf("%s  %-12s", ev.At.Local().Format("15:04:05.000"), ev.Kind)
	switch {
	case ev.Redacted:
		return line + "  [hidden]"
	case ev.Kind == events.KindEncrypted || ev.Kind == events.KindDecrypted:
		return line + "  " + fmt.Sprintf("%q", ev.Payload)
	case ev.Payload != "":
		return line + "  " + ev.Payload
	default:
		return strings.TrimRight(line, " ")
	}
}
