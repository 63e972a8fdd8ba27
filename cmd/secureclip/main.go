// secureclip: transparent clipboard encryption.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"go.klb.dev/secureclip/internal/logging"
)

// Version is set at build time via -ldflags "-X main.Version=x.y.z".
var Version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "secureclip",
		Short: "Transparent clipboard encryption",
		Long: `secureclip watches the system clipboard and replaces any text copied into
it with an encrypted envelope. Envelopes are decrypted on demand: toggle
force-decrypt mode for a short window, or ask for a one-off reveal.
Anything secureclip writes to the clipboard is wiped after a timeout.

Run "secureclip run" to start the daemon. Use "secureclip toggle/reveal/
status/watch/stop" to control a running daemon over its local socket, and
"secureclip key" to manage the encryption key.

Config file search order (first found wins):
  /etc/secureclip/secureclip.toml
  $HOME/.config/secureclip/secureclip.toml
  path supplied via --config

All flags can be set via SECURECLIP_<FLAG> env vars or config-file keys.
See "secureclip run --help" for the full flag reference.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newRunCmd(),
		newToggleCmd(),
		newRevealCmd(),
		newRekeyCmd(),
		newStatusCmd(),
		newWatchCmd(),
		newStopCmd(),
		newKeyCmd(),
		newEncryptCmd(),
		newDecryptCmd(),
		newVersionCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("secureclip %s\n", Version)
		},
	}
}

// resolveLogging sets up the global slog logger after flags are parsed.
func resolveLogging(interactive bool, formatStr, levelStr string) {
	format := logging.ParseFormat(formatStr)
	level := logging.ParseLevel(levelStr)
	if levelStr == "" {
		if interactive {
			level = logging.ParseLevel("debug")
		} else {
			level = logging.ParseLevel("info")
		}
	}
	logging.Setup(format, level)
}
