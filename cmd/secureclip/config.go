package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/secureclip/internal/codec"
	"go.klb.dev/secureclip/internal/engine"
	"go.klb.dev/secureclip/internal/keystore"
	"go.klb.dev/secureclip/internal/logging"
)

// envKeyReplacer maps flag names to env var suffixes: poll-interval is
// read from SECURECLIP_POLL_INTERVAL.
var envKeyReplacer = strings.NewReplacer("-", "_")

// bindViper wires a command's flags into a viper instance with the standard
// config file search order and SECURECLIP_* env var prefix.
//
// Precedence (lowest → highest): defaults → config file → SECURECLIP_* env vars → flags
func bindViper(cmd *cobra.Command, v *viper.Viper) error {
	configFlag, _ := cmd.Flags().GetString("config")
	if configFlag != "" {
		v.SetConfigFile(configFlag)
	} else {
		v.SetConfigName("secureclip")
		v.SetConfigType("toml")
		v.AddConfigPath("/etc/secureclip/")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(fmt.Sprintf("%s/.config/secureclip", home))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("config: %w", err)
		}
	}

	v.SetEnvPrefix("SECURECLIP")
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}
	return nil
}

// addLoggingFlags adds the standard logging flags to a command.
func addLoggingFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("no-background", false, "run interactively: tinter logs + debug level")
	cmd.Flags().String("log-format", "auto", "log format: auto|text|json")
	cmd.Flags().String("log-level", "", "log level: debug|info|warn|error (default: info for service, debug for interactive)")
}

// addConfigFlag adds the --config flag to a command.
func addConfigFlag(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "path to config file (overrides auto-discovery)")
}

// addSocketFlag adds the --socket flag to a command.
func addSocketFlag(cmd *cobra.Command) {
	cmd.Flags().String("socket", "", "control socket path (default: platform socket, or $SECURECLIP_SOCKET)")
}

// addKeystoreFlags adds the key storage flags to a command.
func addKeystoreFlags(cmd *cobra.Command) {
	cmd.Flags().String("keystore", string(keystore.BackendKeyring), "key storage: keyring|file")
	cmd.Flags().String("keystore-file", keystore.DefaultFilePath(), "key file used by --keystore=file (plaintext at rest)")
}

// addEngineFlags adds the poll loop tuning flags to a command.
func addEngineFlags(cmd *cobra.Command) {
	d := engine.DefaultConfig()
	f := cmd.Flags()
	f.Duration("poll-interval", d.PollInterval, "clipboard poll cadence")
	f.Int("read-attempts", d.ReadAttempts, "clipboard read/write attempts per operation")
	f.Duration("read-backoff", d.ReadBackoff, "pause between clipboard attempts")
	f.Int("max-consecutive-errors", d.MaxConsecutiveErrors, "failed polls tolerated before cooling down")
	f.Duration("cooldown", d.Cooldown, "pause after too many failed polls (2s–5s)")
	f.Duration("clear-after", d.ClearAfter, "wipe content written by secureclip after this long")
	f.Duration("force-decrypt-window", d.ForceDecryptWindow, "how long force-decrypt mode lasts")
	f.Bool("auto-decrypt", d.AutoDecrypt, "decrypt envelopes without force-decrypt mode")
	f.String("decrypt-action", string(d.DecryptAction), "what to do with decrypted text: replace|display")
}

// setupLogging reads logging flags from viper and configures slog.
func setupLogging(v *viper.Viper) {
	interactive := v.GetBool("no-background") || logging.IsTTY(os.Stderr)
	resolveLogging(interactive, v.GetString("log-format"), v.GetString("log-level"))
}

// engineConfig builds the poll loop configuration from v.
func engineConfig(v *viper.Viper) (engine.Config, error) {
	action, err := engine.ParseDecryptAction(v.GetString("decrypt-action"))
	if err != nil {
		return engine.Config{}, err
	}
	return engine.Config{
		PollInterval:         v.GetDuration("poll-interval"),
		ReadAttempts:         v.GetInt("read-attempts"),
		ReadBackoff:          v.GetDuration("read-backoff"),
		MaxConsecutiveErrors: v.GetInt("max-consecutive-errors"),
		Cooldown:             v.GetDuration("cooldown"),
		ClearAfter:           v.GetDuration("clear-after"),
		ForceDecryptWindow:   v.GetDuration("force-decrypt-window"),
		AutoDecrypt:          v.GetBool("auto-decrypt"),
		DecryptAction:        action,
	}, nil
}

// openKeys returns the key Manager for the configured backend.
func openKeys(v *viper.Viper) (*keystore.Manager, error) {
	backend, err := keystore.ParseBackend(v.GetString("keystore"))
	if err != nil {
		return nil, err
	}
	store, err := keystore.Open(backend, v.GetString("keystore-file"))
	if err != nil {
		return nil, err
	}
	return keystore.NewManager(store, codec.GenerateKey), nil
}
