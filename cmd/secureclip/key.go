package main

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/secureclip/internal/codec"
	"go.klb.dev/secureclip/internal/ipc"
	"go.klb.dev/secureclip/internal/keystore"
)

func newKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage the encryption key",
		Long: `Inspects and replaces the encryption key stored under service
"SecureClipboard", key "encryption_key". These commands work on the key store
directly and do not need a running daemon.`,
	}
	cmd.AddCommand(
		newKeyStatusCmd(),
		newKeyGenerateCmd(),
		newKeyImportCmd(),
		newKeyDeleteCmd(),
	)
	return cmd
}

// newKeySubCmd builds a key subcommand with the keystore flags bound.
func newKeySubCmd(use, short string, run func(*viper.Viper, *keystore.Manager) error) *cobra.Command {
	v := viper.New()
	cmd := &cobra.Command{
		Use:     use,
		Short:   short,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE: func(_ *cobra.Command, _ []string) error {
			setupLogging(v)
			keys, err := openKeys(v)
			if err != nil {
				return err
			}
			return run(v, keys)
		},
	}
	addKeystoreFlags(cmd)
	addLoggingFlags(cmd)
	addConfigFlag(cmd)
	return cmd
}

// fingerprint identifies a key without revealing it.
func fingerprint(key []byte) string {
	sum := sha256.Sum256(key)
	return hex.EncodeToString(sum[:8])
}

func newKeyStatusCmd() *cobra.Command {
	cmd := newKeySubCmd("status", "Show whether a key is stored", func(_ *viper.Viper, keys *keystore.Manager) error {
		key, err := keys.Load()
		switch {
		case errors.Is(err, keystore.ErrNotFound):
			fmt.Printf("no key stored (%s)\n", keys.Backend())
			return nil
		case err != nil:
			return err
		}
		fmt.Printf("key stored (%s), fingerprint %s\n", keys.Backend(), fingerprint(key))
		return nil
	})
	return cmd
}

func newKeyGenerateCmd() *cobra.Command {
	cmd := newKeySubCmd("generate", "Generate and store a new key", func(v *viper.Viper, keys *keystore.Manager) error {
		if _, err := keys.Load(); err == nil && !v.GetBool("force") {
			return errors.New("a key is already stored; pass --force to replace it")
		}
		key, err := keys.Regenerate()
		if err != nil {
			return err
		}
		fmt.Printf("new key stored (%s), fingerprint %s\n", keys.Backend(), fingerprint(key))
		notifyDaemon(v)
		return nil
	})
	cmd.Flags().Bool("force", false, "replace an existing key")
	addSocketFlag(cmd)
	return cmd
}

func newKeyImportCmd() *cobra.Command {
	cmd := newKeySubCmd("import", "Store a key derived from a passphrase", func(v *viper.Viper, keys *keystore.Manager) error {
		passphrase := v.GetString("passphrase")
		if passphrase == "" {
			return errors.New("--passphrase (or SECURECLIP_PASSPHRASE) is required")
		}
		key, err := codec.DeriveKey(passphrase)
		if err != nil {
			return err
		}
		if err := keys.Import(key); err != nil {
			return err
		}
		fmt.Printf("key stored (%s), fingerprint %s\n", keys.Backend(), fingerprint(key))
		notifyDaemon(v)
		return nil
	})
	cmd.Long = `Derives the key from a passphrase, so that machines importing the same
passphrase can decrypt each other's envelopes.`
	cmd.Flags().String("passphrase", "", "passphrase to derive the key from")
	addSocketFlag(cmd)
	return cmd
}

func newKeyDeleteCmd() *cobra.Command {
	cmd := newKeySubCmd("delete", "Delete the stored key", func(_ *viper.Viper, keys *keystore.Manager) error {
		if err := keys.Delete(); err != nil {
			return err
		}
		fmt.Printf("key deleted (%s)\n", keys.Backend())
		return nil
	})
	return cmd
}

// notifyDaemon warns that a running daemon keeps encrypting with the key it
// cached. It switches to the stored key once it polls an envelope sealed
// under it.
func notifyDaemon(v *viper.Viper) {
	path := ipc.Resolve(v.GetString("socket"))
	if !ipc.IsRunning(path) {
		return
	}
	slog.Warn(`a daemon is running and encrypts with its cached key until it sees an envelope under the new one; restart it or use "secureclip rekey" next time`,
		"socket", path)
}
