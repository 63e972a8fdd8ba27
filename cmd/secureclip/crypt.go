package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/secureclip/internal/codec"
	"go.klb.dev/secureclip/internal/keystore"
)

func newEncryptCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "encrypt",
		Short: "Encrypt stdin to an envelope on stdout",
		Long: `Reads stdin and writes the envelope the daemon would put in the
clipboard, using the stored key. Useful in scripts and over SSH.`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runEncrypt(v, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	addKeystoreFlags(cmd)
	addConfigFlag(cmd)
	return cmd
}

func newDecryptCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:     "decrypt",
		Short:   "Decrypt an envelope on stdin to stdout",
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDecrypt(v, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	addKeystoreFlags(cmd)
	addConfigFlag(cmd)
	return cmd
}

// stdinCodec returns a Codec over the stored key. It never creates a key.
func stdinCodec(v *viper.Viper) (*codec.Codec, error) {
	keys, err := openKeys(v)
	if err != nil {
		return nil, err
	}
	if _, err := keys.Load(); err != nil {
		if errors.Is(err, keystore.ErrNotFound) {
			return nil, fmt.Errorf("no encryption key stored in %s; run \"secureclip key generate\"", keys.Backend())
		}
		return nil, err
	}
	return codec.New(keys), nil
}

func runEncrypt(v *viper.Viper, in io.Reader, out io.Writer) error {
	data, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}
	if len(data) == 0 {
		return nil
	}
	c, err := stdinCodec(v)
	if err != nil {
		return err
	}
	env, err := c.Encrypt(string(data))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, env)
	return err
}

func runDecrypt(v *viper.Viper, in io.Reader, out io.Writer) error {
	data, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}
	env := strings.TrimSpace(string(data))
	if env == "" {
		return nil
	}
	c, err := stdinCodec(v)
	if err != nil {
		return err
	}
	plain, err := c.Decrypt(env)
	if err != nil {
		return err
	}
	_, err = io.WriteString(out, plain)
	return err
}
