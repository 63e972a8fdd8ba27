package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/viper"

	"go.klb.dev/secureclip/internal/control"
	"go.klb.dev/secureclip/internal/engine"
	"go.klb.dev/secureclip/internal/events"
)

func TestEngineConfigDefaults(t *testing.T) {
	cmd := newRunCmd()
	v := viper.New()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		t.Fatal(err)
	}
	got, err := engineConfig(v)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(engine.DefaultConfig(), got); diff != "" {
		t.Errorf("config (-want +got):\n%s", diff)
	}
}

func TestEngineConfigFromEnv(t *testing.T) {
	t.Setenv("SECURECLIP_CLEAR_AFTER", "45s")
	t.Setenv("SECURECLIP_DECRYPT_ACTION", "display")

	cmd := newRunCmd()
	v := viper.New()
	v.SetEnvPrefix("SECURECLIP")
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		t.Fatal(err)
	}

	got, err := engineConfig(v)
	if err != nil {
		t.Fatal(err)
	}
	if got.ClearAfter != 45*time.Second || got.DecryptAction != engine.DecryptDisplay {
		t.Errorf("config = %+v", got)
	}
}

func TestEngineConfigRejectsUnknownAction(t *testing.T) {
	v := viper.New()
	v.Set("decrypt-action", "print")
	if _, err := engineConfig(v); err == nil {
		t.Error("engineConfig accepted decrypt-action=print")
	}
}

func fileKeystore(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.New()
	v.Set("keystore", "file")
	v.Set("keystore-file", filepath.Join(t.TempDir(), "keyring.toml"))
	return v
}

func TestEncryptDecryptStdin(t *testing.T) {
	v := fileKeystore(t)
	keys, err := openKeys(v)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := keys.Ensure(); err != nil {
		t.Fatal(err)
	}

	var env bytes.Buffer
	if err := runEncrypt(v, strings.NewReader("top secret\n"), &env); err != nil {
		t.Fatal(err)
	}
	var plain bytes.Buffer
	if err := runDecrypt(v, &env, &plain); err != nil {
		t.Fatal(err)
	}
	if got := plain.String(); got != "top secret\n" {
		t.Errorf("round trip = %q", got)
	}
}

func TestEncryptWithoutKey(t *testing.T) {
	v := fileKeystore(t)
	err := runEncrypt(v, strings.NewReader("x"), &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "key generate") {
		t.Errorf("runEncrypt without key = %v", err)
	}
}

func TestFormatEvent(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.Local)
	for _, tc := range []struct {
		ev   control.Event
		want string
	}{
		{control.Event{Kind: events.KindEncrypted, Redacted: true, At: at}, "12:00:00.000  encrypted     [hidden]"},
		{control.Event{Kind: events.KindDecrypted, Payload: "pw", At: at}, `12:00:00.000  decrypted     "pw"`},
		{control.Event{Kind: events.KindModeChanged, Payload: "auto", At: at}, "12:00:00.000  mode_changed  auto"},
		{control.Event{Kind: events.KindCleared, At: at}, "12:00:00.000  cleared"},
	} {
		if got := formatEvent(tc.ev); got != tc.want {
			t.Errorf("formatEvent(%v) = %q, want %q", tc.ev.Kind, got, tc.want)
		}
	}
}

func TestFmtAge(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.Local)
	for _, tc := range []struct {
		t    time.Time
		want string
	}{
		{time.Time{}, "-"},
		{now.Add(-5 * time.Second), "5s ago"},
		{now.Add(-3 * time.Minute), "3m ago"},
		{now.Add(-2 * time.Hour), "10:00:00"},
	} {
		if got := fmtAge(tc.t, now); got != tc.want {
			t.Errorf("fmtAge(%v) = %q, want %q", tc.t, got, tc.want)
		}
	}
}
