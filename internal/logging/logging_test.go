package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{
		"":      FormatAuto,
		"auto":  FormatAuto,
		"TEXT":  FormatText,
		"human": FormatText,
		"json":  FormatJSON,
		"xml":   FormatAuto,
	} {
		if got := ParseFormat(in); got != want {
			t.Errorf("ParseFormat(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	} {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewHandlerJSONForNonTTY(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(&buf, FormatAuto, slog.LevelInfo))
	log.Debug("hidden")
	log.Info("shown", "k", "v")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not a single JSON record: %v\n%s", err, buf.String())
	}
	if rec["msg"] != "shown" || rec["k"] != "v" {
		t.Fatalf("record = %v", rec)
	}
}

func TestPreview(t *testing.T) {
	if got := Preview("a\nb\r\n"); got != `a\nb\r\n` {
		t.Fatalf("Preview escaped = %q", got)
	}
	long := strings.Repeat("é", PreviewLen+5)
	got := Preview(long)
	if want := strings.Repeat("é", PreviewLen) + "…"; got != want {
		t.Fatalf("Preview(long) has %d runes, want %d", len([]rune(got)), PreviewLen+1)
	}
	if Preview("short") != "short" {
		t.Fatal("Preview changed short text")
	}
}
