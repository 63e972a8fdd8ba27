package control

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"go.klb.dev/secureclip/internal/engine"
	"go.klb.dev/secureclip/internal/events"
)

// Report is the wire form of engine.Status, shared by the gRPC Status
// call, the HTTP /status endpoint and `secureclip status --json`.
type Report struct {
	Mode              string    `json:"mode"`
	ForceDecryptUntil time.Time `json:"force_decrypt_until,omitzero"`
	ClearAt           time.Time `json:"clear_at,omitzero"`
	ConsecutiveErrors int       `json:"consecutive_errors"`
	Backend           string    `json:"backend"`
	LastChange        time.Time `json:"last_change,omitzero"`
	LastDecrypted     string    `json:"last_decrypted,omitempty"`
	LastError         string    `json:"last_error,omitempty"`
	LastErrorAt       time.Time `json:"last_error_at,omitzero"`
	Watchers          int       `json:"watchers"`
}

// NewReport converts s. The last decrypted plaintext is only included when
// reveal is set.
func NewReport(s engine.Status, reveal bool) Report {
	r := Report{
		Mode:              s.Mode.String(),
		ForceDecryptUntil: s.ForceDecryptUntil,
		ClearAt:           s.ClearAt,
		ConsecutiveErrors: s.ConsecutiveErrors,
		Backend:           s.Backend,
		LastChange:        s.LastChange,
	}
	if reveal {
		r.LastDecrypted = s.LastDecrypted
	}
	return r
}

func (r Report) toStruct() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"mode":                r.Mode,
		"force_decrypt_until": formatTime(r.ForceDecryptUntil),
		"clear_at":            formatTime(r.ClearAt),
		"consecutive_errors":  r.ConsecutiveErrors,
		"backend":             r.Backend,
		"last_change":         formatTime(r.LastChange),
		"last_decrypted":      r.LastDecrypted,
		"last_error":          r.LastError,
		"last_error_at":       formatTime(r.LastErrorAt),
		"watchers":            r.Watchers,
	})
}

func reportFromStruct(s *structpb.Struct) (Report, error) {
	f := s.GetFields()
	r := Report{
		Mode:              f["mode"].GetStringValue(),
		ConsecutiveErrors: int(f["consecutive_errors"].GetNumberValue()),
		Backend:           f["backend"].GetStringValue(),
		LastDecrypted:     f["last_decrypted"].GetStringValue(),
		LastError:         f["last_error"].GetStringValue(),
		Watchers:          int(f["watchers"].GetNumberValue()),
	}
	var err error
	if r.ForceDecryptUntil, err = parseTime(f["force_decrypt_until"].GetStringValue()); err != nil {
		return Report{}, err
	}
	if r.ClearAt, err = parseTime(f["clear_at"].GetStringValue()); err != nil {
		return Report{}, err
	}
	if r.LastChange, err = parseTime(f["last_change"].GetStringValue()); err != nil {
		return Report{}, err
	}
	if r.LastErrorAt, err = parseTime(f["last_error_at"].GetStringValue()); err != nil {
		return Report{}, err
	}
	return r, nil
}

// Event is the wire form of events.Event.
type Event struct {
	Kind    events.Kind `json:"kind"`
	Payload string      `json:"payload,omitempty"`
	// Redacted is set when Payload held clipboard text that was withheld.
	Redacted bool      `json:"redacted,omitempty"`
	At       time.Time `json:"at"`
}

// carriesText reports whether events of kind k have clipboard text as
// their payload.
func carriesText(k events.Kind) bool {
	return k == events.KindEncrypted || k == events.KindDecrypted
}

func eventToStruct(ev events.Event, reveal bool) (*structpb.Struct, error) {
	payload, redacted := ev.Payload, false
	if !reveal && carriesText(ev.Kind) && payload != "" {
		payload, redacted = "", true
	}
	return structpb.NewStruct(map[string]any{
		"kind":     string(ev.Kind),
		"payload":  payload,
		"redacted": redacted,
		"at":       formatTime(ev.At),
	})
}

func eventFromStruct(s *structpb.Struct) (Event, error) {
	f := s.GetFields()
	at, err := parseTime(f["at"].GetStringValue())
	if err != nil {
		return Event{}, err
	}
	return Event{
		Kind:     events.Kind(f["kind"].GetStringValue()),
		Payload:  f["payload"].GetStringValue(),
		Redacted: f["redacted"].GetBoolValue(),
		At:       at,
	}, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("control: bad timestamp %q: %w", s, err)
	}
	return t, nil
}
