// Package engine is the clipboard state-transition engine.
//
// An Engine polls a clip.Port on a fixed cadence. Changed plaintext is
// replaced with an encrypted envelope; detected envelopes are decrypted
// when the mode (or configuration) asks for it. Content written by the
// engine is wiped after Config.ClearAfter, and force-decrypt mode expires
// after Config.ForceDecryptWindow.
//
// All mutable state is owned by the goroutine running Run. Timers are
// deadlines compared against the injected clock on every tick, and every
// external request (toggle, manual decrypt, key regeneration, status) is
// funnelled into that goroutine as a message, so a decision is never made
// on half-updated state. Observers are told about changes through a Sink,
// which must not block.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.klb.dev/secureclip/internal/clip"
	"go.klb.dev/secureclip/internal/clock"
	"go.klb.dev/secureclip/internal/events"
)

var (
	// ErrStopped is returned by control operations once the engine has
	// stopped.
	ErrStopped = errors.New("engine: stopped")
	// ErrNoKeyRotator is returned by RegenerateKey when Params.Keys is nil.
	ErrNoKeyRotator = errors.New("engine: key regeneration not configured")
)

// Codec encrypts, decrypts and classifies clipboard text.
type Codec interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(envelope string) (string, error)
	Classify(text string) bool
	SetKey(key []byte) error
}

// KeyRotator replaces the stored key with a new one.
type KeyRotator interface {
	Regenerate() ([]byte, error)
}

// Sink receives state-change events. Emit must not block.
type Sink interface {
	Emit(events.Event)
}

// Params are the collaborators of an Engine.
type Params struct {
	Config Config
	Port   clip.Port
	Codec  Codec
	Sink   Sink
	// Keys enables RegenerateKey. Optional.
	Keys KeyRotator
	// Clock defaults to clock.Real().
	Clock clock.Clock
}

// Status is a snapshot of engine state.
type Status struct {
	Mode Mode
	// ForceDecryptUntil is zero in ModeAuto.
	ForceDecryptUntil time.Time
	// ClearAt is zero when no clear is pending.
	ClearAt           time.Time
	ConsecutiveErrors int
	Backend           string
	// LastChange is when changed clipboard content was last processed.
	LastChange time.Time
	// LastDecrypted is the most recently surfaced plaintext; it is reset
	// when the mode returns to Auto or new plaintext is encrypted.
	LastDecrypted string
}

// Engine is the poll loop and its state.
type Engine struct {
	cfg   Config
	port  clip.Port
	codec Codec
	sink  Sink
	keys  KeyRotator
	clock clock.Clock

	cmds     chan func(context.Context)
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	started  atomic.Bool

	// Owned by the Run goroutine.
	previous          string
	mode              modeController
	clear             clearScheduler
	consecutiveErrors int
	decryptTried      string
	lastDecrypted     string
	lastChange        time.Time
}

// New returns an Engine. Call Run to start it.
func New(p Params) *Engine {
	cfg := p.Config.normalize()
	clk := p.Clock
	if clk == nil {
		clk = clock.Real()
	}
	return &Engine{
		cfg:   cfg,
		port:  p.Port,
		codec: p.Codec,
		sink:  p.Sink,
		keys:  p.Keys,
		clock: clk,
		cmds:  make(chan func(context.Context)),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
		mode:  modeController{window: cfg.ForceDecryptWindow},
		clear: clearScheduler{after: cfg.ClearAfter},
	}
}

// Run polls the clipboard until ctx is done or Shutdown is called. A tick
// in progress always completes; shutdown latency is bounded by one tick
// plus its retry backoff. Run may only be called once.
func (e *Engine) Run(ctx context.Context) error {
	if !e.started.CompareAndSwap(false, true) {
		return errors.New("engine: already running")
	}
	defer close(e.done)

	// Ticks and commands are never interrupted midway.
	work := context.WithoutCancel(ctx)

	t := e.clock.NewTicker(e.cfg.PollInterval)
	defer t.Stop()

	slog.Info("clipboard engine started",
		"backend", e.port.Name(),
		"poll_interval", e.cfg.PollInterval,
		"clear_after", e.cfg.ClearAfter,
		"force_decrypt_window", e.cfg.ForceDecryptWindow,
		"auto_decrypt", e.cfg.AutoDecrypt,
		"decrypt_action", e.cfg.DecryptAction,
	)
	defer slog.Info("clipboard engine stopped")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-e.stop:
			return nil
		case fn := <-e.cmds:
			fn(work)
		case <-t.C():
			e.tick(work)
		}
	}
}

// Shutdown stops Run after the current tick. Safe to call from any
// goroutine, any number of times.
func (e *Engine) Shutdown() {
	e.stopOnce.Do(func() { close(e.stop) })
}

// Done is closed once Run has returned.
func (e *Engine) Done() <-chan struct{} { return e.done }

// ToggleForceDecrypt flips between ModeAuto and ModeForceDecrypt and
// returns the new mode.
func (e *Engine) ToggleForceDecrypt(ctx context.Context) (Mode, error) {
	var m Mode
	err := e.call(ctx, func(context.Context) {
		m = e.toggle()
	})
	return m, err
}

// RequestManualDecrypt decrypts the current clipboard content now, if it
// is an envelope, regardless of mode. The outcome is reported through the
// Sink.
func (e *Engine) RequestManualDecrypt(ctx context.Context) error {
	return e.call(ctx, func(work context.Context) {
		e.manualDecrypt(work)
	})
}

// RegenerateKey replaces the stored key and installs the new one in the
// codec. Key store failures are returned to the caller only.
func (e *Engine) RegenerateKey(ctx context.Context) error {
	if e.keys == nil {
		return ErrNoKeyRotator
	}
	var err error
	if cerr := e.call(ctx, func(context.Context) {
		err = e.regenerateKey()
	}); cerr != nil {
		return cerr
	}
	return err
}

// Status returns a snapshot of the engine state.
func (e *Engine) Status(ctx context.Context) (Status, error) {
	var s Status
	err := e.call(ctx, func(context.Context) {
		s = e.snapshot()
	})
	return s, err
}

// call runs fn on the engine goroutine and waits for it to finish.
func (e *Engine) call(ctx context.Context, fn func(context.Context)) error {
	finished := make(chan struct{})
	select {
	case e.cmds <- func(work context.Context) {
		defer close(finished)
		fn(work)
	}:
	case <-e.done:
		return ErrStopped
	case <-e.stop:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	<-finished
	return nil
}

func (e *Engine) toggle() Mode {
	m := e.mode.toggle(e.clock.Now())
	if m == ModeAuto {
		e.leaveForceDecrypt()
	}
	slog.Info("force decrypt toggled", "mode", m, "until", e.mode.deadline)
	e.emit(events.KindModeChanged, m.String())
	return m
}

func (e *Engine) expireMode() {
	e.mode.reset()
	e.leaveForceDecrypt()
	slog.Info("force decrypt expired", "mode", ModeAuto)
	e.emit(events.KindModeChanged, ModeAuto.String())
}

// leaveForceDecrypt drops any decrypt display state.
func (e *Engine) leaveForceDecrypt() {
	e.decryptTried = ""
	e.lastDecrypted = ""
}

func (e *Engine) regenerateKey() error {
	key, err := e.keys.Regenerate()
	if err != nil {
		slog.Error("key regeneration failed", "err", err)
		return err
	}
	if err := e.codec.SetKey(key); err != nil {
		return err
	}
	return nil
}

func (e *Engine) snapshot() Status {
	s := Status{
		Mode:              e.mode.mode,
		ConsecutiveErrors: e.consecutiveErrors,
		Backend:           e.port.Name(),
		LastChange:        e.lastChange,
		LastDecrypted:     e.lastDecrypted,
	}
	if e.mode.mode == ModeForceDecrypt {
		s.ForceDecryptUntil = e.mode.deadline
	}
	if e.clear.armed {
		s.ClearAt = e.clear.deadline
	}
	return s
}

func (e *Engine) emit(kind events.Kind, payload string) {
	e.sink.Emit(events.Event{Kind: kind, Payload: payload, At: e.clock.Now()})
}

func (e *Engine) emitError(err error) {
	e.emit(events.KindError, err.Error())
}
