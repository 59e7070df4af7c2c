// Package paste drives the focus-capture → deliver → settle protocol
// that hands a history item back to the application that last had
// focus.
package paste

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"clipd/internal/clip"
	"clipd/internal/sysclip"
)

// State is the engine's position in the delivery protocol.
type State uint8

const (
	StateIdle State = iota
	StateFocusCaptured
	StatePayloadStaged
	StateDelivering
	StateSettling
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFocusCaptured:
		return "focus-captured"
	case StatePayloadStaged:
		return "payload-staged"
	case StateDelivering:
		return "delivering"
	case StateSettling:
		return "settling"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// App identifies a target application for focus capture/restore.
type App struct {
	PID  int
	Name string
}

// Focuser captures and restores application focus.
type Focuser interface {
	// Frontmost returns the currently focused application.
	Frontmost() (App, error)

	// Activate brings an application back to the foreground.
	Activate(App) error
}

// Injector produces the synthetic paste input event.
type Injector interface {
	InjectPaste() error
}

// Fallback is the OS-level scripted paste used when injection fails.
type Fallback interface {
	ScriptedPaste(App) error
}

// Hotkeys is the external hotkey subsystem. It is suspended during
// delivery so the paste's own synthetic key events are never misread as
// a user hotkey.
type Hotkeys interface {
	Suspend()
	Resume()
}

// Suppressor is the watcher's re-entrancy guard around self-originated
// clipboard writes.
type Suppressor interface {
	Suppress()
	Resume()
}

// Gate is the permission precondition.
type Gate interface {
	IsGranted() bool
}

// Config bounds one delivery.
type Config struct {
	// SettleDelay is how long the engine waits after injection before
	// clearing the suppression flag and resuming hotkeys.
	SettleDelay time.Duration

	// Timeout bounds the whole deliver phase. On expiry the request
	// fails but still settles.
	Timeout time.Duration
}

// DefaultConfig returns production delivery timing.
func DefaultConfig() Config {
	return Config{SettleDelay: 300 * time.Millisecond, Timeout: 5 * time.Second}
}

// Engine serializes paste deliveries. It holds exclusive logical
// ownership of the system clipboard for the duration of each delivery,
// backing up and restoring prior content around the write. Re-entrant
// requests queue behind the in-flight one; nothing interleaves, since
// focus capture targets a single application at a time.
type Engine struct {
	dev     sysclip.Device
	focus   Focuser
	inj     Injector
	fb      Fallback
	hotkeys Hotkeys
	sup     Suppressor
	gate    Gate
	cfg     Config
	log     *slog.Logger

	state atomic.Uint32

	queue chan *request
	done  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once
}

type request struct {
	payload clip.Payload
	result  chan clip.DeliveryResult
}

// New wires a delivery engine. All collaborators are injected; tests
// substitute doubles for every one of them.
func New(dev sysclip.Device, focus Focuser, inj Injector, fb Fallback,
	hotkeys Hotkeys, sup Suppressor, gate Gate, cfg Config, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = DefaultConfig().SettleDelay
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &Engine{
		dev:     dev,
		focus:   focus,
		inj:     inj,
		fb:      fb,
		hotkeys: hotkeys,
		sup:     sup,
		gate:    gate,
		cfg:     cfg,
		log:     log,
		queue:   make(chan *request, 8),
		done:    make(chan struct{}),
	}
}

// State returns the engine's current protocol state.
func (e *Engine) State() State {
	return State(e.state.Load())
}

// Start launches the serialized delivery worker.
func (e *Engine) Start() {
	e.wg.Add(1)
	go e.worker()
}

// Stop drains the worker. Queued, unstarted requests fail.
func (e *Engine) Stop() {
	e.once.Do(func() { close(e.done) })
	e.wg.Wait()
}

// Deliver queues a payload for delivery and blocks until the request
// completes or ctx is done. A delivery already injected is not
// cancelable; ctx only abandons the wait.
func (e *Engine) Deliver(ctx context.Context, payload clip.Payload) clip.DeliveryResult {
	req := &request{payload: payload, result: make(chan clip.DeliveryResult, 1)}

	select {
	case e.queue <- req:
	case <-ctx.Done():
		return clip.DeliveryFailed
	case <-e.done:
		return clip.DeliveryFailed
	}

	select {
	case res := <-req.result:
		return res
	case <-ctx.Done():
		return clip.DeliveryFailed
	}
}

func (e *Engine) worker() {
	defer e.wg.Done()
	for {
		select {
		case <-e.done:
			return
		case req := <-e.queue:
			req.result <- e.deliver(req.payload)
		}
	}
}

// deliver runs one pass of the protocol:
// Idle → FocusCaptured → PayloadStaged → Delivering → Settling → Idle,
// or Failed, which still runs Settling.
func (e *Engine) deliver(payload clip.Payload) clip.DeliveryResult {
	// Fail fast with zero side effects: nothing staged, nothing
	// suspended, clipboard untouched.
	if !e.gate.IsGranted() {
		e.log.Warn("paste refused, permission not granted")
		return clip.DeliveryPermissionDenied
	}

	// Idle → FocusCaptured. Recording the frontmost application first
	// means focus can be restored even if our own window was frontmost.
	e.state.Store(uint32(StateFocusCaptured))
	target, err := e.focus.Frontmost()
	if err != nil {
		e.log.Warn("frontmost capture failed", "error", err)
	}

	// FocusCaptured → PayloadStaged. Suppression goes up before the
	// clipboard write so the watcher never sees our own change.
	e.state.Store(uint32(StatePayloadStaged))
	prior, _ := e.dev.Read()
	e.sup.Suppress()
	e.hotkeys.Suspend()

	staged := e.dev.Write(payload) == nil
	if !staged {
		e.log.Error("clipboard stage failed")
	}

	// Settling runs on every exit from here on. Hotkeys and the
	// suppression flag must never stay suspended, whatever happens
	// above them.
	succeeded := false
	defer func() { e.settle(succeeded, prior) }()

	if !staged {
		e.state.Store(uint32(StateFailed))
		return clip.DeliveryFailed
	}

	// PayloadStaged → Delivering, bounded by the delivery timeout.
	e.state.Store(uint32(StateDelivering))
	delivered := make(chan error, 1)
	go func() { delivered <- e.inject(target) }()

	select {
	case err := <-delivered:
		if err != nil {
			e.log.Error("delivery failed, payload left on clipboard", "error", err)
			e.state.Store(uint32(StateFailed))
			return clip.DeliveryFailed
		}
	case <-time.After(e.cfg.Timeout):
		e.log.Error("delivery timed out, payload left on clipboard")
		e.state.Store(uint32(StateFailed))
		return clip.DeliveryFailed
	}

	succeeded = true
	return clip.DeliverySuccess
}

// inject restores focus and fires the synthetic paste, falling back to
// the scripted path when injection fails.
func (e *Engine) inject(target App) error {
	if target.PID != 0 || target.Name != "" {
		if err := e.focus.Activate(target); err != nil {
			e.log.Warn("focus restore failed", "app", target.Name, "error", err)
		}
	}

	injErr := e.inj.InjectPaste()
	if injErr == nil {
		return nil
	}
	e.log.Warn("synthetic paste failed, trying scripted fallback", "error", injErr)

	if fbErr := e.fb.ScriptedPaste(target); fbErr != nil {
		return fmt.Errorf("%w: inject: %v; fallback: %v", clip.ErrDeliveryFailed, injErr, fbErr)
	}
	return nil
}

// settle is the Delivering → Settling → Idle tail. The prior clipboard
// content is restored best-effort only after a confirmed delivery;
// after a failure the payload stays on the clipboard so the user can
// paste manually. Restoration happens while suppression is still up, so
// the watcher tracks but never re-emits it.
func (e *Engine) settle(restore bool, prior clip.Payload) {
	e.state.Store(uint32(StateSettling))
	time.Sleep(e.cfg.SettleDelay)

	if restore && !prior.Empty() {
		if err := e.dev.Write(prior); err != nil {
			e.log.Warn("clipboard restore failed", "error", err)
		}
	}

	e.sup.Resume()
	e.hotkeys.Resume()
	e.state.Store(uint32(StateIdle))
}
