// Package watcher polls the system clipboard and emits genuine
// external changes as events.
package watcher

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"clipd/internal/clip"
	"clipd/internal/sysclip"
)

// Watcher detects clipboard changes on a fixed-interval tick. Dedup is
// O(1): the current fingerprint is compared only against the
// immediately preceding one. While the suppression flag is set (the
// paste engine is writing to the clipboard itself), changes are
// fingerprint-tracked but not emitted, which is what keeps a delivered
// paste from being re-ingested as a new item.
type Watcher struct {
	dev      sysclip.Device
	interval atomic.Int64 // nanoseconds
	log      *slog.Logger

	suppressed atomic.Bool

	fpMu   sync.Mutex
	lastFP string

	events chan clip.Payload

	mu      sync.Mutex
	running bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// New creates a watcher over a clipboard device.
func New(dev sysclip.Device, interval time.Duration, log *slog.Logger) *Watcher {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	if log == nil {
		log = slog.Default()
	}
	w := &Watcher{
		dev:    dev,
		log:    log,
		events: make(chan clip.Payload, 16),
	}
	w.interval.Store(int64(interval))
	return w
}

// SetInterval changes the polling interval. A running loop picks the
// new interval up on its next tick.
func (w *Watcher) SetInterval(interval time.Duration) {
	if interval <= 0 {
		return
	}
	w.interval.Store(int64(interval))
}

// Events returns the channel of new-content events.
func (w *Watcher) Events() <-chan clip.Payload {
	return w.events
}

// Suppress marks the beginning of a self-originated clipboard write.
func (w *Watcher) Suppress() {
	w.suppressed.Store(true)
}

// Resume clears the suppression flag. The device is re-read first so a
// restore write made during the suppression window is tracked as
// already seen; without the re-sync, restored content one tick behind
// the tracked fingerprint would surface as a new item.
func (w *Watcher) Resume() {
	w.track(w.currentFingerprint())
	w.suppressed.Store(false)
}

// Suppressed reports whether the suppression window is open.
func (w *Watcher) Suppressed() bool {
	return w.suppressed.Load()
}

// Start begins polling. The current clipboard content at start is
// treated as already seen, not as a new item.
func (w *Watcher) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}
	w.running = true
	w.done = make(chan struct{})

	w.wg.Add(1)
	go w.loop()
}

// Stop halts polling and waits for the loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.done)
	w.mu.Unlock()

	w.wg.Wait()
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	w.track(w.currentFingerprint())

	interval := time.Duration(w.interval.Load())
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			if cur := time.Duration(w.interval.Load()); cur != interval {
				interval = cur
				ticker.Reset(interval)
			}
			payload, err := w.dev.Read()
			if err != nil {
				w.log.Warn("clipboard read failed", "error", err)
				continue
			}
			if payload.Empty() {
				continue
			}

			fp := payload.Fingerprint()
			if fp == w.lastSeen() {
				continue
			}
			w.track(fp)

			if w.suppressed.Load() {
				// Self-originated write; tracked but not emitted.
				continue
			}

			select {
			case w.events <- payload:
			default:
				w.log.Warn("event channel full, dropping clipboard change")
			}
		}
	}
}

func (w *Watcher) lastSeen() string {
	w.fpMu.Lock()
	defer w.fpMu.Unlock()
	return w.lastFP
}

func (w *Watcher) track(fp string) {
	w.fpMu.Lock()
	w.lastFP = fp
	w.fpMu.Unlock()
}

func (w *Watcher) currentFingerprint() string {
	payload, err := w.dev.Read()
	if err != nil || payload.Empty() {
		return ""
	}
	return payload.Fingerprint()
}
