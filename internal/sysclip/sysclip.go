// Package sysclip abstracts the system clipboard behind a small device
// interface so the watcher and the paste engine can be tested against
// an in-memory implementation.
package sysclip

import "clipd/internal/clip"

// Device is the system clipboard surface clipd relies on.
type Device interface {
	// Read returns the current clipboard content. An empty payload
	// means the clipboard is empty or holds only unsupported types.
	Read() (clip.Payload, error)

	// Write replaces the clipboard content.
	Write(p clip.Payload) error
}
