package sysclip

import (
	"sync"

	"clipd/internal/clip"
)

// Memory is an in-process clipboard used by tests and headless runs.
type Memory struct {
	mu      sync.Mutex
	payload clip.Payload
	writes  int
}

// NewMemory returns an empty in-memory clipboard.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Read() (clip.Payload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.payload, nil
}

func (m *Memory) Write(p clip.Payload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payload = p
	m.writes++
	return nil
}

// Writes reports how many times the clipboard has been written.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}
