// Package vault is the at-rest encryption gateway for clipboard
// payloads. It has two states: disabled (pass-through, never touches
// the credential store) and enabled (an active symmetric key held in
// process memory).
//
// The transition to enabled happens only on an explicit command, so the
// user is never prompted for credential-store access by an unrelated
// code path. The master key is generated once, kept in the platform
// secure credential store, and loaded lazily on the first enable.
package vault

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"clipd/internal/clip"
)

const (
	// Service and account under which the master key lives in the
	// credential store.
	keyringService = "clipd"
	keyringAccount = "payload-key"

	masterKeySize = 32
)

// ErrKeyNotFound is returned by a Keyring when no key is stored yet.
var ErrKeyNotFound = errors.New("vault: key not found")

// Keyring abstracts the platform secure credential store.
type Keyring interface {
	Load(service, account string) ([]byte, error)
	Store(service, account string, secret []byte) error
}

// Gateway encrypts and decrypts payloads when enabled and passes them
// through untouched when disabled.
type Gateway struct {
	mu   sync.RWMutex
	ring Keyring
	log  *slog.Logger

	enabled bool
	key     []byte // derived AEAD key, wiped on Disable
}

// New creates a disabled gateway. No credential-store access happens
// until Enable.
func New(ring Keyring, log *slog.Logger) *Gateway {
	if log == nil {
		log = slog.Default()
	}
	return &Gateway{ring: ring, log: log}
}

// Enabled reports whether payload encryption is active.
func (g *Gateway) Enabled() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.enabled
}

// Enable loads the master key from the credential store, generating and
// storing it first if absent, and derives the payload AEAD key. It may
// block briefly on the credential store; callers on a hot path should
// invoke it from a goroutine and wait for the result.
func (g *Gateway) Enable() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.enabled {
		return nil
	}

	master, err := g.ring.Load(keyringService, keyringAccount)
	if errors.Is(err, ErrKeyNotFound) {
		master = make([]byte, masterKeySize)
		if _, err := rand.Read(master); err != nil {
			return fmt.Errorf("generate master key: %w", err)
		}
		if err := g.ring.Store(keyringService, keyringAccount, master); err != nil {
			Wipe(master)
			return fmt.Errorf("store master key: %w", err)
		}
		g.log.Info("generated payload encryption key")
	} else if err != nil {
		return fmt.Errorf("load master key: %w", err)
	}
	defer Wipe(master)

	key, err := deriveKey(master, "clipd:payload-aead", chacha20poly1305.KeySize)
	if err != nil {
		return err
	}

	g.key = key
	g.enabled = true
	g.log.Info("payload encryption enabled")
	return nil
}

// Disable drops the key from memory. Already-encrypted items stay
// encrypted; new writes go through in the clear.
func (g *Gateway) Disable() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.enabled {
		return
	}
	Wipe(g.key)
	g.key = nil
	g.enabled = false
	g.log.Info("payload encryption disabled")
}

// Encrypt seals plaintext with the active key. The output is
// nonce || ciphertext ; the AEAD tag gives tamper detection. Calling
// Encrypt while disabled is a programming error.
func (g *Gateway) Encrypt(plain []byte) ([]byte, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if !g.enabled {
		return nil, errors.New("vault: encrypt while disabled")
	}

	aead, err := chacha20poly1305.NewX(g.key)
	if err != nil {
		return nil, fmt.Errorf("init aead: %w", err)
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plain)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plain, nil), nil
}

// Decrypt opens a sealed payload. Corrupt or tampered input fails with
// clip.ErrIntegrity, never a panic.
func (g *Gateway) Decrypt(sealed []byte) ([]byte, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if !g.enabled {
		return nil, errors.New("vault: decrypt while disabled")
	}

	aead, err := chacha20poly1305.NewX(g.key)
	if err != nil {
		return nil, fmt.Errorf("init aead: %w", err)
	}

	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return nil, fmt.Errorf("%w: truncated ciphertext", clip.ErrIntegrity)
	}
	nonce, ct := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", clip.ErrIntegrity, err)
	}
	return plain, nil
}

// deriveKey stretches the master key with HKDF-SHA256 under a domain
// separation label.
func deriveKey(master []byte, label string, size int) ([]byte, error) {
	r := hkdf.New(sha256.New, master, nil, []byte(label))
	key := make([]byte, size)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}

// Wipe zeroes sensitive bytes in place.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
