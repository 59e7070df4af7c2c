//go:build darwin

package vault

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"os/exec"
	"strings"
)

// keychainKeyring stores the master key in the macOS Keychain through
// security(1). The key is hex-encoded because generic passwords are
// string-valued.
type keychainKeyring struct{}

// SystemKeyring returns the platform credential store. dataDir is
// unused on macOS.
func SystemKeyring(dataDir string) Keyring {
	return &keychainKeyring{}
}

func (k *keychainKeyring) Load(service, account string) ([]byte, error) {
	cmd := exec.Command("/usr/bin/security", "find-generic-password",
		"-s", service, "-a", account, "-w")
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		// "could not be found" is the documented not-found message.
		if strings.Contains(stderr.String(), "could not be found") {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("keychain lookup: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	secret, err := hex.DecodeString(strings.TrimSpace(out.String()))
	if err != nil {
		return nil, fmt.Errorf("keychain entry malformed: %w", err)
	}
	return secret, nil
}

func (k *keychainKeyring) Store(service, account string, value []byte) error {
	// -U updates in place if the entry already exists.
	cmd := exec.Command("/usr/bin/security", "add-generic-password",
		"-s", service, "-a", account, "-w", hex.EncodeToString(value), "-U")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("keychain store: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
