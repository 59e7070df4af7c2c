//go:build !linux && !darwin

package vault

import (
	"fmt"
	"os"
	"path/filepath"
)

// fileKeyring is the fallback for platforms without a wired credential
// store: a 0600 file under the daemon data directory. Not a secure
// store; callers log a warning when this backend is selected.
type fileKeyring struct {
	dir string
}

// SystemKeyring returns the platform credential store.
func SystemKeyring(dataDir string) Keyring {
	return &fileKeyring{dir: dataDir}
}

func (k *fileKeyring) path(service, account string) string {
	return filepath.Join(k.dir, service+"-"+account+".key")
}

func (k *fileKeyring) Load(service, account string) ([]byte, error) {
	data, err := os.ReadFile(k.path(service, account))
	if os.IsNotExist(err) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	return data, nil
}

func (k *fileKeyring) Store(service, account string, value []byte) error {
	if err := os.MkdirAll(k.dir, 0700); err != nil {
		return fmt.Errorf("create key directory: %w", err)
	}
	if err := os.WriteFile(k.path(service, account), value, 0600); err != nil {
		return fmt.Errorf("write key file: %w", err)
	}
	return nil
}
