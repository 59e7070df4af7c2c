package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// DataDir returns the base clipd data directory. CLIPD_DATA_DIR
// overrides the platform default.
func DataDir() string {
	if envDir := os.Getenv("CLIPD_DATA_DIR"); envDir != "" {
		return envDir
	}
	return platformDataDir()
}

func platformDataDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return fallbackDataDir()
		}
		return filepath.Join(home, "Library", "Application Support", "clipd")
	case "linux":
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, "clipd")
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return fallbackDataDir()
		}
		return filepath.Join(home, ".local", "share", "clipd")
	case "windows":
		if appData := os.Getenv("LOCALAPPDATA"); appData != "" {
			return filepath.Join(appData, "clipd")
		}
		return fallbackDataDir()
	default:
		return fallbackDataDir()
	}
}

func fallbackDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "clipd")
	}
	return filepath.Join(home, ".clipd")
}

func defaultSocketPath() string {
	return socketPathFor(runtime.GOOS, platformDataDir())
}

// socketPathFor always returns a filesystem path: the server listens
// with AF_UNIX on every platform, and on Windows that requires a real
// file path, never a pipe-namespace name.
func socketPathFor(goos, dataDir string) string {
	switch goos {
	case "darwin", "windows":
		return filepath.Join(dataDir, "clipd.sock")
	case "linux":
		if xdgRuntime := os.Getenv("XDG_RUNTIME_DIR"); xdgRuntime != "" {
			return filepath.Join(xdgRuntime, "clipd.sock")
		}
		return "/tmp/clipd.sock"
	default:
		return "/tmp/clipd.sock"
	}
}
