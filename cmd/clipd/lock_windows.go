//go:build windows

package main

import (
	"fmt"
	"os"
)

// acquireLock claims the instance lock file. Windows denies opening a
// file another process holds with exclusive sharing, which gives the
// same single-instance guarantee flock provides elsewhere.
func acquireLock(path string) (func(), error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0600)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("another clipd instance is running (lock %s held)", path)
		}
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	fmt.Fprintf(f, "%d\n", os.Getpid())
	release := func() {
		f.Close()
		os.Remove(path)
	}
	return release, nil
}
