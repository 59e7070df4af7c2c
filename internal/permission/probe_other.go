//go:build !darwin

package permission

import "golang.design/x/clipboard"

// clipboardProbe approximates the grant on platforms without an
// accessibility gate: if clipboard bindings initialize, input access
// generally works too.
type clipboardProbe struct{}

// SystemProbe returns the platform permission probe.
func SystemProbe() Probe {
	return clipboardProbe{}
}

func (clipboardProbe) Granted() bool {
	return clipboard.Init() == nil
}

func (clipboardProbe) Request() {
	// No explicit prompt exists outside macOS.
}
